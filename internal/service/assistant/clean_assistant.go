package assistant

import (
	"context"
	"time"

	"promptmaster/internal/observability"
)

const (
	DefaultSessionTTL             = 2 * time.Hour
	DefaultSessionCleanupInterval = 10 * time.Minute
)

// StartSessionCleaner drops sessions idle for longer than ttl. onExpire, if
// set, is called with each dropped session id.
func (s *Service) StartSessionCleaner(ctx context.Context, interval, ttl time.Duration, onExpire func(sessionID string)) {
	if interval <= 0 {
		interval = DefaultSessionCleanupInterval
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	go s.cleanupLoop(ctx, interval, ttl, onExpire)
}

func (s *Service) cleanupLoop(ctx context.Context, interval, ttl time.Duration, onExpire func(string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := s.cleanupExpiredSessions(ttl)
			if len(expired) > 0 {
				observability.Logger().Info("expired idle sessions", "count", len(expired))
			}
			if onExpire != nil {
				for _, id := range expired {
					onExpire(id)
				}
			}
		}
	}
}

func (s *Service) cleanupExpiredSessions(ttl time.Duration) []string {
	cutoff := s.now().UTC().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, conv := range s.sessions {
		if conv.session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}
