package assistant

import (
	"errors"
	"sync"
	"time"

	"promptmaster/internal/models"
	"promptmaster/internal/prompt"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrEmptyContent       = errors.New("content cannot be empty")
	ErrInvalidFeedback    = errors.New("invalid feedback")
	ErrFeedbackNotAllowed = errors.New("feedback is only accepted on assistant messages")
)

type conversation struct {
	session  models.Session
	messages []*models.Message
}

// Service keeps every session's conversation log in memory. Nothing is
// persisted; a log lives until it is cleared, deleted, or swept as idle.
type Service struct {
	catalog  *prompt.Catalog
	feedback FeedbackRecorder
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*conversation
}

type Option func(*Service)

// WithFeedbackRecorder replaces the default log-only recorder.
func WithFeedbackRecorder(r FeedbackRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.feedback = r
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a new assistant service.
func NewService(catalog *prompt.Catalog, opts ...Option) *Service {
	if catalog == nil {
		catalog = prompt.Default()
	}
	s := &Service{
		catalog:  catalog,
		feedback: logFeedbackRecorder{},
		now:      time.Now,
		sessions: make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the prompt table sessions are validated against.
func (s *Service) Catalog() *prompt.Catalog {
	return s.catalog
}

// SessionCount reports the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lookupLocked expects s.mu to be held.
func (s *Service) lookupLocked(sessionID string) (*conversation, error) {
	conv, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return conv, nil
}

func copyMessage(msg *models.Message) *models.Message {
	if msg == nil {
		return nil
	}
	c := *msg
	return &c
}

func copyMessages(msgs []*models.Message) []*models.Message {
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, copyMessage(m))
	}
	return out
}
