package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"promptmaster/internal/models"
)

// CreateSession opens a session in the given mode (Q&A when empty) with the
// mode's default style and greeting.
func (s *Service) CreateSession(ctx context.Context, mode models.Mode) (*models.Session, []*models.Message, error) {
	if mode == "" {
		mode = models.ModeQA
	}
	style, err := s.catalog.DefaultStyle(mode)
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	conv := &conversation{
		session: models.Session{
			ID:        shortuuid.New(),
			Mode:      mode,
			Style:     style,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	s.injectGreetingLocked(conv, mode)

	s.mu.Lock()
	s.sessions[conv.session.ID] = conv
	s.mu.Unlock()

	session := conv.session
	return &session, copyMessages(conv.messages), nil
}

// GetSession returns the session and its whole ordered log.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, []*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, nil, err
	}
	session := conv.session
	return &session, copyMessages(conv.messages), nil
}

// MessagesForMode is the read-only view of the log the UI shows for one mode.
func (s *Service) MessagesForMode(ctx context.Context, sessionID string, mode models.Mode) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Message, 0, len(conv.messages))
	for _, m := range conv.messages {
		if m.Mode == mode {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

// SwitchMode moves the session to another mode and resets the style to the
// mode's default. The mode's greeting is injected only when the log holds
// no message of that mode yet; the injected message is returned, or nil.
func (s *Service) SwitchMode(ctx context.Context, sessionID string, mode models.Mode) (*models.Session, *models.Message, error) {
	style, err := s.catalog.DefaultStyle(mode)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if conv.session.Mode != mode {
		conv.session.Mode = mode
		conv.session.Style = style
	}
	conv.session.UpdatedAt = s.now().UTC()
	greeting := s.injectGreetingLocked(conv, mode)

	session := conv.session
	return &session, copyMessage(greeting), nil
}

// SetStyle selects a style of the session's current mode.
func (s *Service) SetStyle(ctx context.Context, sessionID string, style models.Style) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.Lookup(conv.session.Mode, style); err != nil {
		return nil, err
	}
	conv.session.Style = style
	conv.session.UpdatedAt = s.now().UTC()
	session := conv.session
	return &session, nil
}

// AppendMessage adds a turn to the session log.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, role models.Role, content string, mode models.Mode, style models.Style) (*models.Message, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Mode:      mode,
		Style:     style,
		CreatedAt: now,
	}
	conv.messages = append(conv.messages, msg)
	conv.session.UpdatedAt = now
	return copyMessage(msg), nil
}

// SetFeedback marks an assistant message helpful or unhelpful. The latest
// choice wins. Feedback stays in memory and is handed to the recorder.
func (s *Service) SetFeedback(ctx context.Context, sessionID, messageID string, feedback models.Feedback) (*models.Message, error) {
	if feedback != models.FeedbackHelpful && feedback != models.FeedbackUnhelpful {
		return nil, ErrInvalidFeedback
	}

	s.mu.Lock()
	conv, err := s.lookupLocked(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var target *models.Message
	for _, m := range conv.messages {
		if m.ID == messageID {
			target = m
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return nil, ErrMessageNotFound
	}
	if target.Role != models.RoleAssistant {
		s.mu.Unlock()
		return nil, ErrFeedbackNotAllowed
	}
	target.Feedback = feedback
	msg := copyMessage(target)
	session := conv.session
	s.mu.Unlock()

	s.feedback.RecordFeedback(ctx, &session, msg)
	return msg, nil
}

// ClearHistory drops every message and feedback of the session, then greets
// again in the current mode.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) (*models.Session, []*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, nil, err
	}
	conv.messages = nil
	conv.session.UpdatedAt = s.now().UTC()
	s.injectGreetingLocked(conv, conv.session.Mode)

	session := conv.session
	return &session, copyMessages(conv.messages), nil
}

// DeleteSession ends a session and discards its log.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// injectGreetingLocked appends the mode greeting if no message of that mode
// exists. Callers hold s.mu or own conv exclusively.
func (s *Service) injectGreetingLocked(conv *conversation, mode models.Mode) *models.Message {
	for _, m := range conv.messages {
		if m.Mode == mode {
			return nil
		}
	}
	text := s.catalog.Greeting(mode)
	if text == "" {
		return nil
	}
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: conv.session.ID,
		Role:      models.RoleAssistant,
		Content:   text,
		Mode:      mode,
		CreatedAt: s.now().UTC(),
	}
	conv.messages = append(conv.messages, msg)
	return msg
}

// Messages returns the session's whole ordered log.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	_, msgs, err := s.GetSession(ctx, sessionID)
	return msgs, err
}
