package assistant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptmaster/internal/models"
	"promptmaster/internal/prompt"
)

type recordingFeedback struct {
	mu    sync.Mutex
	calls []models.Feedback
}

func (r *recordingFeedback) RecordFeedback(_ context.Context, _ *models.Session, msg *models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, msg.Feedback)
}

func countGreetings(msgs []*models.Message, mode models.Mode, text string) int {
	n := 0
	for _, m := range msgs {
		if m.Mode == mode && m.Role == models.RoleAssistant && m.Content == text {
			n++
		}
	}
	return n
}

func TestCreateSessionInjectsGreeting(t *testing.T) {
	svc := NewService(prompt.Default())
	ctx := context.Background()

	session, msgs, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.ModeQA, session.Mode)
	assert.Equal(t, models.StyleConcise, session.Style)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Equal(t, prompt.Default().Greeting(models.ModeQA), msgs[0].Content)
	assert.Equal(t, 1, svc.SessionCount())
}

func TestCreateSessionRejectsUnknownMode(t *testing.T) {
	svc := NewService(nil)
	_, _, err := svc.CreateSession(context.Background(), models.Mode("POETRY"))
	assert.ErrorIs(t, err, prompt.ErrConfigNotFound)
}

func TestSwitchModeGreetsOnce(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()
	session, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)

	updated, greeting, err := svc.SwitchMode(ctx, session.ID, models.ModeSummarize)
	require.NoError(t, err)
	require.NotNil(t, greeting)
	assert.Equal(t, models.ModeSummarize, updated.Mode)
	assert.Equal(t, models.StyleBulletPoints, updated.Style)

	_, greeting, err = svc.SwitchMode(ctx, session.ID, models.ModeQA)
	require.NoError(t, err)
	assert.Nil(t, greeting, "QA greeting already present")

	_, greeting, err = svc.SwitchMode(ctx, session.ID, models.ModeSummarize)
	require.NoError(t, err)
	assert.Nil(t, greeting)

	msgs, err := svc.Messages(ctx, session.ID)
	require.NoError(t, err)
	catalog := prompt.Default()
	assert.Equal(t, 1, countGreetings(msgs, models.ModeQA, catalog.Greeting(models.ModeQA)))
	assert.Equal(t, 1, countGreetings(msgs, models.ModeSummarize, catalog.Greeting(models.ModeSummarize)))
}

func TestSwitchModeSkipsGreetingWhenModeHasMessages(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()
	session, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)

	// a turn recorded under CREATIVE before the session ever switched there
	_, err = svc.AppendMessage(ctx, session.ID, models.RoleUser, "write a haiku", models.ModeCreative, models.StylePoem)
	require.NoError(t, err)

	_, greeting, err := svc.SwitchMode(ctx, session.ID, models.ModeCreative)
	require.NoError(t, err)
	assert.Nil(t, greeting)
}

func TestSetStyleMustMatchMode(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()
	session, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)

	updated, err := svc.SetStyle(ctx, session.ID, models.StyleELI5)
	require.NoError(t, err)
	assert.Equal(t, models.StyleELI5, updated.Style)

	_, err = svc.SetStyle(ctx, session.ID, models.StylePoem)
	assert.ErrorIs(t, err, prompt.ErrConfigNotFound)

	_, err = svc.SetStyle(ctx, "missing", models.StyleELI5)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendMessageAndModeView(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()
	session, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)

	_, err = svc.AppendMessage(ctx, session.ID, models.RoleUser, "   ", models.ModeQA, models.StyleConcise)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = svc.AppendMessage(ctx, session.ID, models.Role("system"), "hi", models.ModeQA, models.StyleConcise)
	assert.Error(t, err)

	user, err := svc.AppendMessage(ctx, session.ID, models.RoleUser, "What is Go?", models.ModeQA, models.StyleConcise)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, session.ID, user.SessionID)

	_, _, err = svc.SwitchMode(ctx, session.ID, models.ModeCreative)
	require.NoError(t, err)

	qa, err := svc.MessagesForMode(ctx, session.ID, models.ModeQA)
	require.NoError(t, err)
	require.Len(t, qa, 2)
	assert.Equal(t, "What is Go?", qa[1].Content)

	creative, err := svc.MessagesForMode(ctx, session.ID, models.ModeCreative)
	require.NoError(t, err)
	assert.Len(t, creative, 1)

	// returned messages are copies
	qa[1].Content = "mutated"
	again, err := svc.MessagesForMode(ctx, session.ID, models.ModeQA)
	require.NoError(t, err)
	assert.Equal(t, "What is Go?", again[1].Content)
}

func TestSetFeedbackLatestWins(t *testing.T) {
	recorder := &recordingFeedback{}
	svc := NewService(nil, WithFeedbackRecorder(recorder))
	ctx := context.Background()
	session, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)

	user, err := svc.AppendMessage(ctx, session.ID, models.RoleUser, "q", models.ModeQA, models.StyleConcise)
	require.NoError(t, err)
	reply, err := svc.AppendMessage(ctx, session.ID, models.RoleAssistant, "a", models.ModeQA, models.StyleConcise)
	require.NoError(t, err)

	_, err = svc.SetFeedback(ctx, session.ID, user.ID, models.FeedbackHelpful)
	assert.ErrorIs(t, err, ErrFeedbackNotAllowed)

	_, err = svc.SetFeedback(ctx, session.ID, reply.ID, models.Feedback("meh"))
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	_, err = svc.SetFeedback(ctx, session.ID, "nope", models.FeedbackHelpful)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = svc.SetFeedback(ctx, session.ID, reply.ID, models.FeedbackHelpful)
	require.NoError(t, err)
	updated, err := svc.SetFeedback(ctx, session.ID, reply.ID, models.FeedbackUnhelpful)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackUnhelpful, updated.Feedback)

	msgs, err := svc.Messages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackUnhelpful, msgs[len(msgs)-1].Feedback)
	assert.Equal(t, []models.Feedback{models.FeedbackHelpful, models.FeedbackUnhelpful}, recorder.calls)
}

func TestClearHistoryReinjectsGreeting(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()
	session, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)
	_, _, err = svc.SwitchMode(ctx, session.ID, models.ModeSummarize)
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, session.ID, models.RoleUser, "long text", models.ModeSummarize, models.StyleTweet)
	require.NoError(t, err)

	cleared, msgs, err := svc.ClearHistory(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModeSummarize, cleared.Mode)
	require.Len(t, msgs, 1)
	assert.Equal(t, prompt.Default().Greeting(models.ModeSummarize), msgs[0].Content)

	// QA greeting comes back once the user returns to QA
	_, greeting, err := svc.SwitchMode(ctx, session.ID, models.ModeQA)
	require.NoError(t, err)
	assert.NotNil(t, greeting)
}

func TestDeleteSession(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()
	session, _, err := svc.CreateSession(ctx, models.ModeCreative)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(ctx, session.ID))
	assert.ErrorIs(t, svc.DeleteSession(ctx, session.ID), ErrSessionNotFound)
	_, _, err = svc.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCleanupExpiredSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewService(nil, WithClock(clock))
	ctx := context.Background()

	old, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)
	now = now.Add(90 * time.Minute)
	fresh, _, err := svc.CreateSession(ctx, models.ModeQA)
	require.NoError(t, err)
	now = now.Add(40 * time.Minute)

	expired := svc.cleanupExpiredSessions(2 * time.Hour)
	assert.Equal(t, []string{old.ID}, expired)
	_, _, err = svc.GetSession(ctx, fresh.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, svc.SessionCount())
}
