package assistant

import (
	"context"

	"promptmaster/internal/models"
	"promptmaster/internal/observability"
)

// FeedbackRecorder receives helpful/unhelpful marks on assistant messages.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, session *models.Session, msg *models.Message)
}

// logFeedbackRecorder only logs; there is no feedback backend.
type logFeedbackRecorder struct{}

func (logFeedbackRecorder) RecordFeedback(ctx context.Context, session *models.Session, msg *models.Message) {
	observability.LoggerFromContext(ctx).Info("feedback recorded",
		"session_id", session.ID,
		"message_id", msg.ID,
		"mode", msg.Mode,
		"style", msg.Style,
		"feedback", msg.Feedback,
	)
}
