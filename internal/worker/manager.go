package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promptmaster/internal/models"
	"promptmaster/internal/observability"
	"promptmaster/internal/service/ai"
	"promptmaster/internal/service/assistant"
)

const (
	defaultQueueSize  = 128
	defaultMinWorkers = 2
	defaultMaxWorkers = 16
)

var ErrEmptyContent = errors.New("content cannot be empty")

// Responder produces the assistant reply for one turn.
type Responder interface {
	Dispatch(ctx context.Context, input string, mode models.Mode, style models.Style) ai.Result
}

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

// TurnRequest is one user message sent to a session. Style is optional and
// defaults to the session's selected style.
type TurnRequest struct {
	Context   context.Context
	SessionID string
	Content   string
	Style     models.Style
	// OnAccepted runs on the worker right after the user message is logged.
	OnAccepted func(*models.Message)
}

type TurnResult struct {
	UserMessage      *models.Message
	AssistantMessage *models.Message
	Result           ai.Result
}

// Manager runs chat turns: log the user message, dispatch, log the reply.
type Manager struct {
	assistant  *assistant.Service
	responder  Responder
	dispatcher *Dispatcher
}

func NewManager(asst *assistant.Service, responder Responder, cfg DispatcherConfig) *Manager {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = defaultMinWorkers
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	m := &Manager{
		assistant: asst,
		responder: responder,
	}
	m.dispatcher = NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, cfg.IdleTimeout, m.handle)
	return m
}

// Turn submits a turn and waits for it to finish. The mode and style are
// fixed at submission, so a later mode switch does not affect queued turns.
func (m *Manager) Turn(req TurnRequest) (*TurnResult, error) {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
		req.Context = ctx
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}
	session, _, err := m.assistant.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	style := req.Style
	if style == "" {
		style = session.Style
	}
	if _, err := m.assistant.Catalog().Lookup(session.Mode, style); err != nil {
		return nil, err
	}

	resultCh := make(chan workerReturn, 1)
	task := &turnTask{
		ctx:       ctx,
		sessionID: req.SessionID,
		content:   req.Content,
		mode:      session.Mode,
		style:     style,
		onAccept:  req.OnAccepted,
		resultCh:  resultCh,
	}
	if err := m.dispatcher.Submit(Job{Type: Turn, TurnTask: task}); err != nil {
		return nil, err
	}

	var ret workerReturn
	select {
	case ret = <-resultCh:
	case <-ctx.Done():
		if task.abandon() {
			// not started yet: drop it from the queue and stop waiting
			m.dispatcher.CancelJob(task)
			return nil, fmt.Errorf("%w: %w", ErrTurnCanceled, ctx.Err())
		}
		// already on a worker, which sees the same canceled context
		ret = <-resultCh
	}
	if ret.err != nil {
		return nil, ret.err
	}
	return &TurnResult{
		UserMessage:      ret.userMessage,
		AssistantMessage: ret.aiMessage,
		Result:           ret.result,
	}, nil
}

// Purge drops queued turns of a session that ended.
func (m *Manager) Purge(sessionID string) {
	if n := m.dispatcher.CancelSession(sessionID); n > 0 {
		debugLog("[manager] purged %d queued turns of session %s", n, sessionID)
	}
}

// Stop shuts the dispatcher and its workers down.
func (m *Manager) Stop() {
	m.dispatcher.Close()
}

func (m *Manager) handle(job Job) {
	if job.Type != Turn || job.TurnTask == nil {
		return
	}
	task := job.TurnTask
	ret := m.runTurn(task)
	if task.resultCh != nil {
		task.resultCh <- ret
	}
}

func (m *Manager) runTurn(task *turnTask) workerReturn {
	ctx := task.ctx
	if !task.start() {
		return workerReturn{err: ErrTurnCanceled}
	}
	if err := ctx.Err(); err != nil {
		return workerReturn{err: fmt.Errorf("%w: %w", ErrTurnCanceled, err)}
	}
	logger := observability.LoggerFromContext(ctx)

	userMsg, err := m.assistant.AppendMessage(ctx, task.sessionID, models.RoleUser, task.content, task.mode, task.style)
	if err != nil {
		return workerReturn{err: err}
	}
	if task.onAccept != nil {
		task.onAccept(userMsg)
	}

	res := m.responder.Dispatch(ctx, task.content, task.mode, task.style)
	if !res.OK() {
		logger.Warn("turn answered with fallback", "session_id", task.sessionID, "kind", res.Kind, "error", res.Err)
	}

	aiMsg, err := m.assistant.AppendMessage(ctx, task.sessionID, models.RoleAssistant, res.Text, task.mode, task.style)
	if err != nil {
		return workerReturn{userMessage: userMsg, result: res, err: err}
	}
	return workerReturn{userMessage: userMsg, aiMessage: aiMsg, result: res}
}
