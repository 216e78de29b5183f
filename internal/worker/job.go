package worker

import (
	"context"
	"sync/atomic"

	"promptmaster/internal/models"
	"promptmaster/internal/service/ai"
)

type JobType string

const (
	Turn JobType = "turn"
	Stop JobType = "stop"
)

type Job struct {
	Type     JobType
	TurnTask *turnTask
}

type turnTask struct {
	ctx       context.Context
	sessionID string
	content   string
	mode      models.Mode
	style     models.Style
	onAccept  func(*models.Message)
	resultCh  chan workerReturn
	state     atomic.Int32
}

const (
	taskQueued int32 = iota
	taskRunning
	taskCanceled
)

// start claims the task for a worker. It fails once the caller gave up.
func (t *turnTask) start() bool {
	return t.state.CompareAndSwap(taskQueued, taskRunning)
}

// abandon marks a task the caller stopped waiting for. It fails once a
// worker has started it.
func (t *turnTask) abandon() bool {
	return t.state.CompareAndSwap(taskQueued, taskCanceled)
}

type workerReturn struct {
	userMessage *models.Message
	aiMessage   *models.Message
	result      ai.Result
	err         error
}

func (job Job) sessionID() string {
	if job.Type == Turn && job.TurnTask != nil {
		return job.TurnTask.sessionID
	}
	return ""
}

// fail reports err to the waiting caller, if any.
func (job Job) fail(err error) {
	if job.TurnTask != nil && job.TurnTask.resultCh != nil {
		job.TurnTask.resultCh <- workerReturn{err: err}
	}
}
