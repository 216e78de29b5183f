package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

var (
	ErrDispatcherBusy   = errors.New("dispatcher busy")
	ErrDispatcherClosed = errors.New("dispatcher closed")
	ErrTurnCanceled     = errors.New("turn canceled")
)

type sessionQueue struct {
	jobs     []Job
	enqueued bool // sitting in the ready list
	running  bool // one of its jobs is on a worker
}

// Dispatcher schedules jobs round robin across sessions. A session never
// has more than one job running, so its turns execute in submission order.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // entry point for submitted jobs

	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // session IDs with a runnable job, front runs next
	positions map[string]*list.Element
	pending   int
	limit     int
	closed    bool
	wake      chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration, handle func(Job)) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &Dispatcher{
		JobQueue:  make(chan Job, queueSize),
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		limit:     queueSize,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	d.pool = newJobChannelPool(minWorkers, maxWorkers, idleTimeout, func(job Job) {
		handle(job)
		d.complete(job.sessionID())
	})

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues a job without blocking. It fails with ErrDispatcherBusy
// once queueSize jobs are waiting.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// checked and sent under d.mu so Close never misses a job
	if d.closed {
		return ErrDispatcherClosed
	}
	if d.pending >= d.limit {
		return ErrDispatcherBusy
	}
	select {
	case d.JobQueue <- job:
		d.pending++
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	for {
		if d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			default:
			}
			continue
		}
		// nothing runnable: wait for a new job or a session to free up
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		case <-d.quit:
			return
		}
	}
}

// CancelSession drops the queued jobs of a session. A job already running
// is left to finish.
func (d *Dispatcher) CancelSession(sessionID string) int {
	d.mu.Lock()
	q := d.queues[sessionID]
	if q == nil {
		d.mu.Unlock()
		return 0
	}
	dropped := q.jobs
	q.jobs = nil
	d.pending -= len(dropped)
	if elem, ok := d.positions[sessionID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
		q.enqueued = false
	}
	if !q.running {
		delete(d.queues, sessionID)
	}
	d.mu.Unlock()

	for _, job := range dropped {
		job.fail(ErrTurnCanceled)
	}
	return len(dropped)
}

// CancelJob removes one queued turn. It reports false when the turn is not
// waiting in a session queue.
func (d *Dispatcher) CancelJob(task *turnTask) bool {
	if task == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.queues[task.sessionID]
	if q == nil {
		return false
	}
	for i, job := range q.jobs {
		if job.TurnTask != task {
			continue
		}
		q.jobs = append(q.jobs[:i:i], q.jobs[i+1:]...)
		d.pending--
		if len(q.jobs) == 0 {
			if elem, ok := d.positions[task.sessionID]; ok {
				d.ready.Remove(elem)
				delete(d.positions, task.sessionID)
				q.enqueued = false
			}
			if !q.running {
				delete(d.queues, task.sessionID)
			}
		}
		return true
	}
	return false
}

// Close stops dispatching. Queued jobs fail with ErrDispatcherClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		var dropped []Job
		for id, q := range d.queues {
			dropped = append(dropped, q.jobs...)
			q.jobs = nil
			if !q.running {
				delete(d.queues, id)
			}
		}
		d.ready.Init()
		d.positions = make(map[string]*list.Element)
		d.pending -= len(dropped)
		d.mu.Unlock()
		close(d.quit)

		// Submit no longer sends, so one drain empties the channel
	drain:
		for {
			select {
			case job := <-d.JobQueue:
				dropped = append(dropped, job)
				d.mu.Lock()
				d.pending--
				d.mu.Unlock()
			default:
				break drain
			}
		}
		for _, job := range dropped {
			job.fail(ErrDispatcherClosed)
		}
		d.pool.shutdown()
	})
}

func (d *Dispatcher) enqueueJob(job Job) {
	sessionID := job.sessionID()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		job.fail(ErrDispatcherClosed)
		return
	}
	if job.TurnTask != nil && job.TurnTask.state.Load() == taskCanceled {
		// caller gave up while the job was in JobQueue
		d.pending--
		d.mu.Unlock()
		return
	}
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	q.jobs = append(q.jobs, job)
	d.markReadyLocked(sessionID, q)
}

// markReadyLocked puts a session at the back of the ready list when it has
// work and nothing running.
func (d *Dispatcher) markReadyLocked(sessionID string, q *sessionQueue) {
	if q.enqueued || q.running || len(q.jobs) == 0 {
		return
	}
	q.enqueued = true
	d.positions[sessionID] = d.ready.PushBack(sessionID)
}

// dispatchOne hands the next job of the front session to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	sessionID := elem.Value.(string)
	q := d.queues[sessionID]
	d.ready.Remove(elem)
	delete(d.positions, sessionID)
	q.enqueued = false

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.running = true
	d.pending--
	d.mu.Unlock()

	workerChan, ok := d.pool.acquire()
	if !ok {
		d.complete(sessionID)
		job.fail(ErrDispatcherClosed)
		return true
	}
	debugLog("[dispatcher] assign %s job for session %s to worker-%d", job.Type, sessionID, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}

// complete marks the session's running job finished and requeues the
// session if more jobs are waiting.
func (d *Dispatcher) complete(sessionID string) {
	d.mu.Lock()
	if q := d.queues[sessionID]; q != nil {
		q.running = false
		if len(q.jobs) == 0 {
			delete(d.queues, sessionID)
		} else {
			d.markReadyLocked(sessionID, q)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending reports the number of queued, not yet running jobs.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Queued reports the number of jobs waiting behind a session's running job.
func (d *Dispatcher) Queued(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q := d.queues[sessionID]; q != nil {
		return len(q.jobs)
	}
	return 0
}
