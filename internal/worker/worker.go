package worker

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
}

func newWorker(id int, pool *jobChannelPool) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

// Start runs jobs handed over by the dispatcher until a Stop job arrives.
func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			switch job.Type {
			case Stop:
				debugLog("[worker-%d] stopped", w.id)
				w.pool.retire(w.jobChannel)
				return
			case Turn:
				w.pool.run(job)
			}
			if !w.pool.Release(w.jobChannel) {
				debugLog("[worker-%d] exiting, pool closed", w.id)
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}
