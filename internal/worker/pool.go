package worker

import (
	"sync"
	"time"
)

type workerMeta struct {
	id        int
	ch        chan Job
	lastUsed  time.Time
	enqueued  bool // sitting in the idle list
	discarded bool // marked for retirement
}

// jobChannelPool keeps between min and max workers alive. Workers above
// min that stay idle for longer than expiry are retired.
type jobChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	nextID   int
	expiry   time.Duration
	handle   func(Job)
	closed   bool
	done     chan struct{}
	stopOnce sync.Once
}

const defaultWorkerIdle = 30 * time.Second

func newJobChannelPool(minWorkers, maxWorkers int, idle time.Duration, handle func(Job)) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if minWorkers < 0 {
		minWorkers = 0
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		handle:   handle,
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

func (p *jobChannelPool) run(job Job) {
	if p.handle != nil {
		p.handle(job)
	}
}

// newWorkerLocked registers a worker; p.mu must be held.
func (p *jobChannelPool) newWorkerLocked() *Worker {
	p.nextID++
	worker := newWorker(p.nextID, p)
	p.metadata[worker.jobChannel] = &workerMeta{id: worker.id, ch: worker.jobChannel}
	p.running++
	return worker
}

// spawnWorker adds an idle worker, used for warm-up.
func (p *jobChannelPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max {
		p.mu.Unlock()
		return
	}
	worker := p.newWorkerLocked()
	p.mu.Unlock()
	worker.Start()
	if !p.Release(worker.jobChannel) {
		worker.jobChannel <- Job{Type: Stop}
	}
}

// acquire returns an idle worker, spawning one while under max, or blocks
// until a worker is released. It reports false once the pool is shut down.
func (p *jobChannelPool) acquire() (chan Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return nil, false
		}
		if meta := p.popIdleLocked(); meta != nil {
			return meta.ch, true
		}
		if p.running < p.max {
			worker := p.newWorkerLocked()
			worker.Start()
			return worker.jobChannel, true
		}
		p.cond.Wait()
	}
}

// Release puts a worker back into the idle list. It reports false when the
// pool is shut down and the worker should exit instead.
func (p *jobChannelPool) Release(ch chan Job) bool {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded {
		p.mu.Unlock()
		return false
	}
	if p.closed {
		meta.discarded = true
		p.mu.Unlock()
		return false
	}
	if meta.enqueued {
		p.mu.Unlock()
		return true
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
	return true
}

func (p *jobChannelPool) retire(ch chan Job) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *jobChannelPool) workerID(ch chan Job) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if meta, ok := p.metadata[ch]; ok {
		return meta.id
	}
	return 0
}

func (p *jobChannelPool) size() (running, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, len(p.idle)
}

func (p *jobChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *jobChannelPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.shutdownExpired(time.Now())
		}
	}
}

// shutdownExpired retires idle workers past expiry, never dropping below min.
func (p *jobChannelPool) shutdownExpired(now time.Time) {
	var stale []*workerMeta

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- Job{Type: Stop}
	}
}

// shutdown stops idle workers now and busy workers once their job ends.
func (p *jobChannelPool) shutdown() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.closed = true
		idle := p.idle
		p.idle = nil
		for _, meta := range idle {
			meta.discarded = true
			meta.enqueued = false
		}
		p.mu.Unlock()
		p.cond.Broadcast()
		for _, meta := range idle {
			meta.ch <- Job{Type: Stop}
		}
	})
}
