package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job is one unit of background work. It should honour ctx cancellation.
type Job func(ctx context.Context)

// Pool runs submitted jobs on a fixed number of goroutines. With a single
// worker, jobs run strictly in submission order.
type Pool struct {
	logger *zap.Logger
	count  int
	jobs   chan Job
	wg     sync.WaitGroup
	stop   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
}

func NewPool(logger *zap.Logger, count, queueSize int) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		logger: logger,
		count:  count,
		jobs:   make(chan Job, queueSize),
		stop:   make(chan struct{}),
	}
	p.idle = sync.NewCond(&p.mu)
	return p
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Debug("Starting worker pool", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop terminates the workers. Jobs still buffered are discarded; call
// Wait first to let them finish.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.stop)
		p.wg.Wait()

		dropped := 0
	drain:
		for {
			select {
			case <-p.jobs:
				dropped++
				p.done()
			default:
				break drain
			}
		}
		if dropped > 0 {
			p.logger.Warn("Worker pool stopped with queued jobs", zap.Int("dropped", dropped))
		}
		p.logger.Debug("Worker pool stopped")
	})
}

// Submit queues job without blocking. It reports false when the buffer is
// full or the pool has been stopped.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.stop:
		return false
	default:
	}

	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	select {
	case p.jobs <- job:
		return true
	default:
		p.done()
		return false
	}
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() {
	p.mu.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

func (p *Pool) done() {
	p.mu.Lock()
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.run(ctx, id, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, job Job) {
	defer p.done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	job(ctx)
}
