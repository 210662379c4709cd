package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/metrics"
)

// DefaultSaveTimeout bounds a single gateway save.
const DefaultSaveTimeout = 10 * time.Second

type saveJob struct {
	ownerID string
	data    []byte
}

// Persister writes memory sets to a Gateway on a single background worker.
// Saves run in submission order. A queued save that has not started yet is
// replaced in place by a newer snapshot for the same owner, so the last
// submission is always the final persisted state. Each job carries the
// owner it was captured for.
type Persister struct {
	gw      Gateway
	log     *zap.Logger
	metrics *metrics.Collector
	timeout time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*saveJob
	inflight *saveJob
	waiters  []chan struct{}
	closed   bool
	done     chan struct{}
}

// NewPersister starts a persister writing to gw.
func NewPersister(gw Gateway, logger *zap.Logger, m *metrics.Collector) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Persister{
		gw:      gw,
		log:     logger.Named("persister"),
		metrics: m,
		timeout: DefaultSaveTimeout,
		done:    make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// SetTimeout changes the per-save deadline.
func (p *Persister) SetTimeout(d time.Duration) {
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()
}

// Submit queues data as the new state for ownerID. It never blocks on I/O.
func (p *Persister) Submit(ownerID string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.log.Error("save dropped: persister closed", zap.String("owner_id", ownerID))
		return
	}

	for _, j := range p.queue {
		if j.ownerID == ownerID {
			j.data = data
			return
		}
	}
	p.queue = append(p.queue, &saveJob{ownerID: ownerID, data: data})
	p.cond.Signal()
}

// Load returns the newest bytes for ownerID, preferring a queued or
// in-flight save over what the gateway currently holds.
func (p *Persister) Load(ctx context.Context, ownerID string) ([]byte, error) {
	p.mu.Lock()
	for i := len(p.queue) - 1; i >= 0; i-- {
		if p.queue[i].ownerID == ownerID {
			data := p.queue[i].data
			p.mu.Unlock()
			return data, nil
		}
	}
	if p.inflight != nil && p.inflight.ownerID == ownerID {
		data := p.inflight.data
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	data, err := p.gw.Load(ctx, ownerID)
	if err != nil {
		return nil, &PersistenceError{Op: "load", OwnerID: ownerID, Err: err}
	}
	return data, nil
}

// Pending returns the number of saves queued or running.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	if p.inflight != nil {
		n++
	}
	return n
}

// Flush waits until every submitted save has completed.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.queue) == 0 && p.inflight == nil {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the worker.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persister) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.releaseWaiters()
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.inflight = job
		timeout := p.timeout
		p.mu.Unlock()

		p.save(job, timeout)

		p.mu.Lock()
		p.inflight = nil
		if len(p.queue) == 0 {
			p.releaseWaiters()
		}
		p.mu.Unlock()
	}
}

// releaseWaiters must be called with mu held.
func (p *Persister) releaseWaiters() {
	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
}

func (p *Persister) save(job *saveJob, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := p.gw.Save(ctx, job.ownerID, job.data)
	p.metrics.PersistDone(err, time.Since(start))
	if err != nil {
		p.log.Error("save memories failed",
			zap.String("owner_id", job.ownerID),
			zap.Int("bytes", len(job.data)),
			zap.Error(&PersistenceError{Op: "save", OwnerID: job.ownerID, Err: err}))
		return
	}
	p.log.Debug("saved memories",
		zap.String("owner_id", job.ownerID),
		zap.Int("bytes", len(job.data)))
}
