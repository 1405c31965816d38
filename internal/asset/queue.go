package asset

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Done receives a finished load on the frame loop goroutine.
type Done func(m *Mesh, err error)

type completion struct {
	ctx  context.Context
	mesh *Mesh
	err  error
	done Done
}

// Queue runs loads on background goroutines, at most maxConcurrent at once,
// and hands results back through Drain so callers never see them
// concurrently with the frame loop.
type Queue struct {
	loader Loader
	sem    *semaphore.Weighted
	log    *zap.Logger

	mu       sync.Mutex
	finished []completion
	inflight sync.WaitGroup
}

func NewQueue(loader Loader, maxConcurrent int64, log *zap.Logger) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Queue{
		loader: loader,
		sem:    semaphore.NewWeighted(maxConcurrent),
		log:    log,
	}
}

// Request starts loading address. done runs from a later Drain unless ctx is
// cancelled first, in which case it never runs.
func (q *Queue) Request(ctx context.Context, address string, done Done) {
	q.inflight.Add(1)
	go func() {
		defer q.inflight.Done()
		if err := q.sem.Acquire(ctx, 1); err != nil {
			return
		}
		m, err := q.loader.Load(ctx, address)
		q.sem.Release(1)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			q.log.Debug("mesh load failed", zap.String("address", address), zap.Error(err))
		}
		q.mu.Lock()
		q.finished = append(q.finished, completion{ctx: ctx, mesh: m, err: err, done: done})
		q.mu.Unlock()
	}()
}

// Drain runs the callbacks of every finished load. Returns how many ran.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.finished
	q.finished = nil
	q.mu.Unlock()

	ran := 0
	for _, c := range batch {
		if c.ctx.Err() != nil {
			continue
		}
		c.done(c.mesh, c.err)
		ran++
	}
	return ran
}

// Wait blocks until no load is in flight.
func (q *Queue) Wait() {
	q.inflight.Wait()
}
