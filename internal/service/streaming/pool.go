package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many streaming sessions run concurrently. Dispatch
// blocks until a worker slot frees up or the caller's context ends, so
// excess requests queue instead of failing.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger

	// base is the lifetime of dispatched sessions. It outlives the
	// client request contexts and is cancelled only on shutdown.
	base   context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool with the given number of worker slots.
func NewPool(size int64, logger *slog.Logger) *Pool {
	base, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(size),
		logger: logger,
		base:   base,
		cancel: cancel,
	}
}

// Go acquires a worker slot and runs fn on it. The slot acquisition
// honors the caller's context; fn itself runs on the pool's base
// context so a departing client does not tear the session down.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire stream worker: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn(p.base)
	}()

	return nil
}

// Drain waits up to grace for in-flight sessions to finish, then
// cancels whatever is left. Used during shutdown.
func (p *Pool) Drain(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("stream pool drained")
	case <-time.After(grace):
		p.logger.Warn("stream pool drain timed out, cancelling sessions")
		p.cancel()
		<-done
	}

	p.cancel()
}
