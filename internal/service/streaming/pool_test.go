package streaming

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPool(2, logger)

	var running, peak atomic.Int32
	release := make(chan struct{})

	task := func(ctx context.Context) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		running.Add(-1)
	}

	for i := 0; i < 2; i++ {
		if err := p.Go(context.Background(), task); err != nil {
			t.Fatalf("Go() error = %v", err)
		}
	}

	// Both slots taken: a third dispatch must block until its context
	// gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Go(ctx, task); err == nil {
		t.Error("third dispatch acquired a slot on a full pool")
	}

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}

	close(release)
	p.Drain(time.Second)
}

func TestPoolDrainWaitsForSessions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPool(1, logger)

	var finished atomic.Bool
	err := p.Go(context.Background(), func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})
	if err != nil {
		t.Fatalf("Go() error = %v", err)
	}

	p.Drain(time.Second)

	if !finished.Load() {
		t.Error("Drain returned before the session finished")
	}
}

func TestPoolDrainCancelsStragglers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPool(1, logger)

	var cancelled atomic.Bool
	err := p.Go(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		cancelled.Store(true)
	})
	if err != nil {
		t.Fatalf("Go() error = %v", err)
	}

	p.Drain(50 * time.Millisecond)

	if !cancelled.Load() {
		t.Error("straggler session was not cancelled")
	}
}
