package storage

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"stash/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// Scheduler runs detached units of work. Go must not wait for task to finish.
type Scheduler interface {
	Go(task func(ctx context.Context)) error
}

// TaskGroup is a Scheduler running each task on its own goroutine. Tasks get
// a context that is only cancelled when Shutdown gives up waiting.
type TaskGroup struct {
	mu     sync.Mutex
	closed bool
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func NewTaskGroup(logger *slog.Logger) *TaskGroup {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskGroup{ctx: ctx, cancel: cancel, logger: logger}
}

// Go starts task in the background. It fails with storage.ErrClosed once
// Shutdown has been called.
func (g *TaskGroup) Go(task func(ctx context.Context)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return storage.ErrClosed
	}

	g.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("Background task panicked", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("background task panicked: %v", r)
			}
		}()
		task(g.ctx)
		return nil
	})
	return nil
}

// Shutdown stops accepting tasks and waits for running ones to finish. If ctx
// ends first, running tasks are cancelled and ctx.Err() is returned once they
// have returned.
func (g *TaskGroup) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = g.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.cancel()
		return nil
	case <-ctx.Done():
		g.logger.Warn("Cancelling background tasks", "err", ctx.Err())
		g.cancel()
		<-done
		return ctx.Err()
	}
}
