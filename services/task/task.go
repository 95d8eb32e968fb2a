// Package task runs cancellable background work tied to a workflow stage.
package task

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handle controls one background task.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Go starts fn in its own goroutine with a context derived from parent.
// The context is cancelled by Cancel, by parent, or when fn returns.
// A panic in fn is logged and ends the task.
func Go(parent context.Context, logger *zap.Logger, name string, fn func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{name: name, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		fn(ctx)
	}()
	return h
}

// Cancel stops the task. It does not wait, so it is safe to call from inside
// the task itself. Calling it more than once is a no-op.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
}

// Done is closed once the task has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task has returned.
func (h *Handle) Wait() {
	<-h.done
}

// Name returns the label the task was started with.
func (h *Handle) Name() string {
	return h.name
}

// Group tracks the tasks owned by one stage so they can be torn down together.
type Group struct {
	mu    sync.Mutex
	tasks []*Handle
}

// Add registers h with the group.
func (g *Group) Add(h *Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, h)
}

// CancelAll cancels every registered task and forgets them.
func (g *Group) CancelAll() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()
	for _, h := range tasks {
		h.Cancel()
	}
}

// Len returns the number of tasks still registered.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}
