package netplay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrLoopNotStarted = errors.New("loop: not started")
	ErrLoopStopped    = errors.New("loop: stopped")
)

// Handler processes requests submitted to the loop.
type Handler interface {
	Handle(ctx context.Context, req any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req any) error

func (f HandlerFunc) Handle(ctx context.Context, req any) error {
	return f(ctx, req)
}

// LoopConfig controls the behaviour of the single thread loop.
type LoopConfig struct {
	Handler   Handler
	QueueSize int
}

// Loop delivers local intents and remote messages to one handler on a single goroutine,
// so the replica behind it is never mutated concurrently.
type Loop struct {
	handler Handler
	queue   chan any

	mu      sync.RWMutex
	started atomic.Bool
	stopped bool

	done chan struct{}
}

// NewLoop creates a Loop with the supplied configuration.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Handler == nil {
		return nil, errors.New("loop: handler is required")
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Loop{
		handler: cfg.Handler,
		queue:   make(chan any, queueSize),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the single-thread loop. It must be called once.
func (l *Loop) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("loop: start called multiple times")
	}
	go l.run(ctx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "loop: context cancelled, shutting down", "err", ctx.Err())
			return
		case req, ok := <-l.queue:
			if !ok {
				slog.DebugContext(ctx, "loop: queue closed, exiting")
				return
			}
			if err := l.handler.Handle(ctx, req); err != nil {
				slog.WarnContext(ctx, "loop: handler error", "err", err)
			}
		}
	}
}

// Submit enqueues a request to be processed by the loop.
func (l *Loop) Submit(ctx context.Context, req any) error {
	if !l.started.Load() {
		return ErrLoopNotStarted
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return ErrLoopStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	case l.queue <- req:
		return nil
	}
}

// Stop drains the loop and waits for graceful completion.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return errors.New("loop: stop called multiple times")
	}
	l.stopped = true
	close(l.queue)
	l.mu.Unlock()

	if !l.started.Load() {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainTimeout closes the queue and waits for completion with the given timeout.
func (l *Loop) DrainTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Stop(ctx)
}
