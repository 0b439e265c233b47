// Package eventloop runs callbacks one at a time on a single goroutine.
//
// State owned by loop callbacks needs no locking: blocking work runs elsewhere
// (see Await) and re-enters the loop by posting a continuation.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrStopped is returned when work is handed to a loop that has stopped.
var ErrStopped = eris.New("eventloop: stopped")

// ErrRunning is returned by Run when the loop is already running.
var ErrRunning = eris.New("eventloop: already running")

// Loop is a FIFO queue of callbacks drained by the goroutine calling Run.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool
	stopped sync.Once
}

// New creates a loop. Callbacks posted before Run are kept and run first.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn to run on the loop goroutine. It never blocks and reports
// false when the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run drains the queue until ctx is cancelled. Callbacks still queued at
// that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.stop()

	log := zap.L().With(zap.String("component", "eventloop"))
	log.Debug("event loop started")

	for {
		for {
			batch := l.take()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				if ctx.Err() != nil {
					log.Debug("event loop stopped")
					return nil
				}
				l.invoke(log, fn)
			}
		}

		select {
		case <-ctx.Done():
			log.Debug("event loop stopped")
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

func (l *Loop) invoke(log *zap.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("eventloop: callback panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

func (l *Loop) stop() {
	l.stopped.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.pending = nil
		l.mu.Unlock()
		close(l.done)
	})
}

// Call runs fn on the loop and waits for its result.
func Call[T any](ctx context.Context, l *Loop, fn func() T) (T, error) {
	var zero T
	result := make(chan T, 1)
	if !l.Post(func() { result <- fn() }) {
		return zero, ErrStopped
	}
	select {
	case v := <-result:
		return v, nil
	case <-l.done:
		// The callback may have run just before the loop stopped.
		select {
		case v := <-result:
			return v, nil
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, eris.Wrap(ctx.Err(), "eventloop: call")
	}
}
