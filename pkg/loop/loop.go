package loop

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
)

// ErrStopped is returned by Call when the loop is no longer running
var ErrStopped = errors.New("loop stopped")

// Scheduler is the single-threaded executor every input handler runs on.
//
// Callbacks passed to AfterFunc and Post always run on the loop goroutine,
// never concurrently with each other, so state touched only from callbacks
// needs no locking. There are no cancellable timer handles: callers that need
// to invalidate a scheduled callback capture a generation token and compare it
// when the callback fires.
type Scheduler interface {
	// Now is a monotonic timestamp with an arbitrary origin
	Now() time.Duration

	// AfterFunc runs fn on the loop once d has elapsed
	AfterFunc(d time.Duration, fn func())

	// Post runs fn on the loop as soon as possible. Safe from any goroutine.
	Post(fn func())
}

// queueSize is the number of tasks that can be posted before Post blocks
const queueSize = 256

// Loop is a Scheduler backed by a goroutine and wall-clock timers
type Loop struct {
	tasks chan func()
	done  chan struct{}
	start time.Time
	log   log.Logger
}

// New creates a Loop. Nothing runs until Run is called.
func New() *Loop {
	return &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
		start: time.Now(),
		log:   log.With("component", "loop"),
	}
}

// Run executes posted tasks until ctx is cancelled. It must be called exactly
// once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// exec runs a single task. A panicking task is logged and dropped so that
// one bad event cannot take the input thread down.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("task panicked: %v", r)
		}
	}()
	fn()
}

// Now implements the Scheduler interface
func (l *Loop) Now() time.Duration {
	return time.Since(l.start)
}

// AfterFunc implements the Scheduler interface
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Post implements the Scheduler interface. Tasks posted after the loop has
// stopped are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Call runs fn on the loop and waits for it to return
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
