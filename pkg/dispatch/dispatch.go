package dispatch

import (
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/core"
)

// Stats counts what went through the dispatcher
type Stats struct {
	Pointers int
	Keys     int
	Failures int
}

// Dispatcher is the single choke point between the input layer and the core.
//
// Calls are forwarded synchronously and in the order they are made; nothing is
// buffered. A failing core call is reported to the caller and logged, but the
// dispatcher itself keeps no per-event state, so a failure can never leave
// the callers' state machines half updated.
type Dispatcher struct {
	core  core.Core
	stats Stats
	log   log.Logger
}

// New returns a Dispatcher forwarding to c
func New(c core.Core) *Dispatcher {
	return &Dispatcher{
		core: c,
		log:  log.With("component", "dispatch"),
	}
}

// Pointer forwards a synthetic pointer event
func (d *Dispatcher) Pointer(ev core.PointerEvent) (err error) {
	d.stats.Pointers++
	defer d.guard(&err, ev)
	return d.core.SubmitPointerEvent(ev.ID, ev.Action, ev.X, ev.Y, ev.Pressure)
}

// Key forwards a raw button event
func (d *Dispatcher) Key(ev core.KeyEvent) (err error) {
	d.stats.Keys++
	defer d.guard(&err, ev)
	return d.core.SubmitKeyEvent(ev)
}

// guard converts a panic in the core into an error and accounts for failures
func (d *Dispatcher) guard(err *error, ev interface{}) {
	if r := recover(); r != nil {
		*err = errors.Errorf("core panicked: %v", r)
	}
	if *err != nil {
		d.stats.Failures++
		*err = errors.Wrapf(*err, "dispatching %v", ev)
		d.log.Warn(*err)
	}
}

// Stats returns a snapshot of the counters
func (d *Dispatcher) Stats() Stats {
	return d.stats
}
