package pause

import (
	"strings"

	"github.com/prometheus/common/log"
)

// Reason is one independent cause for pausing the emulation
type Reason int

// List of pause reasons. SaveDialog and ExitDialog together make up the
// "dialog open" condition.
const (
	User Reason = iota
	QuickMenu
	SaveDialog
	ExitDialog
	Capture
	numReasons
)

func (r Reason) String() string {
	switch r {
	case User:
		return "user"
	case QuickMenu:
		return "quick-menu"
	case SaveDialog:
		return "save-dialog"
	case ExitDialog:
		return "exit-dialog"
	case Capture:
		return "capture"
	}
	return "unknown"
}

// Pauser receives the aggregated pause state. core.Core satisfies it.
type Pauser interface {
	SetPaused(paused bool) bool
}

// Coordinator ORs the pause reasons together and tells the core only when the
// result changes.
//
// The core is assumed to start unpaused.
type Coordinator struct {
	target  Pauser
	reasons [numReasons]bool
	pushed  bool
	pushes  int
	log     log.Logger
}

// New returns a Coordinator pushing to target
func New(target Pauser) *Coordinator {
	return &Coordinator{
		target: target,
		log:    log.With("component", "pause"),
	}
}

// Set changes a single reason without notifying the core
func (c *Coordinator) Set(r Reason, active bool) {
	if r < 0 || r >= numReasons {
		return
	}
	c.reasons[r] = active
}

// PushIfChanged notifies the core if the effective state differs from the
// last value pushed. Returns true if a push happened.
func (c *Coordinator) PushIfChanged() bool {
	paused := c.Paused()
	if paused == c.pushed {
		return false
	}

	c.pushed = paused
	c.pushes++
	if !c.target.SetPaused(paused) {
		c.log.Debugf("core ignored paused=%t", paused)
	}
	c.log.Debugf("paused=%t (%s)", paused, c)
	return true
}

// Update is Set followed by PushIfChanged
func (c *Coordinator) Update(r Reason, active bool) bool {
	c.Set(r, active)
	return c.PushIfChanged()
}

// Acquire activates r and returns a function that deactivates it. The release
// function is safe to call more than once; only the first call has an effect.
//
//	release := c.Acquire(pause.Capture)
//	defer release()
func (c *Coordinator) Acquire(r Reason) func() {
	c.Update(r, true)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		c.Update(r, false)
	}
}

// Active returns true if reason r is currently set
func (c *Coordinator) Active(r Reason) bool {
	if r < 0 || r >= numReasons {
		return false
	}
	return c.reasons[r]
}

// Paused is the logical OR of every reason
func (c *Coordinator) Paused() bool {
	for _, v := range c.reasons {
		if v {
			return true
		}
	}
	return false
}

// Pushes returns how many times the core has been notified
func (c *Coordinator) Pushes() int {
	return c.pushes
}

// Reasons lists the active reasons
func (c *Coordinator) Reasons() []Reason {
	var out []Reason
	for r, v := range c.reasons {
		if v {
			out = append(out, Reason(r))
		}
	}
	return out
}

// Reset clears every reason and pushes the result
func (c *Coordinator) Reset() {
	c.reasons = [numReasons]bool{}
	c.PushIfChanged()
}

func (c *Coordinator) String() string {
	var s []string
	for _, r := range c.Reasons() {
		s = append(s, r.String())
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ",")
}
