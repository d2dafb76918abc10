package core

import (
	"fmt"
	"sync"
	"time"
)

// CallKind identifies which core entry point a recorded call went to
type CallKind int

// List of recorded call kinds
const (
	CallPointer CallKind = iota
	CallKey
	CallPaused
	CallSaveState
	CallLoadState
)

// Call is a single invocation of the core surface
type Call struct {
	Kind    CallKind
	At      time.Duration
	Pointer PointerEvent
	Key     KeyEvent
	Paused  bool
	Slot    int
}

func (c Call) String() string {
	switch c.Kind {
	case CallPointer:
		return c.Pointer.String()
	case CallKey:
		return c.Key.String()
	case CallPaused:
		return fmt.Sprintf("paused %t", c.Paused)
	case CallSaveState:
		return fmt.Sprintf("save state %d", c.Slot)
	case CallLoadState:
		return fmt.Sprintf("load state %d", c.Slot)
	}
	return "unknown call"
}

// Recorder is a Core that keeps every call in order. It stands in for the
// native core in tests and in script replay.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// Now stamps each recorded call. May be nil.
	Now func() time.Duration

	// GameName is returned by LoadedGameName
	GameName string

	// SubmitErr is returned from both submit calls when set
	SubmitErr error

	// Reject makes SetPaused and the save state requests report failure
	Reject bool
}

// NewRecorder returns an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Now != nil {
		c.At = r.Now()
	}
	r.calls = append(r.calls, c)
}

// SubmitPointerEvent implements the Core interface
func (r *Recorder) SubmitPointerEvent(id int, action PointerAction, x, y, pressure float32) error {
	r.record(Call{Kind: CallPointer, Pointer: PointerEvent{ID: id, Action: action, X: x, Y: y, Pressure: pressure}})
	return r.SubmitErr
}

// SubmitKeyEvent implements the Core interface
func (r *Recorder) SubmitKeyEvent(ev KeyEvent) error {
	r.record(Call{Kind: CallKey, Key: ev})
	return r.SubmitErr
}

// SetPaused implements the Core interface
func (r *Recorder) SetPaused(paused bool) bool {
	r.record(Call{Kind: CallPaused, Paused: paused})
	return !r.Reject
}

// RequestSaveState implements the Core interface
func (r *Recorder) RequestSaveState(slot int) bool {
	r.record(Call{Kind: CallSaveState, Slot: slot})
	return !r.Reject
}

// RequestLoadState implements the Core interface
func (r *Recorder) RequestLoadState(slot int) bool {
	r.record(Call{Kind: CallLoadState, Slot: slot})
	return !r.Reject
}

// LoadedGameName implements the Core interface
func (r *Recorder) LoadedGameName() string {
	return r.GameName
}

// Calls returns a copy of every recorded call
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Keys returns the key events that reached the core
func (r *Recorder) Keys() []KeyEvent {
	var out []KeyEvent
	for _, c := range r.Calls() {
		if c.Kind == CallKey {
			out = append(out, c.Key)
		}
	}
	return out
}

// Pointers returns the pointer events that reached the core
func (r *Recorder) Pointers() []PointerEvent {
	var out []PointerEvent
	for _, c := range r.Calls() {
		if c.Kind == CallPointer {
			out = append(out, c.Pointer)
		}
	}
	return out
}

// PauseCalls returns the values passed to SetPaused
func (r *Recorder) PauseCalls() []bool {
	var out []bool
	for _, c := range r.Calls() {
		if c.Kind == CallPaused {
			out = append(out, c.Paused)
		}
	}
	return out
}

// Reset forgets all recorded calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
