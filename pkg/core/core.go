package core

// Core is the native call surface of the emulation core.
//
// The core runs on its own threads. This package only describes the entry
// points the input layer calls, always from the single loop goroutine; any
// synchronisation inside the core is the core's responsibility.
type Core interface {
	// SubmitPointerEvent feeds one touch transition into the core's
	// multi-touch input path. x and y are normalised to [0,1].
	SubmitPointerEvent(id int, action PointerAction, x, y, pressure float32) error

	// SubmitKeyEvent is an opaque passthrough of a physical button transition
	SubmitKeyEvent(ev KeyEvent) error

	// SetPaused reports whether the request was accepted
	SetPaused(paused bool) bool

	RequestSaveState(slot int) bool
	RequestLoadState(slot int) bool

	// LoadedGameName returns the empty string when no game is loaded
	LoadedGameName() string
}

// Slot bounds for save states
const (
	MinSlot = 0
	MaxSlot = 9
)

// ClampSlot forces a slot index into the range accepted by the core
func ClampSlot(slot int) int {
	if slot < MinSlot {
		return MinSlot
	}
	if slot > MaxSlot {
		return MaxSlot
	}
	return slot
}
