package core

import (
	"fmt"
	"strings"
	"time"
)

// PointerAction is the transition carried by a pointer event
type PointerAction int

// List of pointer actions understood by the core
const (
	PointerDown PointerAction = iota
	PointerMove
	PointerUp
	PointerCancel
)

func (a PointerAction) String() string {
	switch a {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerCancel:
		return "cancel"
	}
	return fmt.Sprintf("PointerAction(%d)", int(a))
}

// PointerEvent is a synthetic touch as seen by the core
type PointerEvent struct {
	ID       int
	Action   PointerAction
	X        float32
	Y        float32
	Pressure float32
}

func (e PointerEvent) String() string {
	return fmt.Sprintf("pointer %d %s (%.3f, %.3f) p=%.2f", e.ID, e.Action, e.X, e.Y, e.Pressure)
}

// KeyAction is the edge of a button transition
type KeyAction int

// List of key actions
const (
	KeyDown KeyAction = iota
	KeyUp
)

func (a KeyAction) String() string {
	if a == KeyDown {
		return "down"
	}
	return "up"
}

// Source is a bitmask describing the device class an event came from
type Source int

// List of input sources. A gamepad usually reports itself as both gamepad and
// joystick.
const (
	SourceKeyboard Source = 1 << iota
	SourceGamepad
	SourceJoystick
	SourceTouchscreen
)

// Has returns true if any bit of other is set in s
func (s Source) Has(other Source) bool {
	return s&other != 0
}

func (s Source) String() string {
	var parts []string
	if s.Has(SourceKeyboard) {
		parts = append(parts, "keyboard")
	}
	if s.Has(SourceGamepad) {
		parts = append(parts, "gamepad")
	}
	if s.Has(SourceJoystick) {
		parts = append(parts, "joystick")
	}
	if s.Has(SourceTouchscreen) {
		parts = append(parts, "touchscreen")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

var sourceNames = map[string]Source{
	"keyboard": SourceKeyboard,
	"gamepad":  SourceGamepad | SourceJoystick,
	"joystick": SourceJoystick,
	"touch":    SourceTouchscreen,
}

// ParseSource maps a device class name to a Source. "gamepad" includes the
// joystick bit, as real gamepads report both.
func ParseSource(name string) (Source, bool) {
	s, ok := sourceNames[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// KeyCode identifies a physical button. The values match the platform key
// codes so that events can be passed through to the core untouched.
type KeyCode int

// List of key codes the layer cares about
const (
	KeyUnknown      KeyCode = 0
	KeyBack         KeyCode = 4
	KeyButtonA      KeyCode = 96
	KeyButtonB      KeyCode = 97
	KeyButtonX      KeyCode = 99
	KeyButtonY      KeyCode = 100
	KeyButtonL1     KeyCode = 102
	KeyButtonR1     KeyCode = 103
	KeyButtonStart  KeyCode = 108
	KeyButtonSelect KeyCode = 109
)

var keyNames = map[KeyCode]string{
	KeyBack:         "back",
	KeyButtonA:      "a",
	KeyButtonB:      "b",
	KeyButtonX:      "x",
	KeyButtonY:      "y",
	KeyButtonL1:     "l1",
	KeyButtonR1:     "r1",
	KeyButtonStart:  "start",
	KeyButtonSelect: "select",
}

func (k KeyCode) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// ParseKeyCode maps a key name (as produced by String) back to a KeyCode
func ParseKeyCode(name string) (KeyCode, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range keyNames {
		if n == name {
			return k, true
		}
	}
	return KeyUnknown, false
}

// ParseKeyAction maps "down", "up" and "repeat" to an action and repeat
// count. A repeat is a down with a repeat count of one.
func ParseKeyAction(name string) (KeyAction, int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "down":
		return KeyDown, 0, true
	case "up":
		return KeyUp, 0, true
	case "repeat":
		return KeyDown, 1, true
	}
	return KeyDown, 0, false
}

// KeyEvent is a raw button transition. The core receives it unmodified.
type KeyEvent struct {
	Code   KeyCode
	Action KeyAction

	// Repeat is zero for the initial press and counts up for auto-repeat
	Repeat int

	// Time is the event timestamp on a monotonic clock with an arbitrary
	// origin (uptime)
	Time time.Duration

	Source Source
	Device int
}

// FromGamepad returns true if the event came from a gamepad or joystick
func (e KeyEvent) FromGamepad() bool {
	return e.Source.Has(SourceGamepad | SourceJoystick)
}

func (e KeyEvent) String() string {
	s := fmt.Sprintf("key %s %s", e.Code, e.Action)
	if e.Repeat > 0 {
		s = fmt.Sprintf("%s repeat=%d", s, e.Repeat)
	}
	return s
}
