package pointer

import (
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/core"
)

// Synthetic pointer ids are taken from this range so they never collide with
// the ids of real fingers on the touchscreen.
const (
	MinID = 1100
	MaxID = 1199
)

// Opacity of a control while pressed and at rest
const (
	PressedOpacity = 0.75
	RestOpacity    = 1.0
)

// List of binding errors
var (
	ErrIDOutOfRange   = errors.New("pointer id outside reserved range")
	ErrIDInUse        = errors.New("pointer id already in use")
	ErrUnknownControl = errors.New("unknown control")
	ErrControlBound   = errors.New("control already bound")
)

// Sink receives the synthesized pointer events. *dispatch.Dispatcher
// satisfies it.
type Sink interface {
	Pointer(ev core.PointerEvent) error
}

// Action is a physical touch transition on a control
type Action int

// List of touch actions
const (
	Down Action = iota
	Move
	Up
	Cancel
)

func (a Action) String() string {
	switch a {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case Cancel:
		return "cancel"
	}
	return "unknown"
}

// ParseAction maps the String form back to an Action
func ParseAction(s string) (Action, bool) {
	for _, a := range []Action{Down, Move, Up, Cancel} {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// Touch is a physical event on a control. X and Y are in the control's local
// pixel space, with the origin at its top-left corner. Fixed-position
// controls ignore them.
type Touch struct {
	Action Action
	X, Y   float32
}

// Feedback is the presentation state of a control
type Feedback struct {
	Pressed  bool
	Opacity  float32
	Rotation float32
	OffsetX  float32
	OffsetY  float32
}

var restFeedback = Feedback{Opacity: RestOpacity}

type kind int

const (
	kindMomentary kind = iota
	kindHeld
	kindDynamic
	kindAnalog
)

type binding struct {
	control string
	kind    kind

	id   int
	next func() int
	x, y float32

	analog analogConfig

	active   bool
	activeID int
	feedback Feedback
}

// Option configures a Synthesizer
type Option func(s *Synthesizer)

// WithFeedbackListener registers fn to be called every time the presentation
// state of a control changes
func WithFeedbackListener(fn func(control string, fb Feedback)) Option {
	return func(s *Synthesizer) {
		s.listener = fn
	}
}

// Synthesizer maps on-screen controls to virtual pointers.
//
// Every control owns its pointer id for the lifetime of a press. A control
// emits at most one down before its up, so across any sequence of touches
// the number of downs and ups sent to the sink is equal once every control
// has been released.
type Synthesizer struct {
	sink     Sink
	bindings []*binding
	byName   map[string]*binding
	listener func(control string, fb Feedback)
	log      log.Logger
}

// New returns a Synthesizer emitting into sink
func New(sink Sink, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		sink:   sink,
		byName: map[string]*binding{},
		log:    log.With("component", "pointer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindMomentary registers a button that presses a fixed point for as long as
// it is touched
func (s *Synthesizer) BindMomentary(control string, id int, x, y float32) error {
	return s.bindFixed(control, kindMomentary, id, x, y)
}

// BindHeld registers a button meant to be held down (pedals, attack buttons).
// The emitted stream is identical to BindMomentary.
func (s *Synthesizer) BindHeld(control string, id int, x, y float32) error {
	return s.bindFixed(control, kindHeld, id, x, y)
}

// BindDynamic registers a button whose pointer id is chosen by next at every
// press. The chosen id is kept until the press ends.
func (s *Synthesizer) BindDynamic(control string, next func() int, x, y float32) error {
	if next == nil {
		return errors.Errorf("control %q: nil id provider", control)
	}
	return s.add(&binding{
		control:  control,
		kind:     kindDynamic,
		next:     next,
		x:        clampUnit(x),
		y:        clampUnit(y),
		feedback: restFeedback,
	})
}

func (s *Synthesizer) bindFixed(control string, k kind, id int, x, y float32) error {
	return s.add(&binding{
		control:  control,
		kind:     k,
		id:       id,
		x:        clampUnit(x),
		y:        clampUnit(y),
		feedback: restFeedback,
	})
}

func (s *Synthesizer) add(b *binding) error {
	if _, ok := s.byName[b.control]; ok {
		return errors.Wrap(ErrControlBound, b.control)
	}
	if b.kind != kindDynamic {
		if err := checkRange(b.id); err != nil {
			return errors.Wrap(err, b.control)
		}
		for _, other := range s.bindings {
			if other.kind != kindDynamic && other.id == b.id {
				return errors.Wrapf(ErrIDInUse, "%s: id %d bound to %s", b.control, b.id, other.control)
			}
		}
	}

	s.bindings = append(s.bindings, b)
	s.byName[b.control] = b
	return nil
}

// Unbind releases and removes a control
func (s *Synthesizer) Unbind(control string) error {
	b, ok := s.byName[control]
	if !ok {
		return errors.Wrap(ErrUnknownControl, control)
	}
	err := s.release(b)

	delete(s.byName, control)
	for i, other := range s.bindings {
		if other == b {
			s.bindings = append(s.bindings[:i], s.bindings[i+1:]...)
			break
		}
	}
	return err
}

// Reset releases every control and removes all bindings
func (s *Synthesizer) Reset() error {
	err := s.ReleaseAll()
	s.bindings = nil
	s.byName = map[string]*binding{}
	return err
}

// Controls lists the bound control names in binding order
func (s *Synthesizer) Controls() []string {
	out := make([]string, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b.control)
	}
	return out
}

// Active returns the pointer id currently held by control
func (s *Synthesizer) Active(control string) (int, bool) {
	b, ok := s.byName[control]
	if !ok || !b.active {
		return 0, false
	}
	return b.activeID, true
}

// Feedback returns the presentation state of control
func (s *Synthesizer) Feedback(control string) (Feedback, bool) {
	b, ok := s.byName[control]
	if !ok {
		return Feedback{}, false
	}
	return b.feedback, true
}

// Touch routes one physical event to the control's binding. A second down on
// a pressed control and an up or move on a released control are ignored.
// Cancel is handled exactly like up.
func (s *Synthesizer) Touch(control string, t Touch) error {
	b, ok := s.byName[control]
	if !ok {
		return errors.Wrap(ErrUnknownControl, control)
	}

	switch t.Action {
	case Down:
		if b.active {
			return nil
		}
		return s.press(b, t)
	case Move:
		if !b.active || b.kind != kindAnalog {
			return nil
		}
		return s.move(b, t)
	case Up, Cancel:
		return s.release(b)
	}
	return errors.Errorf("control %s: unknown action %d", control, int(t.Action))
}

// ReleaseAll ends every press in progress, in binding order. All controls are
// released even if the sink fails; the first error is returned.
func (s *Synthesizer) ReleaseAll() error {
	var first error
	for _, b := range s.bindings {
		if err := s.release(b); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Synthesizer) press(b *binding, t Touch) error {
	id := b.id
	if b.kind == kindDynamic {
		id = b.next()
		if err := checkRange(id); err != nil {
			return errors.Wrap(err, b.control)
		}
	}
	if owner := s.owner(id); owner != nil {
		s.log.Debugf("%s: id %d still held by %s", b.control, id, owner.control)
		return errors.Wrapf(ErrIDInUse, "%s: id %d held by %s", b.control, id, owner.control)
	}

	x, y := b.x, b.y
	fb := Feedback{Pressed: true, Opacity: PressedOpacity}
	if b.kind == kindAnalog {
		x, y, fb = b.analog.sample(t.X, t.Y)
	}

	b.active = true
	b.activeID = id
	s.setFeedback(b, fb)
	return s.emit(id, core.PointerDown, x, y)
}

func (s *Synthesizer) move(b *binding, t Touch) error {
	x, y, fb := b.analog.sample(t.X, t.Y)
	s.setFeedback(b, fb)
	if !b.analog.moves {
		return nil
	}
	return s.emit(b.activeID, core.PointerMove, x, y)
}

func (s *Synthesizer) release(b *binding) error {
	if !b.active {
		return nil
	}

	x, y := b.x, b.y
	if b.kind == kindAnalog {
		x, y = b.analog.rest()
	}

	id := b.activeID
	b.active = false
	b.activeID = 0
	s.setFeedback(b, restFeedback)
	return s.emit(id, core.PointerUp, x, y)
}

// owner returns the active binding holding id
func (s *Synthesizer) owner(id int) *binding {
	for _, b := range s.bindings {
		if b.active && b.activeID == id {
			return b
		}
	}
	return nil
}

func (s *Synthesizer) emit(id int, action core.PointerAction, x, y float32) error {
	return s.sink.Pointer(core.PointerEvent{ID: id, Action: action, X: x, Y: y, Pressure: 1})
}

func (s *Synthesizer) setFeedback(b *binding, fb Feedback) {
	if b.feedback == fb {
		return
	}
	b.feedback = fb
	if s.listener != nil {
		s.listener(b.control, fb)
	}
}

func checkRange(id int) error {
	if id < MinID || id > MaxID {
		return errors.Wrapf(ErrIDOutOfRange, "id %d", id)
	}
	return nil
}
