package chord

import (
	"time"

	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/loop"
)

// DefaultWindow is the longest gap between the two down edges that still
// counts as pressing both buttons together
const DefaultWindow = 120 * time.Millisecond

// Button is one of the two buttons forming the chord
type Button int

// List of chord buttons
const (
	Start Button = iota
	Select
	numButtons
)

func (b Button) String() string {
	if b == Start {
		return "start"
	}
	return "select"
}

func (b Button) other() Button {
	return 1 - b
}

// Phase is where a single button is in its press lifecycle
type Phase int

// List of phases.
//
//	Idle -> ArmedDown -> Dispatched -> Idle
//	                  -> CombinedIntoChord -> Idle
//	                  -> Cancelled -> Idle
const (
	// Idle: the button is up, or its press has been fully handled
	Idle Phase = iota

	// ArmedDown: the down edge is held back waiting for the window to
	// elapse, a release, or the other button
	ArmedDown

	// Dispatched: the down edge reached the core, the up is owed
	Dispatched

	// CombinedIntoChord: the press opened the chord and is never delivered
	CombinedIntoChord

	// Cancelled: the press was swallowed because a modal took over
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case ArmedDown:
		return "armed"
	case Dispatched:
		return "dispatched"
	case CombinedIntoChord:
		return "chord"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// KeySink receives the button events that survive chord detection.
// *dispatch.Dispatcher satisfies it.
type KeySink interface {
	Key(ev core.KeyEvent) error
}

type buttonState struct {
	phase    Phase
	down     bool
	downTime time.Duration

	// press is the down edge of the current press. While ArmedDown it is the
	// event held back; while Dispatched it is the event that went out and is
	// used to build the owed up on cancel. Meaningless in other phases.
	press core.KeyEvent

	// token is bumped on every transition. A deferred dispatch only acts if
	// the token it captured is still current.
	token uint64
}

// Option configures a Detector
type Option func(d *Detector)

// WithWindow sets the chord window
func WithWindow(w time.Duration) Option {
	return func(d *Detector) {
		if w > 0 {
			d.window = w
		}
	}
}

// WithModal makes the detector consult fn on every event and deferred
// dispatch. While it returns true, presses are tracked but never delivered.
func WithModal(fn func() bool) Option {
	return func(d *Detector) {
		d.modal = fn
	}
}

// WithChordHandler sets the function called when the chord is declared
func WithChordHandler(fn func()) Option {
	return func(d *Detector) {
		d.onChord = fn
	}
}

// Detector tells a Start+Select chord apart from two independent presses.
//
// Controllers report one transition at a time, so a fresh down edge of
// either button is held back for the chord window. If the other button goes
// down within the window the chord is declared and neither press reaches the
// core; otherwise the held down is delivered when the window elapses, or
// together with the up if the button is released first.
//
// A Detector is not safe for concurrent use. Handle, Cancel and the deferred
// dispatches all run on the scheduler's goroutine.
type Detector struct {
	sched   loop.Scheduler
	sink    KeySink
	window  time.Duration
	modal   func() bool
	onChord func()

	buttons   [numButtons]buttonState
	triggered bool
	chords    int
	log       log.Logger
}

// New returns a Detector that delivers surviving events to sink and runs its
// deferred dispatches on sched
func New(sched loop.Scheduler, sink KeySink, opts ...Option) *Detector {
	d := &Detector{
		sched:  sched,
		sink:   sink,
		window: DefaultWindow,
		log:    log.With("component", "chord"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ButtonFor maps a key event to a chord button. Only Start and Select coming
// from a gamepad or joystick take part.
func ButtonFor(ev core.KeyEvent) (Button, bool) {
	if !ev.FromGamepad() {
		return 0, false
	}
	switch ev.Code {
	case core.KeyButtonStart:
		return Start, true
	case core.KeyButtonSelect:
		return Select, true
	}
	return 0, false
}

// Handle consumes ev if it belongs to the chord buttons. It returns false for
// any other event, which the caller must then deliver itself.
func (d *Detector) Handle(ev core.KeyEvent) bool {
	b, ok := ButtonFor(ev)
	if !ok {
		return false
	}

	if d.modalOpen() {
		d.track(b, ev)
		d.Cancel()
		return true
	}

	switch ev.Action {
	case core.KeyDown:
		if ev.Repeat > 0 {
			d.repeat(b, ev)
		} else {
			d.press(b, ev)
		}
	case core.KeyUp:
		d.release(b, ev)
	}
	return true
}

// track keeps the press bookkeeping while a modal is open
func (d *Detector) track(b Button, ev core.KeyEvent) {
	st := &d.buttons[b]
	switch ev.Action {
	case core.KeyDown:
		if !st.down {
			st.down = true
			st.downTime = ev.Time
		}
		if st.phase == Idle {
			d.transition(b, Cancelled)
		}
	case core.KeyUp:
		st.down = false
		st.downTime = 0
		if st.phase == Cancelled || st.phase == CombinedIntoChord {
			d.transition(b, Idle)
		}
		d.resetChordIfReleased()
	}
}

func (d *Detector) repeat(b Button, ev core.KeyEvent) {
	if d.triggered || d.buttons[b].phase != Dispatched {
		return
	}
	d.deliver(ev)
}

func (d *Detector) press(b Button, ev core.KeyEvent) {
	st := &d.buttons[b]
	st.down = true
	st.downTime = ev.Time

	switch {
	case d.triggered:
		d.transition(b, CombinedIntoChord)
		return
	case st.phase == Idle || st.phase == Cancelled || st.phase == CombinedIntoChord:
		d.arm(b, ev)
	}

	other := &d.buttons[b.other()]
	if other.down && absDuration(st.downTime-other.downTime) <= d.window {
		d.declare()
	}
}

func (d *Detector) arm(b Button, ev core.KeyEvent) {
	d.transition(b, ArmedDown)
	st := &d.buttons[b]
	st.press = ev

	// fires just past the window so that a press at exactly W still finds
	// this one held back
	token := st.token
	d.sched.AfterFunc(d.window+time.Nanosecond, func() {
		d.flush(b, token)
	})
}

// flush is the deferred dispatch of an armed press
func (d *Detector) flush(b Button, token uint64) {
	st := &d.buttons[b]
	if token != st.token || st.phase != ArmedDown {
		return
	}

	if d.triggered || d.modalOpen() {
		d.transition(b, Cancelled)
		return
	}

	press := st.press
	d.transition(b, Dispatched)
	st.press = press
	d.deliver(press)
}

func (d *Detector) release(b Button, ev core.KeyEvent) {
	st := &d.buttons[b]
	st.down = false
	st.downTime = 0

	if d.triggered {
		d.transition(b, Idle)
		d.resetChordIfReleased()
		return
	}

	press, phase := st.press, st.phase
	d.transition(b, Idle)

	switch phase {
	case ArmedDown:
		d.deliver(press)
		d.deliver(ev)
	case Dispatched:
		d.deliver(ev)
	default:
		d.log.Debugf("%s up swallowed in phase %s", b, phase)
	}
}

// declare marks both presses as part of the chord and drops whatever was
// held back
func (d *Detector) declare() {
	d.triggered = true
	d.chords++
	for b := Start; b < numButtons; b++ {
		d.settle(b)
		d.transition(b, CombinedIntoChord)
	}

	d.log.Infof("start+select chord")
	if d.onChord != nil {
		d.onChord()
	}
}

// Cancel invalidates every deferred dispatch and drops the presses held
// back. It is called whenever a modal opens or closes.
//
// A button whose down already reached the core gets its up right away, so
// the core never keeps a button pressed; the later physical release is
// swallowed.
func (d *Detector) Cancel() {
	for b := Start; b < numButtons; b++ {
		st := &d.buttons[b]
		switch st.phase {
		case ArmedDown, Dispatched:
			d.settle(b)
			d.transition(b, Cancelled)
		default:
			st.token++
		}
		if !st.down && st.phase == Cancelled {
			d.transition(b, Idle)
		}
	}
}

// settle closes out a button's press before it leaves ArmedDown or
// Dispatched without a physical release
func (d *Detector) settle(b Button) {
	st := &d.buttons[b]
	if st.phase != Dispatched {
		return
	}
	up := st.press
	up.Action = core.KeyUp
	up.Repeat = 0
	up.Time = d.sched.Now()
	d.deliver(up)
}

func (d *Detector) resetChordIfReleased() {
	if d.triggered && !d.buttons[Start].down && !d.buttons[Select].down {
		d.triggered = false
	}
}

func (d *Detector) transition(b Button, p Phase) {
	st := &d.buttons[b]
	st.token++
	st.press = core.KeyEvent{}
	if st.phase != p {
		d.log.Debugf("%s: %s -> %s", b, st.phase, p)
	}
	st.phase = p
}

func (d *Detector) deliver(ev core.KeyEvent) {
	// The dispatcher logs failures; the phase has already moved on either way.
	_ = d.sink.Key(ev)
}

func (d *Detector) modalOpen() bool {
	return d.modal != nil && d.modal()
}

// Phase returns the current phase of b
func (d *Detector) Phase(b Button) Phase {
	return d.buttons[b].phase
}

// Down returns true while b is physically held
func (d *Detector) Down(b Button) bool {
	return d.buttons[b].down
}

// Triggered returns true from the moment the chord is declared until both
// buttons are released
func (d *Detector) Triggered() bool {
	return d.triggered
}

// Chords returns how many times the chord has been declared
func (d *Detector) Chords() int {
	return d.chords
}

// Window returns the configured chord window
func (d *Detector) Window() time.Duration {
	return d.window
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
