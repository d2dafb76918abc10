package session

import (
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/capture"
	"github.com/sema/inputbridge/pkg/chord"
	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/dispatch"
	"github.com/sema/inputbridge/pkg/loop"
	"github.com/sema/inputbridge/pkg/overlay"
	"github.com/sema/inputbridge/pkg/pause"
	"github.com/sema/inputbridge/pkg/pointer"
	"github.com/sema/inputbridge/pkg/savestate"
)

// ErrClosed is returned by operations on a closed session
var ErrClosed = errors.New("session closed")

// modals are the pause reasons that take input away from the game
var modals = []pause.Reason{pause.QuickMenu, pause.SaveDialog, pause.ExitDialog, pause.Capture}

// heldKey identifies a pass-through key whose press reached the core
type heldKey struct {
	code   core.KeyCode
	device int
}

// Option configures a Session
type Option func(s *Session)

// WithCapturer sets where save state thumbnails are read from. Without one
// no thumbnails are written.
func WithCapturer(c capture.Capturer) Option {
	return func(s *Session) {
		s.capturer = c
	}
}

// WithExitHandler sets the function called once the user confirms leaving
// the game
func WithExitHandler(fn func()) Option {
	return func(s *Session) {
		s.onExit = fn
	}
}

// WithFeedbackListener forwards the presentation state of the overlay
// controls
func WithFeedbackListener(fn func(control string, fb pointer.Feedback)) Option {
	return func(s *Session) {
		s.feedback = fn
	}
}

// Session owns the input state of one running game: the modal dialogs, the
// pause reasons, the chord detector and the overlay.
//
// Every method must be called from the scheduler's goroutine.
type Session struct {
	cfg   Config
	core  core.Core
	sched loop.Scheduler

	dispatcher *dispatch.Dispatcher
	pause      *pause.Coordinator
	chord      *chord.Detector
	pointers   *pointer.Synthesizer
	store      *savestate.Store
	profile    overlay.Profile

	capturer capture.Capturer
	onExit   func()
	feedback func(control string, fb pointer.Feedback)

	overlayEnabled bool
	held           map[heldKey]bool
	slot           int
	captures       int
	releaseCapture func()
	exited         bool
	closed         bool

	log log.Logger
}

// New starts a session for the game loaded in c
func New(cfg Config, c core.Core, sched loop.Scheduler, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}

	s := &Session{
		cfg:            cfg,
		core:           c,
		sched:          sched,
		overlayEnabled: cfg.OverlayEnabled,
		held:           make(map[heldKey]bool),
		log:            log.With("component", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dispatcher = dispatch.New(c)
	s.pause = pause.New(c)
	s.chord = chord.New(sched, s.dispatcher,
		chord.WithWindow(cfg.ChordWindow),
		chord.WithModal(s.modalOpen),
		chord.WithChordHandler(func() { s.OpenQuickMenu() }),
	)

	var popts []pointer.Option
	if s.feedback != nil {
		popts = append(popts, pointer.WithFeedbackListener(s.feedback))
	}
	s.pointers = pointer.New(s.dispatcher, popts...)

	s.store = savestate.New(cfg.UserDataRoot, savestate.GameName(c, cfg.GameName),
		savestate.WithThumbnailWidth(cfg.ThumbnailWidth))

	types := overlay.ParseInputTypes(cfg.InputTypes...)
	s.profile = overlay.Build(types, cfg.ShifterEnabled)
	if err := s.profile.Apply(s.pointers); err != nil {
		return nil, errors.Wrap(err, "building overlay")
	}

	s.log.Infof("session started for %q, input types %v, overlay %v", s.store.Name(), types.List(), s.profile.Names())
	return s, nil
}

// HandleKey routes a physical button event. It returns false when the event
// is left to the UI, which is the case for Back while a dialog is open.
func (s *Session) HandleKey(ev core.KeyEvent) bool {
	if s.closed {
		return false
	}
	if ev.Time == 0 {
		ev.Time = s.sched.Now()
	}

	if ev.Code == core.KeyBack {
		if s.dialogOpen() {
			return false
		}
		if ev.Action == core.KeyUp {
			s.BackPressed()
		}
		return true
	}

	if s.chord.Handle(ev) {
		return true
	}
	s.forwardKey(ev)
	return true
}

// forwardKey passes a key the session does not interpret on to the core.
// While a modal is open new presses and repeats are dropped, but the release
// of a key pressed before it opened still goes through so the core never
// keeps it down. A release whose press never reached the core is dropped.
func (s *Session) forwardKey(ev core.KeyEvent) {
	k := heldKey{code: ev.Code, device: ev.Device}
	switch {
	case ev.Action == core.KeyUp:
		if !s.held[k] {
			s.log.Debugf("%s dropped, its press never reached the game", ev)
			return
		}
		delete(s.held, k)
	case s.modalOpen():
		s.log.Debugf("%s dropped while %s", ev, s.pause)
		return
	case ev.Repeat > 0 && !s.held[k]:
		return
	default:
		s.held[k] = true
	}

	// errors are logged by the dispatcher
	_ = s.dispatcher.Key(ev)
}

// HandleTouch routes a touch on an overlay control. Touches are dropped
// while the overlay is hidden, and new presses are dropped while a modal is
// open. Controls pressed before the modal opened can still be released.
func (s *Session) HandleTouch(control string, t pointer.Touch) error {
	if s.closed {
		return ErrClosed
	}
	if !s.overlayEnabled {
		return nil
	}
	if t.Action == pointer.Down && s.modalOpen() {
		if _, ok := s.pointers.Feedback(control); !ok {
			return errors.Wrap(pointer.ErrUnknownControl, control)
		}
		s.log.Debugf("%s press dropped while %s", control, s.pause)
		return nil
	}
	return s.pointers.Touch(control, t)
}

// SetExtent updates the on-screen size of an analog control
func (s *Session) SetExtent(control string, e pointer.Extent) error {
	return s.pointers.SetExtent(control, e)
}

// OpenQuickMenu shows the quick menu unless another modal is already up
func (s *Session) OpenQuickMenu() bool {
	if s.closed || s.modalOpen() {
		return false
	}
	s.openModal(pause.QuickMenu)
	return true
}

// CloseQuickMenu dismisses the quick menu
func (s *Session) CloseQuickMenu() bool {
	return s.closeModal(pause.QuickMenu)
}

// TogglePause flips the user pause and dismisses the quick menu. It returns
// the new user pause state.
func (s *Session) TogglePause() bool {
	if s.closed {
		return false
	}
	paused := !s.pause.Active(pause.User)
	s.pause.Set(pause.User, paused)
	s.CloseQuickMenu()
	s.pause.PushIfChanged()
	return paused
}

// OpenSaveDialog replaces the quick menu with the save state dialog
func (s *Session) OpenSaveDialog() bool {
	if s.closed {
		return false
	}
	for _, r := range []pause.Reason{pause.SaveDialog, pause.ExitDialog, pause.Capture} {
		if s.pause.Active(r) {
			return false
		}
	}

	// swap without an unpause in between
	s.pause.Set(pause.QuickMenu, false)
	s.openModal(pause.SaveDialog)
	return true
}

// CloseSaveDialog dismisses the save state dialog
func (s *Session) CloseSaveDialog() bool {
	return s.closeModal(pause.SaveDialog)
}

// SetOverlayEnabled shows or hides the touch overlay and dismisses the quick
// menu. Hiding it releases every control still held.
func (s *Session) SetOverlayEnabled(enabled bool) {
	if s.closed {
		return
	}
	s.overlayEnabled = enabled
	if !enabled {
		if err := s.pointers.ReleaseAll(); err != nil {
			s.log.Warnf("releasing overlay: %v", err)
		}
	}
	s.CloseQuickMenu()
}

// BackPressed asks the user whether to leave the game. It returns false if
// the question is already being asked.
func (s *Session) BackPressed() bool {
	if s.closed || s.pause.Active(pause.ExitDialog) {
		return false
	}
	s.openModal(pause.ExitDialog)
	return true
}

// CloseExitDialog dismisses the exit confirmation and resumes the game
func (s *Session) CloseExitDialog() bool {
	return s.closeModal(pause.ExitDialog)
}

// ConfirmExit accepts the exit confirmation
func (s *Session) ConfirmExit() {
	s.CloseExitDialog()
	s.Exit()
}

// Exit leaves the game. The session is closed afterwards.
func (s *Session) Exit() {
	if s.closed {
		return
	}
	s.exited = true
	s.log.Infof("exiting %q", s.store.Name())
	s.Close()
	if s.onExit != nil {
		s.onExit()
	}
}

// Dismiss closes the topmost dialog the way the Back key does on a dialog.
// It returns false if no dialog was open.
func (s *Session) Dismiss() bool {
	for _, r := range []pause.Reason{pause.ExitDialog, pause.SaveDialog, pause.QuickMenu} {
		if s.closeModal(r) {
			return true
		}
	}
	return false
}

// Close releases everything the session holds: pressed overlay controls,
// deferred button events and every pause reason. It is safe to call more
// than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if err := s.pointers.ReleaseAll(); err != nil {
		s.log.Warnf("releasing overlay: %v", err)
	}
	s.chord.Cancel()
	s.pause.Reset()
	s.log.Debugf("session closed")
}

// Closed returns true once Close or Exit has been called
func (s *Session) Closed() bool {
	return s.closed
}

func (s *Session) openModal(r pause.Reason) {
	s.pause.Update(r, true)
	s.chord.Cancel()
	s.log.Debugf("%s opened", r)
}

// closeModal is a no-op when r is not open, so every dismissal path may call
// it
func (s *Session) closeModal(r pause.Reason) bool {
	if !s.pause.Active(r) {
		return false
	}
	s.pause.Update(r, false)
	s.chord.Cancel()
	s.log.Debugf("%s closed", r)
	return true
}

func (s *Session) modalOpen() bool {
	for _, r := range modals {
		if s.pause.Active(r) {
			return true
		}
	}
	return false
}

// dialogOpen is true while a dialog the Back key can dismiss is shown
func (s *Session) dialogOpen() bool {
	return s.pause.Active(pause.QuickMenu) || s.pause.Active(pause.SaveDialog) || s.pause.Active(pause.ExitDialog)
}
