package script

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/capture"
	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/loop"
	"github.com/sema/inputbridge/pkg/session"
)

// DefaultSettle is how long the clock keeps running after the last step so
// that deferred button events and captures complete
const DefaultSettle = time.Second

// StepError is a step the session refused
type StepError struct {
	Step Step
	Err  error
}

func (e StepError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.Step.Line, e.Step, e.Err)
}

// Result is what a replay sent to the core
type Result struct {
	Calls  []core.Call
	Status session.Status
	Errors []StepError
}

// Write prints one line per core call, prefixed by its time in milliseconds
func (r Result) Write(w io.Writer) error {
	for _, c := range r.Calls {
		if _, err := fmt.Fprintf(w, "%6d %s\n", int64(c.At/time.Millisecond), c); err != nil {
			return errors.Wrap(err, "writing result")
		}
	}
	for _, e := range r.Errors {
		if _, err := fmt.Fprintf(w, "error: %v\n", e); err != nil {
			return errors.Wrap(err, "writing result")
		}
	}
	return nil
}

type options struct {
	capturer capture.Capturer
	settle   time.Duration
	gameName string
}

// Option configures Replay
type Option func(o *options)

// WithCapturer makes saves write thumbnails read from c
func WithCapturer(c capture.Capturer) Option {
	return func(o *options) {
		o.capturer = c
	}
}

// WithSettle overrides DefaultSettle
func WithSettle(d time.Duration) Option {
	return func(o *options) {
		o.settle = d
	}
}

// WithGameName sets the name the recording core reports as loaded
func WithGameName(name string) Option {
	return func(o *options) {
		o.gameName = name
	}
}

// Replay runs steps against a fresh session backed by a recording core.
// Steps the session refuses are collected in the result, only a broken
// config fails the replay.
func Replay(cfg session.Config, steps []Step, opts ...Option) (Result, error) {
	o := options{settle: DefaultSettle}
	for _, opt := range opts {
		opt(&o)
	}

	clock := loop.NewManual()
	rec := core.NewRecorder()
	rec.Now = clock.Now
	rec.GameName = o.gameName

	var sopts []session.Option
	if o.capturer != nil {
		sopts = append(sopts, session.WithCapturer(o.capturer))
	}
	s, err := session.New(cfg, rec, clock, sopts...)
	if err != nil {
		return Result{}, err
	}

	logger := log.With("component", "replay")
	var result Result
	for _, step := range steps {
		clock.AdvanceTo(step.At)
		if err := run(s, step); err != nil {
			logger.Debugf("line %d: %v", step.Line, err)
			result.Errors = append(result.Errors, StepError{Step: step, Err: err})
		}
	}
	clock.Advance(o.settle)

	result.Calls = rec.Calls()
	result.Status = s.Status()
	return result, nil
}

func run(s *session.Session, step Step) error {
	if s.Closed() {
		return session.ErrClosed
	}

	switch step.Kind {
	case Key:
		if !s.HandleKey(step.Key) && step.Key.Code == core.KeyBack && step.Key.Action == core.KeyUp {
			s.Dismiss()
		}
	case Touch:
		return s.HandleTouch(step.Control, step.Touch)
	case Back:
		back := core.KeyEvent{Code: core.KeyBack, Action: core.KeyDown, Time: step.At, Source: core.SourceKeyboard}
		handled := s.HandleKey(back)
		back.Action = core.KeyUp
		if !(handled && s.HandleKey(back)) {
			s.Dismiss()
		}
	case Menu:
		return expect(step, step.Verb == "open" && s.OpenQuickMenu() || step.Verb == "close" && s.CloseQuickMenu())
	case Save:
		switch step.Verb {
		case "open":
			return expect(step, s.OpenSaveDialog())
		case "close":
			return expect(step, s.CloseSaveDialog())
		}
		_, err := s.SaveToSlot(step.Slot)
		return err
	case Load:
		_, err := s.LoadFromSlot(step.Slot)
		return err
	case Exit:
		switch step.Verb {
		case "open":
			return expect(step, s.BackPressed())
		case "close":
			return expect(step, s.CloseExitDialog())
		}
		s.ConfirmExit()
	case Pause:
		s.TogglePause()
	case Overlay:
		s.SetOverlayEnabled(step.Verb == "on")
	}
	return nil
}

// expect turns a refused dialog transition into an error
func expect(step Step, changed bool) error {
	if !changed {
		return errors.Errorf("%s had no effect", step)
	}
	return nil
}
