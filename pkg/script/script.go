// Package script reads timed input scripts and replays them against a
// session on a virtual clock. A script is one step per line:
//
//	# start then select inside the chord window
//	0    key start down
//	40   key select down gamepad
//	90   touch wheel down 110 110
//	120  touch wheel move 180 110
//	300  save open
//	320  save 3
//	400  load 3
//	500  menu open|close
//	600  exit open|close|confirm
//	700  pause toggle
//	800  overlay on|off
//	900  back
//
// Times are milliseconds and must not go backwards.
package script

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/pointer"
)

// ErrSyntax is the cause of every parse error
var ErrSyntax = errors.New("syntax error")

// Kind is the verb of a step
type Kind string

// List of step kinds
const (
	Key     Kind = "key"
	Touch   Kind = "touch"
	Menu    Kind = "menu"
	Save    Kind = "save"
	Load    Kind = "load"
	Exit    Kind = "exit"
	Pause   Kind = "pause"
	Overlay Kind = "overlay"
	Back    Kind = "back"
)

// Step is one line of a script
type Step struct {
	Line int
	At   time.Duration
	Kind Kind

	// Key is set for key steps
	Key core.KeyEvent

	// Control and Touch are set for touch steps
	Control string
	Touch   pointer.Touch

	// Verb is the sub command of menu, save, exit, pause and overlay steps
	Verb string

	// Slot is set for load steps and numeric save steps
	Slot int
}

func (s Step) String() string {
	switch s.Kind {
	case Key:
		return s.Key.String()
	case Touch:
		return strings.Join([]string{"touch", s.Control, s.Touch.Action.String()}, " ")
	case Load:
		return "load " + strconv.Itoa(s.Slot)
	case Back:
		return "back"
	}
	return string(s.Kind) + " " + s.Verb
}

// Parse reads a whole script
func Parse(r io.Reader) ([]Step, error) {
	var steps []Step
	var last time.Duration

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		step, err := parseStep(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		if step.At < last {
			return nil, errors.Wrapf(ErrSyntax, "line %d: time goes backwards (%s after %s)", n, step.At, last)
		}
		last = step.At
		step.Line = n
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading script")
	}
	return steps, nil
}

func syntaxf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSyntax, format, args...)
}

func parseStep(fields []string) (Step, error) {
	if len(fields) < 2 {
		return Step{}, syntaxf("want <ms> <verb> ...")
	}
	ms, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Step{}, syntaxf("bad time %q", fields[0])
	}

	step := Step{At: time.Duration(ms) * time.Millisecond, Kind: Kind(strings.ToLower(fields[1]))}
	args := fields[2:]

	switch step.Kind {
	case Key:
		return parseKey(step, args)
	case Touch:
		return parseTouch(step, args)
	case Menu:
		return verb(step, args, "open", "close")
	case Exit:
		return verb(step, args, "open", "close", "confirm")
	case Pause:
		return verb(step, args, "toggle")
	case Overlay:
		return verb(step, args, "on", "off")
	case Back:
		if len(args) != 0 {
			return Step{}, syntaxf("back takes no arguments")
		}
		return step, nil
	case Save:
		if len(args) == 1 {
			if slot, err := strconv.Atoi(args[0]); err == nil {
				step.Slot = slot
				step.Verb = "slot"
				return step, nil
			}
		}
		return verb(step, args, "open", "close")
	case Load:
		if len(args) != 1 {
			return Step{}, syntaxf("want load <slot>")
		}
		slot, err := strconv.Atoi(args[0])
		if err != nil {
			return Step{}, syntaxf("bad slot %q", args[0])
		}
		step.Slot = slot
		return step, nil
	}
	return Step{}, syntaxf("unknown verb %q", fields[1])
}

func verb(step Step, args []string, allowed ...string) (Step, error) {
	if len(args) == 1 {
		v := strings.ToLower(args[0])
		for _, a := range allowed {
			if v == a {
				step.Verb = v
				return step, nil
			}
		}
	}
	return Step{}, syntaxf("want %s %s", step.Kind, strings.Join(allowed, "|"))
}

func parseKey(step Step, args []string) (Step, error) {
	if len(args) < 2 || len(args) > 3 {
		return Step{}, syntaxf("want key <name> <down|up|repeat> [source]")
	}
	code, ok := core.ParseKeyCode(args[0])
	if !ok {
		return Step{}, syntaxf("unknown key %q", args[0])
	}
	action, repeat, ok := core.ParseKeyAction(args[1])
	if !ok {
		return Step{}, syntaxf("unknown key action %q", args[1])
	}
	source := core.SourceGamepad | core.SourceJoystick
	if len(args) == 3 {
		if source, ok = core.ParseSource(args[2]); !ok {
			return Step{}, syntaxf("unknown source %q", args[2])
		}
	}

	step.Key = core.KeyEvent{Code: code, Action: action, Repeat: repeat, Time: step.At, Source: source}
	return step, nil
}

func parseTouch(step Step, args []string) (Step, error) {
	if len(args) != 2 && len(args) != 4 {
		return Step{}, syntaxf("want touch <control> <action> [x y]")
	}
	action, ok := pointer.ParseAction(args[1])
	if !ok {
		return Step{}, syntaxf("unknown touch action %q", args[1])
	}
	step.Control = strings.ToLower(args[0])
	step.Touch = pointer.Touch{Action: action}

	if len(args) == 4 {
		x, err := strconv.ParseFloat(args[2], 32)
		if err != nil {
			return Step{}, syntaxf("bad x %q", args[2])
		}
		y, err := strconv.ParseFloat(args[3], 32)
		if err != nil {
			return Step{}, syntaxf("bad y %q", args[3])
		}
		step.Touch.X, step.Touch.Y = float32(x), float32(y)
	}
	return step, nil
}
