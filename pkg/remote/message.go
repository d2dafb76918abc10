package remote

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/pointer"
	"github.com/sema/inputbridge/pkg/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// List of message types accepted on the input socket
const (
	TypeKey   = "key"
	TypeTouch = "touch"
	TypeBack  = "back"
)

// Message is one input event sent by a remote controller
//
//	{"type": "key", "key": "start", "action": "down", "source": "gamepad"}
//	{"type": "touch", "control": "wheel", "action": "move", "x": 180, "y": 40}
//	{"type": "back"}
type Message struct {
	Type    string  `json:"type"`
	Key     string  `json:"key,omitempty"`
	Action  string  `json:"action,omitempty"`
	Source  string  `json:"source,omitempty"`
	Device  int     `json:"device,omitempty"`
	Control string  `json:"control,omitempty"`
	X       float32 `json:"x,omitempty"`
	Y       float32 `json:"y,omitempty"`
}

// Reply answers every Message
type Reply struct {
	OK      bool   `json:"ok"`
	Handled bool   `json:"handled"`
	Error   string `json:"error,omitempty"`
}

// input is a decoded Message ready to be applied to a session
type input struct {
	kind    string
	key     core.KeyEvent
	control string
	touch   pointer.Touch
}

// decode parses and validates a Message
func decode(data []byte) (input, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return input{}, errors.Wrap(err, "malformed message")
	}

	switch msg.Type {
	case TypeKey:
		code, ok := core.ParseKeyCode(msg.Key)
		if !ok {
			return input{}, errors.Errorf("unknown key %q", msg.Key)
		}
		action, repeat, ok := core.ParseKeyAction(msg.Action)
		if !ok {
			return input{}, errors.Errorf("unknown key action %q", msg.Action)
		}
		source := core.SourceGamepad | core.SourceJoystick
		if msg.Source != "" {
			if source, ok = core.ParseSource(msg.Source); !ok {
				return input{}, errors.Errorf("unknown source %q", msg.Source)
			}
		}
		return input{kind: TypeKey, key: core.KeyEvent{
			Code:   code,
			Action: action,
			Repeat: repeat,
			Source: source,
			Device: msg.Device,
		}}, nil

	case TypeTouch:
		if msg.Control == "" {
			return input{}, errors.New("touch without control")
		}
		action, ok := pointer.ParseAction(msg.Action)
		if !ok {
			return input{}, errors.Errorf("unknown touch action %q", msg.Action)
		}
		return input{kind: TypeTouch, control: msg.Control, touch: pointer.Touch{Action: action, X: msg.X, Y: msg.Y}}, nil

	case TypeBack:
		return input{kind: TypeBack}, nil
	}
	return input{}, errors.Errorf("unknown message type %q", msg.Type)
}

// apply feeds in into s. It must run on the session's goroutine.
//
// A Back key the session leaves to the UI dismisses the topmost dialog, which
// is what the dialog itself would do.
func apply(s *session.Session, in input) (bool, error) {
	if s.Closed() {
		return false, session.ErrClosed
	}

	switch in.kind {
	case TypeKey:
		handled := s.HandleKey(in.key)
		if !handled && in.key.Code == core.KeyBack && in.key.Action == core.KeyUp {
			handled = s.Dismiss()
		}
		return handled, nil

	case TypeTouch:
		if err := s.HandleTouch(in.control, in.touch); err != nil {
			return false, err
		}
		return true, nil

	case TypeBack:
		down := core.KeyEvent{Code: core.KeyBack, Action: core.KeyDown, Source: core.SourceKeyboard}
		up := down
		up.Action = core.KeyUp
		if s.HandleKey(down) && s.HandleKey(up) {
			return true, nil
		}
		return s.Dismiss(), nil
	}
	return false, errors.Errorf("unknown input %q", in.kind)
}
