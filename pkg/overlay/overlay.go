package overlay

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sema/inputbridge/pkg/pointer"
)

// Names of the on-screen controls
const (
	Coin    = "coin"
	Start   = "start"
	Service = "service"
	Test    = "test"
	Reload  = "reload"
	Gas     = "gas"
	Brake   = "brake"
	Wheel   = "wheel"
	Shifter = "shifter"
	View    = "view"
	Stick   = "stick"
	Punch   = "punch"
	Kick    = "kick"
	Guard   = "guard"
	Escape  = "escape"
	Jump    = "jump"
	Boost   = "boost"
)

// Kind selects how a control is bound to the synthesizer
type Kind int

// List of control kinds
const (
	Momentary Kind = iota
	Held
	Dynamic
	Analog
)

func (k Kind) String() string {
	switch k {
	case Momentary:
		return "momentary"
	case Held:
		return "held"
	case Dynamic:
		return "dynamic"
	case Analog:
		return "analog"
	}
	return "unknown"
}

// Control is one on-screen control of a profile
type Control struct {
	Name string
	Kind Kind

	// ID is the pointer id. Dynamic controls cycle through IDs instead.
	ID  int
	IDs []int

	// X and Y are where fixed controls touch the game screen
	X, Y float32

	Mode    pointer.AxisMode
	Extent  pointer.Extent
	Options []pointer.AnalogOption
}

// Profile is the set of controls shown for a game
type Profile struct {
	Controls []Control
}

// InputTypes is the set of input types a game declares
type InputTypes map[string]bool

// ParseInputTypes builds an InputTypes from a list such as the one in the
// game database. Entries are case insensitive and may be comma separated.
func ParseInputTypes(list ...string) InputTypes {
	types := InputTypes{}
	for _, entry := range list {
		for _, t := range strings.Split(entry, ",") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				types[t] = true
			}
		}
	}
	return types
}

// Any returns true if at least one of names is present
func (t InputTypes) Any(names ...string) bool {
	for _, n := range names {
		if t[n] {
			return true
		}
	}
	return false
}

// List returns the input types in sorted order
func (t InputTypes) List() []string {
	out := make([]string, 0, len(t))
	for n := range t {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Default sizes of the analog controls, in pixels
var (
	WheelExtent   = pointer.Extent{Width: 220, Height: 220}
	ShifterExtent = pointer.Extent{Width: 120, Height: 160}
	StickExtent   = pointer.Extent{Width: 180, Height: 180}
)

// Build derives the overlay for a game from its input types. shifter
// enables the optional gear shifter on games that have one.
func Build(types InputTypes, shifter bool) Profile {
	racing := types.Any("vehicle", "harley")
	shift4 := types.Any("shift4")
	shiftUpDown := types.Any("shiftupdown")
	viewChange := types.Any("viewchange")
	vr4 := types.Any("vr4")
	gun := types.Any("gun1", "gun2", "analog_gun1", "analog_gun2")
	twin := types.Any("twin_joysticks")
	fishing := types.Any("fishing")
	ski := types.Any("ski")
	magtruck := types.Any("magtruck")
	spikeout := types.Any("spikeout")

	fightButtons := types.Any("fighting", "spikeout", "soccer", "twin_joysticks", "fishing", "ski")
	fightStick := fightButtons || magtruck

	p := Profile{}
	p.add(Control{Name: Coin, Kind: Momentary, ID: 1101, X: 0.10, Y: 0.90})
	p.add(Control{Name: Start, Kind: Momentary, ID: 1102, X: 0.50, Y: 0.90})
	p.add(Control{Name: Service, Kind: Momentary, ID: 1105, X: 0.10, Y: 0.10})
	p.add(Control{Name: Test, Kind: Momentary, ID: 1106, X: 0.90, Y: 0.10})

	if gun {
		p.add(Control{Name: Reload, Kind: Momentary, ID: 1109, X: 0.90, Y: 0.90})
	}

	if fightButtons {
		base := 1110
		switch {
		case spikeout:
			base = 1115
		case fishing:
			base = 1120
		case ski:
			base = 1140
		}
		p.add(Control{Name: Punch, Kind: Held, ID: base, X: 0.90, Y: 0.55})
		p.add(Control{Name: Kick, Kind: Held, ID: base + 1, X: 0.82, Y: 0.65})
		p.add(Control{Name: Guard, Kind: Held, ID: base + 2, X: 0.90, Y: 0.45})
		p.add(Control{Name: Escape, Kind: Held, ID: base + 3, X: 0.82, Y: 0.35})
	}

	if twin {
		p.add(Control{Name: Jump, Kind: Held, ID: 1150, X: 0.85, Y: 0.60})
		p.add(Control{Name: Boost, Kind: Held, ID: 1151, X: 0.92, Y: 0.60})
	}

	if fightStick {
		p.add(Control{
			Name:   Stick,
			Kind:   Analog,
			ID:     1114,
			Mode:   pointer.AxisBoth,
			Extent: StickExtent,
			Options: []pointer.AnalogOption{
				pointer.WithPressedOpacity(0.90),
				pointer.WithRelativeOffset(0.32),
			},
		})
	}

	if racing || magtruck {
		gas, brake := 1103, 1104
		if magtruck {
			gas, brake = 1130, 1131
		}
		p.add(Control{Name: Gas, Kind: Held, ID: gas, X: 0.85, Y: 0.35})
		p.add(Control{Name: Brake, Kind: Held, ID: brake, X: 0.85, Y: 0.80})
	}

	if racing {
		switch {
		case vr4:
			p.add(Control{Name: View, Kind: Dynamic, IDs: []int{1153, 1154, 1155, 1156}, X: 0.90, Y: 0.50})
		case viewChange:
			p.add(Control{Name: View, Kind: Dynamic, IDs: []int{1152}, X: 0.90, Y: 0.50})
		}

		p.add(Control{
			Name:    Wheel,
			Kind:    Analog,
			ID:      1107,
			Mode:    pointer.AxisHorizontal,
			Extent:  WheelExtent,
			Options: []pointer.AnalogOption{pointer.WithRotation(75)},
		})

		if shifter && (shift4 || shiftUpDown) {
			opts := []pointer.AnalogOption{pointer.WithOffset(10)}
			if !shift4 {
				opts = append(opts, pointer.WithoutMoves())
			}
			p.add(Control{
				Name:    Shifter,
				Kind:    Analog,
				ID:      1108,
				Mode:    pointer.AxisBoth,
				Extent:  ShifterExtent,
				Options: opts,
			})
		}
	}

	return p
}

func (p *Profile) add(c Control) {
	p.Controls = append(p.Controls, c)
}

// Names lists the controls of the profile in binding order
func (p Profile) Names() []string {
	out := make([]string, 0, len(p.Controls))
	for _, c := range p.Controls {
		out = append(out, c.Name)
	}
	return out
}

// Has returns true if the profile contains the named control
func (p Profile) Has(name string) bool {
	_, ok := p.Control(name)
	return ok
}

// Control returns the named control
func (p Profile) Control(name string) (Control, bool) {
	for _, c := range p.Controls {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}

// Apply replaces every binding of s with the controls of the profile
func (p Profile) Apply(s *pointer.Synthesizer) error {
	if err := s.Reset(); err != nil {
		return errors.Wrap(err, "releasing previous overlay")
	}

	for _, c := range p.Controls {
		if err := bind(s, c); err != nil {
			return errors.Wrapf(err, "binding %s", c.Name)
		}
	}
	return nil
}

func bind(s *pointer.Synthesizer, c Control) error {
	switch c.Kind {
	case Momentary:
		return s.BindMomentary(c.Name, c.ID, c.X, c.Y)
	case Held:
		return s.BindHeld(c.Name, c.ID, c.X, c.Y)
	case Dynamic:
		return s.BindDynamic(c.Name, rotate(c.IDs), c.X, c.Y)
	case Analog:
		return s.BindAnalog(c.Name, c.ID, c.Mode, c.Extent, c.Options...)
	}
	return errors.Errorf("unknown control kind %d", int(c.Kind))
}

// rotate returns an id provider stepping through ids, one per press
func rotate(ids []int) func() int {
	ids = append([]int(nil), ids...)
	next := 0
	return func() int {
		if len(ids) == 0 {
			return 0
		}
		id := ids[next]
		next = (next + 1) % len(ids)
		return id
	}
}
