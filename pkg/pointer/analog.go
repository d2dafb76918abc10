package pointer

import (
	"math"

	"github.com/pkg/errors"
)

// AxisMode selects which axes of a drag an analog control encodes
type AxisMode int

// List of axis modes
const (
	// AxisHorizontal encodes only horizontal deflection; y is pinned to the
	// midpoint. Steering wheels.
	AxisHorizontal AxisMode = iota

	// AxisBoth encodes both axes. Sticks and gear shifters.
	AxisBoth
)

func (m AxisMode) String() string {
	if m == AxisHorizontal {
		return "horizontal"
	}
	return "both"
}

// Extent is the on-screen size of a control in pixels
type Extent struct {
	Width, Height float32
}

type analogConfig struct {
	mode   AxisMode
	extent Extent
	moves  bool

	pressedOpacity float32
	rotation       float32 // degrees at full deflection
	offset         float32 // pixels at full deflection
	relOffset      float32 // fraction of the shorter side at full deflection
}

// AnalogOption tunes an analog binding
type AnalogOption func(c *analogConfig)

// WithoutMoves stops the binding from emitting pointer moves. The pointer
// goes down where the drag starts and only feedback follows the finger.
func WithoutMoves() AnalogOption {
	return func(c *analogConfig) {
		c.moves = false
	}
}

// WithRotation rotates the control by deg at full horizontal deflection
func WithRotation(deg float32) AnalogOption {
	return func(c *analogConfig) {
		c.rotation = deg
	}
}

// WithOffset moves the control by px at full deflection
func WithOffset(px float32) AnalogOption {
	return func(c *analogConfig) {
		c.offset = px
	}
}

// WithRelativeOffset moves the control by a fraction of its shorter side at
// full deflection, never less than one pixel
func WithRelativeOffset(fraction float32) AnalogOption {
	return func(c *analogConfig) {
		c.relOffset = fraction
	}
}

// WithPressedOpacity overrides the opacity while dragging
func WithPressedOpacity(alpha float32) AnalogOption {
	return func(c *analogConfig) {
		c.pressedOpacity = alpha
	}
}

// BindAnalog registers a drag surface of the given size. Every touch is
// turned into a deflection from the centre of the surface, clamped to [-1, 1]
// per axis and encoded into [0, 1] as the pointer coordinate.
func (s *Synthesizer) BindAnalog(control string, id int, mode AxisMode, extent Extent, opts ...AnalogOption) error {
	cfg := analogConfig{
		mode:           mode,
		extent:         extent,
		moves:          true,
		pressedOpacity: PressedOpacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return s.add(&binding{
		control:  control,
		kind:     kindAnalog,
		id:       id,
		x:        0.5,
		y:        0.5,
		analog:   cfg,
		feedback: restFeedback,
	})
}

// SetExtent updates the size of an analog control after a layout change
func (s *Synthesizer) SetExtent(control string, extent Extent) error {
	b, ok := s.byName[control]
	if !ok {
		return errors.Wrap(ErrUnknownControl, control)
	}
	if b.kind != kindAnalog {
		return errors.Errorf("control %s is not analog", control)
	}
	b.analog.extent = extent
	return nil
}

// sample converts a touch position into encoded pointer coordinates and the
// matching feedback
func (c *analogConfig) sample(px, py float32) (float32, float32, Feedback) {
	dx := Deflection(px, c.extent.Width)
	dy := float32(0)
	if c.mode == AxisBoth {
		dy = Deflection(py, c.extent.Height)
	}

	travel := c.offset
	if c.relOffset > 0 {
		travel = float32(math.Max(float64(c.shortSide()*c.relOffset), 1))
	}

	fb := Feedback{
		Pressed:  true,
		Opacity:  c.pressedOpacity,
		Rotation: dx * c.rotation,
		OffsetX:  dx * travel,
	}
	if c.mode == AxisBoth {
		fb.OffsetY = dy * travel
	}
	return Encode(dx), Encode(dy), fb
}

// rest is where the pointer is released: the centre on both axes. A
// horizontal control's y is always the midpoint anyway.
func (c *analogConfig) rest() (float32, float32) {
	return 0.5, 0.5
}

func (c *analogConfig) shortSide() float32 {
	w, h := side(c.extent.Width), side(c.extent.Height)
	if w < h {
		return w
	}
	return h
}

// side treats empty or invalid sizes as a single pixel
func side(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 1 {
		return 1
	}
	return v
}

// Deflection returns the signed distance of p from the centre of a span of
// the given extent, as a fraction of half the extent, clamped to [-1, 1].
// An extent below one pixel is treated as one pixel and NaN maps to the
// centre.
func Deflection(p, extent float32) float32 {
	if math.IsNaN(float64(p)) {
		return 0
	}
	c := side(extent) / 2
	return clamp((p-c)/c, -1, 1)
}

// Encode maps a deflection in [-1, 1] to [0, 1]
func Encode(d float32) float32 {
	return clampUnit((clamp(d, -1, 1) + 1) / 2)
}

func clamp(v, lo, hi float32) float32 {
	if math.IsNaN(float64(v)) {
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUnit(v float32) float32 {
	return clamp(v, 0, 1)
}
