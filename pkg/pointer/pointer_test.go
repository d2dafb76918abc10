package pointer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/dispatch"
)

func newTestSynthesizer(opts ...Option) (*Synthesizer, *core.Recorder) {
	rec := core.NewRecorder()
	return New(dispatch.New(rec), opts...), rec
}

func countActions(evs []core.PointerEvent) (downs, ups int) {
	for _, ev := range evs {
		switch ev.Action {
		case core.PointerDown:
			downs++
		case core.PointerUp:
			ups++
		}
	}
	return downs, ups
}

func TestMomentaryEmitsDownAndUpAtFixedPoint(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindMomentary("coin", 1101, 0.10, 0.90))

	require.NoError(t, s.Touch("coin", Touch{Action: Down, X: 13, Y: 7}))
	fb, _ := s.Feedback("coin")
	require.True(t, fb.Pressed)
	require.InDelta(t, PressedOpacity, fb.Opacity, 1e-6)

	require.NoError(t, s.Touch("coin", Touch{Action: Move, X: 40, Y: 2}))
	require.NoError(t, s.Touch("coin", Touch{Action: Up}))

	evs := rec.Pointers()
	require.Len(t, evs, 2)
	for i, action := range []core.PointerAction{core.PointerDown, core.PointerUp} {
		require.Equal(t, 1101, evs[i].ID)
		require.Equal(t, action, evs[i].Action)
		require.InDelta(t, 0.10, evs[i].X, 1e-6)
		require.InDelta(t, 0.90, evs[i].Y, 1e-6)
		require.InDelta(t, 1.0, evs[i].Pressure, 1e-6)
	}

	fb, _ = s.Feedback("coin")
	require.Equal(t, Feedback{Opacity: RestOpacity}, fb)
}

func TestCancelReleasesLikeUp(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindHeld("gas", 1103, 0.85, 0.35))

	require.NoError(t, s.Touch("gas", Touch{Action: Down}))
	require.NoError(t, s.Touch("gas", Touch{Action: Cancel}))

	evs := rec.Pointers()
	require.Len(t, evs, 2)
	require.Equal(t, core.PointerUp, evs[1].Action)
	_, active := s.Active("gas")
	require.False(t, active)
}

func TestDuplicateDownAndOrphanUpAreIgnored(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindHeld("punch", 1110, 0.90, 0.55))

	require.NoError(t, s.Touch("punch", Touch{Action: Up}))
	require.NoError(t, s.Touch("punch", Touch{Action: Down}))
	require.NoError(t, s.Touch("punch", Touch{Action: Down}))
	require.NoError(t, s.Touch("punch", Touch{Action: Up}))
	require.NoError(t, s.Touch("punch", Touch{Action: Cancel}))

	downs, ups := countActions(rec.Pointers())
	require.Equal(t, 1, downs)
	require.Equal(t, 1, ups)
}

func TestDownsAndUpsBalanceForAnySequence(t *testing.T) {
	controls := []string{"coin", "gas", "view", "wheel"}
	actions := []Action{Down, Move, Up, Cancel}
	rnd := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		s, rec := newTestSynthesizer()
		require.NoError(t, s.BindMomentary("coin", 1101, 0.1, 0.9))
		require.NoError(t, s.BindHeld("gas", 1103, 0.85, 0.35))
		vr := 0
		require.NoError(t, s.BindDynamic("view", func() int {
			vr = (vr + 1) % 4
			return 1153 + vr
		}, 0.9, 0.5))
		require.NoError(t, s.BindAnalog("wheel", 1107, AxisHorizontal, Extent{Width: 200, Height: 200}))

		for i := 0; i < 100; i++ {
			c := controls[rnd.Intn(len(controls))]
			a := actions[rnd.Intn(len(actions))]
			require.NoError(t, s.Touch(c, Touch{Action: a, X: rnd.Float32() * 300, Y: rnd.Float32() * 300}))
		}
		require.NoError(t, s.ReleaseAll())

		downs, ups := countActions(rec.Pointers())
		require.Equal(t, downs, ups, "run %d", run)
	}
}

func TestBindingErrors(t *testing.T) {
	s, _ := newTestSynthesizer()
	require.NoError(t, s.BindMomentary("coin", 1101, 0.1, 0.9))

	tests := []struct {
		name string
		bind func() error
		want error
	}{
		{"below range", func() error { return s.BindMomentary("a", 5, 0, 0) }, ErrIDOutOfRange},
		{"above range", func() error { return s.BindHeld("b", 1200, 0, 0) }, ErrIDOutOfRange},
		{"analog above range", func() error { return s.BindAnalog("c", 1300, AxisBoth, Extent{}) }, ErrIDOutOfRange},
		{"duplicate id", func() error { return s.BindHeld("start", 1101, 0.5, 0.9) }, ErrIDInUse},
		{"duplicate control", func() error { return s.BindMomentary("coin", 1102, 0.5, 0.9) }, ErrControlBound},
		{"unknown control", func() error { return s.Touch("nope", Touch{Action: Down}) }, ErrUnknownControl},
		{"unknown unbind", func() error { return s.Unbind("nope") }, ErrUnknownControl},
		{"extent of button", func() error { return s.SetExtent("coin", Extent{}) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bind()
			require.Error(t, err)
			if tt.want != nil {
				require.Equal(t, tt.want, errors.Cause(err))
			}
		})
	}

	require.Equal(t, []string{"coin"}, s.Controls())
}

func TestDynamicKeepsIDUntilRelease(t *testing.T) {
	s, rec := newTestSynthesizer()
	index := 0
	require.NoError(t, s.BindDynamic("view", func() int {
		id := 1153 + index%4
		index = (index + 1) % 4
		return id
	}, 0.90, 0.50))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Touch("view", Touch{Action: Down}))
		require.NoError(t, s.Touch("view", Touch{Action: Up}))
	}

	var ids []int
	for _, ev := range rec.Pointers() {
		ids = append(ids, ev.ID)
	}
	require.Equal(t, []int{1153, 1153, 1154, 1154, 1155, 1155, 1156, 1156, 1153, 1153}, ids)
}

func TestDynamicRejectsIDHeldByAnotherControl(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindHeld("jump", 1150, 0.85, 0.6))
	require.NoError(t, s.BindDynamic("view", func() int { return 1150 }, 0.9, 0.5))
	require.NoError(t, s.BindDynamic("broken", func() int { return 42 }, 0.9, 0.5))

	require.NoError(t, s.Touch("jump", Touch{Action: Down}))
	err := s.Touch("view", Touch{Action: Down})
	require.Equal(t, ErrIDInUse, errors.Cause(err))

	err = s.Touch("broken", Touch{Action: Down})
	require.Equal(t, ErrIDOutOfRange, errors.Cause(err))

	_, active := s.Active("view")
	require.False(t, active)
	require.Len(t, rec.Pointers(), 1)
}

func TestFixedControlRejectsIDHeldByDynamicControl(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindDynamic("view", func() int { return 1150 }, 0.9, 0.5))
	require.NoError(t, s.BindHeld("jump", 1150, 0.85, 0.6))

	require.NoError(t, s.Touch("view", Touch{Action: Down}))
	err := s.Touch("jump", Touch{Action: Down})
	require.Equal(t, ErrIDInUse, errors.Cause(err))

	_, active := s.Active("jump")
	require.False(t, active)
	fb, _ := s.Feedback("jump")
	require.False(t, fb.Pressed)

	// free again once the dynamic press ends
	require.NoError(t, s.Touch("view", Touch{Action: Up}))
	require.NoError(t, s.Touch("jump", Touch{Action: Down}))
	require.NoError(t, s.Touch("jump", Touch{Action: Up}))

	downs, ups := countActions(rec.Pointers())
	require.Equal(t, 2, downs)
	require.Equal(t, 2, ups)
}

func TestWheelEncodesHorizontalDeflection(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindAnalog("wheel", 1107, AxisHorizontal, Extent{Width: 200, Height: 80}, WithRotation(75)))

	require.NoError(t, s.Touch("wheel", Touch{Action: Down, X: 150, Y: 0}))
	fb, _ := s.Feedback("wheel")
	require.InDelta(t, 37.5, fb.Rotation, 1e-4)

	require.NoError(t, s.Touch("wheel", Touch{Action: Move, X: 1000, Y: 1000}))
	require.NoError(t, s.Touch("wheel", Touch{Action: Move, X: -50, Y: 40}))
	require.NoError(t, s.Touch("wheel", Touch{Action: Up, X: -50, Y: 40}))

	evs := rec.Pointers()
	require.Len(t, evs, 4)

	want := []struct {
		action core.PointerAction
		x, y   float32
	}{
		{core.PointerDown, 0.75, 0.5},
		{core.PointerMove, 1, 0.5},
		{core.PointerMove, 0, 0.5},
		{core.PointerUp, 0.5, 0.5},
	}
	for i, w := range want {
		require.Equal(t, 1107, evs[i].ID)
		require.Equal(t, w.action, evs[i].Action)
		require.InDelta(t, w.x, evs[i].X, 1e-6, "event %d", i)
		require.InDelta(t, w.y, evs[i].Y, 1e-6, "event %d", i)
	}

	fb, _ = s.Feedback("wheel")
	require.Equal(t, Feedback{Opacity: RestOpacity}, fb)
}

func TestStickEncodesBothAxesAndSnapsBack(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindAnalog("stick", 1114, AxisBoth, Extent{Width: 100, Height: 100},
		WithRelativeOffset(0.32), WithPressedOpacity(0.9)))

	require.NoError(t, s.Touch("stick", Touch{Action: Down, X: 100, Y: 25}))
	fb, _ := s.Feedback("stick")
	require.InDelta(t, 0.9, fb.Opacity, 1e-6)
	require.InDelta(t, 32, fb.OffsetX, 1e-4)
	require.InDelta(t, -16, fb.OffsetY, 1e-4)

	require.NoError(t, s.Touch("stick", Touch{Action: Cancel}))

	evs := rec.Pointers()
	require.Len(t, evs, 2)
	require.InDelta(t, 1, evs[0].X, 1e-6)
	require.InDelta(t, 0.25, evs[0].Y, 1e-6)
	require.Equal(t, core.PointerUp, evs[1].Action)
	require.InDelta(t, 0.5, evs[1].X, 1e-6)
	require.InDelta(t, 0.5, evs[1].Y, 1e-6)
}

func TestShifterWithoutMovesOnlyUpdatesFeedback(t *testing.T) {
	var seen []Feedback
	s, rec := newTestSynthesizer(WithFeedbackListener(func(control string, fb Feedback) {
		require.Equal(t, "shifter", control)
		seen = append(seen, fb)
	}))
	require.NoError(t, s.BindAnalog("shifter", 1108, AxisBoth, Extent{Width: 60, Height: 60},
		WithoutMoves(), WithOffset(10)))

	require.NoError(t, s.Touch("shifter", Touch{Action: Down, X: 30, Y: 30}))
	require.NoError(t, s.Touch("shifter", Touch{Action: Move, X: 60, Y: 0}))
	require.NoError(t, s.Touch("shifter", Touch{Action: Up}))

	evs := rec.Pointers()
	require.Len(t, evs, 2)
	require.Equal(t, core.PointerDown, evs[0].Action)
	require.Equal(t, core.PointerUp, evs[1].Action)

	require.Len(t, seen, 3)
	require.InDelta(t, 10, seen[1].OffsetX, 1e-4)
	require.InDelta(t, -10, seen[1].OffsetY, 1e-4)
	require.False(t, seen[2].Pressed)
}

func TestDegenerateInputIsClamped(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name      string
		p, extent float32
		want      float32
	}{
		{"centre", 50, 100, 0},
		{"zero extent", 0.5, 0, 0},
		{"negative extent", 0.5, -20, 0},
		{"nan position", nan, 100, 0},
		{"nan extent", 0.5, nan, 0},
		{"far right", inf, 100, 1},
		{"far left", -inf, 100, -1},
		{"left edge", 0, 100, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, Deflection(tt.p, tt.extent), 1e-6)
		})
	}

	require.InDelta(t, 0.5, Encode(nan), 1e-6)
	require.InDelta(t, 1, Encode(3), 1e-6)
	require.InDelta(t, 0, Encode(-3), 1e-6)
}

func TestSetExtentChangesScale(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindAnalog("wheel", 1107, AxisHorizontal, Extent{}))
	require.NoError(t, s.SetExtent("wheel", Extent{Width: 400, Height: 100}))

	require.NoError(t, s.Touch("wheel", Touch{Action: Down, X: 100}))
	require.InDelta(t, 0.25, rec.Pointers()[0].X, 1e-6)
}

func TestReleaseAllContinuesPastSinkErrors(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindHeld("gas", 1103, 0.85, 0.35))
	require.NoError(t, s.BindHeld("brake", 1104, 0.85, 0.80))
	require.NoError(t, s.Touch("brake", Touch{Action: Down}))
	require.NoError(t, s.Touch("gas", Touch{Action: Down}))

	rec.SubmitErr = errors.New("core busy")
	require.Error(t, s.ReleaseAll())

	evs := rec.Pointers()
	require.Len(t, evs, 4)
	require.Equal(t, 1103, evs[2].ID)
	require.Equal(t, 1104, evs[3].ID)

	_, gas := s.Active("gas")
	_, brake := s.Active("brake")
	require.False(t, gas)
	require.False(t, brake)
}

func TestUnbindAndResetReleaseActivePointers(t *testing.T) {
	s, rec := newTestSynthesizer()
	require.NoError(t, s.BindHeld("gas", 1103, 0.85, 0.35))
	require.NoError(t, s.BindHeld("brake", 1104, 0.85, 0.80))
	require.NoError(t, s.Touch("gas", Touch{Action: Down}))
	require.NoError(t, s.Touch("brake", Touch{Action: Down}))

	require.NoError(t, s.Unbind("gas"))
	require.Equal(t, []string{"brake"}, s.Controls())
	require.NoError(t, s.BindHeld("gas2", 1103, 0.1, 0.1))

	require.NoError(t, s.Reset())
	require.Empty(t, s.Controls())

	downs, ups := countActions(rec.Pointers())
	require.Equal(t, 2, downs)
	require.Equal(t, 2, ups)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("cancel")
	require.True(t, ok)
	require.Equal(t, Cancel, a)

	_, ok = ParseAction("tap")
	require.False(t, ok)
}
