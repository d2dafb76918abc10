package dispatch

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/sema/inputbridge/pkg/core"
)

type panickingCore struct {
	*core.Recorder
}

func (p panickingCore) SubmitKeyEvent(ev core.KeyEvent) error {
	panic("native crash")
}

func TestDispatcherPreservesOrder(t *testing.T) {
	rec := core.NewRecorder()
	d := New(rec)

	require.NoError(t, d.Pointer(core.PointerEvent{ID: 1101, Action: core.PointerDown, X: 0.1, Y: 0.9, Pressure: 1}))
	require.NoError(t, d.Key(core.KeyEvent{Code: core.KeyButtonStart, Action: core.KeyDown}))
	require.NoError(t, d.Pointer(core.PointerEvent{ID: 1101, Action: core.PointerUp, X: 0.1, Y: 0.9, Pressure: 1}))

	calls := rec.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, core.CallPointer, calls[0].Kind)
	require.Equal(t, core.CallKey, calls[1].Kind)
	require.Equal(t, core.PointerUp, calls[2].Pointer.Action)
	require.Equal(t, Stats{Pointers: 2, Keys: 1}, d.Stats())
}

func TestDispatcherReportsCoreErrors(t *testing.T) {
	rec := core.NewRecorder()
	rec.SubmitErr = errors.New("queue full")
	d := New(rec)

	err := d.Key(core.KeyEvent{Code: core.KeyButtonSelect, Action: core.KeyUp})
	require.Error(t, err)
	require.Equal(t, "queue full", errors.Cause(err).Error())
	require.Equal(t, 1, d.Stats().Failures)
}

func TestDispatcherRecoversFromCorePanic(t *testing.T) {
	d := New(panickingCore{core.NewRecorder()})

	err := d.Key(core.KeyEvent{Code: core.KeyButtonStart, Action: core.KeyDown})
	require.Error(t, err)
	require.Contains(t, err.Error(), "native crash")
	require.Equal(t, Stats{Keys: 1, Failures: 1}, d.Stats())
}
