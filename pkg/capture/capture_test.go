package capture

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFuncCallsBackSynchronously(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 496, 384))

	var got image.Image
	calls := 0
	Func(func() (image.Image, error) {
		return frame, nil
	}).Capture(func(img image.Image, err error) {
		require.NoError(t, err)
		got = img
		calls++
	})

	require.Equal(t, 1, calls)
	require.Equal(t, frame, got)
}

func TestFuncPassesErrors(t *testing.T) {
	var got error
	Func(func() (image.Image, error) {
		return nil, ErrNoDisplay
	}).Capture(func(img image.Image, err error) {
		require.Nil(t, img)
		got = err
	})

	require.Equal(t, ErrNoDisplay, errors.Cause(got))
}
