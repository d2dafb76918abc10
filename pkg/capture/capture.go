package capture

import (
	"image"

	"github.com/kbinani/screenshot"
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/loop"
)

// ErrNoDisplay is returned when there is nothing to read pixels from
var ErrNoDisplay = errors.New("no active display")

// Callback receives the result of a capture. Exactly one of img and err is
// set.
type Callback func(img image.Image, err error)

// Capturer reads back the current game frame. Capture may return before the
// frame is read; done is called exactly once, on the loop goroutine.
type Capturer interface {
	Capture(done Callback)
}

// Func adapts a synchronous grab function to the Capturer interface. done is
// called before Capture returns.
type Func func() (image.Image, error)

// Capture implements the Capturer interface
func (f Func) Capture(done Callback) {
	img, err := f()
	done(img, err)
}

// Display captures a physical display through the platform screenshot API
type Display struct {
	sched loop.Scheduler
	index int
	log   log.Logger
}

// NewDisplay returns a Display capturing display index and reporting back on
// sched
func NewDisplay(sched loop.Scheduler, index int) *Display {
	return &Display{
		sched: sched,
		index: index,
		log:   log.With("component", "capture"),
	}
}

// Capture implements the Capturer interface. The read-back runs on its own
// goroutine.
func (d *Display) Capture(done Callback) {
	go func() {
		img, err := d.grab()
		if err != nil {
			d.log.Warnf("display %d: %v", d.index, err)
		}
		d.sched.Post(func() {
			done(img, err)
		})
	}()
}

func (d *Display) grab() (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, errors.Errorf("screenshot panicked: %v", r)
		}
	}()

	total := screenshot.NumActiveDisplays()
	if total == 0 {
		return nil, ErrNoDisplay
	}
	if d.index < 0 || d.index >= total {
		return nil, errors.Errorf("invalid display index %d (max %d)", d.index, total-1)
	}

	bounds := screenshot.GetDisplayBounds(d.index)
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.Errorf("display %d has zero bounds", d.index)
	}

	rgba, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, errors.Wrapf(err, "capturing display %d", d.index)
	}
	return rgba, nil
}
