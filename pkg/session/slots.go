package session

import (
	"image"

	"github.com/pkg/errors"

	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/pause"
	"github.com/sema/inputbridge/pkg/savestate"
)

// SaveToSlot asks the core to save into slot, clamped to the valid range,
// and dismisses the save dialog. Once the core accepts, a thumbnail of the
// current frame is captured after the configured delay. It returns the slot
// actually used.
func (s *Session) SaveToSlot(slot int) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	slot = core.ClampSlot(slot)
	s.slot = slot

	accepted := s.core.RequestSaveState(slot)
	if accepted {
		// taken before the dialog goes away so the game stays paused
		s.captureThumbnail(slot)
	}
	s.CloseSaveDialog()

	if !accepted {
		return slot, errors.Errorf("core rejected save to slot %d", slot)
	}
	s.log.Infof("saved state to slot %d", slot)
	return slot, nil
}

// LoadFromSlot asks the core to restore slot, clamped to the valid range,
// and dismisses the save dialog
func (s *Session) LoadFromSlot(slot int) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	slot = core.ClampSlot(slot)
	s.slot = slot

	accepted := s.core.RequestLoadState(slot)
	s.CloseSaveDialog()
	if !accepted {
		return slot, errors.Errorf("core rejected load from slot %d", slot)
	}
	s.log.Infof("loaded state from slot %d", slot)
	return slot, nil
}

// Slot returns the slot last saved to or loaded from
func (s *Session) Slot() int {
	return s.slot
}

// Slots lists the save slots of the loaded game
func (s *Session) Slots() []savestate.Slot {
	return s.store.Slots()
}

// Store returns the save file locator of the session
func (s *Session) Store() *savestate.Store {
	return s.store
}

// captureThumbnail pauses the game while a frame is read back for slot. The
// capture pause reason is held from now until the capture completes, however
// it completes.
func (s *Session) captureThumbnail(slot int) {
	if s.capturer == nil {
		return
	}
	if _, err := s.store.ScreenshotPath(slot); err != nil {
		s.log.Warnf("no thumbnail for slot %d: %v", slot, err)
		return
	}

	// overlapping captures share one hold on the pause reason
	if s.captures == 0 {
		s.releaseCapture = s.pause.Acquire(pause.Capture)
		s.chord.Cancel()
	}
	s.captures++

	s.sched.AfterFunc(s.cfg.CaptureDelay, func() {
		s.runCapture(slot)
	})
}

func (s *Session) runCapture(slot int) {
	completed := false
	finish := func(img image.Image, err error) {
		if completed {
			return
		}
		completed = true
		defer s.endCapture()

		if err != nil {
			s.log.Warnf("capturing thumbnail for slot %d: %v", slot, err)
			return
		}
		path, err := s.store.WriteThumbnail(slot, img)
		if err != nil {
			s.log.Warnf("thumbnail for slot %d: %v", slot, err)
			return
		}
		s.log.Debugf("thumbnail for slot %d written to %s", slot, path)
	}

	defer func() {
		if r := recover(); r != nil {
			finish(nil, errors.Errorf("capture panicked: %v", r))
		}
	}()
	s.capturer.Capture(finish)
}

func (s *Session) endCapture() {
	s.captures--
	if s.captures > 0 {
		return
	}
	if s.releaseCapture != nil {
		s.releaseCapture()
		s.releaseCapture = nil
	}
	s.chord.Cancel()
}
