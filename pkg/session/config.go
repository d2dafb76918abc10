package session

import (
	"time"

	"github.com/pkg/errors"

	"github.com/sema/inputbridge/pkg/chord"
	"github.com/sema/inputbridge/pkg/savestate"
)

// DefaultCaptureDelay gives the UI time to take down the save dialog and
// redraw the game frame before the thumbnail is read back
const DefaultCaptureDelay = 250 * time.Millisecond

// maxChordWindow bounds the chord window. Anything longer makes every single
// Start or Select press feel laggy.
const maxChordWindow = time.Second

// Config holds the per-session settings
type Config struct {
	// GameName is used for save file names when the core does not report
	// one
	GameName string `json:"game"`

	// UserDataRoot holds the Saves directory
	UserDataRoot string `json:"user-data-root"`

	// InputTypes are the input types the game declares, used to pick the
	// overlay controls
	InputTypes []string `json:"input-types"`

	ShifterEnabled bool `json:"shifter"`
	OverlayEnabled bool `json:"overlay"`

	ChordWindow    time.Duration `json:"chord-window"`
	CaptureDelay   time.Duration `json:"capture-delay"`
	ThumbnailWidth int           `json:"thumbnail-width"`
}

// DefaultConfig returns a Config with every tunable at its default
func DefaultConfig() Config {
	return Config{
		UserDataRoot:   ".",
		OverlayEnabled: true,
		ChordWindow:    chord.DefaultWindow,
		CaptureDelay:   DefaultCaptureDelay,
		ThumbnailWidth: savestate.DefaultThumbnailWidth,
	}
}

// Validate checks that the values are usable
func (c Config) Validate() error {
	if c.ChordWindow <= 0 || c.ChordWindow > maxChordWindow {
		return errors.Errorf("chord window %s outside (0, %s]", c.ChordWindow, maxChordWindow)
	}
	if c.CaptureDelay < 0 {
		return errors.Errorf("negative capture delay %s", c.CaptureDelay)
	}
	if c.ThumbnailWidth < 0 {
		return errors.Errorf("negative thumbnail width %d", c.ThumbnailWidth)
	}
	if c.UserDataRoot == "" {
		return errors.New("user data root must be set")
	}
	return nil
}
