package savestate

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
	"golang.org/x/image/draw"

	"github.com/sema/inputbridge/pkg/core"
)

// DefaultThumbnailWidth is the width screenshots are scaled down to
const DefaultThumbnailWidth = 640

// ErrNoGame is returned when no game name is known to build file names from
var ErrNoGame = errors.New("no game loaded")

// Slot describes one save state slot
type Slot struct {
	Index        int
	HasData      bool
	LastModified time.Time

	// ScreenshotPath is empty when the slot has no data or no thumbnail
	ScreenshotPath string
}

// Option configures a Store
type Option func(s *Store)

// WithThumbnailWidth overrides DefaultThumbnailWidth. Zero or less disables
// scaling.
func WithThumbnailWidth(w int) Option {
	return func(s *Store) {
		s.thumbWidth = w
	}
}

// Store locates save states and their thumbnails under <root>/Saves. The
// files of slot N are <game>.stN and <game>.stN.png.
type Store struct {
	dir        string
	name       func() string
	thumbWidth int
	log        log.Logger
}

// New returns a Store rooted at root. name is consulted every time a path is
// built, since the loaded game can change during a session.
func New(root string, name func() string, opts ...Option) *Store {
	s := &Store{
		dir:        filepath.Join(root, "Saves"),
		name:       name,
		thumbWidth: DefaultThumbnailWidth,
		log:        log.With("component", "savestate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GameName prefers the name reported by the core and falls back to
// fallback
func GameName(c core.Core, fallback string) func() string {
	return func() string {
		if n := strings.TrimSpace(c.LoadedGameName()); n != "" {
			return n
		}
		return strings.TrimSpace(fallback)
	}
}

// Dir returns the directory holding the save files
func (s *Store) Dir() string {
	return s.dir
}

// Name returns the game name the files are named after
func (s *Store) Name() string {
	if s.name == nil {
		return ""
	}
	return s.name()
}

func (s *Store) base(slot int) (string, error) {
	name := s.Name()
	if name == "" {
		return "", ErrNoGame
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s.st%d", filepath.Base(name), core.ClampSlot(slot))), nil
}

// StatePath returns the save state file of slot
func (s *Store) StatePath(slot int) (string, error) {
	return s.base(slot)
}

// ScreenshotPath returns the thumbnail file of slot
func (s *Store) ScreenshotPath(slot int) (string, error) {
	p, err := s.base(slot)
	if err != nil {
		return "", err
	}
	return p + ".png", nil
}

// Slots lists every slot. With no game loaded all slots are empty.
func (s *Store) Slots() []Slot {
	slots := make([]Slot, 0, core.MaxSlot-core.MinSlot+1)
	for i := core.MinSlot; i <= core.MaxSlot; i++ {
		slots = append(slots, s.slot(i))
	}
	return slots
}

func (s *Store) slot(i int) Slot {
	slot := Slot{Index: i}

	state, err := s.StatePath(i)
	if err != nil {
		return slot
	}
	info, err := os.Stat(state)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("stat %s: %v", state, err)
		}
		return slot
	}
	slot.HasData = true
	slot.LastModified = info.ModTime()

	shot, _ := s.ScreenshotPath(i)
	if _, err := os.Stat(shot); err == nil {
		slot.ScreenshotPath = shot
	}
	return slot
}

// WriteThumbnail scales img down and stores it as the screenshot of slot.
// The file is replaced atomically.
func (s *Store) WriteThumbnail(slot int, img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("no image")
	}
	path, err := s.ScreenshotPath(slot)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Wrap(err, "creating save directory")
	}

	tmp, err := os.CreateTemp(s.dir, ".thumb-*")
	if err != nil {
		return "", errors.Wrap(err, "creating thumbnail")
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, Scale(img, s.thumbWidth)); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "encoding thumbnail")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "writing thumbnail")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "storing thumbnail")
	}

	s.log.Debugf("wrote %s", path)
	return path, nil
}

// Scale shrinks img to width pixels keeping the aspect ratio. Images already
// narrower than width, and a width of zero or less, leave img untouched.
func Scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}

	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
