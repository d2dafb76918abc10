package session

import (
	"github.com/sema/inputbridge/pkg/chord"
	"github.com/sema/inputbridge/pkg/dispatch"
	"github.com/sema/inputbridge/pkg/pause"
)

// ChordStatus is the state of the chord detector
type ChordStatus struct {
	Start     string `json:"start"`
	Select    string `json:"select"`
	Triggered bool   `json:"triggered"`
	Count     int    `json:"count"`
}

// Status is a snapshot of the session
type Status struct {
	Game           string         `json:"game"`
	Paused         bool           `json:"paused"`
	Reasons        []string       `json:"reasons"`
	UserPaused     bool           `json:"user-paused"`
	QuickMenu      bool           `json:"quick-menu"`
	SaveDialog     bool           `json:"save-dialog"`
	ExitDialog     bool           `json:"exit-dialog"`
	Capturing      bool           `json:"capturing"`
	OverlayEnabled bool           `json:"overlay"`
	Controls       []string       `json:"controls"`
	Slot           int            `json:"slot"`
	Chord          ChordStatus    `json:"chord"`
	Dispatch       dispatch.Stats `json:"dispatch"`
	Exited         bool           `json:"exited"`
	Closed         bool           `json:"closed"`
}

// Status returns a snapshot of the session
func (s *Session) Status() Status {
	reasons := []string{}
	for _, r := range s.pause.Reasons() {
		reasons = append(reasons, r.String())
	}

	return Status{
		Game:           s.store.Name(),
		Paused:         s.pause.Paused(),
		Reasons:        reasons,
		UserPaused:     s.pause.Active(pause.User),
		QuickMenu:      s.pause.Active(pause.QuickMenu),
		SaveDialog:     s.pause.Active(pause.SaveDialog),
		ExitDialog:     s.pause.Active(pause.ExitDialog),
		Capturing:      s.pause.Active(pause.Capture),
		OverlayEnabled: s.overlayEnabled,
		Controls:       s.pointers.Controls(),
		Slot:           s.slot,
		Chord: ChordStatus{
			Start:     s.chord.Phase(chord.Start).String(),
			Select:    s.chord.Phase(chord.Select).String(),
			Triggered: s.chord.Triggered(),
			Count:     s.chord.Chords(),
		},
		Dispatch: s.dispatcher.Stats(),
		Exited:   s.exited,
		Closed:   s.closed,
	}
}
