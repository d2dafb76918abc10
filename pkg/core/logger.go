package core

import (
	"github.com/prometheus/common/log"
)

// Logger is a Core that only logs what it receives. The serve command uses it
// when no native core is linked into the process.
type Logger struct {
	log      log.Logger
	gameName string
}

// NewLogger returns a logging core reporting gameName as the loaded game
func NewLogger(gameName string) *Logger {
	return &Logger{
		log:      log.With("component", "core"),
		gameName: gameName,
	}
}

// SubmitPointerEvent implements the Core interface
func (l *Logger) SubmitPointerEvent(id int, action PointerAction, x, y, pressure float32) error {
	l.log.Infof("pointer %d %s x=%.3f y=%.3f pressure=%.2f", id, action, x, y, pressure)
	return nil
}

// SubmitKeyEvent implements the Core interface
func (l *Logger) SubmitKeyEvent(ev KeyEvent) error {
	l.log.Infof("%s source=%s time=%s", ev, ev.Source, ev.Time)
	return nil
}

// SetPaused implements the Core interface
func (l *Logger) SetPaused(paused bool) bool {
	l.log.Infof("paused=%t", paused)
	return true
}

// RequestSaveState implements the Core interface
func (l *Logger) RequestSaveState(slot int) bool {
	l.log.Infof("save state requested for slot %d", slot)
	return true
}

// RequestLoadState implements the Core interface
func (l *Logger) RequestLoadState(slot int) bool {
	l.log.Infof("load state requested for slot %d", slot)
	return true
}

// LoadedGameName implements the Core interface
func (l *Logger) LoadedGameName() string {
	return l.gameName
}
