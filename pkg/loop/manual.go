package loop

import (
	"sync"
	"time"
)

type manualTimer struct {
	due time.Duration
	seq int
	fn  func()
}

// Manual is a deterministic Scheduler driven by a virtual clock. Timers fire
// only when the clock is advanced, in due order, ties broken by scheduling
// order. Posted tasks run before the clock moves.
//
// Tests and script replay use it to reproduce exact timings.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []manualTimer
	posted []func()
}

// NewManual returns a Manual scheduler with the clock at zero
func NewManual() *Manual {
	return &Manual{}
}

// Now implements the Scheduler interface
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc implements the Scheduler interface
func (m *Manual) AfterFunc(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.timers = append(m.timers, manualTimer{due: m.now + d, seq: m.seq, fn: fn})
}

// Post implements the Scheduler interface
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, fn)
}

// Scheduled returns the number of timers that have not fired yet
func (m *Manual) Scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// RunPending runs posted tasks, including any posted while running, until
// none remain
func (m *Manual) RunPending() {
	for {
		m.mu.Lock()
		if len(m.posted) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.posted[0]
		m.posted = m.posted[1:]
		m.mu.Unlock()

		fn()
	}
}

// Advance moves the clock forward by d, firing every timer that falls due
func (m *Manual) Advance(d time.Duration) {
	m.AdvanceTo(m.Now() + d)
}

// AdvanceTo moves the clock to t, firing every timer due at or before t. The
// clock never moves backwards.
func (m *Manual) AdvanceTo(t time.Duration) {
	m.RunPending()

	for {
		fn, ok := m.popDue(t)
		if !ok {
			break
		}
		fn()
		m.RunPending()
	}

	m.mu.Lock()
	if t > m.now {
		m.now = t
	}
	m.mu.Unlock()
}

// popDue removes the earliest timer due at or before t and moves the clock to
// its due time
func (m *Manual) popDue(t time.Duration) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := -1
	for i, tm := range m.timers {
		if tm.due > t {
			continue
		}
		if next == -1 || tm.due < m.timers[next].due ||
			(tm.due == m.timers[next].due && tm.seq < m.timers[next].seq) {
			next = i
		}
	}
	if next == -1 {
		return nil, false
	}

	tm := m.timers[next]
	m.timers = append(m.timers[:next], m.timers[next+1:]...)
	if tm.due > m.now {
		m.now = tm.due
	}
	return tm.fn, true
}
