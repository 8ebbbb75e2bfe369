// Package gate holds the self-attendance switch: a single boolean written by
// the teacher and read by every student.
package gate

import (
	"sync"
	"time"
)

// State is what observers of the gate receive.
type State struct {
	Enabled       bool       `json:"enabled"`
	AutoDisableAt *time.Time `json:"auto_disable_at"`
}

// Gate is an observable boolean cell with an optional auto-disable countdown.
// Reads see writes immediately. The zero value is not usable; see New.
// Subscribers run in the order of the changes and must not write to the gate.
type Gate struct {
	opMu     sync.Mutex // serializes writes and the delivery of their notifications
	mu       sync.RWMutex
	enabled  bool
	deadline time.Time
	timer    *time.Timer
	gen      uint64 // bumped whenever a countdown is attached or cancelled

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int

	now func() time.Time
}

func New() *Gate {
	return &Gate{
		subs: make(map[int]func(State)),
		now:  time.Now,
	}
}

func (g *Gate) IsEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

// State returns the current value and countdown deadline.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state()
}

func (g *Gate) state() State {
	st := State{Enabled: g.enabled}
	if !g.deadline.IsZero() {
		d := g.deadline
		st.AutoDisableAt = &d
	}
	return st
}

// Remaining returns the time left before the gate disables itself, or 0 without a countdown.
func (g *Gate) Remaining() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.deadline.IsZero() {
		return 0
	}
	if rem := g.deadline.Sub(g.now()); rem > 0 {
		return rem
	}
	return 0
}

// SetEnabled sets the gate and cancels any pending countdown.
func (g *Gate) SetEnabled(enabled bool) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	hadCountdown := g.cancelCountdown()
	changed := g.enabled != enabled
	g.enabled = enabled
	st := g.state()
	g.mu.Unlock()

	if changed || hadCountdown {
		g.notify(st)
	}
}

// EnableFor enables the gate and disables it again once d has elapsed,
// unless SetEnabled or EnableFor is called first. d <= 0 enables without a countdown.
func (g *Gate) EnableFor(d time.Duration) {
	if d <= 0 {
		g.SetEnabled(true)
		return
	}
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	g.cancelCountdown()
	g.enabled = true
	g.deadline = g.now().Add(d)
	gen := g.gen
	g.timer = time.AfterFunc(d, func() { g.expire(gen) })
	st := g.state()
	g.mu.Unlock()

	g.notify(st)
}

// expire disables the gate if the countdown that scheduled it is still the current one.
func (g *Gate) expire(gen uint64) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	if gen != g.gen || !g.enabled {
		g.mu.Unlock()
		return
	}
	g.gen++
	g.timer = nil
	g.deadline = time.Time{}
	g.enabled = false
	st := g.state()
	g.mu.Unlock()

	g.notify(st)
}

// cancelCountdown must be called with mu held.
func (g *Gate) cancelCountdown() bool {
	g.gen++
	if g.timer == nil {
		return false
	}
	g.timer.Stop()
	g.timer = nil
	g.deadline = time.Time{}
	return true
}

// Subscribe registers fn to be called after every change. Call the returned func to unsubscribe.
func (g *Gate) Subscribe(fn func(State)) (unsubscribe func()) {
	g.subsMu.Lock()
	defer g.subsMu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	return func() {
		g.subsMu.Lock()
		defer g.subsMu.Unlock()
		delete(g.subs, id)
	}
}

func (g *Gate) notify(st State) {
	g.subsMu.Lock()
	fns := make([]func(State), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.subsMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
