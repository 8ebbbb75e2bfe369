// Package session derives the live session state from wall-clock time and a timetable.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/presence/core/timetable"
)

const DefaultTickInterval = time.Second

// Tick is one sample of the clock.
type Tick struct {
	Time  time.Time              `json:"time"`
	State timetable.SessionState `json:"state"`
}

// Minute returns the minute of day the tick was resolved at.
func (t Tick) Minute() int { return timetable.MinuteOfDay(t.Time) }

// PeriodChange is published whenever the active period index changes between samples.
type PeriodChange struct {
	Tick
	Previous *int `json:"previous_period_index"`
}

type Clock struct {
	tt       timetable.Timetable
	interval time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	last    Tick
	sampled bool
	paused  bool

	subsMu     sync.Mutex
	nextSub    int
	tickSubs   map[int]func(Tick)
	periodSubs map[int]func(PeriodChange)
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the wall-clock source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

func NewClock(tt timetable.Timetable, interval time.Duration, opts ...Option) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	c := &Clock{
		tt:         tt,
		interval:   interval,
		now:        time.Now,
		tickSubs:   make(map[int]func(Tick)),
		periodSubs: make(map[int]func(PeriodChange)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Clock) Timetable() timetable.Timetable { return c.tt }

// Run samples the clock immediately and then on every interval until ctx is done.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Sample()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sample()
		}
	}
}

// Sample reads the wall clock, re-resolves the session state and publishes it.
// Ticks are not published while the clock is paused; period changes always are.
func (c *Clock) Sample() Tick {
	now := c.now()
	tick := Tick{Time: now, State: c.tt.Resolve(timetable.MinuteOfDay(now))}

	c.mu.Lock()
	prev, hadPrev := c.last, c.sampled
	c.last, c.sampled = tick, true
	paused := c.paused
	c.mu.Unlock()

	if !paused {
		c.publishTick(tick)
	}
	if hadPrev && !sameIndex(prev.State, tick.State) {
		c.publishPeriod(PeriodChange{Tick: tick, Previous: prev.State.ActivePeriodIndex})
	}
	return tick
}

func sameIndex(a, b timetable.SessionState) bool {
	ai, aok := a.Index()
	bi, bok := b.Index()
	return aok == bok && ai == bi
}

// Snapshot returns the last sample, resolving the current time if the clock has never ticked.
func (c *Clock) Snapshot() Tick {
	c.mu.RLock()
	last, sampled := c.last, c.sampled
	c.mu.RUnlock()
	if sampled {
		return last
	}
	now := c.now()
	return Tick{Time: now, State: c.tt.Resolve(timetable.MinuteOfDay(now))}
}

// At resolves an arbitrary minute of the day without touching the clock.
func (c *Clock) At(minute int) (timetable.SessionState, error) {
	return c.tt.At(minute)
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *Clock) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Subscribe registers fn for every published tick.
func (c *Clock) Subscribe(fn func(Tick)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.tickSubs[id] = fn
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.tickSubs, id)
	}
}

// OnPeriodChange registers fn for changes of the active period.
func (c *Clock) OnPeriodChange(fn func(PeriodChange)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.periodSubs[id] = fn
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.periodSubs, id)
	}
}

func (c *Clock) publishTick(tick Tick) {
	c.subsMu.Lock()
	fns := make([]func(Tick), 0, len(c.tickSubs))
	for _, fn := range c.tickSubs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(tick)
	}
}

func (c *Clock) publishPeriod(change PeriodChange) {
	c.subsMu.Lock()
	fns := make([]func(PeriodChange), 0, len(c.periodSubs))
	for _, fn := range c.periodSubs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
