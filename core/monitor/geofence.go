// Package monitor holds the simulated campus monitors. Each one owns its
// counters and ticks on its own interval; they never coordinate.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
)

const (
	GeofenceActive  = "active"
	GeofenceWarning = "warning"
)

type Boundary struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"` // meters
}

type GeofenceSnapshot struct {
	Inside     int       `json:"students_inside"`
	Outside    int       `json:"students_outside"`
	Alerts     int       `json:"ml_alerts"`
	Status     string    `json:"status"`
	Boundary   Boundary  `json:"boundary"`
	LastUpdate time.Time `json:"last_update"`
}

// GeofenceTracker drifts the inside/outside head counts and occasionally raises an ML alert.
type GeofenceTracker struct {
	interval  time.Duration
	alertRate float64
	rand      core.Rand
	now       func() time.Time

	mu   sync.RWMutex
	snap GeofenceSnapshot

	obs observers
}

func NewGeofenceTracker(conf core.MonitorConfig, rnd core.Rand) *GeofenceTracker {
	return &GeofenceTracker{
		interval:  conf.GeofenceInterval,
		alertRate: conf.AlertRate,
		rand:      rnd,
		now:       time.Now,
		snap: GeofenceSnapshot{
			Inside:  conf.InitialInside,
			Outside: conf.InitialOutside,
			Alerts:  conf.InitialAlerts,
			Status:  GeofenceActive,
			Boundary: Boundary{
				Name:   conf.BoundaryName,
				Lat:    conf.BoundaryLat,
				Lng:    conf.BoundaryLng,
				Radius: conf.BoundaryRadius,
			},
			LastUpdate: time.Now(),
		},
	}
}

func (g *GeofenceTracker) Snapshot() GeofenceSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

// Step applies one update: a drift of -1, 0 or 1 students moving in,
// and a new ML alert with probability alertRate.
func (g *GeofenceTracker) Step() GeofenceSnapshot {
	change := g.rand.Intn(3) - 1
	alert := g.rand.Float64() < g.alertRate

	g.mu.Lock()
	g.snap.Inside = max(0, g.snap.Inside+change)
	g.snap.Outside = max(0, g.snap.Outside-change)
	if alert {
		g.snap.Alerts++
	}
	g.snap.LastUpdate = g.now()
	snap := g.snap
	g.mu.Unlock()

	g.obs.notify(snap)
	return snap
}

// Run steps the tracker on every interval until ctx is done.
func (g *GeofenceTracker) Run(ctx context.Context) error {
	return every(ctx, g.interval, func() { g.Step() })
}

func (g *GeofenceTracker) Subscribe(fn func(GeofenceSnapshot)) (unsubscribe func()) {
	return g.obs.add(func(v interface{}) { fn(v.(GeofenceSnapshot)) })
}

// every calls fn on every tick of interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return errors.Errorf("monitor: invalid interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
