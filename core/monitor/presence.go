package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
)

// Recorder receives the geofence attendance records.
type Recorder interface {
	Append(ctx context.Context, rec attendance.Record) error
}

type PresenceSnapshot struct {
	Subject    string `json:"subject"`
	InGeofence bool   `json:"in_geofence"`
	Started    bool   `json:"attendance_started"`
	Minutes    int    `json:"minutes_in_school"`
	TimeInside string `json:"time_in_school"`
}

type presence struct {
	inside  bool
	started bool
	minutes int
}

// PresenceTracker counts the minutes each student spends on campus once
// their location has been checked.
type PresenceTracker struct {
	interval time.Duration
	recorder Recorder
	logger   core.Logger
	now      func() time.Time

	mu       sync.RWMutex
	students map[string]*presence

	obs observers
}

// NewPresenceTracker returns a tracker that appends a geofence record to recorder,
// if not nil, when a student's attendance starts.
func NewPresenceTracker(conf core.MonitorConfig, recorder Recorder, logger core.Logger) *PresenceTracker {
	return &PresenceTracker{
		interval: conf.PresenceInterval,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		students: make(map[string]*presence),
	}
}

func snapshot(subject string, p *presence) PresenceSnapshot {
	snap := PresenceSnapshot{Subject: subject}
	if p != nil {
		snap.InGeofence = p.inside
		snap.Started = p.started
		snap.Minutes = p.minutes
	}
	snap.TimeInside = fmt.Sprintf("%dh %dm", snap.Minutes/60, snap.Minutes%60)
	return snap
}

func (t *PresenceTracker) Snapshot(subject string) PresenceSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshot(subject, t.students[subject])
}

// CheckLocation marks the student as inside the geofence. The first check
// starts their attendance and records them present.
func (t *PresenceTracker) CheckLocation(ctx context.Context, subject string) (PresenceSnapshot, error) {
	subject = core.CleanString(subject)
	if subject == "" {
		return PresenceSnapshot{}, errors.New("monitor: empty subject")
	}

	t.mu.Lock()
	p, ok := t.students[subject]
	if !ok {
		p = &presence{}
		t.students[subject] = p
	}
	p.inside = true
	starting := !p.started
	p.started = true
	snap := snapshot(subject, p)
	t.mu.Unlock()

	if starting && t.recorder != nil {
		rec := attendance.NewRecord(subject, attendance.StatusPresent, attendance.MethodGeofence, t.now())
		if err := t.recorder.Append(ctx, rec); err != nil {
			t.logger.Error(fmt.Sprintf("monitor: recording geofence attendance of %s: %v", subject, err), err)
		}
	}
	t.obs.notify(snap)
	return snap, nil
}

// Leave marks the student as outside the geofence; their timer pauses.
func (t *PresenceTracker) Leave(subject string) PresenceSnapshot {
	subject = core.CleanString(subject)
	t.mu.Lock()
	p, ok := t.students[subject]
	if ok {
		p.inside = false
	}
	snap := snapshot(subject, p)
	t.mu.Unlock()

	if ok {
		t.obs.notify(snap)
	}
	return snap
}

// Step adds a minute to every started student inside the geofence.
func (t *PresenceTracker) Step() {
	t.mu.Lock()
	var snaps []PresenceSnapshot
	for subject, p := range t.students {
		if p.started && p.inside {
			p.minutes++
			snaps = append(snaps, snapshot(subject, p))
		}
	}
	t.mu.Unlock()

	for _, snap := range snaps {
		t.obs.notify(snap)
	}
}

func (t *PresenceTracker) Run(ctx context.Context) error {
	return every(ctx, t.interval, t.Step)
}

func (t *PresenceTracker) Subscribe(fn func(PresenceSnapshot)) (unsubscribe func()) {
	return t.obs.add(func(v interface{}) { fn(v.(PresenceSnapshot)) })
}
