package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/presence/core"
)

type BehaviorSnapshot struct {
	Suspicious bool      `json:"suspicious"`
	Checks     int       `json:"checks"`
	Anomalies  int       `json:"anomalies"`
	LastCheck  time.Time `json:"last_check"`
}

// BehaviorMonitor flags suspicious behavior with probability anomalyRate on every check.
type BehaviorMonitor struct {
	interval    time.Duration
	anomalyRate float64
	rand        core.Rand
	now         func() time.Time

	mu   sync.RWMutex
	snap BehaviorSnapshot

	obs observers
}

func NewBehaviorMonitor(conf core.MonitorConfig, rnd core.Rand) *BehaviorMonitor {
	return &BehaviorMonitor{
		interval:    conf.BehaviorInterval,
		anomalyRate: conf.AnomalyRate,
		rand:        rnd,
		now:         time.Now,
	}
}

func (b *BehaviorMonitor) Snapshot() BehaviorSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

func (b *BehaviorMonitor) Step() BehaviorSnapshot {
	suspicious := b.rand.Float64() < b.anomalyRate

	b.mu.Lock()
	b.snap.Suspicious = suspicious
	b.snap.Checks++
	if suspicious {
		b.snap.Anomalies++
	}
	b.snap.LastCheck = b.now()
	snap := b.snap
	b.mu.Unlock()

	b.obs.notify(snap)
	return snap
}

func (b *BehaviorMonitor) Run(ctx context.Context) error {
	return every(ctx, b.interval, func() { b.Step() })
}

func (b *BehaviorMonitor) Subscribe(fn func(BehaviorSnapshot)) (unsubscribe func()) {
	return b.obs.add(func(v interface{}) { fn(v.(BehaviorSnapshot)) })
}
