package capture

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
)

// Manager owns one Simulator per student and forwards their events.
type Manager struct {
	devices  DeviceProvider
	gate     GateReader
	recorder Recorder
	rand     core.Rand
	logger   core.Logger
	opts     Options

	mu     sync.Mutex
	sims   map[string]*Simulator
	closed bool

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func NewManager(devices DeviceProvider, gate GateReader, recorder Recorder, rnd core.Rand, logger core.Logger, opts Options) *Manager {
	return &Manager{
		devices:  devices,
		gate:     gate,
		recorder: recorder,
		rand:     rnd,
		logger:   logger,
		opts:     opts,
		sims:     make(map[string]*Simulator),
		subs:     make(map[int]func(Event)),
	}
}

// Get returns the simulator of subject, creating it on first use.
func (m *Manager) Get(subject string) (*Simulator, error) {
	subject = core.CleanString(subject)
	if subject == "" {
		return nil, errors.New("capture: empty subject")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if sim, ok := m.sims[subject]; ok {
		return sim, nil
	}

	sim := New(subject, Deps{
		Device:   m.devices.Device(subject),
		Gate:     m.gate,
		Recorder: m.recorder,
		Rand:     m.rand,
		Logger:   m.logger,
	}, m.opts)
	sim.Subscribe(m.publish)
	m.sims[subject] = sim
	return sim, nil
}

// Status returns the status of subject's simulator, or an idle status if it has none yet.
func (m *Manager) Status(subject string) Status {
	m.mu.Lock()
	sim, ok := m.sims[core.CleanString(subject)]
	m.mu.Unlock()
	if !ok {
		return Status{Subject: subject, State: StateIdle}
	}
	return sim.Status()
}

// Subjects returns the students that have a simulator, sorted.
func (m *Manager) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	subjects := make([]string, 0, len(m.sims))
	for subject := range m.sims {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Close closes every simulator, releasing their handles. Later calls to Get fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sims := make([]*Simulator, 0, len(m.sims))
	for _, sim := range m.sims {
		sims = append(sims, sim)
	}
	m.mu.Unlock()

	var firstErr error
	for _, sim := range sims {
		if err := sim.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "closing capture of %s", sim.Subject())
		}
	}
	return firstErr
}

// Subscribe registers fn for the events of every simulator.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) publish(ev Event) {
	m.subsMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
