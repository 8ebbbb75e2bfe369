// Package capture simulates the self-attendance facial-recognition flow of one student.
package capture

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
)

// States
const (
	StateIdle         State = "idle"
	StateCameraActive State = "camera-active"
	StateRecognizing  State = "recognizing"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

var (
	// Stages run in order during recognition.
	Stages = []Stage{
		{Name: "capture", Label: "Capturing image...", Progress: 20},
		{Name: "detect", Label: "Detecting face...", Progress: 40},
		{Name: "extract", Label: "Extracting features...", Progress: 60},
		{Name: "match", Label: "Matching with database...", Progress: 80},
		{Name: "verify", Label: "Verifying identity...", Progress: 100},
	}

	// errors
	ErrGateClosed        = errors.New("self-attendance is currently disabled")
	ErrInvalidTransition = errors.New("invalid capture transition")
	ErrClosed            = errors.New("capture session is closed")
	ErrAborted           = errors.New("recognition aborted")
)

type State string

type Stage struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Progress int    `json:"progress"`
}

type Options struct {
	StageDelay   time.Duration
	ReleaseDelay time.Duration
	SuccessRate  float64
	Constraints  Constraints
}

func DefaultOptions() Options {
	return Options{
		StageDelay:   800 * time.Millisecond,
		ReleaseDelay: 3 * time.Second,
		SuccessRate:  0.9,
		Constraints:  DefaultConstraints,
	}
}

func OptionsFromConfig(conf *core.Config) Options {
	opts := DefaultOptions()
	opts.StageDelay = conf.Capture.StageDelay
	opts.ReleaseDelay = conf.Capture.ReleaseDelay
	opts.SuccessRate = conf.Capture.SuccessRate
	if conf.Capture.IdealWidth > 0 && conf.Capture.IdealHeight > 0 {
		opts.Constraints.IdealWidth = conf.Capture.IdealWidth
		opts.Constraints.IdealHeight = conf.Capture.IdealHeight
	}
	if conf.Capture.FacingMode != "" {
		opts.Constraints.FacingMode = conf.Capture.FacingMode
	}
	return opts
}

type (
	// GateReader is the read side of the self-attendance gate.
	GateReader interface {
		IsEnabled() bool
	}

	// Recorder receives the records of successful captures.
	Recorder interface {
		Append(ctx context.Context, rec attendance.Record) error
	}

	Deps struct {
		Device   Device
		Gate     GateReader
		Recorder Recorder
		Rand     core.Rand
		Logger   core.Logger
	}
)

// Status is a snapshot of a simulator.
type Status struct {
	SessionID    uuid.UUID `json:"session_id"`
	Subject      string    `json:"subject"`
	State        State     `json:"state"`
	CameraActive bool      `json:"camera_active"`
	Progress     int       `json:"progress"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	FrameWidth   int       `json:"frame_width,omitempty"`
	FrameHeight  int       `json:"frame_height,omitempty"`
}

// Event is published after every transition and progress update.
// Record is set on the event that reports a success.
type Event struct {
	Status Status             `json:"status"`
	Record *attendance.Record `json:"record,omitempty"`
}

// Simulator is the capture state machine of one student. It owns at most one
// capture handle at a time and releases it on Stop, Close and before every Start.
//
// Subscribers are called in transition order and must not call back into the simulator.
type Simulator struct {
	id      uuid.UUID
	subject string
	deps    Deps
	opts    Options
	now     func() time.Time

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc

	opMu sync.Mutex // serializes transitions and the delivery of their events

	mu          sync.RWMutex
	state       State
	progress    int
	stage       string
	lastErr     string
	handle      Handle
	still       *image.NRGBA
	attempt     uint64
	cancelChain context.CancelFunc
	release     *time.Timer
	releaseGen  uint64
	closed      bool

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func New(subject string, deps Deps, opts Options) *Simulator {
	if deps.Rand == nil {
		deps.Rand = core.NewRand(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		id:      uuid.New(),
		subject: subject,
		deps:    deps,
		opts:    opts,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		subs:    make(map[int]func(Event)),
	}
}

func (s *Simulator) ID() uuid.UUID   { return s.id }
func (s *Simulator) Subject() string { return s.subject }

func (s *Simulator) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Simulator) statusLocked() Status {
	st := Status{
		SessionID:    s.id,
		Subject:      s.subject,
		State:        s.state,
		CameraActive: s.handle != nil,
		Progress:     s.progress,
		Stage:        s.stage,
		Error:        s.lastErr,
	}
	if s.still != nil {
		b := s.still.Bounds()
		st.FrameWidth, st.FrameHeight = b.Dx(), b.Dy()
	}
	return st
}

// Still returns the frame captured during the last recognition, if any.
func (s *Simulator) Still() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.still == nil {
		return nil, false
	}
	return s.still, true
}

// Start acquires a capture handle and moves to camera-active.
// A handle already held is released first, abandoning any recognition in flight.
// If the device cannot be acquired the simulator stays idle and an *UnavailableError is returned.
func (s *Simulator) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.teardownLocked()
	s.mu.Unlock()

	h, err := s.deps.Device.Acquire(ctx, s.opts.Constraints)

	s.mu.Lock()
	if err != nil {
		s.lastErr = UnavailableMessage
		ev := Event{Status: s.statusLocked()}
		s.mu.Unlock()
		s.emit(ev)
		s.deps.Logger.Warn(fmt.Sprintf("capture(%s): acquiring camera: %v", s.subject, err))
		return &UnavailableError{Err: err}
	}
	s.handle = h
	s.state = StateCameraActive
	s.lastErr = ""
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Stop releases the capture handle from any state and returns to idle.
// Stopping an idle simulator is a no-op.
func (s *Simulator) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	changed := s.teardownLocked()
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	if changed {
		s.emit(ev)
	}
	return nil
}

// Reset starts a new attempt after a finished one, keeping the camera on.
func (s *Simulator) Reset() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateSucceeded && s.state != StateFailed {
		st := s.state
		s.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "cannot reset from %s", st)
	}
	s.cancelReleaseLocked()
	s.state = StateCameraActive
	s.progress = 0
	s.stage = ""
	s.lastErr = ""
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Close stops the simulator for good; every later call fails with ErrClosed.
func (s *Simulator) Close() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	changed := s.teardownLocked()
	s.closed = true
	s.cancel()
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	if changed {
		s.emit(ev)
	}
	return nil
}

// Recognize runs a whole recognition attempt and returns its outcome.
// Cancelling ctx abandons the attempt and returns to camera-active.
// A failed recognition is a terminal state, not an error.
func (s *Simulator) Recognize(ctx context.Context) (Status, error) {
	chain, attempt, err := s.begin()
	if err != nil {
		return s.Status(), err
	}
	err = s.run(ctx, chain, attempt)
	return s.Status(), err
}

// RecognizeAsync starts a recognition attempt in the background.
// Its progress and outcome are delivered to subscribers.
func (s *Simulator) RecognizeAsync() error {
	chain, attempt, err := s.begin()
	if err != nil {
		return err
	}
	go func() {
		if err := s.run(context.Background(), chain, attempt); err != nil && !errors.Is(err, ErrAborted) {
			s.deps.Logger.Error(fmt.Sprintf("capture(%s): recognition: %v", s.subject, err), err)
		}
	}()
	return nil
}

// begin moves camera-active to recognizing if the gate is open.
func (s *Simulator) begin() (context.Context, uint64, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, 0, ErrClosed
	}
	if !s.deps.Gate.IsEnabled() {
		s.mu.Unlock()
		return nil, 0, ErrGateClosed
	}
	if s.state != StateCameraActive {
		st := s.state
		s.mu.Unlock()
		return nil, 0, errors.Wrapf(ErrInvalidTransition, "cannot recognize from %s", st)
	}

	s.attempt++
	attempt := s.attempt
	chain, cancel := context.WithCancel(s.ctx)
	s.cancelChain = cancel
	s.state = StateRecognizing
	s.progress = 0
	s.stage = ""
	s.lastErr = ""
	s.still = nil
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	s.emit(ev)
	return chain, attempt, nil
}

func (s *Simulator) run(caller, chain context.Context, attempt uint64) error {
	for _, stage := range Stages {
		if !s.advance(attempt, stage) {
			return ErrAborted
		}
		timer := time.NewTimer(s.opts.StageDelay)
		select {
		case <-timer.C:
		case <-chain.Done():
			timer.Stop()
			return ErrAborted
		case <-caller.Done():
			timer.Stop()
			s.abandon(attempt)
			return caller.Err()
		}
	}
	return s.finish(attempt)
}

func (s *Simulator) advance(attempt uint64, stage Stage) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateRecognizing {
		s.mu.Unlock()
		return false
	}
	s.progress = stage.Progress
	s.stage = stage.Name
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	s.emit(ev)
	return true
}

func (s *Simulator) abandon(attempt uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateRecognizing {
		s.mu.Unlock()
		return
	}
	s.attempt++
	s.stopChainLocked()
	s.state = StateCameraActive
	s.progress = 0
	s.stage = ""
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	s.emit(ev)
}

// finish grabs the still frame, draws the outcome and records a success.
func (s *Simulator) finish(attempt uint64) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateRecognizing {
		s.mu.Unlock()
		return ErrAborted
	}
	s.stopChainLocked()

	frame, err := s.handle.Frame()
	if err != nil {
		s.state = StateFailed
		s.lastErr = "Unable to capture image."
		ev := Event{Status: s.statusLocked()}
		s.mu.Unlock()
		s.emit(ev)
		return errors.Wrap(err, "capturing frame")
	}
	s.still = imaging.Clone(frame)

	if s.deps.Rand.Float64() >= s.opts.SuccessRate {
		s.state = StateFailed
		ev := Event{Status: s.statusLocked()}
		s.mu.Unlock()
		s.emit(ev)
		return nil
	}
	now := s.now()
	s.mu.Unlock()

	rec := attendance.NewRecord(s.subject, attendance.StatusPresent, attendance.MethodFacialRecognition, now)
	if err := s.deps.Recorder.Append(s.ctx, rec); err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.lastErr = "Unable to record attendance."
		ev := Event{Status: s.statusLocked()}
		s.mu.Unlock()
		s.emit(ev)
		return errors.Wrap(err, "recording attendance")
	}

	s.mu.Lock()
	s.state = StateSucceeded
	s.scheduleReleaseLocked()
	ev := Event{Status: s.statusLocked(), Record: &rec}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// scheduleReleaseLocked releases the handle once the release delay has elapsed
// unless Reset, Stop, Start or Close comes first. mu must be held.
func (s *Simulator) scheduleReleaseLocked() {
	s.cancelReleaseLocked()
	gen := s.releaseGen
	s.release = time.AfterFunc(s.opts.ReleaseDelay, func() { s.autoRelease(gen) })
}

func (s *Simulator) autoRelease(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed || gen != s.releaseGen {
		s.mu.Unlock()
		return
	}
	s.release = nil
	changed := s.teardownLocked()
	ev := Event{Status: s.statusLocked()}
	s.mu.Unlock()

	if changed {
		s.emit(ev)
	}
}

func (s *Simulator) cancelReleaseLocked() {
	s.releaseGen++
	if s.release != nil {
		s.release.Stop()
		s.release = nil
	}
}

func (s *Simulator) stopChainLocked() {
	if s.cancelChain != nil {
		s.cancelChain()
		s.cancelChain = nil
	}
}

// teardownLocked abandons any attempt, cancels the pending release and releases the handle.
// It reports whether anything changed. mu must be held.
func (s *Simulator) teardownLocked() bool {
	s.attempt++
	s.stopChainLocked()
	s.cancelReleaseLocked()

	changed := s.state != StateIdle || s.handle != nil
	if s.handle != nil {
		if err := s.handle.Release(); err != nil {
			s.deps.Logger.Warn(fmt.Sprintf("capture(%s): releasing camera: %v", s.subject, err))
		}
		s.handle = nil
	}
	s.state = StateIdle
	s.progress = 0
	s.stage = ""
	if changed {
		s.lastErr = ""
	}
	return changed
}

// Subscribe registers fn for every event of the simulator.
func (s *Simulator) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// emit must be called with opMu held, after mu is released.
func (s *Simulator) emit(ev Event) {
	s.subsMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
