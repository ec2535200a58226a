// Package app runs the live range-of-motion capture flow and coordinates
// batch clip analyses.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/capture"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/detector"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/rom"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

// DefaultAdvanceDelay is how long a captured step is shown before the flow moves on.
const DefaultAdvanceDelay = 1500 * time.Millisecond

var (
	// ErrSessionActive is returned by Start while another session is running.
	ErrSessionActive = errors.New("capture session already running")
	// ErrNoSession is returned by session commands when no session is running.
	ErrNoSession = errors.New("no capture session running")
)

// Config holds configuration options for the application.
type Config struct {
	Store  *store.Store
	Camera capture.Camera
	// NewDetector loads the pose model. It is called once per session.
	NewDetector func() (detector.Detector, error)
	// AdvanceDelay is the pause between a capture and the next step. Zero advances immediately.
	AdvanceDelay time.Duration
}

// UpdateKind identifies what changed in a session update.
type UpdateKind string

const (
	UpdateStarted   UpdateKind = "started"
	UpdateFrame     UpdateKind = "frame"
	UpdateStep      UpdateKind = "step"
	UpdateCompleted UpdateKind = "completed"
	UpdateStopped   UpdateKind = "stopped"
)

// Update is published to listeners whenever the live session changes.
type Update struct {
	Kind        UpdateKind       `json:"kind"`
	SessionID   string           `json:"session_id"`
	Session     rom.Session      `json:"session"`
	Instruction string           `json:"instruction"`
	Event       *rom.Event       `json:"event,omitempty"`
	Result      *store.ROMResult `json:"result,omitempty"`
}

// Snapshot is the externally visible state of the current session.
type Snapshot struct {
	ID          string      `json:"id"`
	PatientID   string      `json:"patient_id"`
	Active      bool        `json:"active"`
	Starting    bool        `json:"starting"`
	Session     rom.Session `json:"session"`
	Instruction string      `json:"instruction"`
	HoldPercent float64     `json:"hold_percent"`
}

// Listener receives session updates. It must not block.
type Listener func(Update)

// App owns the live capture session: camera, pose detector and rom.Session.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector

	session   rom.Session
	sessionID string
	patientID string
	active    bool
	starting  bool
	last      *store.ROMResult
	preview   []byte

	listeners    map[int]Listener
	nextListener int

	mu     sync.Mutex
	stopCh chan struct{}
	now    func() time.Time
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	return &App{
		config:    config,
		camera:    config.Camera,
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Subscribe registers l for session updates and returns a function that removes it.
func (a *App) Subscribe(l Listener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextListener
	a.nextListener++
	a.listeners[id] = l

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// Start opens the camera, loads the pose model and begins a session at the
// intro step. The camera and model are released if either fails.
//
// Acquisition runs without holding the lock; while it is in progress the
// app reports Starting and further Start calls fail with ErrSessionActive.
func (a *App) Start(side pose.Side, patientID string) (Snapshot, error) {
	a.mu.Lock()
	if a.active || a.starting {
		a.mu.Unlock()
		return Snapshot{}, ErrSessionActive
	}
	if a.camera == nil {
		a.mu.Unlock()
		return Snapshot{}, failure.AcquisitionError("open camera", errors.New("no camera configured"))
	}
	a.starting = true
	a.mu.Unlock()

	det, err := a.acquire()

	a.mu.Lock()
	a.starting = false
	if err != nil {
		a.mu.Unlock()
		return Snapshot{}, err
	}

	a.detector = det
	a.session = rom.New(side)
	a.sessionID = uuid.New().String()
	a.patientID = patientID
	a.active = true
	a.last = nil
	a.stopCh = make(chan struct{})
	go a.runLoop(a.stopCh, det)

	slog.Info("app: capture session started", "session", a.sessionID, "side", a.session.Side)

	snap := a.snapshotLocked()
	updates := []Update{a.updateLocked(UpdateStarted, nil)}
	a.mu.Unlock()

	a.publish(updates)
	return snap, nil
}

// acquire opens the camera and loads the pose model, closing the camera
// again when the model fails.
func (a *App) acquire() (detector.Detector, error) {
	if err := a.camera.Open(); err != nil {
		if failure.CodeOf(err) != "" {
			return nil, err
		}
		return nil, failure.AcquisitionError("open camera", err)
	}

	det, err := a.loadDetector()
	if err != nil {
		a.camera.Close()
		return nil, err
	}
	return det, nil
}

// Next moves the session to its following step. Leaving a measuring step
// without a capture leaves its value absent.
func (a *App) Next() (Snapshot, error) {
	return a.command(func() []Update {
		return a.advanceLocked()
	})
}

// CaptureNow records the current step's maximum without waiting for the hold.
// It is a no-op when the maximum is too small.
func (a *App) CaptureNow() (Snapshot, error) {
	return a.command(func() []Update {
		s, ev := rom.Capture(a.session)
		a.session = s
		updates := []Update{a.updateLocked(UpdateFrame, &ev)}
		if ev.Type == rom.EventCaptured {
			updates = append(updates, a.afterCaptureLocked()...)
		}
		return updates
	})
}

// Skip ends the session with no values recorded.
func (a *App) Skip() (Snapshot, error) {
	return a.command(func() []Update {
		a.session = rom.Skip(a.session)
		return a.finishLocked()
	})
}

// Stop abandons the running session without storing a result.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.stopLocked()
	updates := []Update{a.updateLocked(UpdateStopped, nil)}
	a.mu.Unlock()

	slog.Info("app: capture session stopped")
	a.publish(updates)
}

// Current returns the state of the current or most recent session.
func (a *App) Current() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// LastResult returns the result stored for the most recently completed session.
func (a *App) LastResult() *store.ROMResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Active reports whether a session is running.
func (a *App) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

func (a *App) command(fn func() []Update) (Snapshot, error) {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	updates := fn()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.publish(updates)
	return snap, nil
}

func (a *App) loadDetector() (detector.Detector, error) {
	if a.config.NewDetector == nil {
		return nil, failure.ModelLoadError("load pose model", errors.New("no detector configured"))
	}
	det, err := a.config.NewDetector()
	if err != nil {
		if failure.CodeOf(err) != "" {
			return nil, err
		}
		return nil, failure.ModelLoadError("load pose model", err)
	}
	return det, nil
}

// advanceLocked applies rom.Next and finishes the session when it reaches done.
func (a *App) advanceLocked() []Update {
	a.session = rom.Next(a.session)
	if a.session.Done() {
		return a.finishLocked()
	}
	return []Update{a.updateLocked(UpdateStep, nil)}
}

// afterCaptureLocked moves on from a captured step, immediately or after the configured delay.
func (a *App) afterCaptureLocked() []Update {
	if a.config.AdvanceDelay <= 0 {
		return a.advanceLocked()
	}

	id, step := a.sessionID, a.session.Step
	time.AfterFunc(a.config.AdvanceDelay, func() {
		a.mu.Lock()
		if !a.active || a.sessionID != id || a.session.Step != step || !a.session.Captured {
			a.mu.Unlock()
			return
		}
		updates := a.advanceLocked()
		a.mu.Unlock()
		a.publish(updates)
	})
	return nil
}

// finishLocked stores the session result and releases the camera and model.
func (a *App) finishLocked() []Update {
	res := &store.ROMResult{
		ID:               a.sessionID,
		PatientID:        a.patientID,
		Side:             string(a.session.Side),
		Flexion:          a.session.Result.Flexion,
		Abduction:        a.session.Result.Abduction,
		ExternalRotation: a.session.Result.ExternalRotation,
		Skipped:          a.session.Skipped,
	}

	if a.config.Store != nil {
		if err := a.config.Store.ROMResults().Create(res); err != nil {
			slog.Error("app: failed to store ROM result", "session", a.sessionID, "error", err)
		}
	}
	a.last = res
	a.stopLocked()

	slog.Info("app: capture session completed", "session", a.sessionID, "skipped", res.Skipped)

	u := a.updateLocked(UpdateCompleted, nil)
	u.Result = res
	return []Update{u}
}

// stopLocked signals the loop and releases the camera and detector.
// A frame in flight when this runs is discarded by the loop.
func (a *App) stopLocked() {
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
	a.active = false
	a.preview = nil

	if err := a.camera.Close(); err != nil {
		slog.Warn("app: error closing camera", "error", err)
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			slog.Warn("app: error closing detector", "error", err)
		}
		a.detector = nil
	}
}

func (a *App) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          a.sessionID,
		PatientID:   a.patientID,
		Active:      a.active,
		Starting:    a.starting,
		Session:     a.session,
		Instruction: a.session.Step.Instruction(),
		HoldPercent: a.session.HoldProgress() * 100,
	}
}

func (a *App) updateLocked(kind UpdateKind, ev *rom.Event) Update {
	return Update{
		Kind:        kind,
		SessionID:   a.sessionID,
		Session:     a.session,
		Instruction: a.session.Step.Instruction(),
		Event:       ev,
	}
}

// publish delivers updates to every listener. Called without the lock held.
func (a *App) publish(updates []Update) {
	if len(updates) == 0 {
		return
	}

	a.mu.Lock()
	listeners := make([]Listener, 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()

	for _, u := range updates {
		for _, l := range listeners {
			l(u)
		}
	}
}

// describe is used in log lines for frames that could not be processed.
func describe(err error) string {
	if code := failure.CodeOf(err); code != "" {
		return fmt.Sprintf("%s: %v", code, err)
	}
	return err.Error()
}
