package rom

import (
	"math"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/geometry"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

// Capture thresholds, in degrees unless noted.
const (
	// HoldSeconds is how long the user must stay near their peak for an automatic capture.
	HoldSeconds = 2.0
	// HoldTolerance is how far below the step maximum still counts as holding.
	HoldTolerance = 5.0
	// ResetDrop is how far below the step maximum resets the hold timer.
	ResetDrop = 10.0
	// MinAutoAngle is the maximum that must be exceeded before a hold can start.
	MinAutoAngle = 20.0
	// MinManualAngle is the maximum that must be exceeded for a manual capture.
	MinManualAngle = 10.0
	// RotationReference is the elbow angle treated as zero external rotation.
	RotationReference = 90.0
	// MinJointVisibility is the visibility each tracked joint needs for a frame to count.
	MinJointVisibility = 0.5
)

// Result holds the finalized ROM values of a session. A nil field was not measured.
type Result struct {
	Flexion          *float64 `json:"flexion"`
	Abduction        *float64 `json:"abduction"`
	ExternalRotation *float64 `json:"external_rotation"`
}

// Get returns the recorded value for a step, or nil.
func (r Result) Get(step Step) *float64 {
	switch step {
	case StepFlexion:
		return r.Flexion
	case StepAbduction:
		return r.Abduction
	case StepExternalRotation:
		return r.ExternalRotation
	default:
		return nil
	}
}

// with returns a copy of r with the step's value set.
func (r Result) with(step Step, value float64) Result {
	v := value
	switch step {
	case StepFlexion:
		r.Flexion = &v
	case StepAbduction:
		r.Abduction = &v
	case StepExternalRotation:
		r.ExternalRotation = &v
	}
	return r
}

// Session is the complete, inspectable state of one live capture session.
type Session struct {
	Step         Step      `json:"step"`
	Side         pose.Side `json:"side"`
	CurrentAngle float64   `json:"current_angle"`
	MaxAngle     float64   `json:"max_angle"`
	// HoldElapsed is the current continuous hold in seconds.
	HoldElapsed float64 `json:"hold_elapsed"`
	Captured    bool    `json:"captured"`
	Skipped     bool    `json:"skipped"`
	Result      Result  `json:"result"`

	holding   bool
	holdStart int64
}

// New returns a session at the intro step tracking the given arm.
func New(side pose.Side) Session {
	if side == "" {
		side = pose.SideRight
	}
	return Session{Step: StepIntro, Side: side}
}

// Done reports whether the session has terminated.
func (s Session) Done() bool {
	return s.Step == StepDone
}

// HoldProgress returns the hold timer as a fraction of HoldSeconds, capped at 1.
func (s Session) HoldProgress() float64 {
	return math.Min(s.HoldElapsed/HoldSeconds, 1)
}

// Next moves to the following step and clears all per-step state.
// Leaving a measuring step without a capture leaves its value absent.
func Next(s Session) Session {
	if s.Done() {
		return s
	}
	return Session{
		Step:   s.Step.next(),
		Side:   s.Side,
		Result: s.Result,
	}
}

// Skip terminates the session immediately with every value absent,
// discarding anything captured so far.
func Skip(s Session) Session {
	return Session{
		Step:    StepDone,
		Side:    s.Side,
		Skipped: true,
	}
}

// Capture finalizes the current step with its maximum, bypassing the hold
// requirement. It is a no-op unless the maximum exceeds MinManualAngle.
func Capture(s Session) (Session, Event) {
	if !s.Step.Measuring() || s.Captured || s.MaxAngle <= MinManualAngle {
		return s, Event{Type: EventIgnored, Step: s.Step, Angle: s.CurrentAngle}
	}
	return finalize(s)
}

// Advance folds one frame into the session.
//
// The frame timestamp (milliseconds) drives the hold timer, so replaying the
// same frames always yields the same result. Frames are ignored outside the
// measuring steps and once the current step has been captured.
func Advance(s Session, frame pose.Frame) (Session, Event) {
	if !s.Step.Measuring() || s.Captured {
		return s, Event{Type: EventIgnored, Step: s.Step}
	}

	angle, ok := measure(s.Step, s.Side, &frame.Landmarks)
	if !ok {
		return s, Event{Type: EventLowVisibility, Step: s.Step}
	}

	s.CurrentAngle = angle
	if angle > s.MaxAngle {
		s.MaxAngle = angle
	}

	switch {
	case s.CurrentAngle < s.MaxAngle-ResetDrop:
		s.holding = false
		s.HoldElapsed = 0
	case s.CurrentAngle >= s.MaxAngle-HoldTolerance && s.MaxAngle > MinAutoAngle:
		if !s.holding {
			s.holding = true
			s.holdStart = frame.Timestamp
		}
		s.HoldElapsed = float64(frame.Timestamp-s.holdStart) / 1000
	}
	// Between HoldTolerance and ResetDrop below the maximum the timer keeps
	// its start but is not re-evaluated.

	if s.holding && s.HoldElapsed >= HoldSeconds {
		return finalize(s)
	}

	return s, Event{
		Type:        EventUpdated,
		Step:        s.Step,
		Angle:       s.CurrentAngle,
		MaxAngle:    s.MaxAngle,
		HoldElapsed: s.HoldElapsed,
	}
}

func finalize(s Session) (Session, Event) {
	s.Result = s.Result.with(s.Step, s.MaxAngle)
	s.Captured = true
	s.holding = false
	return s, Event{
		Type:        EventCaptured,
		Step:        s.Step,
		Angle:       s.CurrentAngle,
		MaxAngle:    s.MaxAngle,
		HoldElapsed: s.HoldElapsed,
		Value:       s.MaxAngle,
	}
}

// measure computes the step's angle on the tracked side.
// It reports false when any joint of the triple is not visible enough.
func measure(step Step, side pose.Side, set *pose.LandmarkSet) (float64, bool) {
	arm := pose.ArmOf(side)

	var a, b, c pose.Joint
	switch step {
	case StepFlexion, StepAbduction:
		a, b, c = arm.Elbow, arm.Shoulder, arm.Hip
	case StepExternalRotation:
		a, b, c = arm.Shoulder, arm.Elbow, arm.Wrist
	default:
		return 0, false
	}

	for _, j := range []pose.Joint{a, b, c} {
		if int(j) >= set.Count || set.At(j).Visibility < MinJointVisibility {
			return 0, false
		}
	}

	raw := geometry.Angle3D(set.At(a), set.At(b), set.At(c))
	if step == StepExternalRotation {
		return math.Min(math.Max(math.Abs(raw-RotationReference), 0), 90), true
	}
	return raw, true
}
