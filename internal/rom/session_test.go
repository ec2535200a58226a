package rom

import (
	"math"
	"testing"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

// elevationFrame builds a frame whose right elbow-shoulder-hip angle is deg.
func elevationFrame(ts int64, deg float64) pose.Frame {
	points := make([]pose.Landmark, pose.NumLandmarks)
	for i := range points {
		points[i] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 0.9}
	}

	rad := deg * math.Pi / 180
	shoulder := pose.Landmark{X: 0.5, Y: 0.4, Visibility: 0.99}
	points[pose.RightShoulder] = shoulder
	points[pose.RightHip] = pose.Landmark{X: 0.5, Y: 0.8, Visibility: 0.99}
	points[pose.RightElbow] = pose.Landmark{
		X:          shoulder.X + 0.25*math.Sin(rad),
		Y:          shoulder.Y + 0.25*math.Cos(rad),
		Visibility: 0.99,
	}

	return pose.Frame{Timestamp: ts, Landmarks: pose.NewLandmarkSet(points)}
}

// rotationFrame builds a frame whose right shoulder-elbow-wrist angle is raw.
func rotationFrame(ts int64, raw float64) pose.Frame {
	points := make([]pose.Landmark, pose.NumLandmarks)
	for i := range points {
		points[i] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 0.9}
	}

	rad := raw * math.Pi / 180
	elbow := pose.Landmark{X: 0.5, Y: 0.65, Visibility: 0.99}
	points[pose.RightShoulder] = pose.Landmark{X: 0.5, Y: 0.4, Visibility: 0.99}
	points[pose.RightElbow] = elbow
	points[pose.RightWrist] = pose.Landmark{
		X:          elbow.X + 0.2*math.Sin(rad),
		Y:          elbow.Y - 0.2*math.Cos(rad),
		Visibility: 0.99,
	}

	return pose.Frame{Timestamp: ts, Landmarks: pose.NewLandmarkSet(points)}
}

// sessionAt returns a session positioned on the given step.
func sessionAt(step Step) Session {
	s := New(pose.SideRight)
	for s.Step != step {
		s = Next(s)
	}
	return s
}

func TestNext_LinearFlow(t *testing.T) {
	s := New(pose.SideRight)
	want := []Step{StepFlexion, StepAbduction, StepExternalRotation, StepDone, StepDone}

	for i, step := range want {
		s = Next(s)
		if s.Step != step {
			t.Fatalf("transition %d: step = %s, want %s", i, s.Step, step)
		}
	}
}

func TestNext_ResetsStepState(t *testing.T) {
	s := sessionAt(StepFlexion)
	s.MaxAngle = 120
	s.CurrentAngle = 118
	s.HoldElapsed = 1.2
	s, _ = Capture(s)

	s = Next(s)

	if s.Step != StepAbduction {
		t.Fatalf("expected abduction, got %s", s.Step)
	}
	if s.MaxAngle != 0 || s.CurrentAngle != 0 || s.HoldElapsed != 0 || s.Captured {
		t.Errorf("expected zeroed step state, got %+v", s)
	}
	if s.Result.Flexion == nil || *s.Result.Flexion != 120 {
		t.Errorf("expected flexion result to carry over, got %v", s.Result.Flexion)
	}
}

func TestAdvance_MaxIsMonotonic(t *testing.T) {
	s := sessionAt(StepFlexion)
	angles := []float64{30, 60, 45, 90, 20}
	wantMax := []float64{30, 60, 60, 90, 90}

	for i, deg := range angles {
		s, _ = Advance(s, elevationFrame(int64(i*100), deg))
		if s.MaxAngle != wantMax[i] {
			t.Errorf("frame %d: max = %v, want %v", i, s.MaxAngle, wantMax[i])
		}
		if s.CurrentAngle != deg {
			t.Errorf("frame %d: current = %v, want %v", i, s.CurrentAngle, deg)
		}
	}
}

func TestAdvance_HoldToCapture(t *testing.T) {
	t.Run("constant hold auto-finalizes", func(t *testing.T) {
		s := sessionAt(StepFlexion)
		s.MaxAngle = 100

		var ev Event
		for ts := int64(0); ts <= 2000; ts += 100 {
			s, ev = Advance(s, elevationFrame(ts, 100))
			if ev.Type == EventCaptured {
				break
			}
		}

		if ev.Type != EventCaptured {
			t.Fatalf("expected capture, last event %+v", ev)
		}
		if s.Result.Flexion == nil || *s.Result.Flexion != 100 {
			t.Errorf("expected flexion = 100, got %v", s.Result.Flexion)
		}
		if ev.Value != 100 {
			t.Errorf("expected event value 100, got %v", ev.Value)
		}
	})

	t.Run("drop at 1.9s resets the timer", func(t *testing.T) {
		s := sessionAt(StepFlexion)
		s.MaxAngle = 100

		for ts := int64(0); ts < 1900; ts += 100 {
			var ev Event
			s, ev = Advance(s, elevationFrame(ts, 100))
			if ev.Type == EventCaptured {
				t.Fatalf("captured too early at %dms", ts)
			}
		}

		s, ev := Advance(s, elevationFrame(1900, 85))
		if ev.Type == EventCaptured {
			t.Fatal("drop must not capture")
		}
		if s.HoldElapsed != 0 {
			t.Errorf("expected hold reset to 0, got %v", s.HoldElapsed)
		}

		s, ev = Advance(s, elevationFrame(2000, 100))
		if ev.Type == EventCaptured || s.Captured {
			t.Error("hold must restart after a reset")
		}
		if s.Result.Flexion != nil {
			t.Errorf("expected no flexion result, got %v", *s.Result.Flexion)
		}
	})

	t.Run("no hold below the motion gate", func(t *testing.T) {
		s := sessionAt(StepAbduction)
		for ts := int64(0); ts <= 5000; ts += 100 {
			s, _ = Advance(s, elevationFrame(ts, 18))
		}

		if s.Captured || s.HoldElapsed != 0 {
			t.Errorf("expected no hold with max 18, got %+v", s)
		}
	})

	t.Run("hysteresis band keeps the timer", func(t *testing.T) {
		s := sessionAt(StepFlexion)
		s.MaxAngle = 100

		s, _ = Advance(s, elevationFrame(0, 100))
		s, _ = Advance(s, elevationFrame(1000, 93)) // 7 below: neither holding nor reset
		if !s.holding {
			t.Fatal("expected hold to survive the hysteresis band")
		}

		s, ev := Advance(s, elevationFrame(2000, 98))
		if ev.Type != EventCaptured {
			t.Errorf("expected capture after returning near the peak, got %s", ev.Type)
		}
	})

	t.Run("frames after capture are ignored", func(t *testing.T) {
		s := sessionAt(StepFlexion)
		s.MaxAngle = 100
		for ts := int64(0); ts <= 2000; ts += 100 {
			s, _ = Advance(s, elevationFrame(ts, 100))
		}

		s, ev := Advance(s, elevationFrame(2100, 150))
		if ev.Type != EventIgnored {
			t.Errorf("expected ignored, got %s", ev.Type)
		}
		if *s.Result.Flexion != 100 || s.MaxAngle != 100 {
			t.Errorf("captured step must not change, got result %v max %v", *s.Result.Flexion, s.MaxAngle)
		}
	})
}

func TestCapture_ManualOverride(t *testing.T) {
	t.Run("above floor", func(t *testing.T) {
		s := sessionAt(StepAbduction)
		s.MaxAngle = 11

		s, ev := Capture(s)

		if ev.Type != EventCaptured {
			t.Fatalf("expected capture, got %s", ev.Type)
		}
		if s.Result.Abduction == nil || *s.Result.Abduction != 11 {
			t.Errorf("expected abduction = 11, got %v", s.Result.Abduction)
		}
	})

	t.Run("below floor is a no-op", func(t *testing.T) {
		s := sessionAt(StepAbduction)
		s.MaxAngle = 9

		got, ev := Capture(s)

		if ev.Type != EventIgnored {
			t.Errorf("expected ignored, got %s", ev.Type)
		}
		if got.Captured || got.Result.Abduction != nil {
			t.Errorf("expected no capture, got %+v", got)
		}
	})

	t.Run("not available on intro", func(t *testing.T) {
		s := New(pose.SideRight)
		s.MaxAngle = 50

		_, ev := Capture(s)
		if ev.Type != EventIgnored {
			t.Errorf("expected ignored, got %s", ev.Type)
		}
	})
}

func TestSkip(t *testing.T) {
	steps := []Step{StepIntro, StepFlexion, StepAbduction, StepExternalRotation}

	for _, step := range steps {
		t.Run(string(step), func(t *testing.T) {
			s := New(pose.SideLeft)
			// Build partial progress before reaching the step.
			for s.Step != step {
				if s.Step.Measuring() {
					s.MaxAngle = 80
					s, _ = Capture(s)
				}
				s = Next(s)
			}
			s.MaxAngle = 45
			s.HoldElapsed = 1.5

			s = Skip(s)

			if !s.Done() || !s.Skipped {
				t.Errorf("expected terminated skipped session, got %+v", s)
			}
			if s.Result.Flexion != nil || s.Result.Abduction != nil || s.Result.ExternalRotation != nil {
				t.Errorf("expected all values absent, got %+v", s.Result)
			}
			if s.Side != pose.SideLeft {
				t.Errorf("expected side preserved, got %s", s.Side)
			}

			again := Skip(s)
			if again.Result != s.Result || again.Step != s.Step {
				t.Error("skip must be idempotent")
			}
		})
	}
}

func TestAdvance_ExternalRotation(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"neutral forearm", 90, 0},
		{"rotated outward", 150, 60},
		{"rotated the other way", 30, 60},
		{"fully extended", 180, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionAt(StepExternalRotation)
			s, ev := Advance(s, rotationFrame(0, tt.raw))

			if ev.Type != EventUpdated {
				t.Fatalf("expected update, got %s", ev.Type)
			}
			if s.CurrentAngle != tt.want {
				t.Errorf("current = %v, want %v", s.CurrentAngle, tt.want)
			}
		})
	}
}

func TestAdvance_LowVisibility(t *testing.T) {
	s := sessionAt(StepFlexion)
	frame := elevationFrame(0, 90)
	frame.Landmarks.Points[pose.RightElbow].Visibility = 0.2

	got, ev := Advance(s, frame)

	if ev.Type != EventLowVisibility {
		t.Errorf("expected low visibility, got %s", ev.Type)
	}
	if got.MaxAngle != 0 || got.CurrentAngle != 0 {
		t.Errorf("occluded frame must not change the session, got %+v", got)
	}
}

func TestAdvance_IgnoredOutsideMeasuring(t *testing.T) {
	for _, step := range []Step{StepIntro, StepDone} {
		s := sessionAt(step)
		_, ev := Advance(s, elevationFrame(0, 90))
		if ev.Type != EventIgnored {
			t.Errorf("%s: expected ignored, got %s", step, ev.Type)
		}
	}
}

func TestAdvance_FlexionAndAbductionShareGeometry(t *testing.T) {
	flex, _ := Advance(sessionAt(StepFlexion), elevationFrame(0, 135))
	abd, _ := Advance(sessionAt(StepAbduction), elevationFrame(0, 135))

	if flex.CurrentAngle != abd.CurrentAngle {
		t.Errorf("expected identical angles, got %v and %v", flex.CurrentAngle, abd.CurrentAngle)
	}
	if StepFlexion.Instruction() == StepAbduction.Instruction() {
		t.Error("instructions must tell the planes apart")
	}
}

func TestSession_HoldProgress(t *testing.T) {
	s := Session{HoldElapsed: 1}
	if got := s.HoldProgress(); got != 0.5 {
		t.Errorf("HoldProgress() = %v, want 0.5", got)
	}
	s.HoldElapsed = 3
	if got := s.HoldProgress(); got != 1 {
		t.Errorf("HoldProgress() = %v, want 1", got)
	}
}
