package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	landmarks  *pose.LandmarkSet
	sequence   []*pose.LandmarkSet
	err        error
	errAfter   int
	calls      int
	closeCount int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{errAfter: -1}
}

// SetLandmarks sets the landmarks returned by every Detect call. Nil means no person.
func (m *MockDetector) SetLandmarks(set *pose.LandmarkSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.landmarks = set
	m.sequence = nil
}

// SetSequence makes successive Detect calls return the given sets in order.
// Once exhausted the last entry is repeated.
func (m *MockDetector) SetSequence(sets []*pose.LandmarkSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = sets
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.errAfter = -1
}

// SetErrorAfter lets the first n calls succeed and fails every later call with err.
func (m *MockDetector) SetErrorAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.errAfter = n
}

// Calls returns the number of Detect calls made.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount > 0
}

// Detect returns the pre-configured landmarks or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*pose.LandmarkSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++

	if m.err != nil && (m.errAfter < 0 || call >= m.errAfter) {
		return nil, m.err
	}

	if len(m.sequence) > 0 {
		if call < len(m.sequence) {
			return m.sequence[call], nil
		}
		return m.sequence[len(m.sequence)-1], nil
	}
	return m.landmarks, nil
}

// Close records the call for tests.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCount++
	return nil
}

// NeutralStanceLandmarks returns a complete, fully visible person standing
// upright with both arms hanging at their sides.
func NeutralStanceLandmarks() pose.LandmarkSet {
	points := make([]pose.Landmark, pose.NumLandmarks)
	for i := range points {
		points[i] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 0.95}
	}

	// Head
	points[pose.Nose] = pose.Landmark{X: 0.5, Y: 0.2, Visibility: 0.99}

	// Shoulders level, hips below
	points[pose.LeftShoulder] = pose.Landmark{X: 0.6, Y: 0.35, Visibility: 0.99}
	points[pose.RightShoulder] = pose.Landmark{X: 0.4, Y: 0.35, Visibility: 0.99}
	points[pose.LeftHip] = pose.Landmark{X: 0.6, Y: 0.75, Visibility: 0.99}
	points[pose.RightHip] = pose.Landmark{X: 0.4, Y: 0.75, Visibility: 0.99}
	points[pose.LeftKnee] = pose.Landmark{X: 0.6, Y: 0.95, Visibility: 0.95}
	points[pose.RightKnee] = pose.Landmark{X: 0.4, Y: 0.95, Visibility: 0.95}

	// Arms straight down
	points[pose.LeftElbow] = pose.Landmark{X: 0.6, Y: 0.55, Visibility: 0.99}
	points[pose.RightElbow] = pose.Landmark{X: 0.4, Y: 0.55, Visibility: 0.99}
	points[pose.LeftWrist] = pose.Landmark{X: 0.6, Y: 0.72, Visibility: 0.99}
	points[pose.RightWrist] = pose.Landmark{X: 0.4, Y: 0.72, Visibility: 0.99}

	return pose.NewLandmarkSet(points)
}

// ArmRaisedLandmarks returns the neutral stance with one arm raised so that
// the elbow-shoulder-hip angle is deg degrees. The forearm continues the
// upper arm.
func ArmRaisedLandmarks(side pose.Side, deg float64) pose.LandmarkSet {
	set := NeutralStanceLandmarks()
	arm := pose.ArmOf(side)

	// Raise outward, away from the body midline.
	dir := -1.0
	if side == pose.SideLeft {
		dir = 1.0
	}

	rad := deg * math.Pi / 180
	shoulder := set.Points[arm.Shoulder]
	dx, dy := dir*math.Sin(rad), math.Cos(rad)

	set.Points[arm.Elbow] = pose.Landmark{X: shoulder.X + 0.2*dx, Y: shoulder.Y + 0.2*dy, Visibility: 0.99}
	set.Points[arm.Wrist] = pose.Landmark{X: shoulder.X + 0.37*dx, Y: shoulder.Y + 0.37*dy, Visibility: 0.99}
	return set
}

// PartialLandmarks returns a complete topology in which only the first
// visible landmarks are confidently seen.
func PartialLandmarks(visible int) pose.LandmarkSet {
	set := NeutralStanceLandmarks()
	for i := range set.Points {
		if i >= visible {
			set.Points[i].Visibility = 0.1
		}
	}
	return set
}
