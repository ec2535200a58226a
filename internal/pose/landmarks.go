// Package pose provides the body landmark model shared by live ROM capture and batch analysis.
package pose

// Joint indexes a landmark within a LandmarkSet.
// Indices follow the MediaPipe Pose topology and must not be reordered.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
type Joint int

// Pose landmark indices following MediaPipe convention.
const (
	Nose           Joint = 0
	LeftEyeInner   Joint = 1
	LeftEye        Joint = 2
	LeftEyeOuter   Joint = 3
	RightEyeInner  Joint = 4
	RightEye       Joint = 5
	RightEyeOuter  Joint = 6
	LeftEar        Joint = 7
	RightEar       Joint = 8
	MouthLeft      Joint = 9
	MouthRight     Joint = 10
	LeftShoulder   Joint = 11
	RightShoulder  Joint = 12
	LeftElbow      Joint = 13
	RightElbow     Joint = 14
	LeftWrist      Joint = 15
	RightWrist     Joint = 16
	LeftPinky      Joint = 17
	RightPinky     Joint = 18
	LeftIndex      Joint = 19
	RightIndex     Joint = 20
	LeftThumb      Joint = 21
	RightThumb     Joint = 22
	LeftHip        Joint = 23
	RightHip       Joint = 24
	LeftKnee       Joint = 25
	RightKnee      Joint = 26
	LeftAnkle      Joint = 27
	RightAnkle     Joint = 28
	LeftHeel       Joint = 29
	RightHeel      Joint = 30
	LeftFootIndex  Joint = 31
	RightFootIndex Joint = 32
	NumLandmarks         = 33
)

// VisibilityThreshold is the visibility above which a landmark counts as seen.
const VisibilityThreshold = 0.5

// Landmark is a single tracked body keypoint.
// X and Y are normalized image coordinates, Z is relative depth.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// LandmarkSet holds the 33 pose landmarks of one detected person.
// Count is the number of landmarks the detector actually returned; slots at
// or beyond Count are zero.
type LandmarkSet struct {
	Points [NumLandmarks]Landmark `json:"points"`
	Count  int                    `json:"count"`
}

// NewLandmarkSet builds a set from a detector's landmark list.
// Extra landmarks beyond the topology are ignored.
func NewLandmarkSet(points []Landmark) LandmarkSet {
	var set LandmarkSet
	n := copy(set.Points[:], points)
	set.Count = n
	return set
}

// At returns the landmark for the given joint.
func (s *LandmarkSet) At(j Joint) Landmark {
	return s.Points[j]
}

// Complete reports whether the detector returned the full topology.
func (s *LandmarkSet) Complete() bool {
	return s.Count == NumLandmarks
}

// VisibleCount returns the number of landmarks with visibility above VisibilityThreshold.
func (s *LandmarkSet) VisibleCount() int {
	n := 0
	for i := 0; i < s.Count && i < NumLandmarks; i++ {
		if s.Points[i].Visibility > VisibilityThreshold {
			n++
		}
	}
	return n
}

// Frame is one processed video frame: a timestamp plus the landmarks detected in it.
// Timestamp is in milliseconds for live frames and the frame ordinal for sampled ones.
type Frame struct {
	Timestamp int64       `json:"timestamp"`
	Landmarks LandmarkSet `json:"landmarks"`
}
