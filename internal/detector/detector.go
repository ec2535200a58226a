// Package detector turns video frames into pose landmark sets.
package detector

import (
	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

// Detector defines the interface for pose detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the landmarks of the most
	// prominent person. Returns nil if no person is detected.
	Detect(frame *gocv.Mat) (*pose.LandmarkSet, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// ModelComplexity selects the pose model variant (0 lite, 1 full, 2 heavy).
	ModelComplexity int `yaml:"model_complexity"`

	// ScriptPath overrides the pose service script location.
	ScriptPath string `yaml:"script_path"`

	// PythonPath overrides the interpreter used to run the script.
	PythonPath string `yaml:"python_path"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ModelComplexity: 1,
	}
}

// Factory returns a constructor that starts a MediaPipe detector with config.
// Each call loads the model anew; the caller closes what it gets.
func Factory(config Config) func() (Detector, error) {
	return func() (Detector, error) {
		d, err := NewMediaPipeDetector(config)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
