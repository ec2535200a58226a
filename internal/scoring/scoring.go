// Package scoring defines the submission contract with the scoring and quota
// service, an HTTP client for it, and a reference implementation backed by
// the store.
package scoring

import (
	"context"
	"time"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/metrics"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

// Submission is the hand-off of one completed batch analysis.
type Submission struct {
	VideoID    string                   `json:"video_id"`
	ExerciseID string                   `json:"exercise_id"`
	PatientID  string                   `json:"patient_id,omitempty"`
	RawFrames  []pose.Frame             `json:"raw_frames"`
	Metrics    *metrics.AnalysisMetrics `json:"metrics"`
}

// Validate checks that the submission carries everything the service needs.
func (s *Submission) Validate() error {
	switch {
	case s.VideoID == "":
		return failure.Invalid("video_id is required")
	case s.ExerciseID == "":
		return failure.Invalid("exercise_id is required")
	case s.Metrics == nil:
		return failure.Invalid("metrics are required")
	}
	return nil
}

// Feedback is the narrative returned for an accepted submission.
type Feedback struct {
	Grade        string   `json:"grade"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Result is the successful response to a submission.
type Result struct {
	SubmissionID      string    `json:"submission_id"`
	Feedback          Feedback  `json:"feedback"`
	RemainingThisWeek int       `json:"remaining_this_week"`
	ResetAt           time.Time `json:"reset_at"`
}

// ErrorBody is the wire form of a rejected submission.
type ErrorBody struct {
	Code    failure.Code `json:"code"`
	Message string       `json:"message"`
	ResetAt *time.Time   `json:"reset_at,omitempty"`
}

// Submitter accepts analysis submissions. Rejections are returned as
// *failure.Error values of kind Backend (or Invalid for malformed input).
type Submitter interface {
	Submit(ctx context.Context, sub *Submission) (*Result, error)
}
