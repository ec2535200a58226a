// Package failure defines the typed errors surfaced by live capture and batch analysis.
//
// Every failure carries a Kind (which stage of the subsystem failed) and a
// Code (the stable identifier exposed to callers and the UI). Callers
// inspect errors with errors.As or CodeOf; nothing in this package
// substitutes default values for a failed measurement.
package failure

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies where a failure originated.
type Kind int

const (
	// KindAcquisition means the camera or media source was unavailable or denied.
	KindAcquisition Kind = iota
	// KindModelLoad means the pose capability failed to initialize.
	KindModelLoad
	// KindDetectionCoverage means landmarks were too sparse to trust.
	KindDetectionCoverage
	// KindPipeline means frame sampling or seeking failed.
	KindPipeline
	// KindDetection means the detector faulted while processing a frame.
	KindDetection
	// KindBackend means the scoring/quota service rejected or failed the submission.
	KindBackend
	// KindInvalid means the caller supplied incomplete input.
	KindInvalid
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindAcquisition:
		return "acquisition"
	case KindModelLoad:
		return "model_load"
	case KindDetectionCoverage:
		return "detection_coverage"
	case KindPipeline:
		return "pipeline"
	case KindDetection:
		return "detection"
	case KindBackend:
		return "backend"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Code is the stable error identifier exposed to callers.
type Code string

const (
	CodeCameraDenied         Code = "CAMERA_DENIED"
	CodeModelLoadFailed      Code = "MODEL_LOAD_FAILED"
	CodeDetectionCoverageLow Code = "DETECTION_COVERAGE_LOW"
	CodeSamplingFailed       Code = "SAMPLING_FAILED"
	CodeDetectionFailed      Code = "DETECTION_FAILED"
	CodeWeeklyLimitExceeded  Code = "WEEKLY_LIMIT_EXCEEDED"
	CodeExerciseNotSupported Code = "EXERCISE_NOT_SUPPORTED"
	CodeServerError          Code = "SERVER_ERROR"
	CodeInvalidInput         Code = "INVALID_INPUT"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Code    Code
	Op      string
	Message string
	// ResetAt is set for weekly limit failures: when the quota resets.
	ResetAt time.Time
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether an explicit, user-triggered resubmission may succeed.
// Only transient backend faults qualify.
func (e *Error) Retryable() bool {
	return e.Kind == KindBackend && e.Code == CodeServerError
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// AcquisitionError reports an unavailable or denied camera/media source.
func AcquisitionError(op string, err error) *Error {
	return &Error{Kind: KindAcquisition, Code: CodeCameraDenied, Op: op, Message: "media source unavailable", Err: err}
}

// ModelLoadError reports a pose capability that could not initialize.
func ModelLoadError(op string, err error) *Error {
	return &Error{Kind: KindModelLoad, Code: CodeModelLoadFailed, Op: op, Message: "pose model failed to load", Err: err}
}

// CoverageError reports landmark coverage below the acceptance threshold.
func CoverageError(avgVisible float64, required int) *Error {
	return &Error{
		Kind:    KindDetectionCoverage,
		Code:    CodeDetectionCoverageLow,
		Op:      "coverage",
		Message: fmt.Sprintf("average %.1f visible landmarks per frame, need %d", avgVisible, required),
	}
}

// PipelineError reports a sampling, seek or decode failure.
func PipelineError(op, message string, err error) *Error {
	return &Error{Kind: KindPipeline, Code: CodeSamplingFailed, Op: op, Message: message, Err: err}
}

// DetectionFailure reports a detector fault on a single frame, which aborts the run.
func DetectionFailure(op string, err error) *Error {
	return &Error{Kind: KindDetection, Code: CodeDetectionFailed, Op: op, Message: "landmark detection failed", Err: err}
}

// BackendError reports a typed response from the scoring/quota service.
func BackendError(code Code, message string, err error) *Error {
	return &Error{Kind: KindBackend, Code: code, Op: "submit", Message: message, Err: err}
}

// Invalid reports missing or malformed caller input.
func Invalid(message string) *Error {
	return &Error{Kind: KindInvalid, Code: CodeInvalidInput, Op: "validate", Message: message}
}
