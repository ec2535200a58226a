// Package analysis runs the batch motion analysis pipeline: sample frames
// from a recorded clip, detect landmarks, gate on coverage, compute metrics
// and submit them for scoring.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/capture"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/detector"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/metrics"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
)

// Stage labels reported through ProgressFunc, in order.
type Stage string

const (
	StageLoading    Stage = "loading video"
	StageSampling   Stage = "extracting frames"
	StageModel      Stage = "loading pose model"
	StageDetecting  Stage = "detecting landmarks"
	StageAnalyzing  Stage = "computing metrics"
	StageSubmitting Stage = "submitting for scoring"
	StageDone       Stage = "done"
)

// Stages lists every stage in the order a successful run reports them.
var Stages = []Stage{StageLoading, StageSampling, StageModel, StageDetecting, StageAnalyzing, StageSubmitting, StageDone}

// ProgressFunc receives each stage once as the run enters it.
// It is called on the pipeline goroutine and must not block.
type ProgressFunc func(Stage)

// Request identifies the clip to analyze.
type Request struct {
	VideoID    string `json:"video_id"`
	ExerciseID string `json:"exercise_id"`
	PatientID  string `json:"patient_id,omitempty"`
	ClipPath   string `json:"clip_path"`
}

// Validate checks that every required field is present.
func (r Request) Validate() error {
	switch {
	case r.VideoID == "":
		return failure.Invalid("video_id is required")
	case r.ExerciseID == "":
		return failure.Invalid("exercise_id is required")
	case r.ClipPath == "":
		return failure.Invalid("clip_path is required")
	}
	return nil
}

// Outcome is the result of a run that got as far as computing metrics.
// Result is nil when the submission was rejected or failed.
type Outcome struct {
	Submission *scoring.Submission
	Coverage   float64
	Result     *scoring.Result
}

// Metrics returns the computed metrics.
func (o *Outcome) Metrics() *metrics.AnalysisMetrics {
	return o.Submission.Metrics
}

// Pipeline sequences the analysis stages. A Pipeline may be reused; each
// Run owns its clip, detector and frames exclusively.
type Pipeline struct {
	openClip    func(path string) (capture.Clip, error)
	newDetector func() (detector.Detector, error)
	sampler     *capture.Sampler
	scorer      scoring.Submitter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClipOpener replaces the clip source, capture.OpenClip by default.
func WithClipOpener(open func(path string) (capture.Clip, error)) Option {
	return func(p *Pipeline) { p.openClip = open }
}

// WithSampleCount sets the number of frames sampled per clip.
func WithSampleCount(n int) Option {
	return func(p *Pipeline) { p.sampler = &capture.Sampler{Count: n} }
}

// New creates a pipeline. newDetector is called once per run and the
// detector is closed when the run ends.
func New(newDetector func() (detector.Detector, error), scorer scoring.Submitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		openClip:    capture.OpenClip,
		newDetector: newDetector,
		sampler:     &capture.Sampler{},
		scorer:      scorer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline. No stage is retried. When metrics were computed
// but the submission failed, the Outcome is returned together with the error
// so the caller can Resubmit.
func (p *Pipeline) Run(ctx context.Context, req Request, progress ProgressFunc) (*Outcome, error) {
	if progress == nil {
		progress = func(Stage) {}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := slog.With("video", req.VideoID, "exercise", req.ExerciseID)

	// Load
	progress(StageLoading)
	clip, err := p.openClip(req.ClipPath)
	if err != nil {
		return nil, asPipelineError("load clip", err)
	}
	defer clip.Close()
	log.Info("analysis: clip loaded", "duration", clip.Duration())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Sample
	progress(StageSampling)
	mats, err := p.sampler.Sample(ctx, clip)
	if err != nil {
		return nil, err
	}
	defer closeMats(mats)
	if len(mats) == 0 {
		return nil, failure.PipelineError("sample", "no frames extracted", nil)
	}
	log.Info("analysis: frames sampled", "frames", len(mats))

	// Model
	progress(StageModel)
	det, err := p.newDetector()
	if err != nil {
		if failure.CodeOf(err) != "" {
			return nil, err
		}
		return nil, failure.ModelLoadError("load pose model", err)
	}
	defer det.Close()

	// Detect
	progress(StageDetecting)
	frames, err := detectAll(ctx, det, mats)
	if err != nil {
		return nil, err
	}

	// Coverage + metrics
	progress(StageAnalyzing)
	coverage, err := metrics.Coverage(frames)
	if err != nil {
		log.Warn("analysis: coverage too low", "avg_visible", coverage)
		return nil, err
	}
	m, err := metrics.Compute(frames)
	if err != nil {
		return nil, err
	}
	log.Info("analysis: metrics computed",
		"quality", m.QualityScore, "reps", m.RepsDetected, "speed", m.MovementSpeed,
		"compensations", len(m.Compensations))

	out := &Outcome{
		Coverage: coverage,
		Submission: &scoring.Submission{
			VideoID:    req.VideoID,
			ExerciseID: req.ExerciseID,
			PatientID:  req.PatientID,
			RawFrames:  frames,
			Metrics:    m,
		},
	}

	// Submit
	progress(StageSubmitting)
	res, err := p.scorer.Submit(ctx, out.Submission)
	if err != nil {
		log.Warn("analysis: submission rejected", "code", failure.CodeOf(err), "err", err)
		return out, err
	}
	out.Result = res

	progress(StageDone)
	log.Info("analysis: done", "submission", res.SubmissionID)
	return out, nil
}

// Resubmit re-sends the already computed metrics of an outcome whose
// submission failed with a retryable error. Frames are not re-processed.
func (p *Pipeline) Resubmit(ctx context.Context, out *Outcome) (*scoring.Result, error) {
	if out == nil || out.Submission == nil {
		return nil, failure.Invalid("nothing to resubmit")
	}
	if out.Result != nil {
		return out.Result, nil
	}

	res, err := p.scorer.Submit(ctx, out.Submission)
	if err != nil {
		return nil, err
	}
	out.Result = res
	return res, nil
}

// detectAll runs the detector on each frame in order. A frame with no person
// yields an empty landmark set; any detector fault aborts the run.
func detectAll(ctx context.Context, det detector.Detector, mats []*gocv.Mat) ([]pose.Frame, error) {
	frames := make([]pose.Frame, 0, len(mats))
	for i, mat := range mats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		set, err := det.Detect(mat)
		if err != nil {
			return nil, failure.DetectionFailure(fmt.Sprintf("detect frame %d", i), err)
		}

		frame := pose.Frame{Timestamp: int64(i)}
		if set != nil {
			frame.Landmarks = *set
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func asPipelineError(op string, err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	return failure.PipelineError(op, "cannot load source", err)
}

func closeMats(mats []*gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}
