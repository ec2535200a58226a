package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/capture"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/detector"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
)

type fakeScorer struct {
	mu    sync.Mutex
	errs  []error
	calls []*scoring.Submission
}

func (f *fakeScorer) Submit(ctx context.Context, sub *scoring.Submission) (*scoring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, sub)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &scoring.Result{SubmissionID: fmt.Sprintf("sub-%d", len(f.calls))}, nil
}

type fixture struct {
	clip     *capture.MockClip
	det      *detector.MockDetector
	scorer   *fakeScorer
	pipeline *Pipeline
	stages   []Stage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clip:   capture.NewMockClip(15.0),
		det:    detector.NewMockDetector(),
		scorer: &fakeScorer{},
	}

	// Left arm goes up and down twice across the five sampled frames.
	var sets []*pose.LandmarkSet
	for _, deg := range []float64{30, 90, 40, 100, 50} {
		set := detector.ArmRaisedLandmarks(pose.SideLeft, deg)
		sets = append(sets, &set)
	}
	f.det.SetSequence(sets)

	f.pipeline = New(
		func() (detector.Detector, error) { return f.det, nil },
		f.scorer,
		WithClipOpener(func(string) (capture.Clip, error) { return f.clip, nil }),
	)
	return f
}

func (f *fixture) progress(s Stage) {
	f.stages = append(f.stages, s)
}

var testRequest = Request{
	VideoID:    "video-1",
	ExerciseID: "shoulder_abduction",
	PatientID:  "patient-1",
	ClipPath:   "/clips/video-1.mp4",
}

func TestPipeline_Run(t *testing.T) {
	f := newFixture(t)

	out, err := f.pipeline.Run(context.Background(), testRequest, f.progress)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.stages) != len(Stages) {
		t.Fatalf("stages = %v, want %v", f.stages, Stages)
	}
	for i := range Stages {
		if f.stages[i] != Stages[i] {
			t.Errorf("stage %d = %s, want %s", i, f.stages[i], Stages[i])
		}
	}

	m := out.Metrics()
	if m.FramesAnalyzed != 5 {
		t.Errorf("FramesAnalyzed = %d, want 5", m.FramesAnalyzed)
	}
	if m.RepsDetected != 2 {
		t.Errorf("RepsDetected = %d, want 2", m.RepsDetected)
	}
	if m.MovementSpeed != "fast" || m.QualityScore != 90 {
		t.Errorf("speed %s quality %d, want fast 90", m.MovementSpeed, m.QualityScore)
	}
	if out.Result == nil || out.Result.SubmissionID != "sub-1" {
		t.Errorf("unexpected result %+v", out.Result)
	}

	sub := f.scorer.calls[0]
	if sub.VideoID != "video-1" || sub.ExerciseID != "shoulder_abduction" || len(sub.RawFrames) != 5 {
		t.Errorf("unexpected submission %+v", sub)
	}
	for i, fr := range sub.RawFrames {
		if fr.Timestamp != int64(i) {
			t.Errorf("frame %d timestamp = %d, order must be preserved", i, fr.Timestamp)
		}
	}

	if !f.det.Closed() || !f.clip.Closed() {
		t.Error("detector and clip must be released after the run")
	}
}

func TestPipeline_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		req       Request
		wantCode  failure.Code
		lastStage Stage
	}{
		{
			name:      "invalid request",
			setup:     func(f *fixture) {},
			req:       Request{VideoID: "v"},
			wantCode:  failure.CodeInvalidInput,
			lastStage: "",
		},
		{
			name: "clip cannot load",
			setup: func(f *fixture) {
				f.pipeline.openClip = func(string) (capture.Clip, error) { return nil, errors.New("no such file") }
			},
			req:       testRequest,
			wantCode:  failure.CodeSamplingFailed,
			lastStage: StageLoading,
		},
		{
			name:      "seek fails",
			setup:     func(f *fixture) { f.clip.SetSeekError(2, errors.New("decoder stalled")) },
			req:       testRequest,
			wantCode:  failure.CodeSamplingFailed,
			lastStage: StageSampling,
		},
		{
			name: "model fails to load",
			setup: func(f *fixture) {
				f.pipeline.newDetector = func() (detector.Detector, error) { return nil, errors.New("no weights") }
			},
			req:       testRequest,
			wantCode:  failure.CodeModelLoadFailed,
			lastStage: StageModel,
		},
		{
			name:      "detector fault aborts",
			setup:     func(f *fixture) { f.det.SetErrorAfter(2, errors.New("pipe closed")) },
			req:       testRequest,
			wantCode:  failure.CodeDetectionFailed,
			lastStage: StageDetecting,
		},
		{
			name: "sparse landmarks",
			setup: func(f *fixture) {
				set := detector.PartialLandmarks(10)
				f.det.SetLandmarks(&set)
			},
			req:       testRequest,
			wantCode:  failure.CodeDetectionCoverageLow,
			lastStage: StageAnalyzing,
		},
		{
			name:      "nobody in frame",
			setup:     func(f *fixture) { f.det.SetLandmarks(nil) },
			req:       testRequest,
			wantCode:  failure.CodeDetectionCoverageLow,
			lastStage: StageAnalyzing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			out, err := f.pipeline.Run(context.Background(), tt.req, f.progress)

			if out != nil {
				t.Errorf("expected no outcome, got %+v", out)
			}
			if got := failure.CodeOf(err); got != tt.wantCode {
				t.Fatalf("code = %q, want %q (err %v)", got, tt.wantCode, err)
			}
			if len(f.scorer.calls) != 0 {
				t.Error("nothing may be submitted after a failure")
			}

			var last Stage
			if len(f.stages) > 0 {
				last = f.stages[len(f.stages)-1]
			}
			if last != tt.lastStage {
				t.Errorf("last stage = %q, want %q", last, tt.lastStage)
			}
		})
	}
}

func TestPipeline_DetectorFaultIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.det.SetErrorAfter(2, errors.New("pipe closed"))

	_, err := f.pipeline.Run(context.Background(), testRequest, nil)

	if !strings.Contains(err.Error(), "detect frame 2") {
		t.Errorf("error should name the failing frame, got %v", err)
	}
	if f.det.Calls() != 3 {
		t.Errorf("expected 3 detector calls, got %d", f.det.Calls())
	}
}

func TestPipeline_Resubmit(t *testing.T) {
	f := newFixture(t)
	f.scorer.errs = []error{failure.BackendError(failure.CodeServerError, "scoring service error", errors.New("502"))}

	out, err := f.pipeline.Run(context.Background(), testRequest, f.progress)

	var fe *failure.Error
	if !errors.As(err, &fe) || !fe.Retryable() {
		t.Fatalf("expected retryable server error, got %v", err)
	}
	if out == nil || out.Result != nil {
		t.Fatalf("expected outcome without result, got %+v", out)
	}
	if f.stages[len(f.stages)-1] != StageSubmitting {
		t.Errorf("run must stop at the submission stage, got %v", f.stages)
	}

	callsBefore := f.det.Calls()
	res, err := f.pipeline.Resubmit(context.Background(), out)
	if err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}
	if res.SubmissionID != "sub-2" || out.Result != res {
		t.Errorf("unexpected resubmit result %+v", res)
	}
	if f.det.Calls() != callsBefore {
		t.Error("resubmitting must not re-run detection")
	}
	if f.scorer.calls[0] != f.scorer.calls[1] {
		t.Error("resubmission must send the same computed submission")
	}
}

func TestPipeline_WeeklyLimitFromService(t *testing.T) {
	resetAt := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(scoring.ErrorBody{
			Code:    failure.CodeWeeklyLimitExceeded,
			Message: "weekly limit of 3 analyses reached",
			ResetAt: &resetAt,
		})
	}))
	defer srv.Close()

	f := newFixture(t)
	f.pipeline.scorer = scoring.NewClient(srv.URL)

	out, err := f.pipeline.Run(context.Background(), testRequest, nil)

	var fe *failure.Error
	if !errors.As(err, &fe) || fe.Code != failure.CodeWeeklyLimitExceeded {
		t.Fatalf("expected WEEKLY_LIMIT_EXCEEDED, got %v", err)
	}
	if !fe.ResetAt.Equal(resetAt) {
		t.Errorf("ResetAt = %v, want %v", fe.ResetAt, resetAt)
	}
	if fe.Message != "weekly limit of 3 analyses reached" {
		t.Errorf("message must be propagated unchanged, got %q", fe.Message)
	}
	if out == nil || out.Metrics() == nil {
		t.Error("metrics must still be returned with a rejected submission")
	}
}

func TestPipeline_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, testRequest, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(f.scorer.calls) != 0 {
		t.Error("canceled runs must not submit")
	}
}

func TestPipeline_ResubmitNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Resubmit(context.Background(), nil)
	if !failure.Is(err, failure.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}
