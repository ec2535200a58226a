package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/analysis"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

// Limits on outcomes kept for resubmission.
const (
	// PendingTTL is how long a failed submission stays available for Resubmit.
	PendingTTL = time.Hour
	// MaxPending is the number of outcomes kept; the oldest is dropped first.
	MaxPending = 32
)

// Analyzer runs batch clip analyses and records each run in the store.
type Analyzer struct {
	pipeline *analysis.Pipeline
	store    *store.Store

	mu sync.Mutex
	// pending holds outcomes whose submission failed with a retryable error.
	// An entry is removed while its resubmission is in flight.
	pending    map[string]pendingOutcome
	maxPending int
	ttl        time.Duration
	now        func() time.Time
	marshal    func(v any) ([]byte, error)
}

type pendingOutcome struct {
	out   *analysis.Outcome
	added time.Time
}

// NewAnalyzer creates an analyzer recording runs in st.
func NewAnalyzer(p *analysis.Pipeline, st *store.Store) *Analyzer {
	return &Analyzer{
		pipeline:   p,
		store:      st,
		pending:    make(map[string]pendingOutcome),
		maxPending: MaxPending,
		ttl:        PendingTTL,
		now:        time.Now,
		marshal:    json.Marshal,
	}
}

// Run executes the pipeline for req. The returned record reflects the final
// status; when the run failed it is returned together with the error.
func (z *Analyzer) Run(ctx context.Context, req analysis.Request, progress analysis.ProgressFunc) (*store.Analysis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := &store.Analysis{
		ID:         uuid.New().String(),
		VideoID:    req.VideoID,
		ExerciseID: req.ExerciseID,
		PatientID:  req.PatientID,
		ClipPath:   req.ClipPath,
		Status:     store.AnalysisRunning,
	}
	if err := z.store.Analyses().Create(rec); err != nil {
		return nil, fmt.Errorf("create analysis record: %w", err)
	}

	out, runErr := z.pipeline.Run(ctx, req, progress)
	if out != nil {
		raw, err := z.marshal(out.Metrics())
		if err != nil {
			err = fmt.Errorf("encode metrics: %w", err)
			z.fail(rec, err)
			z.save(rec)
			return rec, err
		}
		rec.Metrics = raw
	}

	if runErr != nil {
		z.fail(rec, runErr)
		if out != nil && isRetryable(runErr) {
			z.keep(rec.ID, pendingOutcome{out: out, added: z.now()})
		}
	} else if err := z.complete(rec, out.Result); err != nil {
		z.fail(rec, err)
		z.save(rec)
		return rec, err
	}

	z.save(rec)
	return rec, runErr
}

// Resubmit re-sends the metrics of a run whose submission failed with
// SERVER_ERROR. Frames are not re-processed.
func (z *Analyzer) Resubmit(ctx context.Context, id string) (*store.Analysis, error) {
	rec, err := z.store.Analyses().GetByID(id)
	if err != nil {
		return nil, err
	}

	p, ok := z.claim(id)
	if !ok {
		return rec, failure.Invalid("analysis has no submission awaiting retry")
	}

	res, err := z.pipeline.Resubmit(ctx, p.out)
	if err != nil {
		z.fail(rec, err)
		if isRetryable(err) {
			z.keep(id, p)
		}
	} else if cerr := z.complete(rec, res); cerr != nil {
		z.fail(rec, cerr)
		err = cerr
	}

	z.save(rec)
	return rec, err
}

// Get returns a recorded analysis run.
func (z *Analyzer) Get(id string) (*store.Analysis, error) {
	return z.store.Analyses().GetByID(id)
}

// List returns the most recent analysis runs.
func (z *Analyzer) List(limit int) ([]*store.Analysis, error) {
	return z.store.Analyses().List(limit)
}

func (z *Analyzer) complete(rec *store.Analysis, res *scoring.Result) error {
	raw, err := z.marshal(res)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	rec.Status = store.AnalysisCompleted
	rec.ErrorCode = ""
	rec.ErrorMessage = ""
	rec.Feedback = raw
	return nil
}

func (z *Analyzer) fail(rec *store.Analysis, err error) {
	rec.Status = store.AnalysisFailed
	rec.ErrorCode = string(failure.CodeOf(err))
	rec.ErrorMessage = err.Error()
	slog.Warn("app: analysis failed", "analysis", rec.ID, "code", rec.ErrorCode, "error", err)
}

func (z *Analyzer) save(rec *store.Analysis) {
	if err := z.store.Analyses().Update(rec); err != nil {
		slog.Error("app: failed to update analysis record", "analysis", rec.ID, "error", err)
	}
}

// claim removes and returns the pending outcome for id, so only one
// resubmission of it can be in flight.
func (z *Analyzer) claim(id string) (pendingOutcome, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.pruneLocked()
	p, ok := z.pending[id]
	delete(z.pending, id)
	return p, ok
}

func (z *Analyzer) keep(id string, p pendingOutcome) {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.pending[id] = p
	z.pruneLocked()
}

// pruneLocked drops expired outcomes, then the oldest ones beyond maxPending.
func (z *Analyzer) pruneLocked() {
	now := z.now()
	for id, p := range z.pending {
		if now.Sub(p.added) > z.ttl {
			delete(z.pending, id)
		}
	}

	for len(z.pending) > z.maxPending {
		var oldest string
		var at time.Time
		for id, p := range z.pending {
			if oldest == "" || p.added.Before(at) {
				oldest, at = id, p.added
			}
		}
		slog.Info("app: dropping pending resubmission", "analysis", oldest)
		delete(z.pending, oldest)
	}
}

func isRetryable(err error) bool {
	var fe *failure.Error
	return errors.As(err, &fe) && fe.Retryable()
}
