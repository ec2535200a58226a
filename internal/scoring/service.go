package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

// DefaultWeeklyLimit is the number of accepted submissions per patient per week.
const DefaultWeeklyLimit = 3

// Service is the reference scoring and quota service. It owns all weekly
// quota bookkeeping; callers only report metrics.
type Service struct {
	store *store.Store
	limit int
	now   func() time.Time

	// mu serializes the quota check and the insert.
	mu sync.Mutex
}

// NewService creates a service enforcing weeklyLimit accepted submissions per patient.
func NewService(st *store.Store, weeklyLimit int) *Service {
	if weeklyLimit <= 0 {
		weeklyLimit = DefaultWeeklyLimit
	}
	return &Service{store: st, limit: weeklyLimit, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// WeekStart returns the most recent Monday 00:00 UTC at or before t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// Submit validates, checks eligibility and quota, records the submission and
// returns narrative feedback.
func (s *Service) Submit(ctx context.Context, sub *Submission) (*Result, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exercise, err := s.store.Exercises().GetByID(sub.ExerciseID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !exercise.AnalysisSupported) {
		return nil, failure.BackendError(failure.CodeExerciseNotSupported,
			fmt.Sprintf("exercise %q does not support motion analysis", sub.ExerciseID), nil)
	}
	if err != nil {
		return nil, failure.BackendError(failure.CodeServerError, "load exercise", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	weekStart := WeekStart(now)
	resetAt := weekStart.AddDate(0, 0, 7)

	used, err := s.store.Submissions().CountSince(sub.PatientID, weekStart)
	if err != nil {
		return nil, failure.BackendError(failure.CodeServerError, "count submissions", err)
	}
	if used >= s.limit {
		fe := failure.BackendError(failure.CodeWeeklyLimitExceeded,
			fmt.Sprintf("weekly limit of %d analyses reached", s.limit), nil)
		fe.ResetAt = resetAt
		return nil, fe
	}

	feedback := Narrate(sub.Metrics)

	metricsJSON, err := json.Marshal(sub.Metrics)
	if err != nil {
		return nil, failure.BackendError(failure.CodeServerError, "encode metrics", err)
	}
	feedbackJSON, err := json.Marshal(feedback)
	if err != nil {
		return nil, failure.BackendError(failure.CodeServerError, "encode feedback", err)
	}

	rec := &store.Submission{
		ID:           uuid.New().String(),
		PatientID:    sub.PatientID,
		VideoID:      sub.VideoID,
		ExerciseID:   sub.ExerciseID,
		QualityScore: sub.Metrics.QualityScore,
		Metrics:      metricsJSON,
		Feedback:     feedbackJSON,
		CreatedAt:    now,
	}
	if err := s.store.Submissions().Create(rec); err != nil {
		return nil, failure.BackendError(failure.CodeServerError, "record submission", err)
	}

	slog.Info("scoring: submission accepted",
		"submission", rec.ID, "patient", sub.PatientID, "exercise", sub.ExerciseID,
		"quality", sub.Metrics.QualityScore, "used", used+1, "limit", s.limit)

	return &Result{
		SubmissionID:      rec.ID,
		Feedback:          feedback,
		RemainingThisWeek: s.limit - used - 1,
		ResetAt:           resetAt,
	}, nil
}
