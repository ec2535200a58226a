package scoring

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

func newTestService(t *testing.T, limit int) (*Service, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "scoring.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	for _, e := range []*store.Exercise{
		{ID: "shoulder_abduction", Name: "Shoulder abduction", AnalysisSupported: true},
		{ID: "pendulum", Name: "Pendulum", AnalysisSupported: false},
	} {
		if err := st.Exercises().Upsert(e); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	return NewService(st, limit), st
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"sunday rolls back to monday", time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"monday midnight is itself", time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"wednesday", time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"offset zone converts to UTC first", time.Date(2026, 10, 12, 5, 0, 0, 0, time.FixedZone("KST", 9*3600)), time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.in); !got.Equal(tt.want) {
				t.Errorf("WeekStart() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_WeeklyLimit(t *testing.T) {
	svc, _ := newTestService(t, 2)
	clock := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return clock })

	for i := 0; i < 2; i++ {
		res, err := svc.Submit(context.Background(), testSubmission())
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if res.RemainingThisWeek != 1-i {
			t.Errorf("submit %d: remaining = %d, want %d", i, res.RemainingThisWeek, 1-i)
		}
	}

	_, err := svc.Submit(context.Background(), testSubmission())
	var fe *failure.Error
	if !errors.As(err, &fe) || fe.Code != failure.CodeWeeklyLimitExceeded {
		t.Fatalf("expected WEEKLY_LIMIT_EXCEEDED, got %v", err)
	}
	wantReset := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	if !fe.ResetAt.Equal(wantReset) {
		t.Errorf("ResetAt = %v, want %v", fe.ResetAt, wantReset)
	}
	if fe.Retryable() {
		t.Error("quota errors are not retryable")
	}

	// The quota resets on Monday.
	clock = wantReset
	if _, err := svc.Submit(context.Background(), testSubmission()); err != nil {
		t.Errorf("expected submission after reset, got %v", err)
	}
}

func TestService_QuotaIsPerPatient(t *testing.T) {
	svc, _ := newTestService(t, 1)

	if _, err := svc.Submit(context.Background(), testSubmission()); err != nil {
		t.Fatalf("first patient: %v", err)
	}

	other := testSubmission()
	other.PatientID = "patient-2"
	if _, err := svc.Submit(context.Background(), other); err != nil {
		t.Errorf("second patient should have its own quota: %v", err)
	}
}

func TestService_ExerciseEligibility(t *testing.T) {
	svc, st := newTestService(t, 3)

	for _, id := range []string{"pendulum", "unknown"} {
		sub := testSubmission()
		sub.ExerciseID = id

		_, err := svc.Submit(context.Background(), sub)
		if !failure.Is(err, failure.CodeExerciseNotSupported) {
			t.Errorf("%s: expected EXERCISE_NOT_SUPPORTED, got %v", id, err)
		}
	}

	n, err := st.Submissions().CountSince("patient-1", time.Time{})
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if n != 0 {
		t.Errorf("rejected submissions must not count against the quota, got %d", n)
	}
}

func TestService_RecordsSubmission(t *testing.T) {
	svc, st := newTestService(t, 3)

	res, err := svc.Submit(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.SubmissionID == "" || res.Feedback.Summary == "" {
		t.Errorf("unexpected result %+v", res)
	}

	subs, err := st.Submissions().ListByPatient("patient-1")
	if err != nil {
		t.Fatalf("ListByPatient() error = %v", err)
	}
	if len(subs) != 1 || subs[0].ID != res.SubmissionID || subs[0].QualityScore != 85 {
		t.Errorf("unexpected stored submissions %+v", subs)
	}
}
