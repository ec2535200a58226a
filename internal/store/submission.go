package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Submission is an accepted scoring submission.
type Submission struct {
	ID           string          `json:"id"`
	PatientID    string          `json:"patient_id"`
	VideoID      string          `json:"video_id"`
	ExerciseID   string          `json:"exercise_id"`
	QualityScore int             `json:"quality_score"`
	Metrics      json.RawMessage `json:"metrics"`
	Feedback     json.RawMessage `json:"feedback"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SubmissionRepository provides access to accepted submissions.
type SubmissionRepository struct {
	db *sql.DB
}

// Submissions returns the submission repository for this store.
func (s *Store) Submissions() *SubmissionRepository {
	return &SubmissionRepository{db: s.db}
}

// Create inserts a submission. A zero CreatedAt is set to now.
func (r *SubmissionRepository) Create(sub *Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	sub.CreatedAt = sub.CreatedAt.UTC()

	_, err := r.db.Exec(
		`INSERT INTO submissions (id, patient_id, video_id, exercise_id, quality_score, metrics, feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.PatientID, sub.VideoID, sub.ExerciseID, sub.QualityScore,
		string(sub.Metrics), string(sub.Feedback), sub.CreatedAt,
	)
	return err
}

// CountSince returns how many submissions a patient made at or after since.
func (r *SubmissionRepository) CountSince(patientID string, since time.Time) (int, error) {
	subs, err := r.ListByPatient(patientID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, sub := range subs {
		if !sub.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ListByPatient returns all submissions of a patient, newest first.
func (r *SubmissionRepository) ListByPatient(patientID string) ([]*Submission, error) {
	rows, err := r.db.Query(
		`SELECT id, patient_id, video_id, exercise_id, quality_score, metrics, feedback, created_at
		 FROM submissions WHERE patient_id = ?
		 ORDER BY created_at DESC`,
		patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub := &Submission{}
		var metrics, feedback string
		err := rows.Scan(&sub.ID, &sub.PatientID, &sub.VideoID, &sub.ExerciseID, &sub.QualityScore,
			&metrics, &feedback, &sub.CreatedAt)
		if err != nil {
			return nil, err
		}
		sub.Metrics = json.RawMessage(metrics)
		sub.Feedback = json.RawMessage(feedback)
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}
