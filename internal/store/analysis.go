package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// AnalysisStatus is the lifecycle state of a batch analysis run.
type AnalysisStatus string

const (
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// Analysis records one batch pipeline run. Metrics and Feedback hold JSON
// documents and are empty until the corresponding stage completes.
type Analysis struct {
	ID           string          `json:"id"`
	VideoID      string          `json:"video_id"`
	ExerciseID   string          `json:"exercise_id"`
	PatientID    string          `json:"patient_id"`
	ClipPath     string          `json:"clip_path"`
	Status       AnalysisStatus  `json:"status"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Metrics      json.RawMessage `json:"metrics,omitempty"`
	Feedback     json.RawMessage `json:"feedback,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AnalysisRepository provides CRUD operations for analysis runs.
type AnalysisRepository struct {
	db *sql.DB
}

// Analyses returns the analysis repository for this store.
func (s *Store) Analyses() *AnalysisRepository {
	return &AnalysisRepository{db: s.db}
}

// Create inserts a new analysis run.
func (r *AnalysisRepository) Create(a *Analysis) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = AnalysisRunning
	}

	_, err := r.db.Exec(
		`INSERT INTO analyses (id, video_id, exercise_id, patient_id, clip_path, status, error_code, error_message, metrics, feedback, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.VideoID, a.ExerciseID, a.PatientID, a.ClipPath, string(a.Status),
		a.ErrorCode, a.ErrorMessage, rawOrNull(a.Metrics), rawOrNull(a.Feedback), a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// Update stores the status, error and result documents of an existing run.
func (r *AnalysisRepository) Update(a *Analysis) error {
	a.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(
		`UPDATE analyses SET status = ?, error_code = ?, error_message = ?, metrics = ?, feedback = ?, updated_at = ?
		 WHERE id = ?`,
		string(a.Status), a.ErrorCode, a.ErrorMessage, rawOrNull(a.Metrics), rawOrNull(a.Feedback), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// GetByID retrieves an analysis run by its ID.
func (r *AnalysisRepository) GetByID(id string) (*Analysis, error) {
	row := r.db.QueryRow(
		`SELECT id, video_id, exercise_id, patient_id, clip_path, status, error_code, error_message, metrics, feedback, created_at, updated_at
		 FROM analyses WHERE id = ?`,
		id,
	)

	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns the most recent runs, newest first.
func (r *AnalysisRepository) List(limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, video_id, exercise_id, patient_id, clip_path, status, error_code, error_message, metrics, feedback, created_at, updated_at
		 FROM analyses ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	return analyses, rows.Err()
}

func scanAnalysis(row scanner) (*Analysis, error) {
	a := &Analysis{}
	var status string
	var metrics, feedback sql.NullString

	err := row.Scan(&a.ID, &a.VideoID, &a.ExerciseID, &a.PatientID, &a.ClipPath, &status,
		&a.ErrorCode, &a.ErrorMessage, &metrics, &feedback, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Status = AnalysisStatus(status)
	if metrics.Valid {
		a.Metrics = json.RawMessage(metrics.String)
	}
	if feedback.Valid {
		a.Feedback = json.RawMessage(feedback.String)
	}
	return a, nil
}

func rawOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
