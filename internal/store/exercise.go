package store

import (
	"database/sql"
	"errors"
	"time"
)

// Exercise is a catalog entry. AnalysisSupported marks exercises the motion
// analysis can score.
type Exercise struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	AnalysisSupported bool      `json:"analysis_supported"`
	CreatedAt         time.Time `json:"created_at"`
}

// ExerciseRepository provides CRUD operations for the exercise catalog.
type ExerciseRepository struct {
	db *sql.DB
}

// Exercises returns the exercise repository for this store.
func (s *Store) Exercises() *ExerciseRepository {
	return &ExerciseRepository{db: s.db}
}

// Upsert inserts an exercise or updates the name and support flag of an existing one.
func (r *ExerciseRepository) Upsert(e *Exercise) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO exercises (id, name, analysis_supported, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, analysis_supported = excluded.analysis_supported`,
		e.ID, e.Name, e.AnalysisSupported, e.CreatedAt,
	)
	return err
}

// GetByID retrieves an exercise by its ID.
func (r *ExerciseRepository) GetByID(id string) (*Exercise, error) {
	e := &Exercise{}

	err := r.db.QueryRow(
		`SELECT id, name, analysis_supported, created_at FROM exercises WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.Name, &e.AnalysisSupported, &e.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List retrieves all exercises ordered by ID.
func (r *ExerciseRepository) List() ([]*Exercise, error) {
	rows, err := r.db.Query(`SELECT id, name, analysis_supported, created_at FROM exercises ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []*Exercise
	for rows.Next() {
		e := &Exercise{}
		if err := rows.Scan(&e.ID, &e.Name, &e.AnalysisSupported, &e.CreatedAt); err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}

	return exercises, rows.Err()
}
