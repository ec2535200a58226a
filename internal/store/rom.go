package store

import (
	"database/sql"
	"errors"
	"time"
)

// ROMResult is a completed live capture session. A nil angle was not measured.
type ROMResult struct {
	ID               string    `json:"id"`
	PatientID        string    `json:"patient_id"`
	Side             string    `json:"side"`
	Flexion          *float64  `json:"flexion"`
	Abduction        *float64  `json:"abduction"`
	ExternalRotation *float64  `json:"external_rotation"`
	Skipped          bool      `json:"skipped"`
	CreatedAt        time.Time `json:"created_at"`
}

// ROMResultRepository provides access to stored ROM results.
type ROMResultRepository struct {
	db *sql.DB
}

// ROMResults returns the ROM result repository for this store.
func (s *Store) ROMResults() *ROMResultRepository {
	return &ROMResultRepository{db: s.db}
}

// Create inserts a new ROM result.
func (r *ROMResultRepository) Create(res *ROMResult) error {
	res.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO rom_results (id, patient_id, side, flexion, abduction, external_rotation, skipped, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.PatientID, res.Side, res.Flexion, res.Abduction, res.ExternalRotation, res.Skipped, res.CreatedAt,
	)
	return err
}

// GetByID retrieves a ROM result by its ID.
func (r *ROMResultRepository) GetByID(id string) (*ROMResult, error) {
	row := r.db.QueryRow(
		`SELECT id, patient_id, side, flexion, abduction, external_rotation, skipped, created_at
		 FROM rom_results WHERE id = ?`,
		id,
	)

	res, err := scanROMResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByPatient returns a patient's results, newest first.
func (r *ROMResultRepository) ListByPatient(patientID string, limit int) ([]*ROMResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, patient_id, side, flexion, abduction, external_rotation, skipped, created_at
		 FROM rom_results WHERE patient_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		patientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*ROMResult
	for rows.Next() {
		res, err := scanROMResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanROMResult(row scanner) (*ROMResult, error) {
	res := &ROMResult{}
	var flexion, abduction, rotation sql.NullFloat64

	err := row.Scan(&res.ID, &res.PatientID, &res.Side, &flexion, &abduction, &rotation, &res.Skipped, &res.CreatedAt)
	if err != nil {
		return nil, err
	}

	res.Flexion = nullable(flexion)
	res.Abduction = nullable(abduction)
	res.ExternalRotation = nullable(rotation)
	return res, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
