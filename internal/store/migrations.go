package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// ROM results - the hand-off record of each completed live capture session
		`CREATE TABLE IF NOT EXISTS rom_results (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL CHECK(side IN ('left', 'right')),
			flexion REAL,
			abduction REAL,
			external_rotation REAL,
			skipped INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Exercises - catalog of exercises and whether motion analysis supports them
		`CREATE TABLE IF NOT EXISTS exercises (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			analysis_supported INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Analyses - batch pipeline runs and their outcome
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			video_id TEXT NOT NULL,
			exercise_id TEXT NOT NULL,
			patient_id TEXT NOT NULL DEFAULT '',
			clip_path TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed')),
			error_code TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			metrics TEXT,
			feedback TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Submissions - accepted scoring submissions, counted against the weekly quota
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			video_id TEXT NOT NULL,
			exercise_id TEXT NOT NULL REFERENCES exercises(id),
			quality_score INTEGER NOT NULL,
			metrics TEXT NOT NULL,
			feedback TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_rom_results_patient_id ON rom_results(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_video_id ON analyses(video_id)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_patient_id ON submissions(patient_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
