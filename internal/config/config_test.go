package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shouldercare.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Camera.FPS != 15 {
		t.Errorf("Camera.FPS = %d, want 15", cfg.Camera.FPS)
	}
	if cfg.Analysis.SampleCount != 5 {
		t.Errorf("Analysis.SampleCount = %d, want 5", cfg.Analysis.SampleCount)
	}
	if cfg.Scoring.WeeklyLimit != 3 {
		t.Errorf("Scoring.WeeklyLimit = %d, want 3", cfg.Scoring.WeeklyLimit)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9090"
store:
  db_path: /tmp/sc.db
capture:
  side: left
analysis:
  sample_count: 8
  scoring_url: http://scoring.local
scoring:
  exercises:
    - id: wall-slide
      name: Wall slide
      analysis_supported: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Listen != ":9090" {
		t.Errorf("Server.Listen = %q", cfg.Server.Listen)
	}
	if cfg.Capture.Side != "left" {
		t.Errorf("Capture.Side = %q", cfg.Capture.Side)
	}
	if cfg.Analysis.SampleCount != 8 || cfg.Analysis.ScoringURL != "http://scoring.local" {
		t.Errorf("unexpected analysis section %+v", cfg.Analysis)
	}
	if len(cfg.Scoring.Exercises) != 1 || cfg.Scoring.Exercises[0].ID != "wall-slide" {
		t.Errorf("expected exercise list replaced, got %+v", cfg.Scoring.Exercises)
	}

	// Untouched sections keep their defaults.
	if cfg.Camera.FPS != 15 {
		t.Errorf("Camera.FPS = %d, want default 15", cfg.Camera.FPS)
	}
	if cfg.Detector.MinConfidence != 0.5 {
		t.Errorf("Detector.MinConfidence = %v, want default 0.5", cfg.Detector.MinConfidence)
	}
	if cfg.Capture.AdvanceDelayMs != 1500 {
		t.Errorf("Capture.AdvanceDelayMs = %d, want default 1500", cfg.Capture.AdvanceDelayMs)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad yaml", "server: [", "parse config"},
		{"bad side", "capture:\n  side: up\n", "capture.side"},
		{"zero samples", "analysis:\n  sample_count: 0\n", "sample_count"},
		{"confidence out of range", "detector:\n  min_confidence: 1.5\n", "min_confidence"},
		{"duplicate exercise", "scoring:\n  exercises:\n    - id: a\n    - id: a\n", "duplicate"},
		{"missing exercise id", "scoring:\n  exercises:\n    - name: nameless\n", "id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
