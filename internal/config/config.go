// Package config loads the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/capture"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/detector"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
)

// Config holds the full service configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Store    StoreConfig     `yaml:"store"`
	Camera   CameraConfig    `yaml:"camera"`
	Detector detector.Config `yaml:"detector"`
	Capture  CaptureConfig   `yaml:"capture"`
	Analysis AnalysisConfig  `yaml:"analysis"`
	Scoring  ScoringConfig   `yaml:"scoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

// CameraConfig configures the live webcam.
type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	FPS      int `yaml:"fps"`
}

// CaptureConfig configures the live ROM capture flow.
type CaptureConfig struct {
	Side string `yaml:"side"`
	// AdvanceDelayMs is how long a captured step stays on screen before the flow moves on.
	AdvanceDelayMs int `yaml:"advance_delay_ms"`
}

// AnalysisConfig configures batch clip analysis.
type AnalysisConfig struct {
	SampleCount int `yaml:"sample_count"`
	// ScoringURL points at a remote scoring service. Empty uses the built-in one.
	ScoringURL string `yaml:"scoring_url"`
}

// ScoringConfig configures the built-in scoring and quota service.
type ScoringConfig struct {
	WeeklyLimit int        `yaml:"weekly_limit"`
	Exercises   []Exercise `yaml:"exercises"`
}

// Exercise is a catalog entry seeded into the store at startup.
type Exercise struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	AnalysisSupported bool   `yaml:"analysis_supported"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8080",
		},
		Store: StoreConfig{
			DBPath: defaultDBPath(),
		},
		Camera: CameraConfig{
			DeviceID: 0,
			FPS:      capture.DefaultFPS,
		},
		Detector: detector.DefaultConfig(),
		Capture: CaptureConfig{
			Side:           string(pose.SideRight),
			AdvanceDelayMs: 1500,
		},
		Analysis: AnalysisConfig{
			SampleCount: capture.DefaultSampleCount,
		},
		Scoring: ScoringConfig{
			WeeklyLimit: scoring.DefaultWeeklyLimit,
			Exercises: []Exercise{
				{ID: "shoulder-flexion", Name: "Shoulder flexion", AnalysisSupported: true},
				{ID: "shoulder-abduction", Name: "Shoulder abduction", AnalysisSupported: true},
				{ID: "pendulum", Name: "Pendulum swing", AnalysisSupported: false},
			},
		},
	}
}

// Load reads a YAML config file and merges it over DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be > 0")
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be in [0, 1]")
	}
	if c.Detector.MinTrackingConf < 0 || c.Detector.MinTrackingConf > 1 {
		return fmt.Errorf("detector.min_tracking_confidence must be in [0, 1]")
	}
	if c.Detector.ModelComplexity < 0 || c.Detector.ModelComplexity > 2 {
		return fmt.Errorf("detector.model_complexity must be 0, 1 or 2")
	}
	if _, err := pose.ParseSide(c.Capture.Side); err != nil {
		return fmt.Errorf("capture.side: %w", err)
	}
	if c.Capture.AdvanceDelayMs < 0 {
		return fmt.Errorf("capture.advance_delay_ms must be >= 0")
	}
	if c.Analysis.SampleCount <= 0 {
		return fmt.Errorf("analysis.sample_count must be > 0")
	}
	if c.Scoring.WeeklyLimit <= 0 {
		return fmt.Errorf("scoring.weekly_limit must be > 0")
	}
	seen := make(map[string]bool)
	for i, ex := range c.Scoring.Exercises {
		if ex.ID == "" {
			return fmt.Errorf("scoring.exercises[%d]: id is required", i)
		}
		if seen[ex.ID] {
			return fmt.Errorf("scoring.exercises[%d]: duplicate id %q", i, ex.ID)
		}
		seen[ex.ID] = true
	}
	return nil
}

// DataDir returns the directory holding the database file.
func (c *Config) DataDir() string {
	return filepath.Dir(c.Store.DBPath)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shouldercare.db"
	}
	return filepath.Join(home, ".shouldercare", "shouldercare.db")
}
