// Command romanalyze runs the batch motion analysis on a recorded clip and
// prints the metrics and the scoring outcome.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cheggaaa/pb/v3"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/analysis"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/config"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/detector"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

const barTemplate = `{{ string . "prefix" }} {{counters . }} {{bar . }} {{percent . }} {{etime . "%s elapsed"}}`

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	clipPath := flag.String("clip", "", "video clip to analyze (required)")
	videoID := flag.String("video", "", "video ID (defaults to the clip file name)")
	exerciseID := flag.String("exercise", "", "exercise ID (required)")
	patientID := flag.String("patient", "", "patient ID")
	samples := flag.Int("samples", 0, "frames to sample (overrides config)")
	scoringURL := flag.String("scoring-url", "", "remote scoring service URL (overrides config)")
	retry := flag.Bool("retry", false, "resubmit once after a SERVER_ERROR")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *clipPath == "" || *exerciseID == "" {
		fmt.Fprintln(os.Stderr, "usage: romanalyze -clip <file> -exercise <id> [-video <id>] [-patient <id>] [-config <file>]")
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "romanalyze: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *samples > 0 {
		cfg.Analysis.SampleCount = *samples
	}
	if *scoringURL != "" {
		cfg.Analysis.ScoringURL = *scoringURL
	}

	if *videoID == "" {
		base := filepath.Base(*clipPath)
		*videoID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := analysis.Request{
		VideoID:    *videoID,
		ExerciseID: *exerciseID,
		PatientID:  *patientID,
		ClipPath:   *clipPath,
	}
	if err := run(ctx, cfg, req, *retry); err != nil {
		printFailure(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, req analysis.Request, retry bool) error {
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var submitter scoring.Submitter
	if cfg.Analysis.ScoringURL != "" {
		submitter = scoring.NewClient(cfg.Analysis.ScoringURL)
	} else {
		for _, ex := range cfg.Scoring.Exercises {
			if err := st.Exercises().Upsert(&store.Exercise{
				ID:                ex.ID,
				Name:              ex.Name,
				AnalysisSupported: ex.AnalysisSupported,
			}); err != nil {
				return fmt.Errorf("seed exercise %s: %w", ex.ID, err)
			}
		}
		submitter = scoring.NewService(st, cfg.Scoring.WeeklyLimit)
	}

	pipeline := analysis.New(detector.Factory(cfg.Detector), submitter,
		analysis.WithSampleCount(cfg.Analysis.SampleCount))
	analyzer := app.NewAnalyzer(pipeline, st)

	bar := pb.ProgressBarTemplate(barTemplate).Start(len(analysis.Stages))
	progress := func(s analysis.Stage) {
		bar.Set("prefix", string(s))
		bar.Increment()
	}

	rec, err := analyzer.Run(ctx, req, progress)
	bar.Finish()

	if err != nil && retry && rec != nil && failure.Is(err, failure.CodeServerError) {
		fmt.Fprintln(os.Stderr, "scoring service error, resubmitting once")
		rec, err = analyzer.Resubmit(ctx, rec.ID)
	}

	if rec != nil && len(rec.Metrics) > 0 {
		printSection("Metrics", rec.Metrics)
	}
	if err != nil {
		return err
	}
	printSection("Feedback", rec.Feedback)
	fmt.Printf("Analysis %s completed\n", rec.ID)
	return nil
}

func printSection(title string, raw json.RawMessage) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	fmt.Printf("%s:\n%s\n", title, out)
}

func printFailure(err error) {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		fmt.Fprintf(os.Stderr, "romanalyze: %v\n", err)
		return
	}

	fmt.Fprintf(os.Stderr, "romanalyze: %s: %s\n", fe.Code, fe.Message)
	if !fe.ResetAt.IsZero() {
		fmt.Fprintf(os.Stderr, "quota resets at %s\n", fe.ResetAt.Format("2006-01-02 15:04 MST"))
	}
	if fe.Err != nil {
		fmt.Fprintf(os.Stderr, "cause: %v\n", fe.Err)
	}
}
