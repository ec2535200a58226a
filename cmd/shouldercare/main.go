package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/analysis"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/capture"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/config"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/detector"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/server"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	withTray := flag.Bool("tray", false, "show system tray controls")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("shouldercare: invalid config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = findWebDir()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, *withTray); err != nil {
		slog.Error("shouldercare: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, withTray bool) error {
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	for _, ex := range cfg.Scoring.Exercises {
		if err := st.Exercises().Upsert(&store.Exercise{
			ID:                ex.ID,
			Name:              ex.Name,
			AnalysisSupported: ex.AnalysisSupported,
		}); err != nil {
			return fmt.Errorf("seed exercise %s: %w", ex.ID, err)
		}
	}

	newDetector := detector.Factory(cfg.Detector)

	svc := scoring.NewService(st, cfg.Scoring.WeeklyLimit)
	var submitter scoring.Submitter = svc
	if cfg.Analysis.ScoringURL != "" {
		submitter = scoring.NewClient(cfg.Analysis.ScoringURL)
		slog.Info("shouldercare: using remote scoring service", "url", cfg.Analysis.ScoringURL)
	}

	camera := capture.NewCamera(cfg.Camera.DeviceID)
	camera.SetFPS(cfg.Camera.FPS)

	live := app.New(app.Config{
		Store:        st,
		Camera:       camera,
		NewDetector:  newDetector,
		AdvanceDelay: time.Duration(cfg.Capture.AdvanceDelayMs) * time.Millisecond,
	})
	defer live.Stop()

	pipeline := analysis.New(newDetector, submitter, analysis.WithSampleCount(cfg.Analysis.SampleCount))
	side, _ := pose.ParseSide(cfg.Capture.Side)

	srv := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: server.New(server.Config{
			StaticDir:   cfg.Server.StaticDir,
			Store:       st,
			App:         live,
			Analyzer:    app.NewAnalyzer(pipeline, st),
			Scoring:     svc,
			DefaultSide: side,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("shouldercare: listening", "addr", cfg.Server.Listen, "static", cfg.Server.StaticDir, "db", cfg.Store.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if withTray {
		// The tray owns the main thread until it quits.
		go func() {
			<-ctx.Done()
			tray.Quit()
		}()
		runTray(live, side, cfg.Server.Listen, cancel)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

func runTray(live *app.App, side pose.Side, addr string, quit context.CancelFunc) {
	tr := tray.New()
	live.Subscribe(tr.Update)

	tr.OnStart(func() {
		if _, err := live.Start(side, ""); err != nil {
			slog.Warn("shouldercare: cannot start session", "error", err)
		}
	})
	tr.OnCapture(func() { live.CaptureNow() })
	tr.OnSkip(func() { live.Skip() })
	tr.OnSettings(func() { openBrowser(localURL(addr)) })
	tr.OnQuit(quit)

	tr.Run()
}

func localURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		slog.Warn("shouldercare: cannot open browser", "url", url, "error", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.shouldercare/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".shouldercare", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
