package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutlist/cutlist-agent/internal/api"
	"github.com/cutlist/cutlist-agent/internal/config"
	"github.com/cutlist/cutlist-agent/internal/db"
	"github.com/cutlist/cutlist-agent/internal/logging"
	"github.com/cutlist/cutlist-agent/internal/media"
	"github.com/cutlist/cutlist-agent/internal/playback"
	"github.com/cutlist/cutlist-agent/internal/session"
	"github.com/cutlist/cutlist-agent/internal/ui"
	"github.com/cutlist/cutlist-agent/internal/watcher"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ThumbnailDir(), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutlist agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  CUTLIST AGENT v%-25s ║\n", Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	thumbW, thumbH := cfg.ThumbSize()
	backend, err := media.NewFFmpeg(media.Config{
		FFmpegPath:     cfg.FFmpegPath(),
		FFprobePath:    cfg.FFprobePath(),
		ThumbnailDir:   cfg.ThumbnailDir(),
		ThumbWidth:     thumbW,
		ThumbHeight:    thumbH,
		Timeout:        cfg.BackendTimeout(),
		DoctorTimeout:  cfg.DoctorTimeout(),
		KeepAllStreams: cfg.KeepAllStreams(),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize media backend: %w", err)
	}

	doctor := media.NewCachedDoctor(backend, logger)
	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.DoctorTimeout())
	if caps, err := doctor.Refresh(initCtx); err != nil {
		logger.Warn("initial media tool probe failed", "error", err)
	} else {
		logger.Info("media tools detected",
			"ffmpeg", caps.FFmpeg.Version,
			"ffprobe", caps.FFprobe.Version,
			"ready", caps.AllOK(),
		)
	}
	initCancel()

	fileWatcher := watcher.New(logger)
	defer fileWatcher.Stop()

	manager := session.NewManager(repo, backend, fileWatcher, logger)
	playbackSvc := playback.NewServer(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := session.NewRunner(manager, repo, backend, doctor, logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        Version,
		Sessions:       manager,
		PlaybackServer: playbackSvc,
		Repository:     repo,
		Runner:         runner,
		Doctor:         doctor,
		Logger:         logger,
		StartTime:      startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	if id := runner.ActiveJobID(); id != "" {
		if err := runner.Cancel(context.Background(), id); err != nil {
			logger.Warn("failed to cancel active save", "job_id", id, "error", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
