// Command streamcheck runs the stream check against the live site once: it
// opens the home page on an emulated phone, searches for a category, picks a
// random live channel and verifies the video is playing.
//
// Usage:
//
//	go run ./cmd/streamcheck -device "Pixel 5" -query Chess
//
// Configuration comes from flags and environment variables; see
// internal/config. The process exits non-zero when the check fails, with the
// exit code derived from the failure's error code.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/streamcheck/internal/artifacts"
	"github.com/kuitang/streamcheck/internal/capture"
	"github.com/kuitang/streamcheck/internal/config"
	"github.com/kuitang/streamcheck/internal/errs"
	"github.com/kuitang/streamcheck/internal/obs"
	"github.com/kuitang/streamcheck/internal/report"
	"github.com/kuitang/streamcheck/internal/scenario"
	"github.com/kuitang/streamcheck/internal/session"
)

const checkName = "StreamCheck"

func main() {
	flags := config.ParseFlags()
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(errs.ExitCode(errs.InvalidArgument))
	}
	cfg.PrintStartupSummary(os.Stdout)

	logger, closer, err := obs.New(obs.Options{Console: os.Stderr, LogDir: cfg.LogDir})
	if err != nil {
		log.Fatalf("Failed to open log directory %s: %v", cfg.LogDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, logger)
	stop()
	_ = closer.Close()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	runID := uuid.NewString()
	logger = logger.With("run", runID)
	logger.Info("Starting stream check", "config", cfg)

	store, err := artifacts.Open(ctx, cfg)
	if err != nil {
		logger.Warn("Artifact upload disabled", "error", err)
	}

	started := time.Now()
	rep := report.New(cfg.ReportPath, "Stream check", runID, started)
	hook := &capture.Hook{
		Dir:    cfg.ScreenshotDir,
		RunID:  runID,
		Report: rep,
		Store:  store,
		Logger: logger,
	}
	defer func() {
		if err := rep.Write(); err != nil {
			logger.Warn("Failed to write report", "path", cfg.ReportPath, "error", err)
			return
		}
		logger.Info("Report written", "path", cfg.ReportPath)
	}()

	sess, err := session.Start(session.Options{
		Channel:        cfg.Channel,
		Headless:       cfg.Headless,
		Device:         cfg.Device,
		DefaultTimeout: cfg.DefaultTimeout,
		Logger:         obs.Pkg(logger, "session"),
	})
	if err != nil {
		return fail(rep, logger, started, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close browser", "error", err)
		}
	}()

	page, err := sess.NewPage()
	if err != nil {
		return fail(rep, logger, started, err)
	}
	defer func() { _ = page.Close() }()

	res, err := scenario.Run(ctx, page, cfg,
		scenario.WithRunID(runID),
		scenario.WithLogger(logger),
	)
	if err != nil {
		shot := hook.Capture(context.WithoutCancel(ctx), page, checkName)
		for _, w := range shot.Warnings {
			logger.Warn(w)
		}
		return fail(rep, logger, started, err)
	}

	rep.Record(checkName, report.Passed, time.Since(started), "")
	if res.URL != "" {
		if err := rep.AttachLink(checkName, "channel", res.URL); err != nil {
			logger.Warn("Failed to link channel page", "error", err)
		}
	}
	if res.ChannelFound {
		logger.Info("Stream is playing", "channel", res.Channel, "screenshot", res.ScreenshotPath)
	} else {
		logger.Info("Stream is playing", "screenshot", res.ScreenshotPath)
	}
	return 0
}

func fail(rep *report.Report, logger *slog.Logger, started time.Time, err error) int {
	rep.Record(checkName, report.Failed, time.Since(started), err.Error())
	logger.Error("Stream check failed", "error", err)
	return errs.ExitCode(errs.CodeOf(err))
}
