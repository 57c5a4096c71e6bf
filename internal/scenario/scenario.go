// Package scenario runs the stream check: open the home page, search a
// category, pick a random live channel and confirm its video is playing.
package scenario

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kuitang/streamcheck/internal/config"
	"github.com/kuitang/streamcheck/internal/dom"
	"github.com/kuitang/streamcheck/internal/errs"
	"github.com/kuitang/streamcheck/internal/pages"
	"github.com/kuitang/streamcheck/internal/wait"
)

// ErrNotStreaming is the failure message when the video never plays.
const ErrNotStreaming = "FAIL! Video is not streaming"

// Result is what a run observed. Fields are filled as far as the run got.
type Result struct {
	RunID          string
	Channel        string
	ChannelFound   bool
	// URL is the channel page the video was checked on.
	URL            string
	ScreenshotPath string
}

type runOptions struct {
	logger *slog.Logger
	clock  wait.Clock
	intN   func(int) int
	runID  string
}

type Option func(*runOptions)

func WithLogger(l *slog.Logger) Option { return func(o *runOptions) { o.logger = l } }

func WithClock(c wait.Clock) Option { return func(o *runOptions) { o.clock = c } }

// WithRand replaces the streamer picker; intN returns a value in [0, n).
func WithRand(intN func(int) int) Option { return func(o *runOptions) { o.intN = intN } }

// WithRunID fixes the run id instead of generating a UUID.
func WithRunID(id string) Option { return func(o *runOptions) { o.runID = id } }

// Run drives page through the check. A video that never starts is a
// NotVisible error carrying ErrNotStreaming.
func Run(ctx context.Context, page dom.Page, cfg *config.Config, opts ...Option) (Result, error) {
	o := runOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	res := Result{RunID: o.runID}
	log := o.logger.With("run_id", res.RunID)

	base := pages.NewBase(page, pages.Options{
		BaseURL:       cfg.BaseURL,
		ScreenshotDir: cfg.ScreenshotDir,
		ScrollCount:   cfg.ScrollCount,
		ScrollPause:   cfg.ScrollPause,
		Logger:        log,
		Clock:         o.clock,
		IntN:          o.intN,
	})

	home := pages.NewHome(base)
	if err := home.Open(); err != nil {
		return res, err
	}

	browse, err := home.OpenSearch(ctx)
	if err != nil {
		return res, err
	}

	results, err := browse.SearchFor(ctx, cfg.SearchQuery)
	if err != nil {
		return res, err
	}
	results.LoadMore(ctx)

	streamer, err := results.SelectRandomStreamer(ctx)
	if err != nil {
		return res, err
	}
	res.URL = page.URL()
	log.Info("Opened streamer page", "url", res.URL)

	if !streamer.IsVideoPlaying(ctx, cfg.VideoTimeout) {
		return res, errs.New(errs.NotVisible, ErrNotStreaming)
	}

	res.Channel, res.ChannelFound = streamer.ChannelName(ctx)
	log.Info("Streamer Channel", "channel", res.Channel, "found", res.ChannelFound)

	path, err := streamer.TakeScreenshot(pages.DefaultStreamerScreenshot)
	if err != nil {
		return res, err
	}
	res.ScreenshotPath = path
	log.Info("Streamer view screenshot stored", "path", path)
	return res, nil
}
