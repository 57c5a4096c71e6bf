// Package pages holds the page objects for the streaming site: Home,
// BrowseDirectory, SearchResults and Streamer. Each embeds Base, which
// couples a dom.Page with the poller and overlay dismisser every
// interaction goes through.
package pages

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/streamcheck/internal/config"
	"github.com/kuitang/streamcheck/internal/dom"
	"github.com/kuitang/streamcheck/internal/errs"
	"github.com/kuitang/streamcheck/internal/logutil"
	"github.com/kuitang/streamcheck/internal/overlay"
	"github.com/kuitang/streamcheck/internal/wait"
)

const (
	// DefaultActionTimeout bounds SafeClick and SafeFill.
	DefaultActionTimeout = 10 * time.Second
	// DefaultTextTimeout bounds GetText.
	DefaultTextTimeout = 5 * time.Second
	// ReadyStateTimeout bounds the document.readyState wait after a scroll.
	ReadyStateTimeout = 3 * time.Second

	DefaultScrollCount = 2

	ScrollExpression     = "window.scrollBy(0, window.innerHeight);"
	ReadyStateExpression = "document.readyState === 'complete'"
)

// Options configure a Base. Zero values fall back to defaults, except
// ScrollCount and ScrollPause where zero means none.
type Options struct {
	BaseURL       string
	ScreenshotDir string
	// ScrollCount is the number of viewports LoadMore scrolls. Negative uses
	// DefaultScrollCount.
	ScrollCount int
	ScrollPause   time.Duration
	Logger        *slog.Logger
	Clock         wait.Clock
	// IntN picks the random streamer; it returns a value in [0, n).
	IntN func(n int) int
}

// Base is the shared toolkit of every page object.
type Base struct {
	page     dom.Page
	poller   *wait.Poller
	overlays *overlay.Dismisser
	logger   *slog.Logger
	opts     Options
}

// NewBase wires a poller and dismisser around page.
func NewBase(page dom.Page, opts Options) *Base {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Clock == nil {
		opts.Clock = wait.RealClock{}
	}
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	if opts.ScrollCount < 0 {
		opts.ScrollCount = DefaultScrollCount
	}
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = config.DefaultScreenshotDir
	}

	poller := wait.New(page, wait.WithClock(opts.Clock), wait.WithLogger(opts.Logger.With("pkg", "wait")))
	return &Base{
		page:     page,
		poller:   poller,
		overlays: overlay.New(page, poller, opts.Logger.With("pkg", "overlay")),
		logger:   opts.Logger,
		opts:     opts,
	}
}

func (b *Base) Poller() *wait.Poller {
	return b.poller
}

// Goto navigates and waits for the network to settle.
func (b *Base) Goto(url string) error {
	if err := b.page.Goto(url); err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("navigate to %s", url), err)
	}
	return nil
}

// DismissOverlays clears at most one overlay.
func (b *Base) DismissOverlays(ctx context.Context, waitTime time.Duration) overlay.Match {
	return b.overlays.Dismiss(ctx, waitTime)
}

// WaitFor polls cond for up to timeout.
func (b *Base) WaitFor(ctx context.Context, cond wait.Condition, timeout time.Duration) bool {
	return b.poller.Until(ctx, cond, wait.For(timeout))
}

// GetText waits for selector to be visible and returns its trimmed text.
// It reports false when the element never shows or its text cannot be read.
func (b *Base) GetText(ctx context.Context, selector string, timeout time.Duration) (string, bool) {
	if !b.WaitFor(ctx, wait.Visible(selector), timeout) {
		return "", false
	}

	loc := b.page.Locator(selector).First()
	text, err := loc.InnerText()
	if err != nil {
		text, err = loc.TextContent()
		if err != nil {
			b.logger.Debug("text not readable", "selector", selector, "error", err)
			return "", false
		}
	}
	text = strings.TrimSpace(text)
	b.logger.Debug("read text", "selector", selector, "text", logutil.TruncateForLog(text, 120))
	return text, true
}

// SafeClick dismisses overlays, waits for selector to be visible and clicks
// its first match.
func (b *Base) SafeClick(ctx context.Context, selector string, timeout time.Duration) error {
	loc, err := b.ready(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if err := loc.Click(); err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("click '%s'", selector), err)
	}
	return nil
}

// SafeFill is SafeClick for text inputs.
func (b *Base) SafeFill(ctx context.Context, selector, text string, timeout time.Duration) error {
	loc, err := b.ready(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if err := loc.Fill(text); err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("fill '%s'", selector), err)
	}
	return nil
}

func (b *Base) ready(ctx context.Context, selector string, timeout time.Duration) (dom.Locator, error) {
	b.DismissOverlays(ctx, overlay.DefaultWaitTime)
	if !b.WaitFor(ctx, wait.Visible(selector), timeout) {
		return nil, errs.Newf(errs.NotVisible, "Element '%s' not visible after %s", selector, timeout)
	}
	return b.page.Locator(selector).First(), nil
}

// ScrollDown scrolls one viewport height times times, pausing between
// scrolls, and after each waits briefly for the document to finish loading.
// Scroll failures are ignored.
func (b *Base) ScrollDown(ctx context.Context, times int, pause time.Duration) {
	limit := rate.Inf
	if pause > 0 {
		limit = rate.Every(pause)
	}
	pacer := rate.NewLimiter(limit, 1)

	for i := 0; i < times; i++ {
		if err := pacer.Wait(ctx); err != nil {
			return
		}
		if err := b.page.Evaluate(ScrollExpression); err != nil {
			b.logger.Debug("scroll failed", "error", err)
		}
		b.WaitFor(ctx, wait.Predicate(func() (bool, error) {
			return b.page.EvaluateBool(ReadyStateExpression)
		}), ReadyStateTimeout)
	}
}

// Screenshot captures the page to path.
func (b *Base) Screenshot(path string, fullPage bool) ([]byte, error) {
	data, err := b.page.Screenshot(path, fullPage)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "take screenshot", err)
	}
	return data, nil
}
