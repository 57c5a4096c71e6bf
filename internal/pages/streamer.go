package pages

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kuitang/streamcheck/internal/errs"
	"github.com/kuitang/streamcheck/internal/wait"
)

const (
	ChannelNameSelector = "div[id*='channel'] h1"
	// ConsentSelector is the mature-content "Start Watching" gate.
	ConsentSelector = "//div[text()='Start Watching']"
	ConsentWait     = 5 * time.Second

	// DefaultStreamerScreenshot is the file name TakeScreenshot uses by default.
	DefaultStreamerScreenshot = "streamer_page.png"

	VideoPlayingExpression = `(() => {
	const v = document.querySelector('video');
	return !!(v && !v.paused && !v.ended && v.readyState > 2);
})()`
)

// Streamer is a channel page with its video player.
type Streamer struct {
	*Base
}

// HandleVideoConsent clicks through the content gate when it shows up within
// ConsentWait. It reports whether the gate was shown.
func (p *Streamer) HandleVideoConsent(ctx context.Context) (bool, error) {
	if !p.WaitFor(ctx, wait.Visible(ConsentSelector), ConsentWait) {
		return false, nil
	}
	p.logger.Info("Accepting video consent gate")
	return true, p.SafeClick(ctx, ConsentSelector, DefaultActionTimeout)
}

// IsVideoPlaying handles the consent gate and then waits up to maxWait for
// the <video> element to be playing.
func (p *Streamer) IsVideoPlaying(ctx context.Context, maxWait time.Duration) bool {
	if _, err := p.HandleVideoConsent(ctx); err != nil {
		p.logger.Warn("Video consent gate not dismissed", "error", err)
	}
	return p.WaitFor(ctx, wait.Predicate(func() (bool, error) {
		return p.page.EvaluateBool(VideoPlayingExpression)
	}), maxWait)
}

// ChannelName returns the channel heading text.
func (p *Streamer) ChannelName(ctx context.Context) (string, bool) {
	return p.GetText(ctx, ChannelNameSelector, DefaultTextTimeout)
}

// TakeScreenshot writes a viewport screenshot named name into the screenshot
// directory and returns its path.
func (p *Streamer) TakeScreenshot(name string) (string, error) {
	if name == "" {
		name = DefaultStreamerScreenshot
	}
	if err := os.MkdirAll(p.opts.ScreenshotDir, 0o755); err != nil {
		return "", errs.Wrap(errs.Unavailable, "create screenshot directory", err)
	}
	path := filepath.Join(p.opts.ScreenshotDir, filepath.Base(name))
	if _, err := p.Screenshot(path, false); err != nil {
		return "", err
	}
	return path, nil
}
