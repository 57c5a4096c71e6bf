// Package session owns the Playwright driver, the Chrome process and the
// per-run browser context. Everything above it talks to dom.Page.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/streamcheck/internal/dom"
	"github.com/kuitang/streamcheck/internal/errs"
)

// AutoplayArg lets the stream start without a user gesture.
const AutoplayArg = "--autoplay-policy=no-user-gesture-required"

const installHint = "install it with: go run github.com/playwright-community/playwright-go/cmd/playwright@latest install --with-deps"

// Options configure Start and NewPage.
type Options struct {
	// Channel selects the browser build, "chrome" for the installed Google
	// Chrome. Empty uses Playwright's bundled Chromium.
	Channel  string
	Headless bool
	// Device names a Playwright device descriptor, e.g. "Pixel 5". Empty
	// disables emulation.
	Device         string
	DefaultTimeout time.Duration
	Logger         *slog.Logger
}

// Session is a running driver and browser.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	logger  *slog.Logger
}

// Page is one browser context with a single page.
type Page struct {
	*dom.PlaywrightPage
	context playwright.BrowserContext
}

// LaunchOptions returns the Chrome launch options for opts.
func LaunchOptions(opts Options) playwright.BrowserTypeLaunchOptions {
	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{AutoplayArg},
	}
	if opts.Channel != "" {
		launch.Channel = playwright.String(opts.Channel)
	}
	return launch
}

// ContextOptions translates the named device descriptor into context
// options. It reports false when devices has no such entry.
func ContextOptions(devices map[string]*playwright.DeviceDescriptor, name string) (playwright.BrowserNewContextOptions, bool) {
	var out playwright.BrowserNewContextOptions
	d, ok := devices[name]
	if !ok || d == nil {
		return out, false
	}
	out.UserAgent = playwright.String(d.UserAgent)
	out.Viewport = d.Viewport
	out.Screen = d.Screen
	out.DeviceScaleFactor = playwright.Float(d.DeviceScaleFactor)
	out.IsMobile = playwright.Bool(d.IsMobile)
	out.HasTouch = playwright.Bool(d.HasTouch)
	return out, true
}

// Start runs the Playwright driver and launches the browser.
func Start(opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "start Playwright driver; "+installHint, err)
	}

	browser, err := pw.Chromium.Launch(LaunchOptions(opts))
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, fmt.Sprintf("launch browser (channel %q); %s", opts.Channel, installHint), err)
	}

	logger.Info("Browser launched", "channel", opts.Channel, "headless", opts.Headless, "version", browser.Version())
	return &Session{pw: pw, browser: browser, opts: opts, logger: logger}, nil
}

// NewPage opens a fresh context, emulating the configured device, and a page
// in it.
func (s *Session) NewPage() (*Page, error) {
	var ctxOpts playwright.BrowserNewContextOptions
	if s.opts.Device != "" {
		var ok bool
		ctxOpts, ok = ContextOptions(s.pw.Devices, s.opts.Device)
		if ok {
			s.logger.Info("Emulating device", "device", s.opts.Device)
		} else {
			s.logger.Warn("Unknown device, running without emulation", "device", s.opts.Device)
		}
	}

	bctx, err := s.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "create browser context", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, errs.Wrap(errs.Unavailable, "open page", err)
	}
	if s.opts.DefaultTimeout > 0 {
		page.SetDefaultTimeout(float64(s.opts.DefaultTimeout.Milliseconds()))
	}
	return &Page{PlaywrightPage: dom.Wrap(page), context: bctx}, nil
}

// Close closes the page and its context.
func (p *Page) Close() error {
	return errors.Join(p.Unwrap().Close(), p.context.Close())
}

// Close stops the browser and the driver. Both are attempted.
func (s *Session) Close() error {
	var errList []error
	if err := s.browser.Close(); err != nil {
		errList = append(errList, fmt.Errorf("close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errList = append(errList, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errList...)
}
