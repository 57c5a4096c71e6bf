// Package capture saves a full-page screenshot when a check fails and
// attaches it to the run report. Nothing here ever fails the check: every
// problem is downgraded to a warning.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/kuitang/streamcheck/internal/artifacts"
	"github.com/kuitang/streamcheck/internal/logutil"
	"github.com/kuitang/streamcheck/internal/obs"
	"github.com/kuitang/streamcheck/internal/report"
)

// FallbackDir is used when no directory is configured or the configured
// path is a regular file.
const FallbackDir = "artifacts/screenshots"

// TimestampLayout is the UTC timestamp in screenshot file names.
const TimestampLayout = "20060102T150405Z"

// Screenshotter is the part of dom.Page capture needs.
type Screenshotter interface {
	Screenshot(path string, fullPage bool) ([]byte, error)
}

// Hook captures failure screenshots. Report and Store are optional.
type Hook struct {
	Dir    string
	RunID  string
	Report *report.Report
	Store  artifacts.Store
	Now    func() time.Time
	Logger *slog.Logger
}

// Result describes what a capture produced.
type Result struct {
	Path     string // empty when nothing was written to disk
	Attached bool
	Kind     report.AttachmentKind
	URL      string // set when the screenshot was uploaded
	Warnings []string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName turns a test name such as "TestStream/Chess" into a file-name
// friendly string.
func SafeName(name string) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	if safe == "" || safe == "." || safe == ".." {
		return "screenshot"
	}
	return safe
}

// FileName returns "<safe name>_<UTC timestamp>.png".
func FileName(testName string, now time.Time) string {
	return SafeName(testName) + "_" + now.UTC().Format(TimestampLayout) + ".png"
}

// ResolveDir returns dir unless it is empty or names an existing non-directory.
func ResolveDir(dir string) string {
	if dir == "" {
		return FallbackDir
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return FallbackDir
	}
	return dir
}

func (h *Hook) logger() *slog.Logger {
	if h.Logger == nil {
		return obs.Nop()
	}
	return h.Logger
}

func (h *Hook) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// Capture takes the screenshot for testName and attaches it.
func (h *Hook) Capture(ctx context.Context, page Screenshotter, testName string) Result {
	var res Result
	log := obs.Test(h.logger(), testName)
	warn := func(msg string, err error) {
		text := fmt.Sprintf("%s: %s", msg, logutil.TruncateForLog(err.Error(), 300))
		res.Warnings = append(res.Warnings, text)
		log.Warn(msg, "error", err)
	}

	if page == nil {
		res.Warnings = append(res.Warnings, "No page to capture")
		log.Warn("No page to capture")
		return res
	}

	dir := ResolveDir(h.Dir)
	name := FileName(testName, h.now())
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		warn("Could not create screenshot directory", err)
		path = ""
	}

	data, err := page.Screenshot(path, true)
	if err != nil {
		warn("Failed to capture screenshot", err)
		return res
	}
	res.Path = path
	if path != "" {
		log.Info("Saved failure screenshot", "path", path)
	}

	if h.Store != nil {
		u, err := h.Store.Put(ctx, artifacts.Key(h.RunID, name), data, artifacts.ContentTypePNG)
		if err != nil {
			warn("Failed to upload screenshot", err)
		} else {
			res.URL = u
			log.Info("Uploaded failure screenshot", "url", u)
		}
	}

	if h.Report != nil {
		h.attach(&res, testName, data, warn)
	}
	return res
}

func (h *Hook) attach(res *Result, testName string, data []byte, warn func(string, error)) {
	const label = "screenshot"

	if res.Path != "" {
		err := h.Report.AttachImage(testName, label, res.Path)
		if err == nil {
			res.Attached, res.Kind = true, report.Image
			h.linkUpload(res, testName, warn)
			return
		}
		warn("Failed to attach screenshot image", err)
	}

	err := h.Report.AttachPNG(testName, label, data)
	if err == nil {
		res.Attached, res.Kind = true, report.DataURI
		h.linkUpload(res, testName, warn)
		return
	}
	warn("Failed to embed screenshot", err)

	target := res.URL
	if target == "" && res.Path != "" {
		if abs, err := filepath.Abs(res.Path); err == nil {
			target = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
		}
	}
	if err := h.Report.AttachLink(testName, label, target); err != nil {
		warn("Failed to link screenshot", err)
		return
	}
	res.Attached, res.Kind = true, report.Link
}

func (h *Hook) linkUpload(res *Result, testName string, warn func(string, error)) {
	if res.URL == "" {
		return
	}
	if err := h.Report.AttachLink(testName, "uploaded screenshot", res.URL); err != nil {
		warn("Failed to link uploaded screenshot", err)
	}
}

// Register records t's outcome in the report when the test finishes and
// captures page on failure. Warnings go to t.Logf.
func (h *Hook) Register(t testing.TB, page Screenshotter) {
	started := h.now()
	t.Cleanup(func() {
		elapsed := h.now().Sub(started)
		switch {
		case t.Skipped():
			h.record(t.Name(), report.Skipped, elapsed)
		case t.Failed():
			h.record(t.Name(), report.Failed, elapsed)
			res := h.Capture(context.Background(), page, t.Name())
			for _, w := range res.Warnings {
				t.Logf("WARNING: %s", w)
			}
		default:
			h.record(t.Name(), report.Passed, elapsed)
		}
	})
}

func (h *Hook) record(name string, outcome report.Outcome, d time.Duration) {
	if h.Report == nil {
		return
	}
	h.Report.Record(name, outcome, d, "")
}
