package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/streamcheck/internal/artifacts"
	"github.com/kuitang/streamcheck/internal/dom/domtest"
	"github.com/kuitang/streamcheck/internal/report"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newHook(t *testing.T) (*Hook, string) {
	t.Helper()
	dir := t.TempDir()
	return &Hook{
		Dir:    filepath.Join(dir, "screenshots"),
		RunID:  "run-1",
		Report: report.New(filepath.Join(dir, "report.html"), "Stream check", "run-1", fixedNow),
		Now:    func() time.Time { return fixedNow },
	}, dir
}

func TestFileName(t *testing.T) {
	t.Parallel()
	local := time.Date(2026, 3, 4, 0, 6, 7, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "TestStream_Chess_20260304T050607Z.png", FileName("TestStream/Chess", local))
	assert.Equal(t, "screenshot_20260304T050607Z.png", FileName("", fixedNow))
}

func testSafeName_OnlySafeCharacters(t *rapid.T) {
	name := rapid.String().Draw(t, "name")
	safe := SafeName(name)
	if safe == "" || safe == "." || safe == ".." {
		t.Fatalf("unusable file name %q for %q", safe, name)
	}
	if strings.ContainsAny(safe, `/\ :*?"<>|`) {
		t.Fatalf("unsafe characters in %q", safe)
	}
}

func TestSafeName_OnlySafeCharacters(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSafeName_OnlySafeCharacters)
}

func TestResolveDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.Equal(t, FallbackDir, ResolveDir(""))
	assert.Equal(t, FallbackDir, ResolveDir(file))
	assert.Equal(t, dir, ResolveDir(dir))
	assert.Equal(t, filepath.Join(dir, "new"), ResolveDir(filepath.Join(dir, "new")))
}

func TestCapture_SavesAndAttachesImage(t *testing.T) {
	t.Parallel()
	h, dir := newHook(t)

	res := h.Capture(context.Background(), domtest.NewPage(), "TestStream")

	want := filepath.Join(dir, "screenshots", "TestStream_20260304T050607Z.png")
	assert.Equal(t, want, res.Path)
	assert.True(t, res.Attached)
	assert.Equal(t, report.Image, res.Kind)
	assert.Empty(t, res.Warnings)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, domtest.PNG, data)
}

func TestCapture_UploadsAndLinks(t *testing.T) {
	t.Parallel()
	h, _ := newHook(t)
	h.Store = artifacts.TestS3Store(t, "artifacts")

	res := h.Capture(context.Background(), domtest.NewPage(), "TestStream")

	require.Empty(t, res.Warnings)
	assert.True(t, strings.HasSuffix(res.URL, "/artifacts/run-1/TestStream_20260304T050607Z.png"), res.URL)
	entries := h.Report.Entries()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Attachments, 2)
	assert.Equal(t, report.Link, entries[0].Attachments[1].Kind)
	assert.Equal(t, res.URL, entries[0].Attachments[1].Target)
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("bucket unreachable")
}

func TestCapture_UploadFailureIsWarning(t *testing.T) {
	t.Parallel()
	h, _ := newHook(t)
	h.Store = failingStore{}

	res := h.Capture(context.Background(), domtest.NewPage(), "TestStream")

	assert.True(t, res.Attached)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Failed to upload screenshot: bucket unreachable")
}

// blankURLStore accepts the upload but returns a URL the report rejects.
type blankURLStore struct{}

func (blankURLStore) Put(context.Context, string, []byte, string) (string, error) {
	return "   ", nil
}

func TestCapture_UploadLinkFailureIsWarning(t *testing.T) {
	t.Parallel()
	h, _ := newHook(t)
	h.Store = blankURLStore{}

	res := h.Capture(context.Background(), domtest.NewPage(), "TestStream")

	assert.True(t, res.Attached)
	assert.Equal(t, report.Image, res.Kind)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Failed to link uploaded screenshot")
	entries := h.Report.Entries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Attachments, 1)
}

func TestCapture_FallsBackToDataURIWithoutDirectory(t *testing.T) {
	t.Parallel()
	h, dir := newHook(t)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	h.Dir = filepath.Join(blocker, "screenshots")

	res := h.Capture(context.Background(), domtest.NewPage(), "TestStream")

	assert.Empty(t, res.Path)
	assert.True(t, res.Attached)
	assert.Equal(t, report.DataURI, res.Kind)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Could not create screenshot directory")
}

func TestCapture_FallsBackToLinkWhenImageAndInlineFail(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	h := &Hook{
		Dir:    dir,
		Report: report.New("", "Stream check", "run-1", fixedNow),
		Now:    func() time.Time { return fixedNow },
	}
	page := &emptyShotPage{}

	res := h.Capture(context.Background(), page, "TestStream")

	assert.True(t, res.Attached)
	assert.Equal(t, report.Link, res.Kind)
	assert.Len(t, res.Warnings, 2)
	entries := h.Report.Entries()
	require.Len(t, entries[0].Attachments, 1)
	assert.True(t, strings.HasPrefix(entries[0].Attachments[0].Target, "file://"))
}

// emptyShotPage writes a file but returns no bytes.
type emptyShotPage struct{}

func (emptyShotPage) Screenshot(path string, _ bool) ([]byte, error) {
	return nil, os.WriteFile(path, nil, 0o644)
}

func TestCapture_ScreenshotFailureIsWarning(t *testing.T) {
	t.Parallel()
	h, _ := newHook(t)
	page := domtest.NewPage()
	page.ShotErr = errors.New("target closed")

	res := h.Capture(context.Background(), page, "TestStream")

	assert.False(t, res.Attached)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Failed to capture screenshot: target closed")
	assert.Empty(t, h.Report.Entries())
}

func TestCapture_NilPage(t *testing.T) {
	t.Parallel()
	h, _ := newHook(t)
	res := h.Capture(context.Background(), nil, "TestStream")
	assert.Equal(t, []string{"No page to capture"}, res.Warnings)
}

// fakeTB overrides the outcome and cleanup parts of testing.TB.
type fakeTB struct {
	testing.TB
	name     string
	failed   bool
	skipped  bool
	cleanups []func()
	logs     []string
}

func (f *fakeTB) Name() string        { return f.name }
func (f *fakeTB) Failed() bool        { return f.failed }
func (f *fakeTB) Skipped() bool       { return f.skipped }
func (f *fakeTB) Cleanup(fn func())   { f.cleanups = append(f.cleanups, fn) }
func (f *fakeTB) Logf(string, ...any) { f.logs = append(f.logs, "log") }

func (f *fakeTB) finish() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func TestRegister_RecordsOutcomes(t *testing.T) {
	t.Parallel()
	h, dir := newHook(t)

	passed := &fakeTB{TB: t, name: "TestPass"}
	skipped := &fakeTB{TB: t, name: "TestSkip", skipped: true}
	failed := &fakeTB{TB: t, name: "TestFail", failed: true}
	for _, tb := range []*fakeTB{passed, skipped, failed} {
		h.Register(tb, domtest.NewPage())
		tb.finish()
	}

	entries := h.Report.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, report.Passed, entries[0].Outcome)
	assert.Equal(t, report.Skipped, entries[1].Outcome)
	assert.Equal(t, report.Failed, entries[2].Outcome)
	assert.Len(t, entries[2].Attachments, 1)

	_, err := os.Stat(filepath.Join(dir, "screenshots", "TestFail_20260304T050607Z.png"))
	assert.NoError(t, err)
}

func TestRegister_LogsWarnings(t *testing.T) {
	t.Parallel()
	h, _ := newHook(t)
	page := domtest.NewPage()
	page.ShotErr = errors.New("target closed")

	tb := &fakeTB{TB: t, name: "TestFail", failed: true}
	h.Register(tb, page)
	tb.finish()

	assert.Len(t, tb.logs, 1)
}
