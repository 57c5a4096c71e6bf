// Package report collects per-check outcomes and failure screenshots and
// renders them as a self-contained HTML page.
package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/streamcheck/internal/errs"
)

// MaxInlineBytes bounds screenshots embedded as data URIs.
const MaxInlineBytes = 8 << 20

type Outcome string

const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Skipped Outcome = "skipped"
)

type AttachmentKind int

const (
	// Image references a file relative to the report.
	Image AttachmentKind = iota
	// DataURI embeds a PNG.
	DataURI
	// Link points at an uploaded or external copy.
	Link
)

type Attachment struct {
	Name   string
	Kind   AttachmentKind
	Target string // relative path, data URI or URL
}

type Entry struct {
	Name        string
	Outcome     Outcome
	Duration    time.Duration
	Message     string
	Attachments []Attachment
}

// Report is safe for concurrent use by parallel tests.
type Report struct {
	mu      sync.Mutex
	path    string
	title   string
	runID   string
	started time.Time
	entries []*Entry
	byName  map[string]*Entry
}

// New returns an empty report that will be written to path.
func New(path, title, runID string, started time.Time) *Report {
	return &Report{
		path:    path,
		title:   title,
		runID:   runID,
		started: started.UTC(),
		byName:  make(map[string]*Entry),
	}
}

func (r *Report) Path() string {
	return r.path
}

func (r *Report) entry(name string) *Entry {
	e, ok := r.byName[name]
	if !ok {
		e = &Entry{Name: name}
		r.byName[name] = e
		r.entries = append(r.entries, e)
	}
	return e
}

// Record sets the outcome of a check. Recording twice overwrites.
func (r *Report) Record(name string, outcome Outcome, d time.Duration, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(name)
	e.Outcome = outcome
	e.Duration = d
	e.Message = message
}

// AttachImage links a screenshot file by its path relative to the report.
func (r *Report) AttachImage(name, label, path string) error {
	if r.path == "" {
		return errs.New(errs.InvalidArgument, "report has no output path")
	}
	absReport, err := filepath.Abs(filepath.Dir(r.path))
	if err != nil {
		return errs.Wrap(errs.Internal, "resolve report directory", err)
	}
	absImage, err := filepath.Abs(path)
	if err != nil {
		return errs.Wrap(errs.Internal, "resolve screenshot path", err)
	}
	if _, err := os.Stat(absImage); err != nil {
		return errs.Wrap(errs.NotFound, fmt.Sprintf("screenshot %q", path), err)
	}
	rel, err := filepath.Rel(absReport, absImage)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("screenshot %q is not reachable from the report", path), err)
	}
	target := (&url.URL{Path: filepath.ToSlash(rel)}).String()
	return r.attach(name, Attachment{Name: label, Kind: Image, Target: target})
}

// AttachPNG embeds a PNG as a base64 data URI.
func (r *Report) AttachPNG(name, label string, data []byte) error {
	if len(data) == 0 {
		return errs.New(errs.InvalidArgument, "screenshot is empty")
	}
	if len(data) > MaxInlineBytes {
		return errs.Newf(errs.InvalidArgument, "screenshot is %d bytes, inline limit is %d", len(data), MaxInlineBytes)
	}
	target := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	return r.attach(name, Attachment{Name: label, Kind: DataURI, Target: target})
}

// AttachLink adds a plain link.
func (r *Report) AttachLink(name, label, target string) error {
	if strings.TrimSpace(target) == "" {
		return errs.New(errs.InvalidArgument, "link target is empty")
	}
	return r.attach(name, Attachment{Name: label, Kind: Link, Target: target})
}

func (r *Report) attach(name string, a Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(name)
	e.Attachments = append(e.Attachments, a)
	return nil
}

// Entries returns a copy of the recorded entries in insertion order.
func (r *Report) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
		out[i].Attachments = append([]Attachment(nil), e.Attachments...)
	}
	return out
}

// Markdown renders the report body.
func (r *Report) Markdown() string {
	entries := r.Entries()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(r.title))
	fmt.Fprintf(&b, "Run `%s` started %s\n\n", r.runID, r.started.Format(time.RFC3339))

	counts := map[Outcome]int{}
	for _, e := range entries {
		counts[e.Outcome]++
	}
	fmt.Fprintf(&b, "**%d passed, %d failed, %d skipped**\n\n", counts[Passed], counts[Failed], counts[Skipped])

	if len(entries) == 0 {
		b.WriteString("No checks ran.\n")
		return b.String()
	}

	b.WriteString("| Check | Outcome | Duration |\n|---|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", escape(e.Name), outcomeOrUnknown(e.Outcome), e.Duration.Round(time.Millisecond))
	}

	for _, e := range entries {
		if e.Message == "" && len(e.Attachments) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", escape(e.Name))
		if e.Message != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.ReplaceAll(e.Message, "```", "'''"))
		}
		for _, a := range e.Attachments {
			switch a.Kind {
			case Image, DataURI:
				fmt.Fprintf(&b, "![%s](%s)\n\n", escape(a.Name), a.Target)
			case Link:
				fmt.Fprintf(&b, "[%s](%s)\n\n", escape(a.Name), a.Target)
			}
		}
	}
	return b.String()
}

// HTML renders the report as a sanitized standalone document.
func (r *Report) HTML() ([]byte, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(r.Markdown()))
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	body := sanitizer().SanitizeBytes(markdown.Render(doc, renderer))

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title   string
		Content template.HTML
	}{r.title, template.HTML(body)})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "render report", err)
	}
	return buf.Bytes(), nil
}

// Write renders the report to its path, creating parent directories.
func (r *Report) Write() error {
	if r.path == "" {
		return errs.New(errs.InvalidArgument, "report has no output path")
	}
	page, err := r.HTML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errs.Wrap(errs.Unavailable, "create report directory", err)
	}
	if err := os.WriteFile(r.path, page, 0o644); err != nil {
		return errs.Wrap(errs.Unavailable, "write report", err)
	}
	return nil
}

func sanitizer() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return policy
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"|", `\|`, "<", "&lt;", ">", "&gt;", "#", `\#`, "!", `\!`,
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}

func outcomeOrUnknown(o Outcome) string {
	if o == "" {
		return "unknown"
	}
	return string(o)
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 960px; margin: 0 auto; padding: 2rem 1rem; line-height: 1.5; }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #e0e0e0; padding: 0.4rem 0.6rem; text-align: left; }
        pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; }
        img { max-width: 100%; border: 1px solid #e0e0e0; }
    </style>
</head>
<body>
{{.Content}}
</body>
</html>`))
