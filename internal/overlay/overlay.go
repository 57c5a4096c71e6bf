// Package overlay dismisses modals, cookie prompts and banners that block
// interaction with the page underneath.
//
// Dismiss runs a fixed cascade and stops at the first strategy that clicks
// something: known selectors, keyword-matched buttons, generic attribute
// selectors, and finally an Escape key press. At most one overlay is
// dismissed per call. Nothing in the cascade returns an error or blocks past
// its wait budget.
package overlay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kuitang/streamcheck/internal/dom"
	"github.com/kuitang/streamcheck/internal/wait"
)

// Strategy tags which pass of the cascade produced a match.
type Strategy string

const (
	Known   Strategy = "known"
	Dynamic Strategy = "dynamic"
	Generic Strategy = "generic"
	Escape  Strategy = "escape"
)

// EscapeKey is the key pressed by the last pass, and its reported identifier.
const EscapeKey = "Escape"

// ButtonSelector enumerates button-like elements for the keyword pass.
const ButtonSelector = "button, [role='button']"

// DefaultWaitTime bounds the vanish-wait after each click.
const DefaultWaitTime = time.Second

const vanishPollInterval = 250 * time.Millisecond

// KnownSelectors are high-confidence close/accept controls, tried in order.
var KnownSelectors = []string{
	`button[aria-label="Close"]`,
	`button:has-text("Close")`,
	`button:has-text("No thanks")`,
	`button:has-text("Not now")`,
	`button:has-text("Got it")`,
	`button:has-text("I Accept")`,
	`button:has-text("Accept")`,
	`div[role="dialog"] button`,
	`button[aria-label*="close" i]`,
	`button[aria-label*="dismiss" i]`,
}

// Keywords are matched as substrings of a button's trimmed, lower-cased text.
var Keywords = []string{"close", "dismiss", "no", "deny", "reject", "cancel", "got it", "ok", "accept"}

// GenericSelectors match any element whose label hints at closing.
var GenericSelectors = []string{
	`*[aria-label*="close" i]`,
	`*[aria-label*="accept" i]`,
	`*[aria-label*="dismiss" i]`,
	`*[title*="close" i]`,
	`*[title*="dismiss" i]`,
	`*[alt*="close" i]`,
}

// Match is the control a Dismiss call acted on. The zero Match means nothing
// was dismissed.
type Match struct {
	// Identifier is the selector for known and generic matches, the lower-cased
	// button text for dynamic matches, and EscapeKey for escape.
	Identifier string
	Strategy   Strategy
}

// Found reports whether m is a real match.
func (m Match) Found() bool {
	return m.Strategy != ""
}

// Outcome classifies a single candidate probed by the cascade.
type Outcome int

const (
	NotMatched Outcome = iota
	Matched
	// EvalError means the candidate could not be evaluated, e.g. the selector
	// threw or the element detached mid-check.
	EvalError
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case EvalError:
		return "evaluation-error"
	default:
		return "not-matched"
	}
}

// StepResult records one candidate probed by the cascade.
type StepResult struct {
	Strategy  Strategy
	Candidate string
	Outcome   Outcome
	Err       error
	// Vanished reports whether the clicked control disappeared within the
	// wait budget. Only meaningful for Matched click strategies.
	Vanished bool
}

// Dismisser runs the cascade against one page.
type Dismisser struct {
	page   dom.Page
	poller *wait.Poller
	logger *slog.Logger
}

// New returns a Dismisser. poller confirms that clicked controls vanish.
func New(page dom.Page, poller *wait.Poller, logger *slog.Logger) *Dismisser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dismisser{page: page, poller: poller, logger: logger}
}

// Dismiss clears at most one overlay. waitTime bounds the vanish-wait after
// a click and is raised to wait.MinWait when smaller.
func (d *Dismisser) Dismiss(ctx context.Context, waitTime time.Duration) Match {
	m, _ := d.DismissDetailed(ctx, waitTime)
	return m
}

// DismissDetailed is Dismiss plus the trace of every candidate probed, for
// callers that need to tell "nothing there" from "evaluation broke".
func (d *Dismisser) DismissDetailed(ctx context.Context, waitTime time.Duration) (Match, []StepResult) {
	opts := wait.Options{MaxWait: waitTime, PollInterval: vanishPollInterval}
	var trace []StepResult

	passes := []func(context.Context, wait.Options) []StepResult{
		d.knownPass,
		d.keywordPass,
		d.genericPass,
		d.escapePass,
	}
	for _, pass := range passes {
		results := pass(ctx, opts)
		trace = append(trace, results...)
		if n := len(results); n > 0 && results[n-1].Outcome == Matched {
			last := results[n-1]
			m := Match{Identifier: last.Candidate, Strategy: last.Strategy}
			d.logger.Info("overlay dismissed", "strategy", string(m.Strategy), "identifier", m.Identifier, "vanished", last.Vanished)
			return m, trace
		}
	}

	d.logger.Debug("no overlay dismissed", "candidates", len(trace))
	return Match{}, trace
}

func (d *Dismisser) knownPass(ctx context.Context, opts wait.Options) []StepResult {
	return d.selectorPass(ctx, Known, KnownSelectors, opts)
}

func (d *Dismisser) genericPass(ctx context.Context, opts wait.Options) []StepResult {
	return d.selectorPass(ctx, Generic, GenericSelectors, opts)
}

// selectorPass clicks the first visible match of the first selector that has
// one. The match is reported once the click is attempted, whether or not the
// control then vanishes.
func (d *Dismisser) selectorPass(ctx context.Context, strategy Strategy, selectors []string, opts wait.Options) []StepResult {
	results := make([]StepResult, 0, len(selectors))
	for _, sel := range selectors {
		loc := d.page.Locator(sel).First()
		step := probe(loc)
		step.Strategy = strategy
		step.Candidate = sel
		if step.Outcome == Matched {
			step.Vanished = d.clickAndWait(ctx, loc, opts)
			return append(results, step)
		}
		if step.Err != nil {
			d.logger.Debug("overlay selector failed", "strategy", string(strategy), "selector", sel, "error", step.Err)
		}
		results = append(results, step)
	}
	return results
}

func (d *Dismisser) keywordPass(ctx context.Context, opts wait.Options) []StepResult {
	buttons := d.page.Locator(ButtonSelector)
	count, err := buttons.Count()
	if err != nil {
		d.logger.Debug("overlay button scan failed", "error", err)
		return []StepResult{{Strategy: Dynamic, Candidate: ButtonSelector, Outcome: EvalError, Err: err}}
	}

	var results []StepResult
	for i := 0; i < count; i++ {
		btn := buttons.Nth(i)
		visible, err := btn.IsVisible()
		if err != nil {
			results = append(results, StepResult{Strategy: Dynamic, Candidate: ButtonSelector, Outcome: EvalError, Err: err})
			continue
		}
		if !visible {
			continue
		}
		raw, err := btn.InnerText()
		if err != nil {
			results = append(results, StepResult{Strategy: Dynamic, Candidate: ButtonSelector, Outcome: EvalError, Err: err})
			continue
		}
		text := strings.ToLower(strings.TrimSpace(raw))
		if !containsKeyword(text) {
			results = append(results, StepResult{Strategy: Dynamic, Candidate: text, Outcome: NotMatched})
			continue
		}
		step := StepResult{Strategy: Dynamic, Candidate: text, Outcome: Matched}
		step.Vanished = d.clickAndWait(ctx, btn, opts)
		return append(results, step)
	}
	return results
}

func (d *Dismisser) escapePass(_ context.Context, _ wait.Options) []StepResult {
	if err := d.page.Press(EscapeKey); err != nil {
		d.logger.Debug("escape key press failed", "error", err)
		return []StepResult{{Strategy: Escape, Candidate: EscapeKey, Outcome: EvalError, Err: err}}
	}
	return []StepResult{{Strategy: Escape, Candidate: EscapeKey, Outcome: Matched}}
}

// probe reports Matched when loc has at least one visible element.
func probe(loc dom.Locator) StepResult {
	count, err := loc.Count()
	if err != nil {
		return StepResult{Outcome: EvalError, Err: err}
	}
	if count == 0 {
		return StepResult{Outcome: NotMatched}
	}
	visible, err := loc.IsVisible()
	if err != nil {
		return StepResult{Outcome: EvalError, Err: err}
	}
	if !visible {
		return StepResult{Outcome: NotMatched}
	}
	return StepResult{Outcome: Matched}
}

// clickAndWait clicks loc, falling back to a script click when the native
// click is rejected, then waits for loc to stop being visible.
func (d *Dismisser) clickAndWait(ctx context.Context, loc dom.Locator, opts wait.Options) bool {
	if err := loc.Click(); err != nil {
		d.logger.Debug("native click failed, trying script click", "error", err)
		if err := loc.ScriptClick(); err != nil {
			d.logger.Debug("script click failed", "error", err)
		}
	}
	return d.poller.Until(ctx, wait.Predicate(func() (bool, error) {
		visible, err := loc.IsVisible()
		if err != nil {
			return false, err
		}
		return !visible, nil
	}), opts)
}

func containsKeyword(text string) bool {
	for _, k := range Keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
