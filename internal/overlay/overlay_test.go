package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/streamcheck/internal/dom/domtest"
	"github.com/kuitang/streamcheck/internal/wait"
)

func newTestDismisser(page *domtest.Page) (*Dismisser, *wait.FakeClock) {
	clock := wait.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(page, wait.New(page, wait.WithClock(clock)), nil), clock
}

func TestDismiss_KnownSelector(t *testing.T) {
	t.Parallel()
	accept := &domtest.Element{
		Selectors:   []string{`button:has-text("Accept")`, ButtonSelector},
		Text:        "Accept",
		Visible:     true,
		HideOnClick: true,
	}
	page := domtest.NewPage(accept)
	d, _ := newTestDismisser(page)

	m := d.Dismiss(context.Background(), DefaultWaitTime)

	assert.Equal(t, Match{Identifier: `button:has-text("Accept")`, Strategy: Known}, m)
	assert.Equal(t, 1, accept.Clicks)
	assert.Empty(t, page.Pressed)
}

func TestDismiss_KnownSelectorReportedEvenWhenOverlayStays(t *testing.T) {
	t.Parallel()
	stubborn := &domtest.Element{
		Selectors: []string{`button[aria-label="Close"]`},
		Visible:   true,
	}
	page := domtest.NewPage(stubborn)
	d, clock := newTestDismisser(page)

	m, trace := d.DismissDetailed(context.Background(), 500*time.Millisecond)

	assert.Equal(t, Match{Identifier: `button[aria-label="Close"]`, Strategy: Known}, m)
	require.Len(t, trace, 1)
	assert.False(t, trace[0].Vanished)
	assert.Equal(t, 500*time.Millisecond, clock.Now().Sub(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDismiss_KnownSelectorOrderWins(t *testing.T) {
	t.Parallel()
	gotIt := &domtest.Element{Selectors: []string{`button:has-text("Got it")`}, Visible: true, HideOnClick: true}
	closeBtn := &domtest.Element{Selectors: []string{`button:has-text("Close")`}, Visible: true, HideOnClick: true}
	page := domtest.NewPage(gotIt, closeBtn)
	d, _ := newTestDismisser(page)

	m := d.Dismiss(context.Background(), DefaultWaitTime)

	assert.Equal(t, `button:has-text("Close")`, m.Identifier)
	assert.Equal(t, 1, closeBtn.Clicks)
	assert.Equal(t, 0, gotIt.Clicks, "only one overlay is dismissed per call")
}

func TestDismiss_InvisibleKnownSelectorIsSkipped(t *testing.T) {
	t.Parallel()
	hidden := &domtest.Element{Selectors: []string{`button:has-text("Accept")`}, Visible: false}
	page := domtest.NewPage(hidden)
	d, _ := newTestDismisser(page)

	m := d.Dismiss(context.Background(), DefaultWaitTime)

	assert.Equal(t, Match{Identifier: EscapeKey, Strategy: Escape}, m)
	assert.Equal(t, 0, hidden.Clicks)
}

func TestDismiss_KeywordButton(t *testing.T) {
	t.Parallel()
	follow := domtest.Button("Follow")
	noThanks := domtest.Button("  No thanks \n")
	noThanks.HideOnClick = true
	page := domtest.NewPage(follow, noThanks)
	d, _ := newTestDismisser(page)

	m := d.Dismiss(context.Background(), DefaultWaitTime)

	assert.Equal(t, Match{Identifier: "no thanks", Strategy: Dynamic}, m)
	assert.Equal(t, 1, noThanks.Clicks)
	assert.Equal(t, 0, follow.Clicks)
}

func TestDismiss_KeywordButtonFallsBackToScriptClick(t *testing.T) {
	t.Parallel()
	btn := domtest.Button("Reject all")
	btn.ClickErr = errors.New("element intercepts pointer events")
	btn.HideOnClick = true
	page := domtest.NewPage(btn)
	d, _ := newTestDismisser(page)

	m, trace := d.DismissDetailed(context.Background(), DefaultWaitTime)

	assert.Equal(t, Match{Identifier: "reject all", Strategy: Dynamic}, m)
	assert.Equal(t, 0, btn.Clicks)
	assert.Equal(t, 1, btn.ScriptClicks)
	require.NotEmpty(t, trace)
	assert.True(t, trace[len(trace)-1].Vanished)
}

func TestDismiss_KeywordPassSkipsInvisibleAndBrokenButtons(t *testing.T) {
	t.Parallel()
	invisible := domtest.Button("Close")
	invisible.Visible = false
	broken := domtest.Button("Cancel")
	broken.TextErr = errors.New("element detached")
	ok := domtest.Button("OK")
	ok.HideOnClick = true
	page := domtest.NewPage(invisible, broken, ok)
	d, _ := newTestDismisser(page)

	m, trace := d.DismissDetailed(context.Background(), DefaultWaitTime)

	assert.Equal(t, Match{Identifier: "ok", Strategy: Dynamic}, m)
	var evalErrors int
	for _, step := range trace {
		if step.Strategy == Dynamic && step.Outcome == EvalError {
			evalErrors++
		}
	}
	assert.Equal(t, 1, evalErrors)
}

func TestDismiss_GenericAttribute(t *testing.T) {
	t.Parallel()
	x := &domtest.Element{Selectors: []string{`*[title*="close" i]`}, Visible: true, HideOnClick: true}
	page := domtest.NewPage(x)
	d, _ := newTestDismisser(page)

	m := d.Dismiss(context.Background(), DefaultWaitTime)

	assert.Equal(t, Match{Identifier: `*[title*="close" i]`, Strategy: Generic}, m)
	assert.Equal(t, 1, x.Clicks)
}

func TestDismiss_EscapeWhenNothingMatches(t *testing.T) {
	t.Parallel()
	page := domtest.NewPage(domtest.Button("Follow"), domtest.Button("Subscribe"))
	d, _ := newTestDismisser(page)

	m := d.Dismiss(context.Background(), DefaultWaitTime)

	assert.Equal(t, Match{Identifier: "Escape", Strategy: Escape}, m)
	assert.Equal(t, []string{"Escape"}, page.Pressed)
}

func TestDismiss_NoMatchWhenEscapeFails(t *testing.T) {
	t.Parallel()
	page := domtest.NewPage()
	page.PressErr = errors.New("target page, context or browser has been closed")
	d, _ := newTestDismisser(page)

	m, trace := d.DismissDetailed(context.Background(), DefaultWaitTime)

	assert.False(t, m.Found())
	assert.Equal(t, Match{}, m)
	require.NotEmpty(t, trace)
	last := trace[len(trace)-1]
	assert.Equal(t, Escape, last.Strategy)
	assert.Equal(t, EvalError, last.Outcome)
}

func TestDismiss_SelectorErrorsCascade(t *testing.T) {
	t.Parallel()
	page := domtest.NewPage()
	for _, sel := range KnownSelectors {
		page.LocatorErr[sel] = fmt.Errorf("selector %s broke", sel)
	}
	page.LocatorErr[ButtonSelector] = errors.New("frame detached")
	d, _ := newTestDismisser(page)

	m, trace := d.DismissDetailed(context.Background(), DefaultWaitTime)

	assert.Equal(t, Escape, m.Strategy)
	var known, dynamic int
	for _, step := range trace {
		if step.Outcome != EvalError {
			continue
		}
		switch step.Strategy {
		case Known:
			known++
		case Dynamic:
			dynamic++
		}
	}
	assert.Equal(t, len(KnownSelectors), known)
	assert.Equal(t, 1, dynamic)
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "matched", Matched.String())
	assert.Equal(t, "not-matched", NotMatched.String())
	assert.Equal(t, "evaluation-error", EvalError.String())
}

func testDismiss_KeywordMatchIsCaseAndSpaceInsensitive(t *rapid.T) {
	keyword := rapid.SampledFrom(Keywords).Draw(t, "keyword")
	prefix := rapid.StringMatching(`[ \t]{0,3}`).Draw(t, "prefix")
	suffix := rapid.StringMatching(`[ \n]{0,3}`).Draw(t, "suffix")
	upper := rapid.Bool().Draw(t, "upper")

	text := keyword
	if upper {
		text = strings.ToUpper(text)
	}
	btn := domtest.Button(prefix + text + suffix)
	btn.HideOnClick = true
	page := domtest.NewPage(btn)
	d, _ := newTestDismisser(page)

	m := d.Dismiss(context.Background(), DefaultWaitTime)
	if m.Strategy != Dynamic || m.Identifier != keyword {
		t.Fatalf("expected (%q, dynamic), got (%q, %q)", keyword, m.Identifier, m.Strategy)
	}
}

func TestDismiss_KeywordMatchIsCaseAndSpaceInsensitive(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testDismiss_KeywordMatchIsCaseAndSpaceInsensitive)
}
