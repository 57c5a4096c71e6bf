// Package wait implements the bounded condition poller that every page
// interaction is built on.
//
// A Poller samples a Condition at a fixed interval until it holds or the
// deadline passes. Errors and panics raised while sampling count as "not yet".
// Until reports a bool and never an error; callers decide whether false is
// fatal.
package wait

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kuitang/streamcheck/internal/dom"
)

const (
	DefaultMaxWait      = 5 * time.Second
	DefaultPollInterval = 500 * time.Millisecond

	// MinWait is the floor applied to Options.MaxWait.
	MinWait = 200 * time.Millisecond
)

// State is the element state an ElementCheck waits for.
type State string

const (
	// StateVisible holds when at least one match is visible.
	StateVisible State = "visible"
	// StateHidden holds when no match is visible, including when there are
	// no matches at all.
	StateHidden State = "hidden"
	// StateAttached holds when at least one match exists.
	StateAttached State = "attached"
)

// Condition is what a Poller waits for. It is either a Predicate or an
// ElementCheck; there are no other implementations.
type Condition interface {
	fmt.Stringer
	condition()
}

type predicate struct {
	fn func() (bool, error)
}

func (predicate) condition() {}

func (predicate) String() string { return "predicate" }

// Predicate waits until fn reports true.
func Predicate(fn func() (bool, error)) Condition {
	return predicate{fn: fn}
}

// PredicateFunc adapts an infallible boolean function.
func PredicateFunc(fn func() bool) Condition {
	return predicate{fn: func() (bool, error) { return fn(), nil }}
}

type elementCheck struct {
	selector string
	state    State
}

func (elementCheck) condition() {}

func (c elementCheck) String() string {
	return fmt.Sprintf("%s %q", c.state, c.selector)
}

// ElementCheck waits until the elements matching selector reach state.
func ElementCheck(selector string, state State) Condition {
	return elementCheck{selector: selector, state: state}
}

// Visible is ElementCheck(selector, StateVisible).
func Visible(selector string) Condition { return ElementCheck(selector, StateVisible) }

// Hidden is ElementCheck(selector, StateHidden).
func Hidden(selector string) Condition { return ElementCheck(selector, StateHidden) }

// Attached is ElementCheck(selector, StateAttached).
func Attached(selector string) Condition { return ElementCheck(selector, StateAttached) }

// Options bound a single wait.
type Options struct {
	// MaxWait is raised to MinWait when below it, zero included.
	MaxWait time.Duration
	// PollInterval defaults to DefaultPollInterval when not positive.
	PollInterval time.Duration
}

// DefaultOptions returns the 5s / 500ms defaults.
func DefaultOptions() Options {
	return Options{MaxWait: DefaultMaxWait, PollInterval: DefaultPollInterval}
}

// For returns Options with the given MaxWait and the default interval.
func For(maxWait time.Duration) Options {
	return Options{MaxWait: maxWait, PollInterval: DefaultPollInterval}
}

func (o Options) normalized() Options {
	if o.MaxWait < MinWait {
		o.MaxWait = MinWait
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Poller evaluates conditions against one page.
type Poller struct {
	page   dom.Page
	clock  Clock
	logger *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the logger used for debug traces of timed-out waits.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New returns a Poller for page. page may be nil when only predicates are
// used.
func New(page dom.Page, opts ...Option) *Poller {
	p := &Poller{
		page:   page,
		clock:  RealClock{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Until blocks until cond holds, returning true, or until opts.MaxWait has
// elapsed, returning false. A done ctx also ends the wait with false.
// The predicate is evaluated before any sleep, so a condition that already
// holds returns without sleeping.
func (p *Poller) Until(ctx context.Context, cond Condition, opts Options) bool {
	opts = opts.normalized()
	start := p.clock.Now()
	attempts := 0

	for p.clock.Now().Sub(start) < opts.MaxWait {
		attempts++
		if ok, err := p.Check(cond); ok {
			return true
		} else if err != nil {
			p.logger.Debug("wait check failed", "condition", cond.String(), "attempt", attempts, "error", err)
		}
		if err := p.clock.Sleep(ctx, opts.PollInterval); err != nil {
			p.logger.Debug("wait cancelled", "condition", cond.String(), "error", err)
			return false
		}
	}

	p.logger.Debug("wait timed out", "condition", cond.String(), "max_wait", opts.MaxWait, "attempts", attempts)
	return false
}

// Check evaluates cond once. A panic inside the evaluation is recovered and
// reported as an error.
func (p *Poller) Check(cond Condition) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("wait: condition panicked: %v", r)
		}
	}()

	switch c := cond.(type) {
	case predicate:
		if c.fn == nil {
			return false, nil
		}
		return c.fn()
	case elementCheck:
		if p.page == nil {
			return false, fmt.Errorf("wait: element check %s without a page", c)
		}
		return checkElements(p.page.Locator(c.selector), c.state)
	default:
		return false, fmt.Errorf("wait: unsupported condition %T", cond)
	}
}

func checkElements(loc dom.Locator, state State) (bool, error) {
	count, err := loc.Count()
	if err != nil {
		return false, err
	}

	switch state {
	case StateAttached:
		return count > 0, nil
	case StateVisible, StateHidden:
		anyVisible := false
		for i := 0; i < count && !anyVisible; i++ {
			visible, err := loc.Nth(i).IsVisible()
			if err != nil {
				return false, err
			}
			anyVisible = visible
		}
		if state == StateVisible {
			return anyVisible, nil
		}
		return !anyVisible, nil
	default:
		return false, fmt.Errorf("wait: unknown element state %q", state)
	}
}
