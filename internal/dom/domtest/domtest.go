// Package domtest provides an in-memory dom.Page for tests that exercise
// waits, overlay dismissal and page objects without a browser.
package domtest

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kuitang/streamcheck/internal/dom"
)

// ButtonSelector is the selector the overlay keyword pass enumerates.
const ButtonSelector = "button, [role='button']"

// ErrNoElement is returned when acting on a locator that resolves to nothing.
var ErrNoElement = errors.New("domtest: no element matches selector")

// PNG is the payload returned by Page.Screenshot.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Element is a fake rendered element.
type Element struct {
	// Selectors lists every selector string this element matches.
	Selectors []string
	Text      string
	Visible   bool

	// HideOnClick makes a successful click hide the element.
	HideOnClick bool
	// OnClick runs after a successful click of either kind.
	OnClick func()

	ClickErr       error
	ScriptClickErr error
	VisibleErr     error
	TextErr        error
	FillErr        error

	Clicks       int
	ScriptClicks int
	Value        string
}

func (e *Element) matches(selector string) bool {
	for _, s := range e.Selectors {
		if s == selector {
			return true
		}
	}
	return false
}

// Button returns a visible element matched by the keyword-pass selector and
// by extra, with the given text.
func Button(text string, extra ...string) *Element {
	return &Element{
		Selectors: append([]string{ButtonSelector}, extra...),
		Text:      text,
		Visible:   true,
	}
}

// Page is a fake dom.Page. The zero value is not usable; call NewPage.
type Page struct {
	mu       sync.Mutex
	elements []*Element

	// LocatorErr fails Count and IsVisible for a selector.
	LocatorErr map[string]error
	// Expressions answers EvaluateBool by exact expression text.
	Expressions map[string]func() (bool, error)
	// OnEvaluate observes Evaluate calls; a non-nil return fails the call.
	OnEvaluate func(expression string) error
	PressErr   error
	GotoErr    error
	ShotErr    error

	Pressed    []string
	Visited    []string
	Evaluated  []string
	currentURL string
}

// NewPage returns a page holding elements in document order.
func NewPage(elements ...*Element) *Page {
	return &Page{
		elements:    elements,
		LocatorErr:  map[string]error{},
		Expressions: map[string]func() (bool, error){},
	}
}

// Add appends elements to the document.
func (p *Page) Add(elements ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, elements...)
}

func (p *Page) resolve(selector string) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Element
	for _, e := range p.elements {
		if e.matches(selector) {
			out = append(out, e)
		}
	}
	return out
}

func (p *Page) locatorErr(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LocatorErr[selector]
}

func (p *Page) Locator(selector string) dom.Locator {
	return &Locator{page: p, selector: selector, index: -1}
}

func (p *Page) EvaluateBool(expression string) (bool, error) {
	p.mu.Lock()
	p.Evaluated = append(p.Evaluated, expression)
	fn := p.Expressions[expression]
	p.mu.Unlock()
	if fn == nil {
		return false, fmt.Errorf("domtest: no answer for expression %q", expression)
	}
	return fn()
}

func (p *Page) Evaluate(expression string) error {
	p.mu.Lock()
	p.Evaluated = append(p.Evaluated, expression)
	hook := p.OnEvaluate
	p.mu.Unlock()
	if hook != nil {
		return hook(expression)
	}
	return nil
}

func (p *Page) Press(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PressErr != nil {
		return p.PressErr
	}
	p.Pressed = append(p.Pressed, key)
	return nil
}

func (p *Page) Goto(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.Visited = append(p.Visited, url)
	p.currentURL = url
	return nil
}

func (p *Page) Screenshot(path string, fullPage bool) ([]byte, error) {
	if p.ShotErr != nil {
		return nil, p.ShotErr
	}
	if path != "" {
		if err := os.WriteFile(path, PNG, 0o644); err != nil {
			return nil, err
		}
	}
	return PNG, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentURL
}

// Locator is a fake dom.Locator. index -1 means "all matches".
type Locator struct {
	page     *Page
	selector string
	index    int
}

func (l *Locator) matches() []*Element {
	all := l.page.resolve(l.selector)
	if l.index < 0 {
		return all
	}
	if l.index >= len(all) {
		return nil
	}
	return all[l.index : l.index+1]
}

// target is the element an action applies to: the selected one, or the first.
func (l *Locator) target() (*Element, error) {
	m := l.matches()
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, l.selector)
	}
	if l.index < 0 && len(m) > 1 {
		return nil, fmt.Errorf("domtest: strict mode violation: %s resolved to %d elements", l.selector, len(m))
	}
	return m[0], nil
}

func (l *Locator) Count() (int, error) {
	if err := l.page.locatorErr(l.selector); err != nil {
		return 0, err
	}
	return len(l.matches()), nil
}

func (l *Locator) First() dom.Locator {
	return l.Nth(0)
}

func (l *Locator) Nth(index int) dom.Locator {
	return &Locator{page: l.page, selector: l.selector, index: index}
}

func (l *Locator) IsVisible() (bool, error) {
	if err := l.page.locatorErr(l.selector); err != nil {
		return false, err
	}
	m := l.matches()
	if len(m) == 0 {
		return false, nil
	}
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	if m[0].VisibleErr != nil {
		return false, m[0].VisibleErr
	}
	return m[0].Visible, nil
}

func (l *Locator) Click() error {
	e, err := l.target()
	if err != nil {
		return err
	}
	l.page.mu.Lock()
	if e.ClickErr != nil {
		l.page.mu.Unlock()
		return e.ClickErr
	}
	e.Clicks++
	l.page.mu.Unlock()
	l.clicked(e)
	return nil
}

func (l *Locator) ScriptClick() error {
	e, err := l.target()
	if err != nil {
		return err
	}
	l.page.mu.Lock()
	if e.ScriptClickErr != nil {
		l.page.mu.Unlock()
		return e.ScriptClickErr
	}
	e.ScriptClicks++
	l.page.mu.Unlock()
	l.clicked(e)
	return nil
}

func (l *Locator) clicked(e *Element) {
	l.page.mu.Lock()
	if e.HideOnClick {
		e.Visible = false
	}
	hook := e.OnClick
	l.page.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (l *Locator) Fill(text string) error {
	e, err := l.target()
	if err != nil {
		return err
	}
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	if e.FillErr != nil {
		return e.FillErr
	}
	e.Value = text
	return nil
}

func (l *Locator) InnerText() (string, error) {
	e, err := l.target()
	if err != nil {
		return "", err
	}
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	if e.TextErr != nil {
		return "", e.TextErr
	}
	return e.Text, nil
}

func (l *Locator) TextContent() (string, error) {
	e, err := l.target()
	if err != nil {
		return "", err
	}
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	return e.Text, nil
}
