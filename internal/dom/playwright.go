package dom

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightPage adapts a playwright.Page to Page.
type PlaywrightPage struct {
	page playwright.Page
}

// Wrap adapts page. The caller keeps ownership of the page lifecycle.
func Wrap(page playwright.Page) *PlaywrightPage {
	return &PlaywrightPage{page: page}
}

// Unwrap returns the underlying playwright page.
func (p *PlaywrightPage) Unwrap() playwright.Page {
	return p.page
}

func (p *PlaywrightPage) Locator(selector string) Locator {
	return &playwrightLocator{loc: p.page.Locator(selector)}
}

func (p *PlaywrightPage) EvaluateBool(expression string) (bool, error) {
	result, err := p.page.Evaluate(expression)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("dom: expression returned %T, want bool", result)
	}
	return b, nil
}

func (p *PlaywrightPage) Evaluate(expression string) error {
	_, err := p.page.Evaluate(expression)
	return err
}

func (p *PlaywrightPage) Press(key string) error {
	return p.page.Keyboard().Press(key)
}

func (p *PlaywrightPage) Goto(url string) error {
	if _, err := p.page.Goto(url); err != nil {
		return err
	}
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
}

func (p *PlaywrightPage) Screenshot(path string, fullPage bool) ([]byte, error) {
	opts := playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	}
	if path != "" {
		opts.Path = playwright.String(path)
	}
	return p.page.Screenshot(opts)
}

func (p *PlaywrightPage) URL() string {
	return p.page.URL()
}

type playwrightLocator struct {
	loc playwright.Locator
}

func (l *playwrightLocator) Count() (int, error) {
	return l.loc.Count()
}

func (l *playwrightLocator) First() Locator {
	return &playwrightLocator{loc: l.loc.First()}
}

func (l *playwrightLocator) Nth(index int) Locator {
	return &playwrightLocator{loc: l.loc.Nth(index)}
}

func (l *playwrightLocator) IsVisible() (bool, error) {
	return l.loc.IsVisible()
}

func (l *playwrightLocator) Click() error {
	return l.loc.Click()
}

func (l *playwrightLocator) ScriptClick() error {
	_, err := l.loc.Evaluate("(el) => el.click()", nil)
	return err
}

func (l *playwrightLocator) Fill(text string) error {
	return l.loc.Fill(text)
}

func (l *playwrightLocator) InnerText() (string, error) {
	return l.loc.InnerText()
}

func (l *playwrightLocator) TextContent() (string, error) {
	return l.loc.TextContent()
}
