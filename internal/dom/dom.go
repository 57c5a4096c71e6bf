// Package dom is the narrow view of a live browser page that the wait,
// overlay and page-object layers are written against. The playwright-go
// implementation lives in playwright.go; domtest provides an in-memory fake.
package dom

// Page is a rendered page in an open browser session.
type Page interface {
	// Locator returns a lazy handle on every element matching selector.
	// Resolution happens on each call of the returned Locator.
	Locator(selector string) Locator
	// EvaluateBool runs a JavaScript expression and requires a boolean result.
	EvaluateBool(expression string) (bool, error)
	// Evaluate runs a JavaScript expression for its side effects.
	Evaluate(expression string) error
	// Press sends a single named key press, e.g. "Escape".
	Press(key string) error
	// Goto navigates and waits for the network to settle.
	Goto(url string) error
	// Screenshot captures the page. An empty path returns the bytes only.
	Screenshot(path string, fullPage bool) ([]byte, error)
	// URL is the current page URL.
	URL() string
}

// Locator is a selector bound to a Page.
type Locator interface {
	Count() (int, error)
	First() Locator
	Nth(index int) Locator
	IsVisible() (bool, error)
	// Click performs a native, actionability-checked click.
	Click() error
	// ScriptClick dispatches el.click() from page script, bypassing
	// actionability checks. Used when a native click is intercepted.
	ScriptClick() error
	Fill(text string) error
	InnerText() (string, error)
	TextContent() (string, error)
}
