package pages

import (
	"context"
	"fmt"
	"strings"
)

// SearchInputSelector is the directory search box.
const SearchInputSelector = `input[type="search"]`

// BrowseDirectory is the category directory with its search box.
type BrowseDirectory struct {
	*Base
}

// CategoryImageSelector matches a category tile whose alt text contains
// query as a word or equals it.
func CategoryImageSelector(query string) string {
	q := cssString(query)
	return fmt.Sprintf("img[alt~=%s], img[alt=%s]", q, q)
}

// CategoryImageXPath matches a category tile whose alt text equals query,
// ignoring ASCII case.
func CategoryImageXPath(query string) string {
	return fmt.Sprintf(
		"xpath=//img[translate(@alt, 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz')=%s]",
		xpathLiteral(strings.ToLower(query)),
	)
}

// SearchFor types query and opens the matching category. A missing category
// image is logged and the flow continues on whatever page results.
func (p *BrowseDirectory) SearchFor(ctx context.Context, query string) (*SearchResults, error) {
	p.logger.Info("Searching for", "query", query)
	if err := p.SafeFill(ctx, SearchInputSelector, query, DefaultActionTimeout); err != nil {
		return nil, err
	}

	exact := p.page.Locator(CategoryImageSelector(query))
	fallback := p.page.Locator(CategoryImageXPath(query))

	var err error
	if n, cerr := exact.Count(); cerr == nil && n > 0 {
		err = exact.First().Click()
	} else {
		err = fallback.First().Click()
	}
	if err != nil {
		p.logger.Warn("No image found matching alt (case-insensitive)", "query", query, "error", err)
	}
	return &SearchResults{Base: p.Base}, nil
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\a `)
	return "'" + r.Replace(s) + "'"
}

// xpathLiteral quotes s as an XPath 1.0 string literal, which has no escape
// syntax.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = "'" + part + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}
