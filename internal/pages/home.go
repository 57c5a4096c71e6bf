package pages

import "context"

// SearchIconSelector is the directory/search entry in the mobile header.
const SearchIconSelector = "a[class*='ScInteractableBase'][href*='directory']"

// Home is the landing page.
type Home struct {
	*Base
}

func NewHome(b *Base) *Home {
	return &Home{Base: b}
}

// Open navigates to the configured base URL.
func (h *Home) Open() error {
	h.logger.Info("Opening home page", "url", h.opts.BaseURL)
	return h.Goto(h.opts.BaseURL)
}

// OpenSearch taps the search icon and lands on the browse directory.
func (h *Home) OpenSearch(ctx context.Context) (*BrowseDirectory, error) {
	if err := h.SafeClick(ctx, SearchIconSelector, DefaultActionTimeout); err != nil {
		return nil, err
	}
	return &BrowseDirectory{Base: h.Base}, nil
}
