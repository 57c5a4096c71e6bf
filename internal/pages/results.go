package pages

import (
	"context"
	"time"

	"github.com/kuitang/streamcheck/internal/errs"
	"github.com/kuitang/streamcheck/internal/wait"
)

const (
	// StreamerCardSelector matches the live channel thumbnails.
	StreamerCardSelector = "img[class='tw-image']"
	// CardWait bounds the wait for the first card.
	CardWait = 10 * time.Second
)

// SearchResults lists live channels in a category.
type SearchResults struct {
	*Base
}

// LoadMore scrolls Options.ScrollCount viewports (two by default) so that
// more channels are rendered.
func (p *SearchResults) LoadMore(ctx context.Context) {
	p.ScrollDown(ctx, p.opts.ScrollCount, p.opts.ScrollPause)
}

// SelectRandomStreamer opens a random visible channel card. It returns a
// NotFound error when no card is rendered.
func (p *SearchResults) SelectRandomStreamer(ctx context.Context) (*Streamer, error) {
	p.WaitFor(ctx, wait.Visible(StreamerCardSelector), CardWait)

	cards := p.page.Locator(StreamerCardSelector)
	count, err := cards.Count()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "count streamer cards", err)
	}
	if count < 1 {
		return nil, errs.New(errs.NotFound, "Streamer page error - cards not displayed")
	}

	index := p.opts.IntN(count)
	p.logger.Info("Selecting streamer", "index", index, "of", count)
	if err := cards.Nth(index).Click(); err != nil {
		return nil, errs.Wrap(errs.Unavailable, "click streamer card", err)
	}
	return &Streamer{Base: p.Base}, nil
}
