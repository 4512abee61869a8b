package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/currency"
)

// RenderedPageOptions parameterise a headless-browser extractor.
type RenderedPageOptions struct {
	// Selectors are tried in order; the first one that yields non-empty
	// text wins. At least one is required.
	Selectors []string
	// Timeout bounds the whole extraction, navigation and waits included.
	// A stalled page is cut off and reported as an extraction failure.
	Timeout   time.Duration
	UserAgent string
}

// RenderedPage extracts prices from client-rendered pages by driving a
// headless browser and waiting for the price selector to become visible.
type RenderedPage struct {
	opts   RenderedPageOptions
	logger zerolog.Logger
}

// NewRenderedPage constructs a headless-browser extractor.
func NewRenderedPage(opts RenderedPageOptions, logger zerolog.Logger) *RenderedPage {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &RenderedPage{
		opts:   opts,
		logger: logger.With().Str("component", "rendered_extractor").Logger(),
	}
}

// ExtractPrice renders the page and reads the price once it is visible.
func (e *RenderedPage) ExtractPrice(ctx context.Context, url string) (decimal.Decimal, error) {
	if len(e.opts.Selectors) == 0 {
		return decimal.Decimal{}, extractionFailed(url, fmt.Errorf("no selectors configured"))
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if ua := strings.TrimSpace(e.opts.UserAgent); ua != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(ua))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, e.opts.Timeout)
	defer cancelRun()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return decimal.Decimal{}, extractionFailed(url, fmt.Errorf("navigate: %w", err))
	}

	text, err := e.waitForPrice(runCtx)
	if err != nil {
		return decimal.Decimal{}, extractionFailed(url, err)
	}

	price, err := currency.Parse(text)
	if err != nil {
		return decimal.Decimal{}, extractionFailed(url, fmt.Errorf("%w: %q", ErrInvalidPrice, text))
	}
	if price.IsNegative() {
		return decimal.Decimal{}, extractionFailed(url, fmt.Errorf("%w: negative amount %s", ErrInvalidPrice, price))
	}

	e.logger.Debug().Str("url", url).Str("price", price.String()).Msg("extracted rendered price")
	return price, nil
}

func (e *RenderedPage) waitForPrice(ctx context.Context) (string, error) {
	var lastErr error
	for _, selector := range e.opts.Selectors {
		var text string
		err := chromedp.Run(ctx,
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.NodeVisible),
		)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed, nil
		}
		lastErr = ErrPriceNotFound
	}
	if lastErr == nil {
		lastErr = ErrPriceNotFound
	}
	return "", lastErr
}

var _ Extractor = (*RenderedPage)(nil)
