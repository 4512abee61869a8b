package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/currency"
)

// StaticPageOptions parameterise a static-HTML extractor.
type StaticPageOptions struct {
	// PriceSelector locates a single element whose text is the full price.
	PriceSelector string
	// WholeSelector and FractionSelector locate split price markup
	// (e.g. Amazon's a-price-whole / a-price-fraction pair). When
	// WholeSelector is set, PriceSelector is ignored.
	WholeSelector    string
	FractionSelector string
	Timeout          time.Duration
	UserAgent        string
}

// StaticPage extracts prices from server-rendered markup with a plain HTTP
// fetch and an HTML parse.
type StaticPage struct {
	opts   StaticPageOptions
	client *http.Client
	logger zerolog.Logger
}

// NewStaticPage constructs a static-HTML extractor.
func NewStaticPage(opts StaticPageOptions, logger zerolog.Logger) *StaticPage {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &StaticPage{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "static_extractor").Logger(),
	}
}

// ExtractPrice fetches the page and reads the price from its markup.
func (e *StaticPage) ExtractPrice(ctx context.Context, url string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, extractionFailed(url, err)
	}
	if ua := strings.TrimSpace(e.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, extractionFailed(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, extractionFailed(url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return decimal.Decimal{}, extractionFailed(url, fmt.Errorf("parse html: %w", err))
	}

	text, err := e.priceText(doc)
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

	e.logger.Debug().Str("url", url).Str("price", price.String()).Msg("extracted static price")
	return price, nil
}

func (e *StaticPage) priceText(doc *goquery.Document) (string, error) {
	if e.opts.WholeSelector != "" {
		whole := strings.TrimSpace(doc.Find(e.opts.WholeSelector).First().Text())
		whole = strings.NewReplacer(".", "", ",", "").Replace(whole)
		fraction := strings.TrimSpace(doc.Find(e.opts.FractionSelector).First().Text())

		if whole == "" && fraction == "" {
			return "", ErrPriceNotFound
		}
		if fraction == "" {
			fraction = "00"
		}
		return whole + "." + fraction, nil
	}

	text := strings.TrimSpace(doc.Find(e.opts.PriceSelector).First().Text())
	if text == "" {
		return "", ErrPriceNotFound
	}
	return text, nil
}

var _ Extractor = (*StaticPage)(nil)
