package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrPriceNotFound indicates the expected price markup was absent.
	ErrPriceNotFound = errors.New("scraper: price markup not found")
	// ErrInvalidPrice indicates the extracted text did not parse to a
	// valid non-negative amount.
	ErrInvalidPrice = errors.New("scraper: invalid price value")
)

// Extractor retrieves the current price from a product page. One
// implementation exists per store; each encapsulates its own fetch
// mechanism and price-text conversion.
type Extractor interface {
	ExtractPrice(ctx context.Context, url string) (decimal.Decimal, error)
}

// ExtractionError wraps any adapter-level failure with the URL it occurred
// on. Callers treat it as a per-URL skip, never a cycle abort.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract price from %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionFailed(url string, err error) error {
	return &ExtractionError{URL: url, Err: err}
}
