package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
}

func TestStaticPageSingleSelector(t *testing.T) {
	server := serveHTML(t, `<html><body>
		<span class="price">$ 1.299,90</span>
	</body></html>`)
	defer server.Close()

	extractor := NewStaticPage(StaticPageOptions{PriceSelector: ".price"}, zerolog.Nop())
	price, err := extractor.ExtractPrice(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ExtractPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("1299.90")) {
		t.Fatalf("price = %s, want 1299.90", price)
	}
}

func TestStaticPageWholeAndFraction(t *testing.T) {
	server := serveHTML(t, `<html><body>
		<span class="a-price-whole">1,299.</span>
		<span class="a-price-fraction">99</span>
	</body></html>`)
	defer server.Close()

	extractor := NewStaticPage(StaticPageOptions{
		WholeSelector:    ".a-price-whole",
		FractionSelector: ".a-price-fraction",
	}, zerolog.Nop())
	price, err := extractor.ExtractPrice(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ExtractPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("1299.99")) {
		t.Fatalf("price = %s, want 1299.99", price)
	}
}

func TestStaticPageWholeWithoutFraction(t *testing.T) {
	server := serveHTML(t, `<html><body>
		<span class="a-price-whole">42</span>
	</body></html>`)
	defer server.Close()

	extractor := NewStaticPage(StaticPageOptions{
		WholeSelector:    ".a-price-whole",
		FractionSelector: ".a-price-fraction",
	}, zerolog.Nop())
	price, err := extractor.ExtractPrice(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ExtractPrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("42.00")) {
		t.Fatalf("price = %s, want 42.00", price)
	}
}

func TestStaticPageMissingMarkup(t *testing.T) {
	server := serveHTML(t, `<html><body><p>out of stock</p></body></html>`)
	defer server.Close()

	extractor := NewStaticPage(StaticPageOptions{PriceSelector: ".price"}, zerolog.Nop())
	_, err := extractor.ExtractPrice(context.Background(), server.URL)
	if !errors.Is(err, ErrPriceNotFound) {
		t.Fatalf("expected ErrPriceNotFound, got %v", err)
	}

	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError wrapper, got %T", err)
	}
	if extractionErr.URL != server.URL {
		t.Fatalf("wrapped URL = %q, want %q", extractionErr.URL, server.URL)
	}
}

func TestStaticPageUnparsableText(t *testing.T) {
	server := serveHTML(t, `<html><body><span class="price">call for price</span></body></html>`)
	defer server.Close()

	extractor := NewStaticPage(StaticPageOptions{PriceSelector: ".price"}, zerolog.Nop())
	_, err := extractor.ExtractPrice(context.Background(), server.URL)
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestStaticPageHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	extractor := NewStaticPage(StaticPageOptions{PriceSelector: ".price"}, zerolog.Nop())
	_, err := extractor.ExtractPrice(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestStaticPageSendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<span class="price">10.00</span>`))
	}))
	defer server.Close()

	extractor := NewStaticPage(StaticPageOptions{
		PriceSelector: ".price",
		UserAgent:     "pricewatcher-test/1.0",
	}, zerolog.Nop())
	if _, err := extractor.ExtractPrice(context.Background(), server.URL); err != nil {
		t.Fatalf("ExtractPrice: %v", err)
	}
	if gotUA != "pricewatcher-test/1.0" {
		t.Fatalf("user agent = %q", gotUA)
	}
}
