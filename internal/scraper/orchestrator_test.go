package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/diagnostics"
	"pricewatcher/internal/storage"
)

type fakeCatalog struct {
	stores     []storage.Store
	urls       []storage.TrackedURL
	storeCalls int
}

func (f *fakeCatalog) ListStores(ctx context.Context) ([]storage.Store, error) {
	f.storeCalls++
	return f.stores, nil
}

func (f *fakeCatalog) ListTrackedURLs(ctx context.Context) ([]storage.TrackedURL, error) {
	return f.urls, nil
}

type observationSink struct {
	mu       sync.Mutex
	inserted []storage.PriceObservation
}

func (s *observationSink) InsertObservation(ctx context.Context, trackedURLID int64, price decimal.Decimal, observedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, storage.PriceObservation{
		TrackedURLID: trackedURLID,
		Price:        price,
		ObservedAt:   observedAt,
	})
	return nil
}

func (s *observationSink) ListObservationsSince(ctx context.Context, since time.Time) ([]storage.ObservationWithRefs, error) {
	return nil, nil
}

func (s *observationSink) DeleteObservations(ctx context.Context, ids []int64) error {
	return nil
}

func (s *observationSink) snapshot() []storage.PriceObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.PriceObservation(nil), s.inserted...)
}

type stubExtractor struct {
	price decimal.Decimal
	err   error
}

func (s *stubExtractor) ExtractPrice(ctx context.Context, url string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Decimal{}, s.err
	}
	return s.price, nil
}

func TestScrapeAllIsolatesFailingExtractor(t *testing.T) {
	catalog := &fakeCatalog{
		stores: []storage.Store{
			{ID: 1, Name: "Amazon"},
			{ID: 2, Name: "eBay"},
		},
		urls: []storage.TrackedURL{
			{ID: 10, ProductID: 1, StoreID: 1, URL: "https://amazon.example/widget"},
			{ID: 11, ProductID: 1, StoreID: 2, URL: "https://ebay.example/widget"},
		},
	}
	sink := &observationSink{}

	registry := NewRegistry()
	registry.Register("amazon", &stubExtractor{err: errors.New("timeout")})
	registry.Register("ebay", &stubExtractor{price: decimal.RequireFromString("49.99")})

	orch := NewOrchestrator(catalog, sink, registry, diagnostics.Nop{}, zerolog.Nop())
	if err := orch.ScrapeAll(context.Background()); err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}

	inserted := sink.snapshot()
	if len(inserted) != 1 {
		t.Fatalf("expected 1 observation despite failure, got %d", len(inserted))
	}
	if inserted[0].TrackedURLID != 11 {
		t.Fatalf("observation for tracked url %d, want 11", inserted[0].TrackedURLID)
	}
	if !inserted[0].Price.Equal(decimal.RequireFromString("49.99")) {
		t.Fatalf("price = %s, want 49.99", inserted[0].Price)
	}
}

func TestScrapeAllSkipsUnresolvableURLs(t *testing.T) {
	catalog := &fakeCatalog{
		stores: []storage.Store{
			{ID: 1, Name: "Amazon"},
		},
		urls: []storage.TrackedURL{
			// Store id 99 does not exist in the catalog.
			{ID: 10, ProductID: 1, StoreID: 99, URL: "https://nowhere.example"},
			// Store exists but no extractor is registered for it.
			{ID: 11, ProductID: 1, StoreID: 1, URL: "https://amazon.example/widget"},
		},
	}
	sink := &observationSink{}

	orch := NewOrchestrator(catalog, sink, NewRegistry(), diagnostics.Nop{}, zerolog.Nop())
	if err := orch.ScrapeAll(context.Background()); err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}

	if got := sink.snapshot(); len(got) != 0 {
		t.Fatalf("expected no observations, got %d", len(got))
	}
}

func TestScrapeAllCachesStoresUntilReload(t *testing.T) {
	catalog := &fakeCatalog{
		stores: []storage.Store{{ID: 1, Name: "Amazon"}},
	}
	sink := &observationSink{}
	registry := NewRegistry()
	registry.Register("amazon", &stubExtractor{price: decimal.RequireFromString("10.00")})

	orch := NewOrchestrator(catalog, sink, registry, diagnostics.Nop{}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if err := orch.ScrapeAll(context.Background()); err != nil {
			t.Fatalf("ScrapeAll #%d: %v", i+1, err)
		}
	}
	if catalog.storeCalls != 1 {
		t.Fatalf("stores loaded %d times across two cycles, want 1", catalog.storeCalls)
	}

	orch.ReloadStores()
	if err := orch.ScrapeAll(context.Background()); err != nil {
		t.Fatalf("ScrapeAll after reload: %v", err)
	}
	if catalog.storeCalls != 2 {
		t.Fatalf("stores loaded %d times after reload, want 2", catalog.storeCalls)
	}
}

func TestScrapeAllTruncatesObservedAtToMinute(t *testing.T) {
	catalog := &fakeCatalog{
		stores: []storage.Store{{ID: 1, Name: "Amazon"}},
		urls: []storage.TrackedURL{
			{ID: 10, ProductID: 1, StoreID: 1, URL: "https://amazon.example/widget"},
		},
	}
	sink := &observationSink{}
	registry := NewRegistry()
	registry.Register("amazon", &stubExtractor{price: decimal.RequireFromString("10.00")})

	orch := NewOrchestrator(catalog, sink, registry, diagnostics.Nop{}, zerolog.Nop())
	if err := orch.ScrapeAll(context.Background()); err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}

	inserted := sink.snapshot()
	if len(inserted) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(inserted))
	}
	observedAt := inserted[0].ObservedAt
	if !observedAt.Equal(observedAt.Truncate(time.Minute)) {
		t.Fatalf("observedAt %s is not minute-aligned", observedAt)
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	registry := NewRegistry()
	extractor := &stubExtractor{price: decimal.RequireFromString("10.00")}
	registry.Register("Amazon", extractor)

	if _, ok := registry.Lookup("AMAZON"); !ok {
		t.Fatal("expected case-insensitive lookup hit")
	}
	if _, ok := registry.Lookup("ebay"); ok {
		t.Fatal("expected miss for unregistered store")
	}
	names := registry.Names()
	if len(names) != 1 || names[0] != "amazon" {
		t.Fatalf("Names() = %v", names)
	}
}
