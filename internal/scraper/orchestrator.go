package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pricewatcher/internal/diagnostics"
	"pricewatcher/internal/storage"
)

// Orchestrator fans out concurrent price extractions across every tracked
// URL, isolating failures per URL. Known stores are cached lazily and
// refreshed only when the cache is empty or explicitly cleared.
type Orchestrator struct {
	catalog      storage.CatalogStore
	observations storage.ObservationStore
	registry     *Registry
	diag         diagnostics.Recorder
	logger       zerolog.Logger

	mu     sync.Mutex
	stores []storage.Store
}

// NewOrchestrator constructs a scrape orchestrator.
func NewOrchestrator(catalog storage.CatalogStore, observations storage.ObservationStore, registry *Registry, diag diagnostics.Recorder, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		catalog:      catalog,
		observations: observations,
		registry:     registry,
		diag:         diag,
		logger:       logger.With().Str("component", "scrape_orchestrator").Logger(),
	}
}

// ReloadStores clears the store cache so the next cycle re-reads the catalog.
func (o *Orchestrator) ReloadStores() {
	o.mu.Lock()
	o.stores = nil
	o.mu.Unlock()
}

func (o *Orchestrator) cachedStores(ctx context.Context) []storage.Store {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.stores) > 0 {
		return o.stores
	}

	stores, err := o.catalog.ListStores(ctx)
	if err != nil {
		o.diag.Error(ctx, fmt.Sprintf("failed to load stores: %v", err), "")
		return nil
	}
	o.stores = stores
	return o.stores
}

// ScrapeAll loads every tracked URL, resolves its extractor, and scrapes all
// resolvable URLs concurrently. A broken mapping or a failed extraction
// skips that URL only; the call returns after every extraction has settled.
func (o *Orchestrator) ScrapeAll(ctx context.Context) error {
	o.logger.Info().Msg("starting scrape cycle")

	stores := o.cachedStores(ctx)

	urls, err := o.catalog.ListTrackedURLs(ctx)
	if err != nil {
		return fmt.Errorf("list tracked urls: %w", err)
	}

	storesByID := make(map[int64]storage.Store, len(stores))
	for _, store := range stores {
		storesByID[store.ID] = store
	}

	var wg sync.WaitGroup
	scheduled := 0
	for _, trackedURL := range urls {
		store, ok := storesByID[trackedURL.StoreID]
		if !ok {
			o.diag.Warning(ctx, fmt.Sprintf("store not found for id %d", trackedURL.StoreID))
			continue
		}

		extractor, ok := o.registry.Lookup(store.Name)
		if !ok {
			o.diag.Warning(ctx, fmt.Sprintf("no extractor registered for store %s", store.Name))
			continue
		}

		scheduled++
		wg.Add(1)
		go func(trackedURL storage.TrackedURL, storeName string, extractor Extractor) {
			defer wg.Done()
			o.scrapeOne(ctx, trackedURL, storeName, extractor)
		}(trackedURL, store.Name, extractor)
	}

	wg.Wait()
	o.logger.Info().Int("urls", len(urls)).Int("scraped", scheduled).Msg("scrape cycle complete")
	return nil
}

func (o *Orchestrator) scrapeOne(ctx context.Context, trackedURL storage.TrackedURL, storeName string, extractor Extractor) {
	price, err := extractor.ExtractPrice(ctx, trackedURL.URL)
	if err != nil {
		o.diag.Error(ctx, fmt.Sprintf(
			"error scraping URL from store %s for product %d: %v",
			storeName, trackedURL.ProductID, err,
		), "")
		return
	}

	// Truncating to the minute keeps repeated cycles inside the same
	// minute from producing sub-minute noise.
	observedAt := time.Now().UTC().Truncate(time.Minute)
	if err := o.observations.InsertObservation(ctx, trackedURL.ID, price, observedAt); err != nil {
		o.diag.Error(ctx, fmt.Sprintf(
			"failed to persist observation for tracked url %d: %v",
			trackedURL.ID, err,
		), "")
	}
}
