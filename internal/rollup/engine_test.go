package rollup

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/storage"
)

type fakeObservations struct {
	rows    []storage.ObservationWithRefs
	deleted [][]int64
}

func (f *fakeObservations) InsertObservation(ctx context.Context, trackedURLID int64, price decimal.Decimal, observedAt time.Time) error {
	return nil
}

func (f *fakeObservations) ListObservationsSince(ctx context.Context, since time.Time) ([]storage.ObservationWithRefs, error) {
	result := make([]storage.ObservationWithRefs, 0)
	for _, row := range f.rows {
		if !row.ObservedAt.Before(since) {
			result = append(result, row)
		}
	}
	return result, nil
}

func (f *fakeObservations) DeleteObservations(ctx context.Context, ids []int64) error {
	f.deleted = append(f.deleted, ids)
	remaining := f.rows[:0]
	for _, row := range f.rows {
		if !slices.Contains(ids, row.ID) {
			remaining = append(remaining, row)
		}
	}
	f.rows = remaining
	return nil
}

type fakeAggregates struct {
	hourly  []storage.PriceAggregate
	daily   []storage.PriceAggregate
	monthly []storage.PriceAggregate
}

func (f *fakeAggregates) InsertHourlyAggregates(ctx context.Context, aggregates []storage.PriceAggregate) error {
	f.hourly = append(f.hourly, aggregates...)
	return nil
}

func (f *fakeAggregates) InsertDailyAggregates(ctx context.Context, aggregates []storage.PriceAggregate) error {
	f.daily = append(f.daily, aggregates...)
	return nil
}

func (f *fakeAggregates) InsertMonthlyAggregates(ctx context.Context, aggregates []storage.PriceAggregate) error {
	f.monthly = append(f.monthly, aggregates...)
	return nil
}

func (f *fakeAggregates) ListHourlyBetween(ctx context.Context, from, to time.Time) ([]storage.PriceAggregate, error) {
	return filterBetween(f.hourly, from, to), nil
}

func (f *fakeAggregates) ListDailyBetween(ctx context.Context, from, to time.Time) ([]storage.PriceAggregate, error) {
	return filterBetween(f.daily, from, to), nil
}

func (f *fakeAggregates) ListRecentHourly(ctx context.Context, limit int) ([]storage.PriceAggregate, error) {
	return f.hourly, nil
}

func filterBetween(rows []storage.PriceAggregate, from, to time.Time) []storage.PriceAggregate {
	result := make([]storage.PriceAggregate, 0)
	for _, row := range rows {
		if !row.BucketStart.Before(from) && row.BucketStart.Before(to) {
			result = append(result, row)
		}
	}
	return result
}

func newTestEngine(obs *fakeObservations, agg *fakeAggregates, now time.Time) *Engine {
	engine := NewEngine(obs, agg, zerolog.Nop())
	engine.now = func() time.Time { return now }
	return engine
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRollupHourlyAveragesAndCompacts(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	obs := &fakeObservations{rows: []storage.ObservationWithRefs{
		{ID: 1, ProductID: 1, StoreID: 1, Price: price("10.00"), ObservedAt: now.Add(-50 * time.Minute)},
		{ID: 2, ProductID: 1, StoreID: 1, Price: price("12.00"), ObservedAt: now.Add(-30 * time.Minute)},
		{ID: 3, ProductID: 1, StoreID: 1, Price: price("15.00"), ObservedAt: now.Add(-10 * time.Minute)},
	}}
	agg := &fakeAggregates{}
	engine := newTestEngine(obs, agg, now)

	if err := engine.RollupHourly(context.Background()); err != nil {
		t.Fatalf("RollupHourly: %v", err)
	}

	if len(agg.hourly) != 1 {
		t.Fatalf("expected 1 hourly aggregate, got %d", len(agg.hourly))
	}
	got := agg.hourly[0]
	if !got.AveragePrice.Equal(price("12.33")) {
		t.Fatalf("average = %s, want 12.33", got.AveragePrice)
	}
	wantBucket := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	if !got.BucketStart.Equal(wantBucket) {
		t.Fatalf("bucket = %s, want %s", got.BucketStart, wantBucket)
	}

	if len(obs.deleted) != 1 {
		t.Fatalf("expected one delete call, got %d", len(obs.deleted))
	}
	deleted := obs.deleted[0]
	slices.Sort(deleted)
	if !slices.Equal(deleted, []int64{1, 2, 3}) {
		t.Fatalf("deleted ids = %v, want [1 2 3]", deleted)
	}
}

func TestRollupHourlyNoOpOnEmptyWindow(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	obs := &fakeObservations{}
	agg := &fakeAggregates{}
	engine := newTestEngine(obs, agg, now)

	if err := engine.RollupHourly(context.Background()); err != nil {
		t.Fatalf("first RollupHourly: %v", err)
	}
	if len(agg.hourly) != 0 {
		t.Fatalf("expected no aggregates on empty window, got %d", len(agg.hourly))
	}
	if len(obs.deleted) != 0 {
		t.Fatalf("expected no deletes on empty window, got %v", obs.deleted)
	}
}

func TestRollupHourlySecondInvocationProducesNothingNew(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	obs := &fakeObservations{rows: []storage.ObservationWithRefs{
		{ID: 1, ProductID: 1, StoreID: 1, Price: price("10.00"), ObservedAt: now.Add(-30 * time.Minute)},
	}}
	agg := &fakeAggregates{}
	engine := newTestEngine(obs, agg, now)

	if err := engine.RollupHourly(context.Background()); err != nil {
		t.Fatalf("first RollupHourly: %v", err)
	}
	if err := engine.RollupHourly(context.Background()); err != nil {
		t.Fatalf("second RollupHourly: %v", err)
	}

	if len(agg.hourly) != 1 {
		t.Fatalf("expected 1 aggregate after two invocations, got %d", len(agg.hourly))
	}
}

func TestRollupHourlyGroupsByProductAndStore(t *testing.T) {
	now := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	obs := &fakeObservations{rows: []storage.ObservationWithRefs{
		{ID: 1, ProductID: 1, StoreID: 1, Price: price("10.00"), ObservedAt: now.Add(-30 * time.Minute)},
		{ID: 2, ProductID: 1, StoreID: 2, Price: price("20.00"), ObservedAt: now.Add(-30 * time.Minute)},
		{ID: 3, ProductID: 2, StoreID: 1, Price: price("30.00"), ObservedAt: now.Add(-30 * time.Minute)},
	}}
	agg := &fakeAggregates{}
	engine := newTestEngine(obs, agg, now)

	if err := engine.RollupHourly(context.Background()); err != nil {
		t.Fatalf("RollupHourly: %v", err)
	}

	if len(agg.hourly) != 3 {
		t.Fatalf("expected 3 aggregates, got %d", len(agg.hourly))
	}
}

func TestRollupDailyAveragesYesterdayOnly(t *testing.T) {
	now := time.Date(2026, 8, 27, 0, 5, 0, 0, time.UTC)
	yesterday := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	agg := &fakeAggregates{hourly: []storage.PriceAggregate{
		{ProductID: 1, StoreID: 1, AveragePrice: price("10.00"), BucketStart: yesterday.Add(8 * time.Hour)},
		{ProductID: 1, StoreID: 1, AveragePrice: price("11.00"), BucketStart: yesterday.Add(16 * time.Hour)},
		// Outside the window: belongs to today.
		{ProductID: 1, StoreID: 1, AveragePrice: price("99.00"), BucketStart: yesterday.Add(24 * time.Hour)},
	}}
	engine := newTestEngine(&fakeObservations{}, agg, now)

	if err := engine.RollupDaily(context.Background()); err != nil {
		t.Fatalf("RollupDaily: %v", err)
	}

	if len(agg.daily) != 1 {
		t.Fatalf("expected 1 daily aggregate, got %d", len(agg.daily))
	}
	got := agg.daily[0]
	if !got.AveragePrice.Equal(price("10.50")) {
		t.Fatalf("average = %s, want 10.50", got.AveragePrice)
	}
	if !got.BucketStart.Equal(yesterday) {
		t.Fatalf("bucket = %s, want %s", got.BucketStart, yesterday)
	}
	if len(agg.hourly) != 3 {
		t.Fatalf("daily rollup must not delete hourly rows")
	}
}

func TestRollupMonthlyAveragesPreviousMonth(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 10, 0, 0, time.UTC)
	firstOfPrev := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	agg := &fakeAggregates{daily: []storage.PriceAggregate{
		{ProductID: 1, StoreID: 1, AveragePrice: price("10.00"), BucketStart: firstOfPrev},
		{ProductID: 1, StoreID: 1, AveragePrice: price("20.00"), BucketStart: firstOfPrev.AddDate(0, 0, 15)},
		// Outside the window: July.
		{ProductID: 1, StoreID: 1, AveragePrice: price("50.00"), BucketStart: firstOfPrev.AddDate(0, -1, 0)},
	}}
	engine := newTestEngine(&fakeObservations{}, agg, now)

	if err := engine.RollupMonthly(context.Background()); err != nil {
		t.Fatalf("RollupMonthly: %v", err)
	}

	if len(agg.monthly) != 1 {
		t.Fatalf("expected 1 monthly aggregate, got %d", len(agg.monthly))
	}
	got := agg.monthly[0]
	if !got.AveragePrice.Equal(price("15.00")) {
		t.Fatalf("average = %s, want 15.00", got.AveragePrice)
	}
	if !got.BucketStart.Equal(firstOfPrev) {
		t.Fatalf("bucket = %s, want %s", got.BucketStart, firstOfPrev)
	}
	if len(agg.daily) != 3 {
		t.Fatalf("monthly rollup must not delete daily rows")
	}
}
