// Package rollup compacts raw price observations into hourly, daily, and
// monthly aggregates.
package rollup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/storage"
)

// Engine runs the three rollup stages. Each stage groups by
// (product, store), writes the unweighted mean of its inputs rounded to two
// decimals, and no-ops when the read window is empty. Rollups of rollups
// average the already-rounded values; once the hourly stage has deleted its
// raw inputs, coarser figures are not reconstructible from raw ticks.
type Engine struct {
	observations storage.ObservationStore
	aggregates   storage.AggregateStore
	logger       zerolog.Logger

	now func() time.Time
}

// NewEngine constructs a rollup engine.
func NewEngine(observations storage.ObservationStore, aggregates storage.AggregateStore, logger zerolog.Logger) *Engine {
	return &Engine{
		observations: observations,
		aggregates:   aggregates,
		logger:       logger.With().Str("component", "rollup_engine").Logger(),
		now:          time.Now,
	}
}

type groupKey struct {
	productID int64
	storeID   int64
}

// RollupHourly averages the trailing hour of raw observations into hourly
// aggregates and deletes the consumed rows by id. The delete is the
// system's retention mechanism: raw ticks only survive until their rollup.
func (e *Engine) RollupHourly(ctx context.Context) error {
	now := e.now().UTC()

	observations, err := e.observations.ListObservationsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return fmt.Errorf("list observations: %w", err)
	}
	if len(observations) == 0 {
		return nil
	}

	groups := make(map[groupKey][]decimal.Decimal)
	consumed := make([]int64, 0, len(observations))
	for _, obs := range observations {
		key := groupKey{productID: obs.ProductID, storeID: obs.StoreID}
		groups[key] = append(groups[key], obs.Price)
		consumed = append(consumed, obs.ID)
	}

	bucket := now.Add(-time.Hour).Truncate(time.Hour)
	aggregates := buildAggregates(groups, bucket)

	if err := e.aggregates.InsertHourlyAggregates(ctx, aggregates); err != nil {
		return fmt.Errorf("insert hourly aggregates: %w", err)
	}

	if err := e.observations.DeleteObservations(ctx, consumed); err != nil {
		return fmt.Errorf("delete consumed observations: %w", err)
	}

	e.logger.Info().
		Int("observations", len(observations)).
		Int("aggregates", len(aggregates)).
		Time("bucket", bucket).
		Msg("hourly rollup complete")
	return nil
}

// RollupDaily averages yesterday's hourly aggregates into daily rows.
// Hourly rows are kept as the finer-grained archive.
func (e *Engine) RollupDaily(ctx context.Context) error {
	now := e.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	hourly, err := e.aggregates.ListHourlyBetween(ctx, yesterday, today)
	if err != nil {
		return fmt.Errorf("list hourly aggregates: %w", err)
	}
	if len(hourly) == 0 {
		return nil
	}

	aggregates := buildAggregates(groupAggregates(hourly), yesterday)
	if err := e.aggregates.InsertDailyAggregates(ctx, aggregates); err != nil {
		return fmt.Errorf("insert daily aggregates: %w", err)
	}

	e.logger.Info().
		Int("hourly", len(hourly)).
		Int("aggregates", len(aggregates)).
		Time("bucket", yesterday).
		Msg("daily rollup complete")
	return nil
}

// RollupMonthly averages the previous calendar month of daily aggregates
// into monthly rows. Daily rows are kept.
func (e *Engine) RollupMonthly(ctx context.Context) error {
	now := e.now().UTC()
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstOfPrevious := firstOfCurrent.AddDate(0, -1, 0)

	daily, err := e.aggregates.ListDailyBetween(ctx, firstOfPrevious, firstOfCurrent)
	if err != nil {
		return fmt.Errorf("list daily aggregates: %w", err)
	}
	if len(daily) == 0 {
		return nil
	}

	aggregates := buildAggregates(groupAggregates(daily), firstOfPrevious)
	if err := e.aggregates.InsertMonthlyAggregates(ctx, aggregates); err != nil {
		return fmt.Errorf("insert monthly aggregates: %w", err)
	}

	e.logger.Info().
		Int("daily", len(daily)).
		Int("aggregates", len(aggregates)).
		Time("bucket", firstOfPrevious).
		Msg("monthly rollup complete")
	return nil
}

func groupAggregates(rows []storage.PriceAggregate) map[groupKey][]decimal.Decimal {
	groups := make(map[groupKey][]decimal.Decimal)
	for _, row := range rows {
		key := groupKey{productID: row.ProductID, storeID: row.StoreID}
		groups[key] = append(groups[key], row.AveragePrice)
	}
	return groups
}

func buildAggregates(groups map[groupKey][]decimal.Decimal, bucket time.Time) []storage.PriceAggregate {
	aggregates := make([]storage.PriceAggregate, 0, len(groups))
	for key, prices := range groups {
		aggregates = append(aggregates, storage.PriceAggregate{
			ProductID:    key.productID,
			StoreID:      key.storeID,
			AveragePrice: mean(prices),
			BucketStart:  bucket,
		})
	}
	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].ProductID != aggregates[j].ProductID {
			return aggregates[i].ProductID < aggregates[j].ProductID
		}
		return aggregates[i].StoreID < aggregates[j].StoreID
	})
	return aggregates
}

func mean(prices []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, price := range prices {
		sum = sum.Add(price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices)))).Round(2)
}
