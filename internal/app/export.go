package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pricewatcher/internal/storage"
)

// Export renders hourly aggregate history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	aggregates, err := repo.ListHourlyBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(aggregates) == 0 {
		a.Logger.Info().Msg("no aggregates found for export window")
		return nil
	}

	downsampled := downsampleAggregates(aggregates, opts.MaxPoints)
	a.Logger.Info().Int("total", len(aggregates)).Int("exported", len(downsampled)).Msg("exporting aggregates")

	if opts.CSVPath != "" {
		if err := writeAggregatesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAggregatesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAggregates(aggregates []storage.PriceAggregate, max int) []storage.PriceAggregate {
	if max <= 0 || len(aggregates) <= max {
		return aggregates
	}

	result := make([]storage.PriceAggregate, 0, max)
	step := float64(len(aggregates)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(aggregates) {
			idx = len(aggregates) - 1
		}
		result = append(result, aggregates[idx])
	}
	return result
}

func writeAggregatesCSV(path string, aggregates []storage.PriceAggregate) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_start", "product_id", "product", "store_id", "store", "average_price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, agg := range aggregates {
		record := []string{
			agg.BucketStart.Format(time.RFC3339),
			fmt.Sprintf("%d", agg.ProductID),
			agg.ProductName,
			fmt.Sprintf("%d", agg.StoreID),
			agg.StoreName,
			agg.AveragePrice.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAggregatesPNG(path string, aggregates []storage.PriceAggregate) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	type pairKey struct {
		productID int64
		storeID   int64
	}
	type pairSeries struct {
		label string
		x     []time.Time
		y     []float64
	}

	grouped := make(map[pairKey]*pairSeries)
	order := make([]pairKey, 0)
	for _, agg := range aggregates {
		key := pairKey{productID: agg.ProductID, storeID: agg.StoreID}
		series, ok := grouped[key]
		if !ok {
			series = &pairSeries{
				label: fmt.Sprintf("%s @ %s", labelOr(agg.ProductName, agg.ProductID), labelOr(agg.StoreName, agg.StoreID)),
			}
			grouped[key] = series
			order = append(order, key)
		}
		series.x = append(series.x, agg.BucketStart)
		series.y = append(series.y, agg.AveragePrice.InexactFloat64())
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].productID != order[j].productID {
			return order[i].productID < order[j].productID
		}
		return order[i].storeID < order[j].storeID
	})

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}

	series := make([]chart.Series, 0, len(order))
	for _, key := range order {
		s := grouped[key]
		series = append(series, chart.TimeSeries{
			Name:    s.label,
			XValues: s.x,
			YValues: s.y,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Average price",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
