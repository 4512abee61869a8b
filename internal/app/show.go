package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent hourly aggregates.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	aggregates, err := repo.ListRecentHourly(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(aggregates) == 0 {
		fmt.Fprintln(os.Stdout, "no aggregates found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Bucket (UTC)\tProduct\tStore\tAvg Price")

	for _, agg := range aggregates {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			agg.BucketStart.UTC().Format(time.RFC3339),
			labelOr(agg.ProductName, agg.ProductID),
			labelOr(agg.StoreName, agg.StoreID),
			agg.AveragePrice.StringFixed(2),
		)
	}

	writer.Flush()
	return nil
}

// Logs prints recent diagnostics records.
func (a *App) Logs(ctx context.Context, opts LogsOptions) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	entries, err := repo.ListRecentLogs(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no log entries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSeverity\tMessage")

	for _, entry := range entries {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			entry.Timestamp.UTC().Format(time.RFC3339),
			entry.Severity,
			sanitizeInline(entry.Message),
		)
	}

	writer.Flush()
	return nil
}

func labelOr(name string, id int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
