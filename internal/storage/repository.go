package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listStoresSQL = `SELECT id, name, created_at FROM stores ORDER BY id;`

	listTrackedURLsSQL = `SELECT id, product_id, store_id, url, notified_at, created_at
    FROM tracked_urls
    ORDER BY id;`

	insertObservationSQL = `INSERT INTO price_observations (tracked_url_id, price, observed_at)
    VALUES ($1, $2, $3);`

	listObservationsSinceSQL = `SELECT o.id, tu.product_id, tu.store_id, o.price, o.observed_at
    FROM price_observations o
    JOIN tracked_urls tu ON tu.id = o.tracked_url_id
    WHERE o.observed_at >= $1
    ORDER BY o.id;`

	deleteObservationsSQL = `DELETE FROM price_observations WHERE id = ANY($1);`

	insertHourlyAggregateSQL = `INSERT INTO hourly_aggregates (product_id, store_id, average_price, bucket_start)
    VALUES ($1, $2, $3, $4);`

	insertDailyAggregateSQL = `INSERT INTO daily_aggregates (product_id, store_id, average_price, bucket_start)
    VALUES ($1, $2, $3, $4);`

	insertMonthlyAggregateSQL = `INSERT INTO monthly_aggregates (product_id, store_id, average_price, bucket_start)
    VALUES ($1, $2, $3, $4);`

	listHourlyBetweenSQL = `SELECT a.id, a.product_id, a.store_id, a.average_price, a.bucket_start, a.created_at,
        COALESCE(p.name, ''), COALESCE(s.name, '')
    FROM hourly_aggregates a
    LEFT JOIN products p ON p.id = a.product_id
    LEFT JOIN stores s ON s.id = a.store_id
    WHERE a.bucket_start >= $1
      AND a.bucket_start < $2
    ORDER BY a.bucket_start, a.product_id, a.store_id;`

	listDailyBetweenSQL = `SELECT a.id, a.product_id, a.store_id, a.average_price, a.bucket_start, a.created_at,
        COALESCE(p.name, ''), COALESCE(s.name, '')
    FROM daily_aggregates a
    LEFT JOIN products p ON p.id = a.product_id
    LEFT JOIN stores s ON s.id = a.store_id
    WHERE a.bucket_start >= $1
      AND a.bucket_start < $2
    ORDER BY a.bucket_start, a.product_id, a.store_id;`

	listRecentHourlySQL = `SELECT a.id, a.product_id, a.store_id, a.average_price, a.bucket_start, a.created_at,
        COALESCE(p.name, ''), COALESCE(s.name, '')
    FROM hourly_aggregates a
    LEFT JOIN products p ON p.id = a.product_id
    LEFT JOIN stores s ON s.id = a.store_id
    ORDER BY a.bucket_start DESC, a.product_id, a.store_id
    LIMIT $1;`

	// Candidate queries require the product, store, and at least one
	// observation via inner joins, so dangling references never surface.
	listAlertCandidatesSQL = `SELECT tu.id, tu.url, tu.notified_at,
        p.id, p.name, p.target_price,
        s.id, s.name,
        o.price, o.observed_at
    FROM tracked_urls tu
    JOIN products p ON p.id = tu.product_id
    JOIN stores s ON s.id = tu.store_id
    JOIN LATERAL (
        SELECT price, observed_at
        FROM price_observations
        WHERE tracked_url_id = tu.id
        ORDER BY observed_at DESC
        LIMIT 1
    ) o ON true
    WHERE ($1 AND tu.notified_at IS NOT NULL) OR (NOT $1 AND tu.notified_at IS NULL)
    ORDER BY tu.id;`

	clearNotifiedSQL = `UPDATE tracked_urls SET notified_at = NULL WHERE id = ANY($1);`

	markNotifiedSQL = `UPDATE tracked_urls SET notified_at = $2 WHERE id = $1;`

	insertLogSQL = `INSERT INTO application_logs (message, severity, stack, route, method, status_code, timestamp)
    VALUES ($1, $2, $3, $4, $5, $6, $7);`

	listRecentLogsSQL = `SELECT id, message, severity, stack, route, method, status_code, timestamp
    FROM application_logs
    ORDER BY timestamp DESC
    LIMIT $1;`
)

// CatalogStore reads stores and tracked URLs.
type CatalogStore interface {
	ListStores(ctx context.Context) ([]Store, error)
	ListTrackedURLs(ctx context.Context) ([]TrackedURL, error)
}

// ObservationStore persists and consumes raw price observations.
type ObservationStore interface {
	InsertObservation(ctx context.Context, trackedURLID int64, price decimal.Decimal, observedAt time.Time) error
	ListObservationsSince(ctx context.Context, since time.Time) ([]ObservationWithRefs, error)
	DeleteObservations(ctx context.Context, ids []int64) error
}

// AggregateStore persists and reads rollup output.
type AggregateStore interface {
	InsertHourlyAggregates(ctx context.Context, aggregates []PriceAggregate) error
	InsertDailyAggregates(ctx context.Context, aggregates []PriceAggregate) error
	InsertMonthlyAggregates(ctx context.Context, aggregates []PriceAggregate) error
	ListHourlyBetween(ctx context.Context, from, to time.Time) ([]PriceAggregate, error)
	ListDailyBetween(ctx context.Context, from, to time.Time) ([]PriceAggregate, error)
	ListRecentHourly(ctx context.Context, limit int) ([]PriceAggregate, error)
}

// AlertStateStore reads alert candidates and flips notification state.
type AlertStateStore interface {
	ListNotifiedCandidates(ctx context.Context) ([]AlertCandidate, error)
	ListUnnotifiedCandidates(ctx context.Context) ([]AlertCandidate, error)
	ClearNotified(ctx context.Context, ids []int64) error
	MarkNotified(ctx context.Context, id int64, notifiedAt time.Time) error
}

// LogStore persists diagnostics records.
type LogStore interface {
	InsertLog(ctx context.Context, entry LogEntry) error
	ListRecentLogs(ctx context.Context, limit int) ([]LogEntry, error)
}

// Repository aggregates access to all pricewatcher tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgx pool into a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Close releases the underlying pool resources.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

func (r *Repository) getPool() (*pgxpool.Pool, error) {
	if r == nil || r.pool == nil {
		return nil, ErrNotConfigured
	}
	return r.pool, nil
}

// ListStores returns every known store.
func (r *Repository) ListStores(ctx context.Context) ([]Store, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listStoresSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list stores: %w", queryErr)
	}
	defer rows.Close()

	stores := make([]Store, 0)
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

// ListTrackedURLs returns every tracked URL.
func (r *Repository) ListTrackedURLs(ctx context.Context) ([]TrackedURL, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTrackedURLsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list tracked urls: %w", queryErr)
	}
	defer rows.Close()

	urls := make([]TrackedURL, 0)
	for rows.Next() {
		var (
			tu       TrackedURL
			notified sql.NullTime
		)
		if err := rows.Scan(&tu.ID, &tu.ProductID, &tu.StoreID, &tu.URL, &notified, &tu.CreatedAt); err != nil {
			return nil, err
		}
		if notified.Valid {
			value := notified.Time
			tu.NotifiedAt = &value
		}
		urls = append(urls, tu)
	}
	return urls, rows.Err()
}

// InsertObservation appends one raw price observation.
func (r *Repository) InsertObservation(ctx context.Context, trackedURLID int64, price decimal.Decimal, observedAt time.Time) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertObservationSQL, trackedURLID, price.String(), observedAt); execErr != nil {
		return fmt.Errorf("insert observation: %w", execErr)
	}
	return nil
}

// ListObservationsSince returns observations at or after the given instant,
// joined to their product and store ids.
func (r *Repository) ListObservationsSince(ctx context.Context, since time.Time) ([]ObservationWithRefs, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listObservationsSinceSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations since: %w", queryErr)
	}
	defer rows.Close()

	observations := make([]ObservationWithRefs, 0)
	for rows.Next() {
		var (
			o        ObservationWithRefs
			priceStr string
		)
		if err := rows.Scan(&o.ID, &o.ProductID, &o.StoreID, &priceStr, &o.ObservedAt); err != nil {
			return nil, err
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse observation price: %w", convErr)
		}
		o.Price = price
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// DeleteObservations removes the observations with exactly the given ids.
// Deleting by explicit id list keeps compaction safe against a scrape write
// that lands after the rollup's read.
func (r *Repository) DeleteObservations(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteObservationsSQL, ids); execErr != nil {
		return fmt.Errorf("delete observations: %w", execErr)
	}
	return nil
}

// InsertHourlyAggregates writes hourly rollup rows.
func (r *Repository) InsertHourlyAggregates(ctx context.Context, aggregates []PriceAggregate) error {
	return r.insertAggregates(ctx, insertHourlyAggregateSQL, aggregates)
}

// InsertDailyAggregates writes daily rollup rows.
func (r *Repository) InsertDailyAggregates(ctx context.Context, aggregates []PriceAggregate) error {
	return r.insertAggregates(ctx, insertDailyAggregateSQL, aggregates)
}

// InsertMonthlyAggregates writes monthly rollup rows.
func (r *Repository) InsertMonthlyAggregates(ctx context.Context, aggregates []PriceAggregate) error {
	return r.insertAggregates(ctx, insertMonthlyAggregateSQL, aggregates)
}

func (r *Repository) insertAggregates(ctx context.Context, query string, aggregates []PriceAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}
	pool, err := r.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, agg := range aggregates {
		batch.Queue(query, agg.ProductID, agg.StoreID, agg.AveragePrice.String(), agg.BucketStart)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range aggregates {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert aggregates: %w", execErr)
		}
	}
	return nil
}

// ListHourlyBetween lists hourly aggregates whose bucket falls in [from, to).
func (r *Repository) ListHourlyBetween(ctx context.Context, from, to time.Time) ([]PriceAggregate, error) {
	return r.listAggregates(ctx, listHourlyBetweenSQL, from, to)
}

// ListDailyBetween lists daily aggregates whose bucket falls in [from, to).
func (r *Repository) ListDailyBetween(ctx context.Context, from, to time.Time) ([]PriceAggregate, error) {
	return r.listAggregates(ctx, listDailyBetweenSQL, from, to)
}

func (r *Repository) listAggregates(ctx context.Context, query string, args ...any) ([]PriceAggregate, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list aggregates: %w", queryErr)
	}
	defer rows.Close()

	aggregates := make([]PriceAggregate, 0)
	for rows.Next() {
		agg, scanErr := scanAggregate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, rows.Err()
}

// ListRecentHourly lists the most recent hourly aggregates.
func (r *Repository) ListRecentHourly(ctx context.Context, limit int) ([]PriceAggregate, error) {
	return r.listAggregates(ctx, listRecentHourlySQL, limit)
}

// ListNotifiedCandidates returns alert candidates with a non-null notifiedAt.
func (r *Repository) ListNotifiedCandidates(ctx context.Context) ([]AlertCandidate, error) {
	return r.listCandidates(ctx, true)
}

// ListUnnotifiedCandidates returns alert candidates with a null notifiedAt.
func (r *Repository) ListUnnotifiedCandidates(ctx context.Context) ([]AlertCandidate, error) {
	return r.listCandidates(ctx, false)
}

func (r *Repository) listCandidates(ctx context.Context, notified bool) ([]AlertCandidate, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertCandidatesSQL, notified)
	if queryErr != nil {
		return nil, fmt.Errorf("list alert candidates: %w", queryErr)
	}
	defer rows.Close()

	candidates := make([]AlertCandidate, 0)
	for rows.Next() {
		var (
			c          AlertCandidate
			notifiedAt sql.NullTime
			targetStr  sql.NullString
			priceStr   string
		)
		if err := rows.Scan(
			&c.TrackedURLID,
			&c.URL,
			&notifiedAt,
			&c.ProductID,
			&c.ProductName,
			&targetStr,
			&c.StoreID,
			&c.StoreName,
			&priceStr,
			&c.LatestObservedAt,
		); err != nil {
			return nil, err
		}

		if notifiedAt.Valid {
			value := notifiedAt.Time
			c.NotifiedAt = &value
		}
		if targetStr.Valid {
			target, convErr := decimal.NewFromString(targetStr.String)
			if convErr != nil {
				return nil, fmt.Errorf("parse target price: %w", convErr)
			}
			c.TargetPrice = &target
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse latest price: %w", convErr)
		}
		c.LatestPrice = price

		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ClearNotified nulls notifiedAt for the given tracked URL ids.
func (r *Repository) ClearNotified(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, clearNotifiedSQL, ids); execErr != nil {
		return fmt.Errorf("clear notified: %w", execErr)
	}
	return nil
}

// MarkNotified stamps notifiedAt for one tracked URL.
func (r *Repository) MarkNotified(ctx context.Context, id int64, notifiedAt time.Time) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, markNotifiedSQL, id, notifiedAt); execErr != nil {
		return fmt.Errorf("mark notified: %w", execErr)
	}
	return nil
}

// InsertLog appends one diagnostics record.
func (r *Repository) InsertLog(ctx context.Context, entry LogEntry) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}

	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	if _, execErr := pool.Exec(ctx, insertLogSQL,
		entry.Message,
		entry.Severity,
		entry.Stack,
		entry.Route,
		entry.Method,
		entry.StatusCode,
		timestamp,
	); execErr != nil {
		return fmt.Errorf("insert log: %w", execErr)
	}
	return nil
}

// ListRecentLogs lists the most recent diagnostics records.
func (r *Repository) ListRecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentLogsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent logs: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0, limit)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Message, &e.Severity, &e.Stack, &e.Route, &e.Method, &e.StatusCode, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanAggregate(rows pgx.Rows) (PriceAggregate, error) {
	var (
		agg      PriceAggregate
		priceStr string
	)
	if err := rows.Scan(
		&agg.ID,
		&agg.ProductID,
		&agg.StoreID,
		&priceStr,
		&agg.BucketStart,
		&agg.CreatedAt,
		&agg.ProductName,
		&agg.StoreName,
	); err != nil {
		return PriceAggregate{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PriceAggregate{}, fmt.Errorf("parse average price: %w", err)
	}
	agg.AveragePrice = price
	return agg, nil
}
