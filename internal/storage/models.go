package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store is an online store whose pages the pipeline scrapes.
type Store struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Product is a tracked product with an optional alert target price.
type Product struct {
	ID          int64
	Name        string
	TargetPrice *decimal.Decimal
	CreatedAt   time.Time
}

// TrackedURL binds a product to its page at one store. At most one row
// exists per (product, store) pair.
type TrackedURL struct {
	ID         int64
	ProductID  int64
	StoreID    int64
	URL        string
	NotifiedAt *time.Time
	CreatedAt  time.Time
}

// PriceObservation is a raw price tick. Rows are written by the scrape
// orchestrator and consumed (read, then deleted by id) by the hourly rollup.
type PriceObservation struct {
	ID           int64
	TrackedURLID int64
	Price        decimal.Decimal
	ObservedAt   time.Time
}

// ObservationWithRefs is an observation joined to its product and store,
// as read by the hourly rollup.
type ObservationWithRefs struct {
	ID         int64
	ProductID  int64
	StoreID    int64
	Price      decimal.Decimal
	ObservedAt time.Time
}

// PriceAggregate is one rollup row. The same shape backs the hourly, daily
// and monthly tables; BucketStart is truncated to the stage's granularity.
// ProductName and StoreName are filled on reads that join the catalog and
// are ignored on insert.
type PriceAggregate struct {
	ID           int64
	ProductID    int64
	StoreID      int64
	AveragePrice decimal.Decimal
	BucketStart  time.Time
	CreatedAt    time.Time

	ProductName string
	StoreName   string
}

// AlertCandidate is a tracked URL joined to its product, store, and single
// most recent observation, as read by the alert engine. Rows with a missing
// product, store, or observation are excluded by the query, never returned.
type AlertCandidate struct {
	TrackedURLID     int64
	URL              string
	NotifiedAt       *time.Time
	ProductID        int64
	ProductName      string
	TargetPrice      *decimal.Decimal
	StoreID          int64
	StoreName        string
	LatestPrice      decimal.Decimal
	LatestObservedAt time.Time
}

// LogEntry is a persisted diagnostics record.
type LogEntry struct {
	ID         int64
	Message    string
	Severity   string
	Stack      *string
	Route      *string
	Method     *string
	StatusCode *int
	Timestamp  time.Time
}
