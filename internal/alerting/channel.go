package alerting

import (
	"context"

	"github.com/shopspring/decimal"
)

// Payload carries everything a notification channel needs to render a
// price-drop alert.
type Payload struct {
	ProductName  string
	StoreName    string
	TargetPrice  decimal.Decimal
	CurrentPrice decimal.Decimal
	URL          string
}

// Channel delivers alert payloads. Delivery across channels is best-effort:
// a failing channel is logged and the remaining channels are still tried.
type Channel interface {
	Name() string
	Notify(ctx context.Context, payload Payload) error
}
