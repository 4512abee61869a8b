package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pricewatcher/internal/diagnostics"
	"pricewatcher/internal/storage"
)

// DefaultCooldown is the minimum interval before a still-notified URL is
// eligible again via natural expiry.
const DefaultCooldown = 7 * 24 * time.Hour

// Engine evaluates tracked URLs against their target price and drives the
// notified/unnotified state machine. Each pass runs the reset phase before
// the notify phase; the notify phase reads its candidate set after the
// reset phase has written, so a URL whose cool-down expired while the price
// stayed below target is reset and renotified within the same pass.
type Engine struct {
	state    storage.AlertStateStore
	channels []Channel
	cooldown time.Duration
	diag     diagnostics.Recorder
	logger   zerolog.Logger

	now func() time.Time
}

// NewEngine constructs an alert engine. A non-positive cooldown falls back
// to DefaultCooldown.
func NewEngine(state storage.AlertStateStore, channels []Channel, cooldown time.Duration, diag diagnostics.Recorder, logger zerolog.Logger) *Engine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Engine{
		state:    state,
		channels: channels,
		cooldown: cooldown,
		diag:     diag,
		logger:   logger.With().Str("component", "alert_engine").Logger(),
		now:      time.Now,
	}
}

// Process runs one full reset-then-notify pass.
func (e *Engine) Process(ctx context.Context) error {
	if err := e.resetNotifications(ctx); err != nil {
		return err
	}
	return e.notifyPending(ctx)
}

// resetNotifications clears notifiedAt for URLs whose price recovered above
// target or whose notification aged past the cool-down. URLs without any
// observation never appear in the candidate set and stay untouched.
func (e *Engine) resetNotifications(ctx context.Context) error {
	candidates, err := e.state.ListNotifiedCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list notified candidates: %w", err)
	}

	cutoff := e.now().UTC().Add(-e.cooldown)

	idsToReset := make([]int64, 0)
	for _, candidate := range candidates {
		priceIncreased := candidate.TargetPrice != nil &&
			candidate.LatestPrice.GreaterThan(*candidate.TargetPrice)
		expired := candidate.NotifiedAt != nil && candidate.NotifiedAt.Before(cutoff)

		if priceIncreased || expired {
			idsToReset = append(idsToReset, candidate.TrackedURLID)
		}
	}

	if len(idsToReset) == 0 {
		return nil
	}

	if err := e.state.ClearNotified(ctx, idsToReset); err != nil {
		return fmt.Errorf("clear notified: %w", err)
	}

	e.diag.Info(ctx, fmt.Sprintf("reset notification state for %d alert(s)", len(idsToReset)))
	return nil
}

// notifyPending delivers alerts for unnotified URLs whose latest price is at
// or below target. Every channel is tried for each alert; the URL is marked
// notified when at least one channel succeeds and left eligible for retry
// next cycle when all fail.
func (e *Engine) notifyPending(ctx context.Context) error {
	candidates, err := e.state.ListUnnotifiedCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list unnotified candidates: %w", err)
	}

	for _, candidate := range candidates {
		if candidate.TargetPrice == nil {
			continue
		}
		if candidate.LatestPrice.GreaterThan(*candidate.TargetPrice) {
			continue
		}

		payload := Payload{
			ProductName:  candidate.ProductName,
			StoreName:    candidate.StoreName,
			TargetPrice:  *candidate.TargetPrice,
			CurrentPrice: candidate.LatestPrice,
			URL:          candidate.URL,
		}

		delivered := false
		for _, channel := range e.channels {
			if err := channel.Notify(ctx, payload); err != nil {
				e.diag.Error(ctx, fmt.Sprintf(
					"channel %s failed for product %q: %v",
					channel.Name(), payload.ProductName, err,
				), "")
				continue
			}
			delivered = true
		}

		if !delivered {
			continue
		}

		if err := e.state.MarkNotified(ctx, candidate.TrackedURLID, e.now().UTC()); err != nil {
			return fmt.Errorf("mark notified: %w", err)
		}
		e.diag.Info(ctx, fmt.Sprintf("notification sent for %q at %q", payload.ProductName, payload.StoreName))
	}

	return nil
}
