// Package service orchestrates lifecycle operations: acquire the entity
// lock, load authoritative state from the stores, run the engine, persist
// the mutated entities, then refresh caches and fan out events. Persistence
// happens only after the engine succeeds, so an error never leaves partial
// entity state behind.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hypelabs/hyperd/internal/domain"
)

// Pub/sub channels. Trades carry per-fill receipts; events carry lifecycle
// transitions that notifiers and websocket clients subscribe to.
const (
	ChannelTrades = "trades"
	ChannelEvents = "events"
)

// Lifecycle event names published on ChannelEvents.
const (
	EventMarketCreated     = "market_created"
	EventMarketBonded      = "market_bonded"
	EventMarketResolved    = "market_resolved"
	EventAttentionHarvest  = "attention_harvested"
	EventSettlementArchive = "settlement_archived"
)

// lockTTL bounds how long an entity lock may be held by a single operation.
const lockTTL = 10 * time.Second

// publish marshals the payload and publishes it, logging instead of failing:
// event fan-out is best-effort and never rolls back a completed operation.
func publish(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.WarnContext(ctx, "event marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := bus.Publish(ctx, channel, data); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
