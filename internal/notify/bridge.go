package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hypelabs/hyperd/internal/domain"
)

// EventBridge subscribes to the lifecycle event channel and turns each bus
// payload into an operator alert, which the Notifier filters and fans out.
type EventBridge struct {
	bus      domain.SignalBus
	notifier *Notifier
	channel  string
	logger   *slog.Logger
}

// NewEventBridge creates an EventBridge reading from the given bus channel.
func NewEventBridge(bus domain.SignalBus, notifier *Notifier, channel string, logger *slog.Logger) *EventBridge {
	return &EventBridge{
		bus:      bus,
		notifier: notifier,
		channel:  channel,
		logger:   logger.With(slog.String("component", "event_bridge")),
	}
}

// Run consumes events until the context is cancelled. Call in a goroutine.
func (b *EventBridge) Run(ctx context.Context) error {
	msgs, err := b.bus.Subscribe(ctx, b.channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", b.channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgs:
			if !ok {
				return nil
			}
			b.forward(ctx, data)
		}
	}
}

func (b *EventBridge) forward(ctx context.Context, data []byte) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		b.logger.WarnContext(ctx, "malformed event payload", slog.String("error", err.Error()))
		return
	}
	event, _ := payload["event"].(string)
	if event == "" {
		return
	}

	note := buildNotification(event, payload)
	if err := b.notifier.Notify(ctx, note); err != nil {
		b.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// detailField maps a payload key onto the label operators read in the alert.
type detailField struct {
	key   string
	label string
}

// detailOrder fixes the display order per event; fields absent from the
// payload are skipped.
var detailOrder = map[string][]detailField{
	"market_created":      {{"creator", "Creator"}},
	"market_bonded":       {{"resolver", "Resolver"}},
	"market_resolved":     {{"outcome", "Outcome"}, {"settlement_price", "Settlement price"}},
	"attention_harvested": {{"caller", "Caller"}, {"swept", "Swept"}, {"minted", "Minted"}},
	"settlement_archived": {{"trades", "Trades archived"}},
}

// buildNotification maps a bus payload onto the alert shape the senders
// render. The market ID is lifted out of the payload; remaining fields of
// interest become detail lines.
func buildNotification(event string, payload map[string]any) Notification {
	marketID, _ := payload["market_id"].(string)
	note := Notification{
		Event:    event,
		Title:    eventTitle(event),
		MarketID: marketID,
	}
	for _, f := range detailOrder[event] {
		if v, ok := payload[f.key]; ok {
			note.Details = append(note.Details, Detail{Label: f.label, Value: formatValue(v)})
		}
	}
	return note
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		// JSON numbers decode as float64; our amounts are integral.
		return fmt.Sprintf("%.0f", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func eventTitle(event string) string {
	switch event {
	case "market_created":
		return "Market created"
	case "market_bonded":
		return "Market bonded"
	case "market_resolved":
		return "Market resolved"
	case "attention_harvested":
		return "Attention harvested"
	case "settlement_archived":
		return "Settlement archived"
	default:
		return event
	}
}
