// Package notify fans market lifecycle alerts out to operator channels.
// Every alert describes one market event (created, bonded, resolved,
// harvested, archived); each sender renders the same Notification in its
// channel's native markup, so the bridge builds the payload once.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Notification is one market lifecycle alert. Details carry the fields that
// matter to an operator (resolver, outcome, amounts) in display order.
type Notification struct {
	Event    string
	Title    string
	MarketID string
	Details  []Detail
}

// Detail is one labelled line in a rendered alert.
type Detail struct {
	Label string
	Value string
}

// Sender is one delivery channel for market alerts.
type Sender interface {
	// Send renders and delivers the notification.
	Send(ctx context.Context, n Notification) error
	// Name returns the channel identifier (e.g. "telegram").
	Name() string
}

// Notifier dispatches market alerts to one or more Senders, filtered by
// event name so operators only receive the lifecycle transitions they
// subscribed to. An empty filter admits every event.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events named in the events slice pass the filter; an empty slice admits
// all of them.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert to all senders if its event passes the filter.
func (n *Notifier) Notify(ctx context.Context, note Notification) error {
	if len(n.events) > 0 && !n.events[note.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", note.Event),
			slog.String("market_id", note.MarketID),
		)
		return nil
	}
	return n.dispatch(ctx, note)
}

// NotifyAll delivers the alert to all senders regardless of the filter.
// Used for operational alerts rather than market lifecycle events.
func (n *Notifier) NotifyAll(ctx context.Context, note Notification) error {
	return n.dispatch(ctx, note)
}

// dispatch sends to every sender. Individual failures are collected so one
// broken channel never blocks the others.
func (n *Notifier) dispatch(ctx context.Context, note Notification) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, note); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", note.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("event", note.Event),
				slog.String("market_id", note.MarketID),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
