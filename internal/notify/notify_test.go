package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type memSender struct {
	name string
	sent []Notification
	fail error
}

func (m *memSender) Send(_ context.Context, n Notification) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *memSender) Name() string { return m.name }

var _ Sender = (*memSender)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	s := &memSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{"market_resolved"}, discardLogger())

	err := n.Notify(context.Background(), Notification{Event: "market_created", MarketID: "mkt-1"})
	require.NoError(t, err)
	require.Empty(t, s.sent)

	err = n.Notify(context.Background(), Notification{Event: "market_resolved", MarketID: "mkt-1"})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	require.Equal(t, "mkt-1", s.sent[0].MarketID)
}

func TestNotifyEmptyFilterAdmitsAll(t *testing.T) {
	s := &memSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), Notification{Event: "attention_harvested"}))
	require.Len(t, s.sent, 1)
}

func TestDispatchCollectsSenderFailures(t *testing.T) {
	bad := &memSender{name: "bad", fail: errors.New("webhook down")}
	good := &memSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), Notification{Event: "market_bonded", MarketID: "mkt-2"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")

	// The healthy channel still received the alert.
	require.Len(t, good.sent, 1)
}

func TestBuildNotificationLiftsMarketFields(t *testing.T) {
	payload := map[string]any{
		"event":            "market_resolved",
		"market_id":        "mkt-9",
		"outcome":          "yes",
		"settlement_price": float64(10000),
	}
	note := buildNotification("market_resolved", payload)

	require.Equal(t, "Market resolved", note.Title)
	require.Equal(t, "mkt-9", note.MarketID)
	require.Equal(t, []Detail{
		{Label: "Outcome", Value: "yes"},
		{Label: "Settlement price", Value: "10000"},
	}, note.Details)
}

func TestBuildNotificationSkipsMissingFields(t *testing.T) {
	note := buildNotification("market_bonded", map[string]any{
		"event":     "market_bonded",
		"market_id": "mkt-3",
	})
	require.Empty(t, note.Details)
	require.Equal(t, "Market bonded", note.Title)
}

func TestTelegramTextRendering(t *testing.T) {
	text := telegramText(Notification{
		Title:    "Market resolved",
		MarketID: "mkt-9",
		Details:  []Detail{{Label: "Outcome", Value: "yes"}},
	})
	require.Equal(t, "*Market resolved*\nMarket: `mkt-9`\nOutcome: yes", text)
}

func TestDiscordPayloadEmbedsMarket(t *testing.T) {
	payload := discordPayload(Notification{
		Title:    "Market bonded",
		MarketID: "mkt-2",
		Details:  []Detail{{Label: "Resolver", Value: "0xabc"}},
	})

	embeds, ok := payload["embeds"].([]discordEmbed)
	require.True(t, ok)
	require.Len(t, embeds, 1)
	require.Equal(t, "Market bonded", embeds[0].Title)
	require.Equal(t, []discordField{
		{Name: "Market", Value: "mkt-2", Inline: true},
		{Name: "Resolver", Value: "0xabc", Inline: true},
	}, embeds[0].Fields)
}
