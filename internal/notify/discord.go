package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DiscordSender delivers market alerts via a Discord webhook, rendering each
// alert as an embed with the market ID and details as fields.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses a
// default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title  string         `json:"title"`
	Fields []discordField `json:"fields,omitempty"`
}

// discordPayload builds the webhook body for the alert.
func discordPayload(n Notification) map[string]any {
	embed := discordEmbed{Title: n.Title}
	if n.MarketID != "" {
		embed.Fields = append(embed.Fields, discordField{Name: "Market", Value: n.MarketID, Inline: true})
	}
	for _, d := range n.Details {
		embed.Fields = append(embed.Fields, discordField{Name: d.Label, Value: d.Value, Inline: true})
	}
	return map[string]any{"embeds": []discordEmbed{embed}}
}

// Send posts the alert to the Discord webhook.
func (d *DiscordSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(discordPayload(n))
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
