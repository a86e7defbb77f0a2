package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	colorInfo    = 0x3498db
	colorWarning = 0xf1c40f
	colorError   = 0xe74c3c
)

// DiscordNotifier posts notifications to a Discord webhook as embeds.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Notify(ctx context.Context, msg Message) error {
	if d.webhookURL == "" {
		return nil
	}

	title := msg.Title
	if title == "" {
		title = "Pipeline notification"
	}
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": msg.Text,
				"color":       color(msg.Level),
				"footer": map[string]string{
					"text": fmt.Sprintf("pipeline %s | action %s", msg.PipelineID, msg.ActionID),
				},
				"timestamp": msg.SentAt.Format(time.RFC3339),
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}

func color(level string) int {
	switch level {
	case "error":
		return colorError
	case "warning", "warn":
		return colorWarning
	}
	return colorInfo
}
