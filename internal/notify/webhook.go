package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// maxListedFailures bounds the failure lines included in one message.
const maxListedFailures = 10

// WebhookNotifier posts bulk run summaries to a chat webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyBulkRun sends the run summary to the webhook.
func (n *WebhookNotifier) NotifyBulkRun(ctx context.Context, msg BulkRunMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatBulkRunMessage(msg)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatBulkRunMessage(msg BulkRunMessage) string {
	var b strings.Builder
	b.WriteString("[Statement Bulk Run]\n")
	if msg.SchoolYearID != "" {
		fmt.Fprintf(&b, "School Year: %s\n", msg.SchoolYearID)
	}
	if msg.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", msg.RunID)
	}
	fmt.Fprintf(&b, "Generated: %d/%d\n", msg.Succeeded, msg.Total)
	if msg.Failed > 0 {
		fmt.Fprintf(&b, "Failed: %d\n", msg.Failed)
	}
	if !msg.Completed {
		b.WriteString("Status: interrupted\n")
	}
	if msg.ArchivePath != "" {
		fmt.Fprintf(&b, "Archive: %s\n", msg.ArchivePath)
	}
	listed := 0
	for _, failure := range msg.Failures {
		if listed == maxListedFailures {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", failure.Student, failure.Message)
		listed++
	}
	// Failures may already be capped by the caller; Failed is the full count.
	if hidden := max(msg.Failed, len(msg.Failures)) - listed; hidden > 0 && listed > 0 {
		fmt.Fprintf(&b, "... and %d more\n", hidden)
	}
	return strings.TrimSpace(b.String())
}
