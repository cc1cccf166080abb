// Package pager sends best-effort SMS pages for high-severity firing
// events via an outbound webhook.
package pager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

const httpTimeout = 10 * time.Second

// Notifier posts page requests to an SMS gateway webhook.
type Notifier struct {
	webhookURL  string
	recipient   string
	minSeverity event.Severity
	client      *http.Client
}

// New creates a pager notifier. If webhookURL is empty, Page is a no-op.
func New(webhookURL, recipient string, minSeverity event.Severity) *Notifier {
	if minSeverity == "" {
		minSeverity = event.SeverityCritical
	}
	return &Notifier{
		webhookURL:  webhookURL,
		recipient:   recipient,
		minSeverity: minSeverity,
		client:      &http.Client{Timeout: httpTimeout},
	}
}

// Page sends an SMS for the event if it is firing at or above the
// configured minimum severity. Resolved and low-severity events are
// skipped silently.
func (n *Notifier) Page(ctx context.Context, inc *incident.Incident, ev *event.Event) error {
	if n.webhookURL == "" {
		return nil
	}
	if ev.Alert.State != event.StateFiring || ev.Alert.Severity.Rank() < n.minSeverity.Rank() {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"to":      n.recipient,
		"message": buildMessage(inc, ev),
	})
	if err != nil {
		return fmt.Errorf("pager: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("pager: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("pager: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pager: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(inc *incident.Incident, ev *event.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s/%s %s", strings.ToUpper(string(ev.Alert.Severity)),
		inc.Key.Namespace, inc.Key.Service, inc.Key.DedupeKey)
	fmt.Fprintf(&b, " events=%d", inc.EventCount)
	if ev.Decision.Action != "" {
		fmt.Fprintf(&b, " action=%s", ev.Decision.Action)
	}
	if ev.Impact != "" {
		fmt.Fprintf(&b, " impact=%s", ev.Impact)
	}
	return b.String()
}
