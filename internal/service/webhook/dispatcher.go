package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailgatekeeper/internal/config"
	"mailgatekeeper/internal/model"
	"mailgatekeeper/pkg/metrics"
)

const digestLimit = 5

// payload is the wake-call body the webhook endpoint expects.
type payload struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// Dispatcher POSTs a digest of new alerts to the configured webhook.
// Delivery is best-effort: failures are logged and never retried.
type Dispatcher struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewDispatcher(cfg config.WebhookConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		url:   cfg.URL,
		token: cfg.Token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Notify sends a summary of the batch. It is a no-op when no webhook URL is
// configured or the batch is empty.
func (d *Dispatcher) Notify(ctx context.Context, alerts []model.Alert) {
	if d.url == "" {
		d.logger.Debug("webhook url not configured, skipping notification")
		return
	}
	if len(alerts) == 0 {
		return
	}

	body, err := json.Marshal(payload{Text: digest(alerts), Mode: "now"})
	if err != nil {
		d.logger.Error("webhook payload marshal failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("webhook request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		d.logger.Error("webhook notification failed",
			zap.String("url", d.url),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		d.logger.Warn("webhook notification rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return
	}

	metrics.WebhookDeliveries.WithLabelValues("success").Inc()
	d.logger.Info("webhook notification sent",
		zap.Int("alerts", len(alerts)),
		zap.String("url", d.url),
	)
}

// digest renders a short human-readable summary, capped at digestLimit
// alerts plus a trailing count.
func digest(alerts []model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📬 Mail Gatekeeper: %d new alert(s)\n", len(alerts))

	for i, alert := range alerts {
		if i == digestLimit {
			break
		}
		fmt.Fprintf(&b, "• [%s] %s: %s\n", alert.Category, displayName(alert.From), alert.Subject)
	}
	if len(alerts) > digestLimit {
		fmt.Fprintf(&b, "  ...and %d more\n", len(alerts)-digestLimit)
	}

	return strings.TrimSpace(b.String())
}

// displayName extracts the display part from a "Name <addr>" sender.
func displayName(from string) string {
	if strings.TrimSpace(from) == "" {
		return "(unknown)"
	}
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return from
}
