// Package slack sends emergency triage notifications to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/medtriage/internal/triage"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

const (
	maxReasoningLen = 3000
	httpTimeout     = 10 * time.Second
)

// Notifier posts prediction records to a Slack webhook. Free-text symptoms
// are never sent, only the matched symptom categories.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Send posts a prediction record to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, rec *triage.Record) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(rec))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "prediction_id", rec.ID, "urgency", rec.Urgency)
	return nil
}

func buildMessage(r *triage.Record) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			reasoningBlock(r),
			{"type": "divider"},
			contextBlock(r),
		},
	}
}

func headerBlock(r *triage.Record) map[string]any {
	text := fmt.Sprintf("%s Triage: %s (score %d)", urgencyEmoji(r.Urgency), strings.ToUpper(string(r.Urgency)), r.TriageScore)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *triage.Record) map[string]any {
	symptoms := "none matched"
	if len(r.Symptoms) > 0 {
		symptoms = strings.Join(r.Symptoms, ", ")
	}
	confidence := "n/a"
	if r.Source == triage.SourceModel {
		confidence = fmt.Sprintf("%.0f%%", r.Confidence*100)
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %s", confidence),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Source:* %s", r.Source),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Age / Pain:* %g / %g", r.Vitals.Age, r.Vitals.PainLevel),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*HR / SBP / RR:* %g / %g / %g", r.Vitals.HeartRate, r.Vitals.SystolicBP, r.Vitals.RespiratoryRate),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Temperature:* %g°C", r.Vitals.Temperature),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Symptoms:* %s", symptoms),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func reasoningBlock(r *triage.Record) map[string]any {
	text := truncate(r.Reasoning, maxReasoningLen)
	if text == "" {
		text = "_No reasoning available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reasoning*\n\n%s", text),
		},
	}
}

func contextBlock(r *triage.Record) map[string]any {
	text := fmt.Sprintf("medtriage • prediction %s • %s", r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if r.TrainingID != "" {
		text += " • model " + r.TrainingID
	}

	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{"type": "mrkdwn", "text": text},
		},
	}
}

func urgencyEmoji(u urgency.Level) string {
	switch u {
	case urgency.Emergency:
		return "\U0001f534" // red circle
	case urgency.High:
		return "\U0001f7e0" // orange circle
	case urgency.Medium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
