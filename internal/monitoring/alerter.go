// Package monitoring raises webhook alerts about workflow runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/config"
	"github.com/aiprodig/leadgen-cli/internal/discovery"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertWorkflowError   AlertType = "workflow_error"
	AlertEnrichFailures  AlertType = "enrich_failure_rate"
	AlertNoNewCandidates AlertType = "no_new_candidates"
)

// minProcessedForRate avoids alerting on a single failed lead.
const minProcessedForRate = 2

// Alert is the JSON body posted to the webhook.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates workflow outcomes against configured thresholds and
// posts alerts to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts raised by one workflow run.
func (a *Alerter) Evaluate(report *discovery.WorkflowReport, runErr error) []Alert {
	now := time.Now().UTC()

	if runErr != nil {
		return []Alert{{
			Type:      AlertWorkflowError,
			Severity:  "high",
			Message:   fmt.Sprintf("Daily workflow failed: %v", runErr),
			Timestamp: now,
		}}
	}
	if report == nil {
		return nil
	}

	var alerts []Alert
	processed := len(report.Processed)
	failed := processed - report.Succeeded()
	if processed >= minProcessedForRate {
		rate := float64(failed) / float64(processed)
		if rate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertEnrichFailures,
				Severity: "high",
				Message: fmt.Sprintf(
					"Enrichment failure rate %.1f%% exceeds threshold %.1f%% (%d of %d leads, niche %q)",
					rate*100, a.cfg.FailureRateThreshold*100, failed, processed, report.Niche,
				),
				Details: map[string]any{
					"failure_rate": rate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       failed,
					"processed":    processed,
					"niche":        report.Niche,
				},
				Timestamp: now,
			})
		}
	}

	if processed == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertNoNewCandidates,
			Severity: "low",
			Message:  fmt.Sprintf("No new leads for niche %q (%d candidates, all known)", report.Niche, report.Candidates),
			Details: map[string]any{
				"niche":      report.Niche,
				"candidates": report.Candidates,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
