package monitoring

import (
	"context"
	"time"

	"github.com/aiprodig/leadgen-cli/internal/discovery"
)

// notifyTimeout bounds webhook delivery after a run. It is detached from
// the run context so a timed-out run can still report.
const notifyTimeout = 15 * time.Second

// WatchedWorkflow runs a workflow and alerts on its outcome.
type WatchedWorkflow struct {
	next    discovery.WorkflowRunner
	alerter *Alerter
}

// Watch wraps wf so every run is evaluated by a.
func Watch(wf discovery.WorkflowRunner, a *Alerter) *WatchedWorkflow {
	return &WatchedWorkflow{next: wf, alerter: a}
}

// Run implements discovery.WorkflowRunner.
func (w *WatchedWorkflow) Run(ctx context.Context) (*discovery.WorkflowReport, error) {
	report, err := w.next.Run(ctx)

	if alerts := w.alerter.Evaluate(report, err); len(alerts) > 0 {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		w.alerter.SendAlerts(nctx, alerts)
	}
	return report, err
}
