package discovery

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/enrich"
	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/internal/research"
	"github.com/aiprodig/leadgen-cli/internal/store"
)

// DefaultWorkflowLimit is the number of candidates processed per run.
const DefaultWorkflowLimit = 4

// WorkflowItem is the outcome for one processed candidate.
type WorkflowItem struct {
	URL     string `json:"url"`
	LeadID  string `json:"lead_id,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// WorkflowReport summarizes one workflow run.
type WorkflowReport struct {
	Niche      string         `json:"niche"`
	Candidates int            `json:"candidates"`
	Skipped    []string       `json:"skipped,omitempty"`
	Processed  []WorkflowItem `json:"leads_processed"`
}

// Succeeded counts processed items that enriched successfully.
func (r *WorkflowReport) Succeeded() int {
	n := 0
	for _, it := range r.Processed {
		if it.Success {
			n++
		}
	}
	return n
}

// WorkflowRunner runs one workflow pass.
type WorkflowRunner interface {
	Run(ctx context.Context) (*WorkflowReport, error)
}

// Workflow picks a niche, searches it and enriches the first few new
// candidates one after another.
type Workflow struct {
	searcher research.Searcher
	store    store.Store
	enricher enrich.Runner
	niches   []string
	limit    int
	pick     func(n int) int
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithNiches replaces the niche rotation.
func WithNiches(niches []string) WorkflowOption {
	return func(w *Workflow) {
		var clean []string
		for _, n := range niches {
			if n = strings.TrimSpace(n); n != "" {
				clean = append(clean, n)
			}
		}
		if len(clean) > 0 {
			w.niches = clean
		}
	}
}

// WithLimit sets how many candidates are processed per run.
func WithLimit(n int) WorkflowOption {
	return func(w *Workflow) {
		if n > 0 {
			w.limit = n
		}
	}
}

// WithPicker overrides the random niche choice. pick(n) must return a value
// in [0, n).
func WithPicker(pick func(n int) int) WorkflowOption {
	return func(w *Workflow) { w.pick = pick }
}

// NewWorkflow returns a Workflow. A nil searcher makes Run fail with
// ErrSearchUnavailable.
func NewWorkflow(s research.Searcher, st store.Store, r enrich.Runner, niches []string, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		searcher: s,
		store:    st,
		enricher: r,
		limit:    DefaultWorkflowLimit,
		pick:     rand.IntN,
	}
	WithNiches(niches)(w)
	if len(w.niches) == 0 {
		w.niches = []string{DefaultQuery}
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run executes one pass. Per-candidate failures are recorded in the report
// and never abort the batch; only a failed search is returned as an error.
func (w *Workflow) Run(ctx context.Context) (*WorkflowReport, error) {
	if w.searcher == nil {
		return nil, ErrSearchUnavailable
	}

	niche := w.niches[w.pick(len(w.niches))]
	log := zap.L().With(zap.String("niche", niche))
	log.Info("workflow: starting")
	start := time.Now()

	hits, err := w.searcher.Search(ctx, niche, DefaultCount)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: search")
	}

	candidates := hits
	if len(candidates) > w.limit {
		candidates = candidates[:w.limit]
	}

	report := &WorkflowReport{
		Niche:      niche,
		Candidates: len(candidates),
		Processed:  make([]WorkflowItem, 0, len(candidates)),
	}

	for _, h := range candidates {
		if err := ctx.Err(); err != nil {
			log.Warn("workflow: cancelled", zap.Error(err))
			break
		}

		url := strings.TrimSpace(h.URL)
		if !validURL(url) {
			report.Skipped = append(report.Skipped, url)
			continue
		}

		item, skipped := w.process(ctx, log, url, h)
		if skipped {
			report.Skipped = append(report.Skipped, url)
			continue
		}
		report.Processed = append(report.Processed, item)
	}

	log.Info("workflow: finished",
		zap.Int("processed", len(report.Processed)),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return report, nil
}

// process registers and enriches one candidate. Leads past the new status
// are skipped so their status never moves backward.
func (w *Workflow) process(ctx context.Context, log *zap.Logger, url string, h research.Hit) (WorkflowItem, bool) {
	item := WorkflowItem{URL: url}

	existing, err := w.store.FindByURL(ctx, url)
	if err != nil {
		item.Error = err.Error()
		log.Warn("workflow: lookup failed", zap.String("url", url), zap.Error(err))
		return item, false
	}
	if existing != nil && existing.Status != model.LeadStatusNew {
		log.Info("workflow: skipping", zap.String("url", url), zap.String("status", string(existing.Status)))
		return item, true
	}

	lead, err := w.store.UpsertByURL(ctx, url, store.LeadFields{
		CompanyName: store.Ptr(strings.TrimSpace(h.Title)),
		Status:      store.Ptr(model.LeadStatusNew),
		ScrapedData: &model.ScrapedData{
			Description: h.Snippet,
			Source:      model.LeadSourceWorkflow,
		},
	})
	if err != nil {
		item.Error = err.Error()
		log.Warn("workflow: save failed", zap.String("url", url), zap.Error(err))
		return item, false
	}
	item.LeadID = lead.ID

	if _, err := w.enricher.Run(ctx, enrich.Request{URL: url, ID: lead.ID, Source: model.LeadSourceWorkflow}); err != nil {
		item.Error = err.Error()
		log.Warn("workflow: enrichment failed", zap.String("url", url), zap.Error(err))
		return item, false
	}

	item.Success = true
	return item, false
}
