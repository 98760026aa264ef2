// Package enrich runs the lead enrichment state machine:
// fetch, extract, optional research, inference, persist.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/inference"
	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/internal/research"
	"github.com/aiprodig/leadgen-cli/internal/scrape"
	"github.com/aiprodig/leadgen-cli/internal/store"
)

var (
	// ErrURLRequired is returned when a run is requested without a URL.
	ErrURLRequired = eris.New("enrich: url is required")
	// ErrURLMismatch is returned when the lead addressed by id is stored
	// under a different url than the one requested.
	ErrURLMismatch = eris.New("enrich: lead id does not match url")
)

// Request identifies the lead to enrich. When ID is set the existing row is
// updated by id and must be stored under URL; otherwise the lead is upserted
// by URL.
type Request struct {
	URL    string
	ID     string
	Source model.LeadSource
}

// Result is the outcome of one run.
type Result struct {
	Lead  *model.Lead         `json:"lead,omitempty"`
	Trace []model.StageResult `json:"trace"`
	State model.Stage         `json:"state"`
}

// Runner is the enrichment entry point consumed by the CLI, the HTTP server
// and the workflow.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Enricher orchestrates a single enrichment. It holds no per-run state and
// may be shared.
type Enricher struct {
	store      store.Store
	fetcher    scrape.Fetcher
	extractor  scrape.Extractor
	researcher *research.Researcher
	inferer    inference.Inferer
	profile    Profile
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithResearcher enables the research stage. A nil researcher skips it.
func WithResearcher(r *research.Researcher) Option {
	return func(e *Enricher) { e.researcher = r }
}

// WithExtractor overrides the default extractor.
func WithExtractor(x scrape.Extractor) Option {
	return func(e *Enricher) { e.extractor = x }
}

// WithProfile sets the seller profile used in prompts.
func WithProfile(p Profile) Option {
	return func(e *Enricher) { e.profile = p }
}

// New creates an Enricher.
func New(st store.Store, fetcher scrape.Fetcher, inferer inference.Inferer, opts ...Option) *Enricher {
	e := &Enricher{
		store:     st,
		fetcher:   fetcher,
		extractor: scrape.Extractor{MaxTextChars: scrape.DefaultMaxTextChars},
		inferer:   inferer,
		profile:   DefaultProfile(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run enriches one lead. Fetch and research failures degrade the run;
// inference and persistence failures end it in FAILED with no write.
func (e *Enricher) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{State: model.StagePending}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		res.State = model.StageFailed
		return res, ErrURLRequired
	}

	log := zap.L().With(zap.String("url", url), zap.String("lead_id", req.ID))

	if err := e.inferer.Ready(); err != nil {
		res.State = model.StageFailed
		return res, err
	}

	existing, err := e.lookup(ctx, req.ID, url)
	if err != nil {
		res.State = model.StageFailed
		return res, err
	}

	log.Info("enrich: starting", zap.String("provider", e.inferer.Provider()))
	start := time.Now()

	track := func(stage model.Stage, fn func() (model.StageStatus, string)) model.StageStatus {
		res.State = stage
		t0 := time.Now()
		status, note := fn()
		sr := model.StageResult{
			Stage:    stage,
			Status:   status,
			Duration: time.Since(t0).Milliseconds(),
			Note:     note,
		}
		res.Trace = append(res.Trace, sr)

		fields := []zap.Field{
			zap.String("stage", string(stage)),
			zap.String("status", string(status)),
			zap.Int64("duration_ms", sr.Duration),
		}
		switch status {
		case model.StageStatusFailed:
			log.Error("enrich: stage failed", append(fields, zap.String("note", note))...)
		case model.StageStatusDegraded:
			log.Warn("enrich: stage degraded", append(fields, zap.String("note", note))...)
		default:
			log.Debug("enrich: stage complete", fields...)
		}
		return status
	}

	// FETCHING
	var fetched scrape.FetchResult
	track(model.StageFetching, func() (model.StageStatus, string) {
		fetched = e.fetcher.Fetch(ctx, url)
		if fetched.Err != nil {
			return model.StageStatusDegraded, fetched.Err.Error()
		}
		return model.StageStatusComplete, ""
	})
	fetchNote := ""
	if fetched.Err != nil {
		fetchNote = fetched.Err.Error()
	}

	// EXTRACTING
	var digest scrape.Digest
	track(model.StageExtracting, func() (model.StageStatus, string) {
		digest = e.extractor.Extract(fetched.HTML, url)
		return model.StageStatusComplete, ""
	})

	// RESEARCHING
	var researchCtx research.Context
	track(model.StageResearching, func() (model.StageStatus, string) {
		if e.researcher == nil {
			return model.StageStatusSkipped, "no research provider configured"
		}
		var err error
		researchCtx, err = e.researcher.Research(ctx, research.Domain(url), "")
		if err != nil {
			return model.StageStatusDegraded, err.Error()
		}
		if researchCtx.Empty() {
			return model.StageStatusComplete, "no results"
		}
		return model.StageStatusComplete, ""
	})

	// INFERRING
	var (
		analysis *model.AIAnalysis
		inferErr error
	)
	prompt := BuildPrompt(e.profile, PromptInput{
		URL:       url,
		Digest:    digest,
		Research:  researchCtx.Summary,
		FetchNote: fetchNote,
	})
	status := track(model.StageInferring, func() (model.StageStatus, string) {
		analysis, inferErr = e.inferer.Infer(ctx, prompt)
		if inferErr == nil && analysis == nil {
			inferErr = inference.ErrInvalidResponse
		}
		if inferErr != nil {
			return model.StageStatusFailed, inferErr.Error()
		}
		return model.StageStatusComplete, ""
	})
	if status == model.StageStatusFailed {
		res.State = model.StageFailed
		return res, eris.Wrap(inferErr, "enrich: inference")
	}

	// PERSISTING
	fields := buildFields(url, req.Source, digest, fetchNote, researchCtx.Summary, analysis)
	if existing != nil && existing.Status == model.LeadStatusContacted {
		fields.Status = nil
	}
	var (
		lead     *model.Lead
		storeErr error
	)
	status = track(model.StagePersisting, func() (model.StageStatus, string) {
		if req.ID != "" {
			lead, storeErr = e.store.UpdateByID(ctx, req.ID, fields)
		} else {
			lead, storeErr = e.store.UpsertByURL(ctx, url, fields)
		}
		if storeErr != nil {
			return model.StageStatusFailed, storeErr.Error()
		}
		return model.StageStatusComplete, ""
	})
	if status == model.StageStatusFailed {
		res.State = model.StageFailed
		return res, eris.Wrap(storeErr, "enrich: persist")
	}

	res.Lead = lead
	res.State = model.StageDone

	log.Info("enrich: complete",
		zap.String("lead_id", lead.ID),
		zap.String("company", lead.CompanyName),
		zap.Int("opportunities", len(analysis.Opportunities)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

// lookup loads the row the run will write. A lead addressed by id must
// already be stored under url.
func (e *Enricher) lookup(ctx context.Context, id, url string) (*model.Lead, error) {
	if id == "" {
		lead, err := e.store.FindByURL(ctx, url)
		return lead, eris.Wrap(err, "enrich: lookup")
	}
	lead, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: lookup")
	}
	if lead.URL != url {
		return nil, eris.Wrapf(ErrURLMismatch, "lead %s is stored as %s", id, lead.URL)
	}
	return lead, nil
}

// buildFields assembles the single write of a successful run. The company
// name falls back to the page title, which itself falls back to the URL.
// An empty draft from the model leaves the stored draft untouched.
func buildFields(url string, source model.LeadSource, d scrape.Digest, fetchNote, researchSummary string, a *model.AIAnalysis) store.LeadFields {
	name := strings.TrimSpace(a.CompanyName)
	if name == "" {
		name = d.Title
	}
	if name == "" {
		name = url
	}

	if source == "" {
		source = model.LeadSourceEnrich
	}

	fields := store.LeadFields{
		CompanyName: &name,
		Status:      store.Ptr(model.LeadStatusAnalyzed),
		ScrapedData: &model.ScrapedData{
			Title:           d.Title,
			Description:     d.MetaDescription,
			Headings:        d.Headings,
			TechStack:       d.TechStack,
			SocialLinks:     d.SocialLinks,
			ResearchSummary: researchSummary,
			FetchError:      fetchNote,
			Source:          source,
		},
		AIAnalysis: a,
	}
	if strings.TrimSpace(a.EmailDraft) != "" {
		fields.EmailDraft = store.Ptr(a.EmailDraft)
	}
	return fields
}
