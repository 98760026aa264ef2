package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/enrich"
	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/internal/store"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is true.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			zap.L().Warn("health: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  "store unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
		ID  string `json:"id"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !validURL(raw) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) url")
		return
	}

	res, err := s.deps.Enricher.Run(r.Context(), enrich.Request{
		URL:    raw,
		ID:     req.ID,
		Source: model.LeadSourceEnrich,
	})
	if err != nil {
		zap.L().Error("analyze: enrichment failed", zap.String("url", raw), zap.Error(err))
		body := map[string]any{"success": false, "error": err.Error()}
		if res != nil {
			body["trace"] = res.Trace
			body["state"] = res.State
		}
		writeJSON(w, statusFor(err), body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"lead":    res.Lead,
		"trace":   res.Trace,
	})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if s.deps.Discoverer == nil {
		writeError(w, http.StatusServiceUnavailable, "discovery is not configured")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &req, true) {
		return
	}

	report, err := s.deps.Discoverer.Discover(r.Context(), req.Query)
	if err != nil {
		zap.L().Error("discover: failed", zap.String("query", req.Query), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"query":   report.Query,
		"added":   report.Added,
		"results": report.Results,
	})
}

// authorizedCron checks the bearer token against the configured secret.
// Without a secret every caller is accepted.
func (s *Server) authorizedCron(r *http.Request) bool {
	if s.deps.CronSecret == "" {
		return true
	}
	want := "Bearer " + s.deps.CronSecret
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) handleDailyWorkflow(w http.ResponseWriter, r *http.Request) {
	if !s.authorizedCron(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if s.deps.Workflow == nil {
		writeError(w, http.StatusServiceUnavailable, "workflow is not configured")
		return
	}

	report, err := s.deps.Workflow.Run(r.Context())
	if err != nil {
		zap.L().Error("workflow: failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Daily workflow completed",
		"niche":           report.Niche,
		"leads_processed": report.Processed,
	})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.LeadFilter

	if raw := q.Get("status"); raw != "" {
		status := model.LeadStatus(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = status
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+key)
			return
		}
		*dst = n
	}

	leads, err := s.deps.Store.List(r.Context(), filter)
	if err != nil {
		zap.L().Error("leads: list failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL         string `json:"url"`
		CompanyName string `json:"company_name"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !validURL(raw) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) url")
		return
	}

	fields := store.LeadFields{
		Status:      store.Ptr(model.LeadStatusNew),
		ScrapedData: &model.ScrapedData{Source: model.LeadSourceManual},
	}
	if name := strings.TrimSpace(req.CompanyName); name != "" {
		fields.CompanyName = &name
	}

	lead, err := s.deps.Store.Create(r.Context(), raw, fields)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.deps.Store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmailDraft *string `json:"email_draft"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.EmailDraft == nil {
		writeError(w, http.StatusBadRequest, "email_draft is required")
		return
	}

	lead, err := s.deps.Store.UpdateByID(r.Context(), chi.URLParam(r, "id"), store.LeadFields{
		EmailDraft: req.EmailDraft,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.LeadStatus `json:"status"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	lead, err := s.deps.Store.UpdateByID(r.Context(), chi.URLParam(r, "id"), store.LeadFields{
		Status: &req.Status,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteByID(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
