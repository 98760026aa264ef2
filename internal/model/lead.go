package model

import (
	"time"
)

// LeadStatus represents the lifecycle marker of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusAnalyzed  LeadStatus = "analyzed"
	LeadStatusContacted LeadStatus = "contacted"
)

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusAnalyzed, LeadStatusContacted:
		return true
	}
	return false
}

// LeadSource records which path created or last touched a lead's scraped data.
type LeadSource string

const (
	LeadSourceManual    LeadSource = "manual"
	LeadSourceDiscovery LeadSource = "discovery"
	LeadSourceWorkflow  LeadSource = "workflow"
	LeadSourceEnrich    LeadSource = "enrichment"
)

// Lead is the persisted unit of work, keyed by URL.
type Lead struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	CompanyName string      `json:"company_name"`
	Status      LeadStatus  `json:"status"`
	ScrapedData ScrapedData `json:"scraped_data"`
	AIAnalysis  *AIAnalysis `json:"ai_analysis"`
	EmailDraft  string      `json:"email_draft"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsAnalyzed reports whether the lead has completed a successful enrichment.
func (l *Lead) IsAnalyzed() bool {
	return l != nil && l.Status == LeadStatusAnalyzed
}

// ScrapedData holds extraction byproducts. Every key is optional and each
// writer may populate a different subset.
type ScrapedData struct {
	Title           string     `json:"title,omitempty"`
	Description     string     `json:"description,omitempty"`
	Headings        string     `json:"headings,omitempty"`
	TechStack       []string   `json:"tech_stack,omitempty"`
	SocialLinks     []string   `json:"social_links,omitempty"`
	ResearchSummary string     `json:"research_summary,omitempty"`
	FetchError      string     `json:"fetch_error,omitempty"`
	Source          LeadSource `json:"source,omitempty"`
}

// IsZero reports whether no key is populated.
func (d ScrapedData) IsZero() bool {
	return d.Title == "" && d.Description == "" && d.Headings == "" &&
		len(d.TechStack) == 0 && len(d.SocialLinks) == 0 &&
		d.ResearchSummary == "" && d.FetchError == "" && d.Source == ""
}
