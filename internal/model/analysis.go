package model

import "encoding/json"

// AIAnalysis is the structured inference output, stored verbatim on the lead.
// All fields are optional; callers apply their own fallbacks.
type AIAnalysis struct {
	CompanyName   string   `json:"company_name,omitempty"`
	TechStack     []string `json:"tech_stack,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
	EmailDraft    string   `json:"email_draft,omitempty"`
	ResearchNotes string   `json:"research_notes,omitempty"`

	// Audit fields set by the inference client, not by the model.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// UnmarshalJSON accepts both the snake_case keys and the camelCase keys that
// older prompt revisions asked the model to return. Snake_case wins when both
// are present.
func (a *AIAnalysis) UnmarshalJSON(data []byte) error {
	type plain AIAnalysis
	var aux struct {
		plain
		LegacyCompanyName   string   `json:"companyName"`
		LegacyTechStack     []string `json:"techStack"`
		LegacyEmailDraft    string   `json:"emailDraft"`
		LegacyResearchNotes string   `json:"researchNotes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*a = AIAnalysis(aux.plain)
	if a.CompanyName == "" {
		a.CompanyName = aux.LegacyCompanyName
	}
	if len(a.TechStack) == 0 {
		a.TechStack = aux.LegacyTechStack
	}
	if a.EmailDraft == "" {
		a.EmailDraft = aux.LegacyEmailDraft
	}
	if a.ResearchNotes == "" {
		a.ResearchNotes = aux.LegacyResearchNotes
	}
	return nil
}
