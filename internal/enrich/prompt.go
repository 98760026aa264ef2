package enrich

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/aiprodig/leadgen-cli/internal/inference"
	"github.com/aiprodig/leadgen-cli/internal/scrape"
)

// Profile describes the seller the outreach email is written for.
type Profile struct {
	Agency   string   `yaml:"agency"`
	Website  string   `yaml:"website"`
	Services []string `yaml:"services"`
	Language string   `yaml:"language"`
	Sender   string   `yaml:"sender"`
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() Profile {
	return Profile{
		Agency:  "AIProdig",
		Website: "aiprodig.com",
		Services: []string{
			"Business Intelligence (Power BI)",
			"Enterprise Apps (Power Apps)",
			"Automation (n8n/Power Automate)",
			"Local AI/Chatbots",
		},
		Language: "Spanish",
	}
}

// LoadProfile reads a YAML seller profile. An empty path returns the
// default profile; fields missing from the file keep their defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, eris.Wrapf(err, "enrich: read profile %s", path)
	}

	var file Profile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Profile{}, eris.Wrapf(err, "enrich: parse profile %s", path)
	}

	if file.Agency != "" {
		p.Agency = file.Agency
	}
	if file.Website != "" {
		p.Website = file.Website
	}
	if len(file.Services) > 0 {
		p.Services = file.Services
	}
	if file.Language != "" {
		p.Language = file.Language
	}
	if file.Sender != "" {
		p.Sender = file.Sender
	}
	return p, nil
}

// PromptInput is the per-lead material placed in the user message.
type PromptInput struct {
	URL       string
	Digest    scrape.Digest
	Research  string
	FetchNote string
}

// BuildPrompt renders the system instruction and user message for one lead.
// The system part depends only on the profile so providers can cache it.
func BuildPrompt(p Profile, in PromptInput) inference.Prompt {
	return inference.Prompt{
		System: systemPrompt(p),
		User:   userPrompt(in),
	}
}

func systemPrompt(p Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert Sales Engineer for %s (%s).\n", p.Agency, p.Website)
	fmt.Fprintf(&b, "%s offers: %s.\n\n", p.Agency, strings.Join(p.Services, ", "))
	b.WriteString("Given the context of a prospect's website, you:\n")
	b.WriteString("1. Identify the company name and its technology stack.\n")
	fmt.Fprintf(&b, "2. Identify 2-3 concrete opportunities for %s services.\n", p.Agency)
	fmt.Fprintf(&b, "3. Draft a short cold email (Subject + Body) in %s", p.Language)
	if p.Sender != "" {
		fmt.Fprintf(&b, ", signed by %s", p.Sender)
	}
	b.WriteString(".\n")
	b.WriteString("4. Summarize anything notable from the external research, if provided.\n\n")
	b.WriteString("Return ONLY a valid JSON object, no prose and no markdown, with this shape:\n")
	b.WriteString(`{
  "company_name": "string",
  "tech_stack": ["string"],
  "opportunities": ["string"],
  "email_draft": "Subject: ...\n\n...",
  "research_notes": "string"
}`)
	return b.String()
}

func userPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("Analyze this website context:\n")
	fmt.Fprintf(&b, "URL: %s\n", in.URL)
	fmt.Fprintf(&b, "Title: %s\n", in.Digest.Title)
	fmt.Fprintf(&b, "Description: %s\n", in.Digest.MetaDescription)
	fmt.Fprintf(&b, "Headers: %s\n", in.Digest.Headings)
	if len(in.Digest.TechStack) > 0 {
		fmt.Fprintf(&b, "Detected technologies: %s\n", strings.Join(in.Digest.TechStack, ", "))
	}
	if len(in.Digest.SocialLinks) > 0 {
		fmt.Fprintf(&b, "Social profiles: %s\n", strings.Join(in.Digest.SocialLinks, ", "))
	}
	if in.FetchNote != "" {
		fmt.Fprintf(&b, "Note: the website could not be read (%s); rely on the URL and research.\n", in.FetchNote)
	}
	fmt.Fprintf(&b, "Content Snippet: %s\n", in.Digest.BodyText)
	if in.Research != "" {
		b.WriteString("\nExternal research:\n")
		b.WriteString(in.Research)
		b.WriteString("\n")
	}
	return b.String()
}
