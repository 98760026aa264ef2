package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiprodig/leadgen-cli/internal/scrape"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(DefaultProfile(), PromptInput{
		URL: "https://acme.co",
		Digest: scrape.Digest{
			Title:           "Acme",
			MetaDescription: "Freight",
			Headings:        "Moving Colombia",
			BodyText:        "40 trucks",
			TechStack:       []string{"WordPress", "jQuery"},
			SocialLinks:     []string{"https://facebook.com/acme"},
		},
		Research: "- Acme: award",
	})

	assert.Contains(t, p.System, "AIProdig (aiprodig.com)")
	assert.Contains(t, p.System, "Business Intelligence (Power BI)")
	assert.Contains(t, p.System, "Return ONLY a valid JSON object")
	assert.Contains(t, p.System, `"company_name"`)
	assert.Contains(t, p.System, "in Spanish.")

	assert.Contains(t, p.User, "URL: https://acme.co")
	assert.Contains(t, p.User, "Title: Acme")
	assert.Contains(t, p.User, "Description: Freight")
	assert.Contains(t, p.User, "Headers: Moving Colombia")
	assert.Contains(t, p.User, "Detected technologies: WordPress, jQuery")
	assert.Contains(t, p.User, "Social profiles: https://facebook.com/acme")
	assert.Contains(t, p.User, "Content Snippet: 40 trucks")
	assert.Contains(t, p.User, "External research:\n- Acme: award")
	assert.NotContains(t, p.User, "could not be read")
}

func TestBuildPrompt_SystemIsStableAcrossLeads(t *testing.T) {
	a := BuildPrompt(DefaultProfile(), PromptInput{URL: "https://a.co"})
	b := BuildPrompt(DefaultProfile(), PromptInput{URL: "https://b.co"})
	assert.Equal(t, a.System, b.System)
	assert.NotEqual(t, a.User, b.User)
	assert.NotContains(t, a.User, "External research")
	assert.NotContains(t, a.User, "Detected technologies")
}

func TestLoadProfile_Default(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)
}

func TestLoadProfile_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agency: Widgetly
services:
  - CRM setup
  - Data migration
sender: Laura
`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "Widgetly", p.Agency)
	assert.Equal(t, []string{"CRM setup", "Data migration"}, p.Services)
	assert.Equal(t, "Laura", p.Sender)
	assert.Equal(t, "aiprodig.com", p.Website)
	assert.Equal(t, "Spanish", p.Language)

	prompt := BuildPrompt(p, PromptInput{})
	assert.Contains(t, prompt.System, "signed by Laura")
}

func TestLoadProfile_Errors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich: read profile")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: [unclosed"), 0o600))
	_, err = LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich: parse profile")
}
