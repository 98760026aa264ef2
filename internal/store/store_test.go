package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiprodig/leadgen-cli/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// tickingClock returns a clock that advances one second per call so
// created_at ordering is deterministic in tests.
func tickingClock() func() time.Time {
	t := fixedNow
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestLeadFields_IsEmpty(t *testing.T) {
	assert.True(t, LeadFields{}.IsEmpty())
	assert.False(t, LeadFields{EmailDraft: Ptr("")}.IsEmpty())
	assert.False(t, LeadFields{Status: Ptr(model.LeadStatusAnalyzed)}.IsEmpty())
}

func TestLeadFields_InvalidStatus(t *testing.T) {
	_, err := LeadFields{Status: Ptr(model.LeadStatus("archived"))}.columns(pgJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid status "archived"`)
}

func TestBuildInsert_UpsertDefaultsStatusOnInsertOnly(t *testing.T) {
	fields := LeadFields{
		CompanyName: Ptr("Acme"),
		ScrapedData: &model.ScrapedData{Title: "Acme Inc"},
	}
	query, args, err := buildInsert("id-1", "https://acme.com", fields, fixedNow, dollarPlaceholder, pgJSON, true)
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO leads (id, url, created_at, updated_at, status, company_name, scraped_data) VALUES ($1, $2, $3, $4, $5, $6, $7)`+
			` ON CONFLICT (url) DO UPDATE SET updated_at = excluded.updated_at, company_name = excluded.company_name, scraped_data = excluded.scraped_data`+
			` RETURNING `+leadColumns,
		query)
	require.Len(t, args, 7)
	assert.Equal(t, "new", args[4])
	assert.Equal(t, "Acme", args[5])
	assert.JSONEq(t, `{"title":"Acme Inc"}`, string(args[6].([]byte)))
}

func TestBuildInsert_ExplicitStatusIsUpdated(t *testing.T) {
	fields := LeadFields{Status: Ptr(model.LeadStatusAnalyzed)}
	query, args, err := buildInsert("id-1", "https://acme.com", fields, fixedNow, questionPlaceholder, sqliteJSON, true)
	require.NoError(t, err)

	assert.Contains(t, query, "VALUES (?, ?, ?, ?, ?)")
	assert.Contains(t, query, "status = excluded.status")
	assert.Equal(t, []any{"id-1", "https://acme.com", fixedNow, fixedNow, "analyzed"}, args)
}

func TestBuildInsert_CreateHasNoConflictClause(t *testing.T) {
	query, _, err := buildInsert("id-1", "https://acme.com", LeadFields{}, fixedNow, dollarPlaceholder, pgJSON, false)
	require.NoError(t, err)
	assert.NotContains(t, query, "ON CONFLICT")
}

func TestBuildUpdate(t *testing.T) {
	fields := LeadFields{
		EmailDraft: Ptr("Hola"),
		AIAnalysis: &model.AIAnalysis{CompanyName: "Acme"},
	}
	query, args, err := buildUpdate("id", "lead-1", fields, fixedNow, dollarPlaceholder, pgJSON)
	require.NoError(t, err)

	assert.Equal(t,
		`UPDATE leads SET updated_at = $1, ai_analysis = $2, email_draft = $3 WHERE id = $4 RETURNING `+leadColumns,
		query)
	require.Len(t, args, 4)
	assert.Equal(t, fixedNow, args[0])
	assert.JSONEq(t, `{"company_name":"Acme"}`, string(args[1].([]byte)))
	assert.Equal(t, "Hola", args[2])
	assert.Equal(t, "lead-1", args[3])
}

func TestBuildList(t *testing.T) {
	query, args := buildList(LeadFilter{}, dollarPlaceholder)
	assert.Equal(t, `SELECT `+leadColumns+` FROM leads WHERE 1=1 ORDER BY created_at DESC LIMIT $1`, query)
	assert.Equal(t, []any{100}, args)

	query, args = buildList(LeadFilter{Status: model.LeadStatusNew, Limit: 5, Offset: 10}, questionPlaceholder)
	assert.Equal(t, `SELECT `+leadColumns+` FROM leads WHERE 1=1 AND status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, query)
	assert.Equal(t, []any{"new", 5, 10}, args)
}

func TestDecodeLeadJSON(t *testing.T) {
	var l model.Lead
	require.NoError(t, decodeLeadJSON(&l, []byte(`{"title":"T","unknown":1}`), []byte("null")))
	assert.Equal(t, "T", l.ScrapedData.Title)
	assert.Nil(t, l.AIAnalysis)

	require.NoError(t, decodeLeadJSON(&l, nil, []byte(`{"companyName":"Legacy"}`)))
	require.NotNil(t, l.AIAnalysis)
	assert.Equal(t, "Legacy", l.AIAnalysis.CompanyName)

	assert.Error(t, decodeLeadJSON(&l, []byte(`{`), nil))
}

// storeTestSuite exercises the Store contract against a real backend.
func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UpsertInsertsNewLead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l, err := s.UpsertByURL(ctx, "https://acme.com", LeadFields{
			CompanyName: Ptr("Acme"),
			ScrapedData: &model.ScrapedData{Title: "Acme Inc", Source: model.LeadSourceDiscovery},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, "https://acme.com", l.URL)
		assert.Equal(t, "Acme", l.CompanyName)
		assert.Equal(t, model.LeadStatusNew, l.Status)
		assert.Equal(t, "Acme Inc", l.ScrapedData.Title)
		assert.Nil(t, l.AIAnalysis)
		assert.Empty(t, l.EmailDraft)
	})

	t.Run("UpsertUpdatesExistingRow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.UpsertByURL(ctx, "https://acme.com", LeadFields{CompanyName: Ptr("Acme")})
		require.NoError(t, err)

		second, err := s.UpsertByURL(ctx, "https://acme.com", LeadFields{
			CompanyName: Ptr("Acme Corp"),
			Status:      Ptr(model.LeadStatusAnalyzed),
			AIAnalysis:  &model.AIAnalysis{CompanyName: "Acme Corp", Opportunities: []string{"BI"}},
			EmailDraft:  Ptr("Hola Acme"),
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.Equal(t, model.LeadStatusAnalyzed, second.Status)
		require.NotNil(t, second.AIAnalysis)
		assert.Equal(t, []string{"BI"}, second.AIAnalysis.Opportunities)
		assert.Equal(t, "Hola Acme", second.EmailDraft)

		all, err := s.List(ctx, LeadFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("UpsertKeepsUnsetColumns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertByURL(ctx, "https://acme.com", LeadFields{
			Status:     Ptr(model.LeadStatusAnalyzed),
			EmailDraft: Ptr("draft"),
		})
		require.NoError(t, err)

		got, err := s.UpsertByURL(ctx, "https://acme.com", LeadFields{
			ScrapedData: &model.ScrapedData{Description: "updated"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusAnalyzed, got.Status)
		assert.Equal(t, "draft", got.EmailDraft)
		assert.Equal(t, "updated", got.ScrapedData.Description)
	})

	t.Run("FindByURLMissing", func(t *testing.T) {
		s := newStore(t)
		l, err := s.FindByURL(context.Background(), "https://nobody.example")
		require.NoError(t, err)
		assert.Nil(t, l)
	})

	t.Run("FindByURLAndGetByID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Create(ctx, "https://acme.com", LeadFields{CompanyName: Ptr("Acme")})
		require.NoError(t, err)

		byURL, err := s.FindByURL(ctx, "https://acme.com")
		require.NoError(t, err)
		require.NotNil(t, byURL)
		assert.Equal(t, created.ID, byURL.ID)

		byID, err := s.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", byID.CompanyName)
	})

	t.Run("GetByIDMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CreateDuplicateURL", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "https://acme.com", LeadFields{})
		require.NoError(t, err)
		_, err = s.Create(ctx, "https://acme.com", LeadFields{})
		assert.ErrorIs(t, err, ErrDuplicateURL)
	})

	t.Run("UpdateByID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Create(ctx, "https://acme.com", LeadFields{EmailDraft: Ptr("old")})
		require.NoError(t, err)

		updated, err := s.UpdateByID(ctx, created.ID, LeadFields{EmailDraft: Ptr("new draft")})
		require.NoError(t, err)
		assert.Equal(t, "new draft", updated.EmailDraft)
		assert.Equal(t, created.ID, updated.ID)

		_, err = s.UpdateByID(ctx, "missing", LeadFields{EmailDraft: Ptr("x")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateByURL", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "https://acme.com", LeadFields{})
		require.NoError(t, err)

		updated, err := s.UpdateByURL(ctx, "https://acme.com", LeadFields{Status: Ptr(model.LeadStatusContacted)})
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusContacted, updated.Status)

		_, err = s.UpdateByURL(ctx, "https://missing.example", LeadFields{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteByID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Create(ctx, "https://acme.com", LeadFields{})
		require.NoError(t, err)
		require.NoError(t, s.DeleteByID(ctx, created.ID))

		l, err := s.FindByURL(ctx, "https://acme.com")
		require.NoError(t, err)
		assert.Nil(t, l)

		assert.ErrorIs(t, s.DeleteByID(ctx, created.ID), ErrNotFound)
	})

	t.Run("ListFiltersAndOrders", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "https://a.example", LeadFields{})
		require.NoError(t, err)
		_, err = s.Create(ctx, "https://b.example", LeadFields{Status: Ptr(model.LeadStatusAnalyzed)})
		require.NoError(t, err)
		_, err = s.Create(ctx, "https://c.example", LeadFields{})
		require.NoError(t, err)

		all, err := s.List(ctx, LeadFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "https://c.example", all[0].URL)
		assert.Equal(t, "https://a.example", all[2].URL)

		fresh, err := s.List(ctx, LeadFilter{Status: model.LeadStatusNew})
		require.NoError(t, err)
		assert.Len(t, fresh, 2)

		page, err := s.List(ctx, LeadFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "https://b.example", page[0].URL)
	})
}
