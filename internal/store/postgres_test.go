package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiprodig/leadgen-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, now: func() time.Time { return fixedNow }}
	return s, mock
}

var leadRowColumns = []string{
	"id", "url", "company_name", "status", "scraped_data", "ai_analysis", "email_draft", "created_at", "updated_at",
}

func TestPostgresStore_FindByURL_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, url, .* FROM leads WHERE url = \$1`).
		WithArgs("https://unknown.com").
		WillReturnError(pgx.ErrNoRows)

	l, err := s.FindByURL(context.Background(), "https://unknown.com")
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get lead missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByID_DecodesJSONColumns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(leadRowColumns).AddRow(
		"lead-1", "https://acme.com", "Acme", "analyzed",
		[]byte(`{"title":"Acme Inc","tech_stack":["WordPress"]}`),
		[]byte(`{"company_name":"Acme","opportunities":["BI"]}`),
		"Hola", fixedNow, fixedNow,
	)
	mock.ExpectQuery(`FROM leads WHERE id = \$1`).WithArgs("lead-1").WillReturnRows(rows)

	l, err := s.GetByID(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusAnalyzed, l.Status)
	assert.Equal(t, []string{"WordPress"}, l.ScrapedData.TechStack)
	require.NotNil(t, l.AIAnalysis)
	assert.Equal(t, []string{"BI"}, l.AIAnalysis.Opportunities)
	assert.Equal(t, "Hola", l.EmailDraft)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertByURL(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(leadRowColumns).AddRow(
		"lead-1", "https://acme.com", "Acme", "new",
		[]byte(`{"title":"Acme"}`), []byte(nil), "", fixedNow, fixedNow,
	)
	mock.ExpectQuery(`INSERT INTO leads .* ON CONFLICT \(url\) DO UPDATE SET .* RETURNING id, url`).
		WithArgs(pgxmock.AnyArg(), "https://acme.com", fixedNow, fixedNow, "new", "Acme", pgxmock.AnyArg()).
		WillReturnRows(rows)

	l, err := s.UpsertByURL(context.Background(), "https://acme.com", LeadFields{
		CompanyName: Ptr("Acme"),
		ScrapedData: &model.ScrapedData{Title: "Acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, "lead-1", l.ID)
	assert.Equal(t, model.LeadStatusNew, l.Status)
	assert.Nil(t, l.AIAnalysis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertByURL_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO leads .* ON CONFLICT \(url\)`).
		WithArgs(pgxmock.AnyArg(), "https://acme.com", fixedNow, fixedNow, "new").
		WillReturnError(errors.New("connection reset"))

	_, err := s.UpsertByURL(context.Background(), "https://acme.com", LeadFields{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: upsert lead https://acme.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_DuplicateURL(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO leads \(id, url, created_at, updated_at, status\) VALUES \(\$1, \$2, \$3, \$4, \$5\) RETURNING`).
		WithArgs(pgxmock.AnyArg(), "https://acme.com", fixedNow, fixedNow, "new").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := s.Create(context.Background(), "https://acme.com", LeadFields{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateURL)
	assert.Contains(t, err.Error(), "postgres: create lead https://acme.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateByID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE leads SET updated_at = \$1, email_draft = \$2 WHERE id = \$3`).
		WithArgs(fixedNow, "draft", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.UpdateByID(context.Background(), "missing", LeadFields{EmailDraft: Ptr("draft")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateByURL(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(leadRowColumns).AddRow(
		"lead-1", "https://acme.com", "", "contacted", []byte(`{}`), []byte(nil), "", fixedNow, fixedNow,
	)
	mock.ExpectQuery(`UPDATE leads SET updated_at = \$1, status = \$2 WHERE url = \$3`).
		WithArgs(fixedNow, "contacted", "https://acme.com").
		WillReturnRows(rows)

	l, err := s.UpdateByURL(context.Background(), "https://acme.com", LeadFields{Status: Ptr(model.LeadStatusContacted)})
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusContacted, l.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteByID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteByID(context.Background(), "lead-1"))
	assert.ErrorIs(t, s.DeleteByID(context.Background(), "lead-1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(leadRowColumns).
		AddRow("lead-2", "https://b.example", "", "new", []byte(`{}`), []byte(nil), "", fixedNow, fixedNow).
		AddRow("lead-1", "https://a.example", "", "new", []byte(`{}`), []byte(nil), "", fixedNow, fixedNow)
	mock.ExpectQuery(`FROM leads WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("new", 100).
		WillReturnRows(rows)

	leads, err := s.List(context.Background(), LeadFilter{Status: model.LeadStatusNew})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "lead-2", leads[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
