package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aiprodig/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: utcNow}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL UNIQUE,
	company_name TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'new',
	scraped_data TEXT NOT NULL DEFAULT '{}',
	ai_analysis  TEXT,
	email_draft  TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) clock() time.Time {
	if s.now == nil {
		return utcNow()
	}
	return s.now()
}

func (s *SQLiteStore) FindByURL(ctx context.Context, url string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE url = ?`, url)
	l, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find lead by url %s", url)
	}
	return l, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query, args := buildList(filter, questionPlaceholder)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) Create(ctx context.Context, url string, fields LeadFields) (*model.Lead, error) {
	query, args, err := buildInsert(uuid.New().String(), url, fields, s.clock(), questionPlaceholder, sqliteJSON, false)
	if err != nil {
		return nil, err
	}

	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, query, args...))
	if isSQLiteUniqueViolation(err) {
		return nil, eris.Wrapf(ErrDuplicateURL, "sqlite: create lead %s", url)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create lead %s", url)
	}
	return l, nil
}

func (s *SQLiteStore) UpsertByURL(ctx context.Context, url string, fields LeadFields) (*model.Lead, error) {
	query, args, err := buildInsert(uuid.New().String(), url, fields, s.clock(), questionPlaceholder, sqliteJSON, true)
	if err != nil {
		return nil, err
	}

	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert lead %s", url)
	}
	return l, nil
}

func (s *SQLiteStore) UpdateByID(ctx context.Context, id string, fields LeadFields) (*model.Lead, error) {
	return s.update(ctx, "id", id, fields)
}

func (s *SQLiteStore) UpdateByURL(ctx context.Context, url string, fields LeadFields) (*model.Lead, error) {
	return s.update(ctx, "url", url, fields)
}

func (s *SQLiteStore) update(ctx context.Context, key, value string, fields LeadFields) (*model.Lead, error) {
	query, args, err := buildUpdate(key, value, fields, s.clock(), questionPlaceholder, sqliteJSON)
	if err != nil {
		return nil, err
	}

	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: update lead %s %s", key, value)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update lead %s %s", key, value)
	}
	return l, nil
}

func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	return checkRowsAffected(res, id)
}

// helpers

func sqliteJSON(b []byte) any { return string(b) }

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status, scraped string
	var analysis sql.NullString

	err := row.Scan(&l.ID, &l.URL, &l.CompanyName, &status, &scraped, &analysis,
		&l.EmailDraft, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)

	var analysisJSON []byte
	if analysis.Valid {
		analysisJSON = []byte(analysis.String)
	}
	if err := decodeLeadJSON(&l, []byte(scraped), analysisJSON); err != nil {
		return nil, err
	}
	return &l, nil
}
