package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/internal/db"
	"github.com/aiprodig/leadgen-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlFindLeadByURL = `SELECT ` + leadColumns + ` FROM leads WHERE url = $1`
	sqlGetLead       = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	sqlDeleteLead    = `DELETE FROM leads WHERE id = $1`
)

// preparedStatements lists the static lead queries prepared on each new
// connection. Writes are rendered per call from the set fields.
var preparedStatements = map[string]string{
	"find_lead_by_url": sqlFindLeadByURL,
	"get_lead":         sqlGetLead,
	"delete_lead":      sqlDeleteLead,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// The leads table may not exist before the first migrate.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					return nil
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: utcNow}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url          TEXT NOT NULL UNIQUE,
	company_name TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'new',
	scraped_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	ai_analysis  JSONB,
	email_draft  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return utcNow()
	}
	return s.now()
}

func (s *PostgresStore) FindByURL(ctx context.Context, url string) (*model.Lead, error) {
	l, err := scanPostgresLead(s.pool.QueryRow(ctx, sqlFindLeadByURL, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find lead by url %s", url)
	}
	return l, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanPostgresLead(s.pool.QueryRow(ctx, sqlGetLead, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) List(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query, args := buildList(filter, dollarPlaceholder)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPostgresLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) Create(ctx context.Context, url string, fields LeadFields) (*model.Lead, error) {
	query, args, err := buildInsert(uuid.New().String(), url, fields, s.clock(), dollarPlaceholder, pgJSON, false)
	if err != nil {
		return nil, err
	}

	l, err := scanPostgresLead(s.pool.QueryRow(ctx, query, args...))
	if isPostgresUniqueViolation(err) {
		return nil, eris.Wrapf(ErrDuplicateURL, "postgres: create lead %s", url)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create lead %s", url)
	}
	return l, nil
}

func (s *PostgresStore) UpsertByURL(ctx context.Context, url string, fields LeadFields) (*model.Lead, error) {
	query, args, err := buildInsert(uuid.New().String(), url, fields, s.clock(), dollarPlaceholder, pgJSON, true)
	if err != nil {
		return nil, err
	}

	l, err := scanPostgresLead(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert lead %s", url)
	}
	return l, nil
}

func (s *PostgresStore) UpdateByID(ctx context.Context, id string, fields LeadFields) (*model.Lead, error) {
	return s.update(ctx, "id", id, fields)
}

func (s *PostgresStore) UpdateByURL(ctx context.Context, url string, fields LeadFields) (*model.Lead, error) {
	return s.update(ctx, "url", url, fields)
}

func (s *PostgresStore) update(ctx context.Context, key, value string, fields LeadFields) (*model.Lead, error) {
	query, args, err := buildUpdate(key, value, fields, s.clock(), dollarPlaceholder, pgJSON)
	if err != nil {
		return nil, err
	}

	l, err := scanPostgresLead(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: update lead %s %s", key, value)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update lead %s %s", key, value)
	}
	return l, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteLead, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete lead %s", id)
	}
	return nil
}

// pgJSON passes marshalled JSON to pgx as raw bytes, which it sends as jsonb.
func pgJSON(b []byte) any { return b }

func isPostgresUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPostgresLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var status string
	var scraped, analysis []byte

	err := row.Scan(&l.ID, &l.URL, &l.CompanyName, &status, &scraped, &analysis,
		&l.EmailDraft, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	if err := decodeLeadJSON(&l, scraped, analysis); err != nil {
		return nil, err
	}
	return &l, nil
}

func utcNow() time.Time { return time.Now().UTC() }
