package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/internal/model"
)

var (
	// ErrNotFound is returned when a lead addressed by id or url does not exist.
	ErrNotFound = eris.New("lead not found")
	// ErrDuplicateURL is returned by Create when the url is already stored.
	ErrDuplicateURL = eris.New("lead url already exists")
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store is the lead persistence adapter. Every write is a single statement
// on a single row; there are no transactions and no optimistic concurrency
// checks, so two writers racing on the same url resolve as last-write-wins.
type Store interface {
	// Reads
	FindByURL(ctx context.Context, url string) (*model.Lead, error)
	GetByID(ctx context.Context, id string) (*model.Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	// Writes
	Create(ctx context.Context, url string, fields LeadFields) (*model.Lead, error)
	UpsertByURL(ctx context.Context, url string, fields LeadFields) (*model.Lead, error)
	UpdateByID(ctx context.Context, id string, fields LeadFields) (*model.Lead, error)
	UpdateByURL(ctx context.Context, url string, fields LeadFields) (*model.Lead, error)
	DeleteByID(ctx context.Context, id string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// LeadFields is a partial lead. Nil fields are left untouched on update and
// take the column default on insert. updated_at is always written.
type LeadFields struct {
	CompanyName *string
	Status      *model.LeadStatus
	ScrapedData *model.ScrapedData
	AIAnalysis  *model.AIAnalysis
	EmailDraft  *string
}

// Ptr returns a pointer to v. Handy for building LeadFields literals.
func Ptr[T any](v T) *T {
	return &v
}

// IsEmpty reports whether no field is set.
func (f LeadFields) IsEmpty() bool {
	return f.CompanyName == nil && f.Status == nil && f.ScrapedData == nil &&
		f.AIAnalysis == nil && f.EmailDraft == nil
}

type column struct {
	name  string
	value any
}

// columns flattens the set fields into column/value pairs. JSON columns are
// passed through encode so each driver can choose its wire representation.
func (f LeadFields) columns(encode func([]byte) any) ([]column, error) {
	var cols []column
	if f.CompanyName != nil {
		cols = append(cols, column{"company_name", *f.CompanyName})
	}
	if f.Status != nil {
		if !f.Status.Valid() {
			return nil, eris.Errorf("store: invalid status %q", *f.Status)
		}
		cols = append(cols, column{"status", string(*f.Status)})
	}
	if f.ScrapedData != nil {
		b, err := json.Marshal(f.ScrapedData)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal scraped_data")
		}
		cols = append(cols, column{"scraped_data", encode(b)})
	}
	if f.AIAnalysis != nil {
		b, err := json.Marshal(f.AIAnalysis)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal ai_analysis")
		}
		cols = append(cols, column{"ai_analysis", encode(b)})
	}
	if f.EmailDraft != nil {
		cols = append(cols, column{"email_draft", *f.EmailDraft})
	}
	return cols, nil
}

const leadColumns = `id, url, company_name, status, scraped_data, ai_analysis, email_draft, created_at, updated_at`

// placeholder renders the nth (1-based) bind parameter for a driver.
type placeholder func(n int) string

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
func questionPlaceholder(int) string { return "?" }

// buildInsert renders INSERT INTO leads for a new row. When upsert is true a
// conflict on url updates only the set fields plus updated_at.
func buildInsert(id, url string, f LeadFields, now time.Time, ph placeholder, encode func([]byte) any, upsert bool) (string, []any, error) {
	cols, err := f.columns(encode)
	if err != nil {
		return "", nil, err
	}

	names := []string{"id", "url", "created_at", "updated_at"}
	args := []any{id, url, now, now}
	if f.Status == nil {
		names = append(names, "status")
		args = append(args, string(model.LeadStatusNew))
	}
	for _, c := range cols {
		names = append(names, c.name)
		args = append(args, c.value)
	}

	marks := make([]string, len(args))
	for i := range args {
		marks[i] = ph(i + 1)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO leads (%s) VALUES (%s)", strings.Join(names, ", "), strings.Join(marks, ", "))
	if upsert {
		sets := []string{"updated_at = excluded.updated_at"}
		for _, c := range cols {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c.name, c.name))
		}
		fmt.Fprintf(&sb, " ON CONFLICT (url) DO UPDATE SET %s", strings.Join(sets, ", "))
	}
	sb.WriteString(" RETURNING " + leadColumns)
	return sb.String(), args, nil
}

// buildUpdate renders UPDATE leads ... WHERE key = value.
func buildUpdate(key, value string, f LeadFields, now time.Time, ph placeholder, encode func([]byte) any) (string, []any, error) {
	cols, err := f.columns(encode)
	if err != nil {
		return "", nil, err
	}

	args := []any{now}
	sets := []string{"updated_at = " + ph(1)}
	for _, c := range cols {
		args = append(args, c.value)
		sets = append(sets, fmt.Sprintf("%s = %s", c.name, ph(len(args))))
	}
	args = append(args, value)

	query := fmt.Sprintf("UPDATE leads SET %s WHERE %s = %s RETURNING %s",
		strings.Join(sets, ", "), key, ph(len(args)), leadColumns)
	return query, args, nil
}

func buildList(filter LeadFilter, ph placeholder) (string, []any) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = %s`, ph(len(args)))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT %s`, ph(len(args)))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET %s`, ph(len(args)))
	}
	return query, args
}

// decodeLeadJSON fills the JSON-backed fields of l. A nil or empty analysis
// column leaves AIAnalysis nil.
func decodeLeadJSON(l *model.Lead, scraped, analysis []byte) error {
	if len(scraped) > 0 {
		if err := json.Unmarshal(scraped, &l.ScrapedData); err != nil {
			return eris.Wrap(err, "store: unmarshal scraped_data")
		}
	}
	if len(analysis) > 0 && string(analysis) != "null" {
		l.AIAnalysis = &model.AIAnalysis{}
		if err := json.Unmarshal(analysis, l.AIAnalysis); err != nil {
			return eris.Wrap(err, "store: unmarshal ai_analysis")
		}
	}
	return nil
}
