package enrich

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aiprodig/leadgen-cli/internal/inference"
	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/internal/research"
	"github.com/aiprodig/leadgen-cli/internal/scrape"
	"github.com/aiprodig/leadgen-cli/internal/store"
)

// memStore is an in-memory store.Store that counts writes.
type memStore struct {
	mu      sync.Mutex
	byURL   map[string]*model.Lead
	writes  int
	failErr error
}

func newMemStore() *memStore {
	return &memStore{byURL: make(map[string]*model.Lead)}
}

func (m *memStore) apply(l *model.Lead, f store.LeadFields) {
	if f.CompanyName != nil {
		l.CompanyName = *f.CompanyName
	}
	if f.Status != nil {
		l.Status = *f.Status
	}
	if f.ScrapedData != nil {
		l.ScrapedData = *f.ScrapedData
	}
	if f.AIAnalysis != nil {
		a := *f.AIAnalysis
		l.AIAnalysis = &a
	}
	if f.EmailDraft != nil {
		l.EmailDraft = *f.EmailDraft
	}
	l.UpdatedAt = time.Now()
}

func (m *memStore) seed(l model.Lead) *model.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = model.LeadStatusNew
	}
	cp := l
	m.byURL[l.URL] = &cp
	return &cp
}

func (m *memStore) FindByURL(_ context.Context, url string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byURL[url]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.byURL {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) List(_ context.Context, _ store.LeadFilter) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Lead, 0, len(m.byURL))
	for _, l := range m.byURL {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (m *memStore) Create(ctx context.Context, url string, f store.LeadFields) (*model.Lead, error) {
	if existing, _ := m.FindByURL(ctx, url); existing != nil {
		return nil, store.ErrDuplicateURL
	}
	return m.UpsertByURL(ctx, url, f)
}

func (m *memStore) UpsertByURL(_ context.Context, url string, f store.LeadFields) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	m.writes++
	l, ok := m.byURL[url]
	if !ok {
		l = &model.Lead{ID: uuid.NewString(), URL: url, Status: model.LeadStatusNew, CreatedAt: time.Now()}
		m.byURL[url] = l
	}
	m.apply(l, f)
	cp := *l
	return &cp, nil
}

func (m *memStore) UpdateByID(_ context.Context, id string, f store.LeadFields) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, l := range m.byURL {
		if l.ID == id {
			m.writes++
			m.apply(l, f)
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpdateByURL(_ context.Context, url string, f store.LeadFields) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byURL[url]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.writes++
	m.apply(l, f)
	cp := *l
	return &cp, nil
}

func (m *memStore) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for url, l := range m.byURL {
		if l.ID == id {
			delete(m.byURL, url)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) Ping(context.Context) error    { return nil }
func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byURL)
}

// fakeFetcher returns a canned result and counts calls.
type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) scrape.FetchResult {
	f.calls++
	if f.err != nil {
		return scrape.FetchResult{URL: url, Err: f.err}
	}
	return scrape.FetchResult{URL: url, HTML: f.html, StatusCode: 200}
}

// fakeInferer returns a canned analysis and records prompts.
type fakeInferer struct {
	analysis *model.AIAnalysis
	err      error
	readyErr error
	prompts  []inference.Prompt
}

func (f *fakeInferer) Infer(_ context.Context, p inference.Prompt) (*model.AIAnalysis, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.analysis
	return &cp, nil
}

func (f *fakeInferer) Provider() string { return "fake" }
func (f *fakeInferer) Ready() error     { return f.readyErr }

// stubSearcher serves research hits.
type stubSearcher struct {
	hits []research.Hit
	err  error
}

func (s *stubSearcher) Search(context.Context, string, int) ([]research.Hit, error) {
	return s.hits, s.err
}
