package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-memory Store used by tests and local runs
// without Postgres. Claim semantics match the Postgres unique index.
type Memory struct {
	mu         sync.Mutex
	nextID     int64
	articles   map[string]*Article // keyed by URL hash
	sources    []Source
	categories []Category

	// FailNextCreate makes the next CreateArticle return an error; lets
	// tests exercise the store-failure branch of the pipeline.
	FailNextCreate error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{articles: make(map[string]*Article)}
}

func (m *Memory) CreateArticle(ctx context.Context, a *Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailNextCreate; err != nil {
		m.FailNextCreate = nil
		return false, err
	}

	if _, ok := m.articles[a.URLHash]; ok {
		return false, nil
	}

	m.nextID++
	a.ID = m.nextID
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now()
	}
	clone := *a
	m.articles[a.URLHash] = &clone
	return true, nil
}

func (m *Memory) HasArticle(ctx context.Context, urlHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.articles[urlHash]
	return ok, nil
}

func (m *Memory) ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Article
	for _, a := range m.articles {
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		if f.ActiveOnly && !a.IsActive {
			continue
		}
		if !f.Since.IsZero() && a.FetchedAt.Before(f.Since) {
			continue
		}
		items = append(items, *a)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].FetchedAt.After(items[j].FetchedAt)
	})
	if f.Limit > 0 && len(items) > f.Limit {
		items = items[:f.Limit]
	}
	return items, nil
}

func (m *Memory) find(id int64) *Article {
	for _, a := range m.articles {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *Memory) SetArticleFlags(ctx context.Context, id int64, active, featured bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(id); a != nil {
		a.IsActive = active
		a.IsFeatured = featured
	}
	return nil
}

func (m *Memory) SetSummary(ctx context.Context, id int64, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(id); a != nil {
		a.Summary = summary
		a.SummaryStatus = SummaryDone
		a.SummaryAttempts++
	}
	return nil
}

func (m *Memory) MarkSummaryFailed(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(id); a != nil {
		a.SummaryStatus = SummaryFailed
		a.SummaryAttempts++
	}
	return nil
}

func (m *Memory) HideArticle(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(id); a != nil {
		a.Summary = ""
		a.SummaryStatus = SummaryDone
		a.SummaryAttempts++
		a.IsActive = false
	}
	return nil
}

func (m *Memory) ListFailedSummaries(ctx context.Context, maxAttempts, limit int) ([]Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Article
	for _, a := range m.articles {
		if a.SummaryStatus == SummaryFailed && a.SummaryAttempts < maxAttempts && a.Content != "" {
			items = append(items, *a)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].FetchedAt.Before(items[j].FetchedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *Memory) ResetProcessingSummaries(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, a := range m.articles {
		if a.SummaryStatus == SummaryProcessing {
			a.SummaryStatus = SummaryFailed
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Categories that still have a summarized article within the window.
	recent := make(map[string]bool)
	for _, a := range m.articles {
		if a.SummaryStatus == SummaryDone && !a.FetchedAt.Before(cutoff) {
			recent[a.Category] = true
		}
	}

	var n int64
	for hash, a := range m.articles {
		if !a.FetchedAt.Before(cutoff) {
			continue
		}
		if a.SummaryStatus == SummaryDone && !recent[a.Category] {
			continue // keep: category would otherwise go empty
		}
		delete(m.articles, hash)
		n++
	}
	return n, nil
}

func (m *Memory) CountByStatus(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, a := range m.articles {
		counts[a.SummaryStatus]++
	}
	return counts, nil
}

func (m *Memory) SeedSources(ctx context.Context, sources []Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range sources {
		exists := false
		for _, have := range m.sources {
			if have.URL == s.URL {
				exists = true
				break
			}
		}
		if !exists {
			m.nextID++
			s.ID = m.nextID
			m.sources = append(m.sources, s)
		}
	}
	return nil
}

func (m *Memory) ListEnabledSources(ctx context.Context) ([]Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Source
	for _, s := range m.sources {
		if s.Enabled {
			items = append(items, s)
		}
	}
	return items, nil
}

func (m *Memory) UpdateSourceStatus(ctx context.Context, id int64, fetchErr string, added int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.sources {
		if m.sources[i].ID != id {
			continue
		}
		now := time.Now()
		m.sources[i].LastFetchedAt = &now
		m.sources[i].LastError = fetchErr
		if fetchErr == "" {
			m.sources[i].ConsecutiveFailures = 0
			m.sources[i].ArticleCount += added
		} else {
			m.sources[i].ConsecutiveFailures++
		}
	}
	return nil
}

func (m *Memory) SeedCategories(ctx context.Context, categories []Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.categories) == 0 {
		m.categories = append(m.categories, categories...)
	}
	return nil
}

func (m *Memory) ListCategories(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Category(nil), m.categories...), nil
}

func (m *Memory) Close() error { return nil }
