package store

import (
	"context"
	"time"
)

// Summary lifecycle states for an article.
const (
	SummaryPending    = "pending"
	SummaryProcessing = "processing"
	SummaryDone       = "done"
	SummaryFailed     = "failed"
)

// Article is one ingested story. Identity is the URL hash, not the URL:
// the same story reached through different query strings collapses to one row.
type Article struct {
	ID              int64
	URL             string
	URLHash         string
	Title           string
	SourceName      string
	Category        string
	PublishedAt     *time.Time
	FetchedAt       time.Time
	Content         string // empty when extraction failed and the feed had no excerpt
	Summary         string // empty until summarization succeeds
	SummaryStatus   string
	SummaryAttempts int
	ImageURL        string
	IsActive        bool
	IsFeatured      bool
}

// Source is one feed endpoint. The pipeline only ever writes the status
// fields; everything else belongs to the admin surface and the seed file.
type Source struct {
	ID                  int64
	Name                string
	URL                 string
	Category            string
	KeepQuery           bool
	Enabled             bool
	LastFetchedAt       *time.Time
	LastError           string
	ConsecutiveFailures int
	ArticleCount        int
}

// Category is a classification bucket. Priority is the table ordinal used
// by the classifier; lower wins.
type Category struct {
	ID       int64
	Slug     string
	Name     string
	Color    string
	Priority int
	Visible  bool
}

// ArticleFilter narrows ListArticles for the presentation collaborators.
type ArticleFilter struct {
	Category   string
	ActiveOnly bool
	Since      time.Time
	Limit      int
}

// Store is the single shared mutable resource of the pipeline.
// CreateArticle is the write-gate for article creation: it must be atomic
// with respect to concurrent callers resolving to the same URL hash.
type Store interface {
	// CreateArticle inserts the article unless its hash already exists.
	// Returns false (and no error) when another article holds the hash.
	CreateArticle(ctx context.Context, a *Article) (bool, error)
	HasArticle(ctx context.Context, urlHash string) (bool, error)
	ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error)
	SetArticleFlags(ctx context.Context, id int64, active, featured bool) error

	SetSummary(ctx context.Context, id int64, summary string) error
	MarkSummaryFailed(ctx context.Context, id int64) error
	HideArticle(ctx context.Context, id int64) error
	ListFailedSummaries(ctx context.Context, maxAttempts, limit int) ([]Article, error)
	ResetProcessingSummaries(ctx context.Context) (int64, error)

	DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int, error)

	SeedSources(ctx context.Context, sources []Source) error
	ListEnabledSources(ctx context.Context) ([]Source, error)
	UpdateSourceStatus(ctx context.Context, id int64, fetchErr string, added int) error

	SeedCategories(ctx context.Context, categories []Category) error
	ListCategories(ctx context.Context) ([]Category, error)

	Close() error
}
