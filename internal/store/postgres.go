package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"secwire/internal/logger"
)

// Postgres implements Store on top of database/sql + lib/pq.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens the connection, verifies it and ensures the schema.
func NewPostgres(connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("postgres store connected")
	return p, nil
}

func (p *Postgres) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL,
		url_hash VARCHAR(64) UNIQUE NOT NULL,
		title TEXT NOT NULL,
		source_name TEXT NOT NULL,
		category VARCHAR(50) NOT NULL,
		published_at TIMESTAMPTZ,
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		content TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		summary_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		summary_attempts INTEGER NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_featured BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_articles_hash ON articles(url_hash);
	CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at);
	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);

	CREATE TABLE IF NOT EXISTS sources (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT UNIQUE NOT NULL,
		category VARCHAR(50) NOT NULL,
		keep_query BOOLEAN NOT NULL DEFAULT FALSE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_fetched_at TIMESTAMPTZ,
		last_error TEXT NOT NULL DEFAULT '',
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		article_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		slug VARCHAR(50) UNIQUE NOT NULL,
		name TEXT NOT NULL,
		color VARCHAR(20) NOT NULL,
		priority INTEGER NOT NULL,
		visible BOOLEAN NOT NULL DEFAULT TRUE
	);
	`

	if _, err := p.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateArticle is the claim: INSERT ... ON CONFLICT DO NOTHING on the hash.
// Exactly one of two racing callers with the same hash gets created=true.
func (p *Postgres) CreateArticle(ctx context.Context, a *Article) (bool, error) {
	query := `
		INSERT INTO articles
			(url, url_hash, title, source_name, category, published_at,
			 content, summary, summary_status, summary_attempts, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (url_hash) DO NOTHING
		RETURNING id, fetched_at
	`

	err := p.db.QueryRowContext(ctx, query,
		a.URL, a.URLHash, a.Title, a.SourceName, a.Category, a.PublishedAt,
		a.Content, a.Summary, a.SummaryStatus, a.SummaryAttempts, a.ImageURL,
	).Scan(&a.ID, &a.FetchedAt)
	if err == sql.ErrNoRows {
		return false, nil // hash already claimed
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}
	return true, nil
}

func (p *Postgres) HasArticle(ctx context.Context, urlHash string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE url_hash = $1)`, urlHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check article hash: %w", err)
	}
	return exists, nil
}

func (p *Postgres) ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error) {
	query := `
		SELECT id, url, url_hash, title, source_name, category, published_at,
		       fetched_at, content, summary, summary_status, summary_attempts,
		       image_url, is_active, is_featured
		FROM articles
		WHERE ($1 = '' OR category = $1)
		  AND (NOT $2 OR is_active)
		  AND fetched_at >= $3
		ORDER BY fetched_at DESC
		LIMIT $4
	`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	since := f.Since
	if since.IsZero() {
		since = time.Unix(0, 0)
	}

	rows, err := p.db.QueryContext(ctx, query, f.Category, f.ActiveOnly, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var items []Article
	for rows.Next() {
		var a Article
		err := rows.Scan(
			&a.ID, &a.URL, &a.URLHash, &a.Title, &a.SourceName, &a.Category,
			&a.PublishedAt, &a.FetchedAt, &a.Content, &a.Summary,
			&a.SummaryStatus, &a.SummaryAttempts, &a.ImageURL,
			&a.IsActive, &a.IsFeatured,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (p *Postgres) SetArticleFlags(ctx context.Context, id int64, active, featured bool) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE articles SET is_active = $2, is_featured = $3 WHERE id = $1`,
		id, active, featured)
	if err != nil {
		return fmt.Errorf("failed to set article flags: %w", err)
	}
	return nil
}

func (p *Postgres) SetSummary(ctx context.Context, id int64, summary string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE articles
		SET summary = $2, summary_status = $3,
		    summary_attempts = summary_attempts + 1
		WHERE id = $1`,
		id, summary, SummaryDone)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	return nil
}

func (p *Postgres) MarkSummaryFailed(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE articles
		SET summary_status = $2, summary_attempts = summary_attempts + 1
		WHERE id = $1`,
		id, SummaryFailed)
	if err != nil {
		return fmt.Errorf("failed to mark summary failed: %w", err)
	}
	return nil
}

// HideArticle drops an article from the public surface without deleting it.
// Used when the summarizer flags pure marketing content.
func (p *Postgres) HideArticle(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE articles
		SET summary = '', summary_status = $2,
		    summary_attempts = summary_attempts + 1, is_active = FALSE
		WHERE id = $1`,
		id, SummaryDone)
	if err != nil {
		return fmt.Errorf("failed to hide article: %w", err)
	}
	return nil
}

func (p *Postgres) ListFailedSummaries(ctx context.Context, maxAttempts, limit int) ([]Article, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, url, url_hash, title, source_name, category, published_at,
		       fetched_at, content, summary, summary_status, summary_attempts,
		       image_url, is_active, is_featured
		FROM articles
		WHERE summary_status = $1 AND summary_attempts < $2 AND content <> ''
		ORDER BY fetched_at ASC
		LIMIT $3`,
		SummaryFailed, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed summaries: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// ResetProcessingSummaries recovers rows stuck in "processing" after a crash.
func (p *Postgres) ResetProcessingSummaries(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE articles SET summary_status = $1 WHERE summary_status = $2`,
		SummaryFailed, SummaryProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to reset processing summaries: %w", err)
	}
	return res.RowsAffected()
}

// DeleteArticlesBefore removes articles strictly older than cutoff.
// Summarized articles are kept in categories that have no summarized article
// within the window, so a low-volume category never goes empty.
func (p *Postgres) DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin sweep transaction: %w", err)
	}
	defer tx.Rollback()

	// Old unsummarized articles will never summarize; always delete.
	r1, err := tx.ExecContext(ctx, `
		DELETE FROM articles
		WHERE fetched_at < $1 AND summary_status <> $2`,
		cutoff, SummaryDone)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale articles: %w", err)
	}

	r2, err := tx.ExecContext(ctx, `
		DELETE FROM articles
		WHERE fetched_at < $1 AND summary_status = $2
		  AND category IN (
			SELECT DISTINCT category FROM articles
			WHERE summary_status = $2 AND fetched_at >= $1
		  )`,
		cutoff, SummaryDone)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged articles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sweep: %w", err)
	}

	n1, _ := r1.RowsAffected()
	n2, _ := r2.RowsAffected()
	return n1 + n2, nil
}

func (p *Postgres) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT summary_status, COUNT(*) FROM articles GROUP BY summary_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// SeedSources inserts feed endpoints, leaving existing rows untouched so
// admin edits survive restarts.
func (p *Postgres) SeedSources(ctx context.Context, sources []Source) error {
	for _, s := range sources {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO sources (name, url, category, keep_query, enabled)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (url) DO NOTHING`,
			s.Name, s.URL, s.Category, s.KeepQuery, s.Enabled)
		if err != nil {
			return fmt.Errorf("failed to seed source %s: %w", s.Name, err)
		}
	}
	return nil
}

func (p *Postgres) ListEnabledSources(ctx context.Context) ([]Source, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, url, category, keep_query, enabled, last_fetched_at,
		       last_error, consecutive_failures, article_count
		FROM sources
		WHERE enabled
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var items []Source
	for rows.Next() {
		var s Source
		err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.Category, &s.KeepQuery,
			&s.Enabled, &s.LastFetchedAt, &s.LastError,
			&s.ConsecutiveFailures, &s.ArticleCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// UpdateSourceStatus records the outcome of one fetch attempt. A success
// resets the failure streak; a failure increments it.
func (p *Postgres) UpdateSourceStatus(ctx context.Context, id int64, fetchErr string, added int) error {
	var err error
	if fetchErr == "" {
		_, err = p.db.ExecContext(ctx, `
			UPDATE sources
			SET last_fetched_at = NOW(), last_error = '',
			    consecutive_failures = 0, article_count = article_count + $2
			WHERE id = $1`,
			id, added)
	} else {
		_, err = p.db.ExecContext(ctx, `
			UPDATE sources
			SET last_fetched_at = NOW(), last_error = $2,
			    consecutive_failures = consecutive_failures + 1
			WHERE id = $1`,
			id, fetchErr)
	}
	if err != nil {
		return fmt.Errorf("failed to update source status: %w", err)
	}
	return nil
}

func (p *Postgres) SeedCategories(ctx context.Context, categories []Category) error {
	for _, c := range categories {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO categories (slug, name, color, priority, visible)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (slug) DO NOTHING`,
			c.Slug, c.Name, c.Color, c.Priority)
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.Slug, err)
		}
	}
	return nil
}

func (p *Postgres) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, name, color, priority, visible
		FROM categories
		ORDER BY priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Color, &c.Priority, &c.Visible); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
