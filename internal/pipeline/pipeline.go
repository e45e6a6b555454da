// Package pipeline drives one ingestion cycle: fan out over enabled
// sources, parse their feeds, and push every candidate entry through
// extraction, the dedup gate, classification, summarization and the store.
// No single source, entry, extraction or summarization failure may abort
// the cycle; the cycle's product is a counted summary, not an ordered log.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"secwire/internal/categorize"
	"secwire/internal/dedup"
	"secwire/internal/feeds"
	"secwire/internal/logger"
	"secwire/internal/metrics"
	"secwire/internal/scraper"
	"secwire/internal/store"
	"secwire/internal/summarize"
)

// FeedFetcher parses one feed URL into entries.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]feeds.Entry, error)
}

// Extractor pulls the main body text out of an article page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (scraper.Result, error)
}

// Options carries the cycle tunables the orchestrator needs.
type Options struct {
	Concurrency    int           // cap on in-flight per-entry pipelines
	ScrapeTimeout  time.Duration // per article page
	LLMTimeout     time.Duration // per summarizer call
	CycleDeadline  time.Duration // 0 = none; safety valve only
	BackfillWindow time.Duration // entry age cutoff for the first cycle
	IngestWindow   time.Duration // entry age cutoff for later cycles
	RetryLimit     int           // max summary attempts per article
	BackfillBatch  int           // failed summaries re-attempted per cycle
}

// Summary is the aggregate outcome of one cycle.
type Summary struct {
	Started  time.Time
	Finished time.Time

	SourcesOK        int
	SourcesFailed    int
	Entries          int
	Skipped          int // missing fields or older than the window
	New              int
	Duplicates       int
	ExtractionFailed int
	SummaryFailed    int
	StoreErrors      int
	SummaryRecovered int // backfill pass successes
}

type Pipeline struct {
	store      store.Store
	fetcher    FeedFetcher
	extractor  Extractor
	summarizer summarize.Summarizer
	claimer    *dedup.Claimer
	opts       Options

	ranOnce bool
}

func New(st store.Store, fetcher FeedFetcher, extractor Extractor, summarizer summarize.Summarizer, claimer *dedup.Claimer, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.RetryLimit < 1 {
		opts.RetryLimit = 2
	}
	if opts.BackfillBatch < 1 {
		opts.BackfillBatch = 20
	}
	return &Pipeline{
		store:      st,
		fetcher:    fetcher,
		extractor:  extractor,
		summarizer: summarizer,
		claimer:    claimer,
		opts:       opts,
	}
}

// tally collects counts from concurrent entry workers.
type tally struct {
	mu sync.Mutex
	s  Summary
}

func (t *tally) add(fn func(*Summary)) {
	t.mu.Lock()
	fn(&t.s)
	t.mu.Unlock()
}

// Run executes one full ingestion cycle. Only a store failure on the
// source listing is fatal to the cycle; everything else is counted.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if p.opts.CycleDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.CycleDeadline)
		defer cancel()
	}

	t := &tally{s: Summary{Started: time.Now()}}
	metrics.Global.RecordCycleStart()
	p.claimer.BeginCycle()

	sources, err := p.store.ListEnabledSources(ctx)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return t.s, fmt.Errorf("failed to list sources: %w", err)
	}

	cutoff := p.entryCutoff()
	p.ranOnce = true

	logger.Info("ingestion cycle started", "sources", len(sources), "cutoff", cutoff)

	// One goroutine per source; per-entry work shares a bounded pool so a
	// slow source cannot starve the rest and we never stampede the web.
	sem := make(chan struct{}, p.opts.Concurrency)
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		go func(src store.Source) {
			defer wg.Done()
			p.processSource(ctx, src, cutoff, sem, t)
		}(src)
	}
	wg.Wait()

	p.backfillSummaries(ctx, t)

	t.s.Finished = time.Now()
	metrics.Global.RecordCycle(
		t.s.SourcesOK, t.s.SourcesFailed, t.s.Entries, t.s.New,
		t.s.Duplicates, t.s.ExtractionFailed, t.s.SummaryFailed,
		t.s.Finished.Sub(t.s.Started),
	)
	if t.s.StoreErrors > 0 {
		metrics.Global.SetError(fmt.Sprintf("%d store errors during ingestion", t.s.StoreErrors))
	}

	logger.Info("ingestion cycle finished",
		"duration", t.s.Finished.Sub(t.s.Started).Round(time.Millisecond),
		"sources_ok", t.s.SourcesOK,
		"sources_failed", t.s.SourcesFailed,
		"entries", t.s.Entries,
		"new", t.s.New,
		"duplicates", t.s.Duplicates,
		"extraction_failed", t.s.ExtractionFailed,
		"summary_failed", t.s.SummaryFailed,
	)

	return t.s, nil
}

func (p *Pipeline) entryCutoff() time.Time {
	window := p.opts.IngestWindow
	if !p.ranOnce {
		window = p.opts.BackfillWindow
	}
	if window <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-window)
}

// processSource fetches one feed and dispatches its entries. A transport or
// parse failure is recorded against the source and the cycle moves on.
func (p *Pipeline) processSource(ctx context.Context, src store.Source, cutoff time.Time, sem chan struct{}, t *tally) {
	entries, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		logger.Warn("feed fetch failed", "source", src.Name, "error", err)
		t.add(func(s *Summary) { s.SourcesFailed++ })
		if uErr := p.store.UpdateSourceStatus(ctx, src.ID, err.Error(), 0); uErr != nil {
			logger.Error("failed to record source failure", "source", src.Name, "error", uErr)
			t.add(func(s *Summary) { s.StoreErrors++ })
		}
		return
	}

	var added int64
	var addedMu sync.Mutex
	var wg sync.WaitGroup

	for _, entry := range entries {
		t.add(func(s *Summary) { s.Entries++ })

		wg.Add(1)
		sem <- struct{}{}
		go func(entry feeds.Entry) {
			defer wg.Done()
			defer func() { <-sem }()
			if p.processEntry(ctx, src, entry, cutoff, t) {
				addedMu.Lock()
				added++
				addedMu.Unlock()
			}
		}(entry)
	}
	wg.Wait()

	t.add(func(s *Summary) { s.SourcesOK++ })
	if err := p.store.UpdateSourceStatus(ctx, src.ID, "", int(added)); err != nil {
		logger.Error("failed to record source status", "source", src.Name, "error", err)
		t.add(func(s *Summary) { s.StoreErrors++ })
	}
	logger.Debug("source processed", "source", src.Name, "entries", len(entries), "new", added)
}

// processEntry runs the per-entry pipeline. Returns true when a new
// article was persisted.
func (p *Pipeline) processEntry(ctx context.Context, src store.Source, entry feeds.Entry, cutoff time.Time, t *tally) bool {
	if entry.Title == "" || entry.Link == "" {
		t.add(func(s *Summary) { s.Skipped++ })
		return false
	}
	if !cutoff.IsZero() && entry.Published != nil && entry.Published.Before(cutoff) {
		t.add(func(s *Summary) { s.Skipped++ })
		return false
	}

	hash := dedup.Hash(entry.Link, src.KeepQuery)
	claimed, err := p.claimer.TryClaim(ctx, hash)
	if err != nil {
		logger.Error("dedup check failed", "url", entry.Link, "error", err)
		t.add(func(s *Summary) { s.StoreErrors++ })
		return false
	}
	if !claimed {
		t.add(func(s *Summary) { s.Duplicates++ })
		return false
	}

	body, imageURL := p.extractBody(ctx, entry, t)
	category := categorize.Classify(entry.Title, body, src.Category)

	article := &store.Article{
		URL:        entry.Link,
		URLHash:    hash,
		Title:      entry.Title,
		SourceName: src.Name,
		Category:   category,
		ImageURL:   imageURL,
		Content:    body,
		IsActive:   true,
	}
	if entry.Published != nil {
		published := *entry.Published
		article.PublishedAt = &published
	}

	p.summarizeInto(ctx, article, t)

	created, err := p.store.CreateArticle(ctx, article)
	if err != nil {
		// The one loud failure class: a lost write is a lost story.
		logger.Error("failed to persist article", "url", entry.Link, "error", err)
		t.add(func(s *Summary) { s.StoreErrors++ })
		p.claimer.Release(hash)
		return false
	}
	p.claimer.Confirm(hash)

	if !created {
		t.add(func(s *Summary) { s.Duplicates++ })
		return false
	}

	t.add(func(s *Summary) { s.New++ })
	return true
}

// extractBody runs page extraction with the feed excerpt as fallback.
// Neither tier failing is an error to the cycle: the story survives with
// whatever text exists, down to none.
func (p *Pipeline) extractBody(ctx context.Context, entry feeds.Entry, t *tally) (body, imageURL string) {
	extractCtx, cancel := context.WithTimeout(ctx, p.opts.ScrapeTimeout)
	defer cancel()

	result, err := p.extractor.Extract(extractCtx, entry.Link)
	if err != nil {
		logger.Debug("extraction failed", "url", entry.Link, "error", err)
		t.add(func(s *Summary) { s.ExtractionFailed++ })
		return scraper.CleanExcerpt(entry.Excerpt), result.ImageURL
	}
	return result.Body, result.ImageURL
}

// summarizeInto fills the article's summary fields in place. An empty body
// skips the backend entirely; any failure leaves the summary null and the
// article insertable.
func (p *Pipeline) summarizeInto(ctx context.Context, article *store.Article, t *tally) {
	if article.Content == "" {
		article.SummaryStatus = store.SummaryDone
		return
	}

	llmCtx, cancel := context.WithTimeout(ctx, p.opts.LLMTimeout)
	defer cancel()

	reply, err := p.summarizer.Summarize(llmCtx, article.Title, article.Content)
	switch {
	case err != nil:
		logger.Warn("summarization failed", "title", article.Title, "error", err)
		t.add(func(s *Summary) { s.SummaryFailed++ })
		article.SummaryStatus = store.SummaryFailed
		article.SummaryAttempts = 1
	case reply == summarize.MarketingToken:
		logger.Info("hiding marketing article", "title", article.Title)
		article.SummaryStatus = store.SummaryDone
		article.SummaryAttempts = 1
		article.IsActive = false
	default:
		article.Summary = reply
		article.SummaryStatus = store.SummaryDone
		article.SummaryAttempts = 1
	}
}

// backfillSummaries gives previously failed summaries one more attempt,
// bounded per cycle and per article. Never runs inside the entry loop.
func (p *Pipeline) backfillSummaries(ctx context.Context, t *tally) {
	articles, err := p.store.ListFailedSummaries(ctx, p.opts.RetryLimit, p.opts.BackfillBatch)
	if err != nil {
		logger.Error("failed to list summary backlog", "error", err)
		t.add(func(s *Summary) { s.StoreErrors++ })
		return
	}
	if len(articles) == 0 {
		return
	}

	logger.Info("retrying failed summaries", "count", len(articles))

	for _, article := range articles {
		llmCtx, cancel := context.WithTimeout(ctx, p.opts.LLMTimeout)
		reply, err := p.summarizer.Summarize(llmCtx, article.Title, article.Content)
		cancel()

		switch {
		case err != nil:
			t.add(func(s *Summary) { s.SummaryFailed++ })
			if mErr := p.store.MarkSummaryFailed(ctx, article.ID); mErr != nil {
				logger.Error("failed to record summary failure", "id", article.ID, "error", mErr)
			}
		case reply == summarize.MarketingToken:
			if hErr := p.store.HideArticle(ctx, article.ID); hErr != nil {
				logger.Error("failed to hide article", "id", article.ID, "error", hErr)
			}
		default:
			if sErr := p.store.SetSummary(ctx, article.ID, reply); sErr != nil {
				logger.Error("failed to store summary", "id", article.ID, "error", sErr)
				continue
			}
			t.add(func(s *Summary) { s.SummaryRecovered++ })
		}
	}
}
