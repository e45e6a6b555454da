package feeds

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"secwire/internal/store"
)

// SeedFile is the YAML shape of configs/feeds.yaml:
//
//	feeds:
//	  - name: The Hacker News
//	    url: https://feeds.feedburner.com/TheHackersNews
//	    category: general
type SeedFile struct {
	Feeds []SeedEntry `yaml:"feeds"`
}

type SeedEntry struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Category  string `yaml:"category"`
	KeepQuery bool   `yaml:"keep_query"`
	Disabled  bool   `yaml:"disabled"`
}

// LoadSeed reads the feed list used to populate the sources table on first run.
func LoadSeed(path string) ([]store.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg SeedFile
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse feeds config: %w", err)
	}

	sources := make([]store.Source, 0, len(cfg.Feeds))
	for _, fe := range cfg.Feeds {
		if fe.URL == "" {
			continue
		}
		name := fe.Name
		if name == "" {
			name = fe.URL
		}
		category := fe.Category
		if category == "" {
			category = "general"
		}
		sources = append(sources, store.Source{
			Name:      name,
			URL:       fe.URL,
			Category:  category,
			KeepQuery: fe.KeepQuery,
			Enabled:   !fe.Disabled,
		})
	}
	return sources, nil
}

// Entry is one feed item reduced to what the pipeline needs.
type Entry struct {
	Title     string
	Link      string
	Published *time.Time
	Excerpt   string // feed-provided description/content, may contain HTML
}

// Fetcher downloads and parses syndication feeds. Its client is separate
// from the article scraper: feed hosts get a plain UA and a shorter timeout.
type Fetcher struct {
	parser *gofeed.Parser
}

func NewFetcher(timeout time.Duration) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "secwire-feed-fetcher/1.0"
	return &Fetcher{parser: parser}
}

// Fetch parses one feed URL. Malformed documents surface as an error for
// that source only; the caller decides what a failed source means.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, Entry{
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Published: publishedTime(item),
			Excerpt:   bestExcerpt(item),
		})
	}
	return entries, nil
}

func publishedTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	return nil
}

// bestExcerpt picks the richest body text the feed itself provides.
func bestExcerpt(item *gofeed.Item) string {
	if content := strings.TrimSpace(item.Content); content != "" {
		return content
	}
	return strings.TrimSpace(item.Description)
}
