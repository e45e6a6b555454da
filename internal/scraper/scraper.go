// Package scraper fetches article pages and isolates the main body text
// from navigation, ads and boilerplate. It is deliberately independent of
// feed metadata: the feed says a story exists, the scraper decides what it
// actually says.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrNoContent means the page yielded no usable body. The article is still
// worth keeping with its feed excerpt, so callers treat this as a soft miss.
var ErrNoContent = errors.New("no extractable content")

// maxBodyRunes caps stored body text; summarizer prompts truncate further.
const maxBodyRunes = 3000

// maxFetchBytes bounds how much of a page is read. 2 MiB covers any real
// article; anything larger is a stream or a bug.
const maxFetchBytes = 2 << 20

// userAgent is browser-like on purpose: article hosts are a different
// audience than feed endpoints and some of them reject obvious bots.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Result carries the extracted body and, when present, the lead image.
// ImageURL may be set even when extraction of the body failed.
type Result struct {
	Body     string
	ImageURL string
}

type Extractor struct {
	client *http.Client
}

func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: timeout},
	}
}

// Extract fetches the page and runs two extraction tiers: readability
// first, then a selector walk for pages readability cannot make sense of.
// One attempt per call; the fixed re-fetch cadence makes retries pointless.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read page: %w", err)
	}

	parsed, _ := url.Parse(pageURL)

	var result Result

	// Tier 1: readability gets text and lead image in one pass.
	if article, rErr := readability.FromReader(bytes.NewReader(raw), parsed); rErr == nil {
		text := strings.TrimSpace(article.TextContent)
		if utf8.RuneCountInString(text) > 100 {
			result.Body = cleanContent(text)
		}
		result.ImageURL = article.Image
	}

	// Tier 2: selector walk over the raw document.
	if result.Body == "" || result.ImageURL == "" {
		doc, dErr := goquery.NewDocumentFromReader(bytes.NewReader(raw))
		if dErr == nil {
			if result.Body == "" {
				result.Body = cleanContent(selectorContent(doc))
			}
			if result.ImageURL == "" {
				result.ImageURL = ogImage(doc)
			}
		}
	}

	if result.Body == "" {
		return result, ErrNoContent
	}
	return result, nil
}

// selectors covers the markup of the usual security news sites plus
// generic fallbacks, most specific first.
var selectors = []string{
	"article .articlebody p",  // thehackernews
	".article-content p",      // bleepingcomputer
	".entry-content p",        // krebsonsecurity, wordpress blogs
	".post-content p",
	"article p",
	".article p",
	".content p",
	"main p",
	"#content p",
}

func selectorContent(doc *goquery.Document) string {
	var paragraphs []string

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
		paragraphs = paragraphs[:0]
	}

	if len(paragraphs) == 0 {
		// Last resort: any paragraph of substance.
		doc.Find("p").Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 60 {
				paragraphs = append(paragraphs, text)
			}
		})
	}

	return strings.Join(paragraphs, "\n\n")
}

func ogImage(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="twitter:image"]`).Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// junkIndicators mark lines that belong to the site chrome, not the story.
var junkIndicators = []string{
	"cookie", "subscribe to", "sign up for", "newsletter",
	"advertisement", "sponsored", "read more:", "related:",
	"share this", "follow us", "all rights reserved",
}

// CleanExcerpt strips markup from a feed-provided excerpt so it can stand
// in for a body when page extraction fails.
func CleanExcerpt(excerpt string) string {
	return cleanContent(stripTags(excerpt))
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cleanContent(content string) string {
	if content == "" {
		return ""
	}

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if len(line) < 8 {
			continue
		}
		if isJunk(line) {
			continue
		}
		kept = append(kept, line)
	}

	text := strings.Join(kept, "\n\n")
	return truncateParagraphs(text, maxBodyRunes)
}

func isJunk(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range junkIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// truncateParagraphs cuts at the limit without splitting a paragraph.
func truncateParagraphs(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	paragraphs := strings.Split(text, "\n\n")
	var selected []string
	total := 0
	for _, p := range paragraphs {
		n := utf8.RuneCountInString(p)
		if total+n > limit {
			break
		}
		selected = append(selected, p)
		total += n + 2
	}

	if len(selected) == 0 {
		runes := []rune(text)
		return string(runes[:limit])
	}
	return strings.Join(selected, "\n\n")
}
