package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	err := os.WriteFile(path, []byte(`feeds:
  - name: The Hacker News
    url: https://example.com/thn.xml
    category: general
  - url: https://example.com/unnamed.xml
  - name: Tracked Vendor
    url: https://example.com/vendor.xml
    category: threat_intel
    keep_query: true
  - name: Retired
    url: https://example.com/retired.xml
    disabled: true
  - name: No URL
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	sources, err := LoadSeed(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 4 {
		t.Fatalf("sources = %d, want 4 (entries without a url dropped)", len(sources))
	}

	if sources[0].Name != "The Hacker News" || sources[0].Category != "general" {
		t.Errorf("first source = %+v", sources[0])
	}
	if sources[1].Name != "https://example.com/unnamed.xml" {
		t.Errorf("unnamed source should default to its url, got %q", sources[1].Name)
	}
	if sources[1].Category != "general" {
		t.Errorf("missing category should default to general, got %q", sources[1].Category)
	}
	if !sources[2].KeepQuery {
		t.Error("keep_query not honored")
	}
	if sources[3].Enabled {
		t.Error("disabled source seeded as enabled")
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want a not-exist error the caller can branch on", err)
	}
}

func TestFetch(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Security Feed</title>
<item>
  <title>  Critical flaw patched  </title>
  <link>https://example.com/story-1</link>
  <pubDate>Mon, 31 Aug 2026 10:00:00 GMT</pubDate>
  <description><![CDATA[<p>A short teaser.</p>]]></description>
</item>
<item>
  <title>Undated advisory</title>
  <link>https://example.com/story-2</link>
</item>
</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("feed request missing User-Agent")
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	entries, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	if entries[0].Title != "Critical flaw patched" {
		t.Errorf("title not trimmed: %q", entries[0].Title)
	}
	if entries[0].Link != "https://example.com/story-1" {
		t.Errorf("link = %q", entries[0].Link)
	}
	if entries[0].Published == nil {
		t.Error("pubDate not parsed")
	}
	if entries[0].Excerpt == "" {
		t.Error("description lost")
	}
	if entries[1].Published != nil {
		t.Error("missing date should stay nil, not be invented")
	}
}

func TestFetchMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a feed</html>")
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("malformed feed parsed without error")
	}
}
