package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		keepQuery bool
		want      string
	}{
		{
			name: "query stripped",
			raw:  "https://example.com/story?utm_source=rss&utm_medium=feed",
			want: "https://example.com/story",
		},
		{
			name:      "query kept on request",
			raw:       "https://example.com/story?id=42",
			keepQuery: true,
			want:      "https://example.com/story?id=42",
		},
		{
			name: "fragment always stripped",
			raw:  "https://example.com/story#comments",
			want: "https://example.com/story",
		},
		{
			name: "host and scheme lowercased",
			raw:  "HTTPS://Example.COM/Story",
			want: "https://example.com/Story",
		},
		{
			name: "trailing slash trimmed",
			raw:  "https://example.com/story/",
			want: "https://example.com/story",
		},
		{
			name: "whitespace trimmed",
			raw:  "  https://example.com/story \n",
			want: "https://example.com/story",
		},
		{
			name: "unparseable falls back to lowercase",
			raw:  "Not A URL",
			want: "not a url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalURL(tt.raw, tt.keepQuery); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHashStability(t *testing.T) {
	a := Hash("https://example.com/story?utm_source=rss", false)
	b := Hash("https://example.com/story/", false)
	if a != b {
		t.Error("tracking params and trailing slash should not change the hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64", len(a))
	}

	c := Hash("https://example.com/other", false)
	if a == c {
		t.Error("different paths hashed equal")
	}

	if Hash("https://example.com/story?id=1", true) == Hash("https://example.com/story?id=2", true) {
		t.Error("keepQuery sources must distinguish by query")
	}
}

// fakeChecker implements the store lookup with injectable state.
type fakeChecker struct {
	mu     sync.Mutex
	stored map[string]bool
	err    error
	calls  int
}

func (f *fakeChecker) HasArticle(ctx context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.stored[hash], nil
}

func TestClaimerSingleWinner(t *testing.T) {
	c := NewClaimer(&fakeChecker{}, time.Hour)
	c.BeginCycle()

	hash := Hash("https://example.com/story", false)

	ok, err := c.TryClaim(context.Background(), hash)
	if err != nil || !ok {
		t.Fatalf("first claim = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = c.TryClaim(context.Background(), hash)
	if err != nil || ok {
		t.Fatalf("second claim = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestClaimerConcurrentWinners(t *testing.T) {
	c := NewClaimer(&fakeChecker{}, time.Hour)
	c.BeginCycle()

	hash := Hash("https://example.com/story", false)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.TryClaim(context.Background(), hash)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}

func TestClaimerKnowsStoredArticles(t *testing.T) {
	checker := &fakeChecker{stored: map[string]bool{}}
	hash := Hash("https://example.com/story", false)
	checker.stored[hash] = true

	c := NewClaimer(checker, time.Hour)
	c.BeginCycle()

	ok, err := c.TryClaim(context.Background(), hash)
	if err != nil || ok {
		t.Fatalf("claim over stored article = (%v, %v), want (false, nil)", ok, err)
	}

	// Second cycle: the store answer is cached, no second round-trip.
	c.BeginCycle()
	before := checker.calls
	if ok, _ := c.TryClaim(context.Background(), hash); ok {
		t.Error("cached hash claimed")
	}
	if checker.calls != before {
		t.Error("cache miss: store queried again for a known hash")
	}
}

func TestClaimerReleaseAllowsRetry(t *testing.T) {
	c := NewClaimer(&fakeChecker{}, time.Hour)
	c.BeginCycle()

	hash := Hash("https://example.com/story", false)

	if ok, _ := c.TryClaim(context.Background(), hash); !ok {
		t.Fatal("initial claim failed")
	}
	c.Release(hash)

	if ok, _ := c.TryClaim(context.Background(), hash); !ok {
		t.Error("claim after release failed")
	}
}

func TestClaimerStoreError(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewClaimer(&fakeChecker{err: boom}, time.Hour)
	c.BeginCycle()

	hash := Hash("https://example.com/story", false)

	_, err := c.TryClaim(context.Background(), hash)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	// The failed claim must not poison the hash for a later attempt.
	checker := &fakeChecker{}
	c2 := NewClaimer(checker, time.Hour)
	c2.BeginCycle()
	if ok, _ := c2.TryClaim(context.Background(), hash); !ok {
		t.Error("claim after store error failed on fresh claimer")
	}
}

func TestClaimerConfirmPersistsAcrossCycles(t *testing.T) {
	checker := &fakeChecker{}
	c := NewClaimer(checker, time.Hour)
	c.BeginCycle()

	hash := Hash("https://example.com/story", false)

	if ok, _ := c.TryClaim(context.Background(), hash); !ok {
		t.Fatal("initial claim failed")
	}
	c.Confirm(hash)

	c.BeginCycle()
	before := checker.calls
	if ok, _ := c.TryClaim(context.Background(), hash); ok {
		t.Error("confirmed hash claimed again next cycle")
	}
	if checker.calls != before {
		t.Error("confirmed hash hit the store")
	}
}
