// Package dedup computes the canonical identity of a candidate article and
// gates every insertion on it. Two entries resolving to the same hash must
// produce exactly one persisted article; the loser is discarded before any
// extraction or summarization is spent on it.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
	"time"
)

// CanonicalURL reduces a raw article URL to scheme+host+path. The query is
// stripped unless the source needs it to tell articles apart; the fragment
// always goes.
func CanonicalURL(raw string, keepQuery bool) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Unparseable links still get a stable identity.
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if !keepQuery {
		u.RawQuery = ""
	}
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String()
}

// Hash returns the hex sha256 of the canonical URL: 64 chars, stable across
// runs, collision-resistant.
func Hash(raw string, keepQuery bool) string {
	sum := sha256.Sum256([]byte(CanonicalURL(raw, keepQuery)))
	return hex.EncodeToString(sum[:])
}

// existsChecker is the one store capability the claimer needs.
type existsChecker interface {
	HasArticle(ctx context.Context, urlHash string) (bool, error)
}

// Claimer decides whether a hash is worth processing. Three gates, cheapest
// first: the in-cycle claim set (concurrent entries in one cycle), the TTL
// hash cache (recent cycles), then the store. The store's unique index stays
// the final arbiter; a claim here is an optimization, not the guarantee.
type Claimer struct {
	store existsChecker
	known *hashCache

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewClaimer(store existsChecker, cacheTTL time.Duration) *Claimer {
	return &Claimer{
		store:    store,
		known:    newHashCache(cacheTTL),
		inflight: make(map[string]struct{}),
	}
}

// BeginCycle resets the in-cycle claim set. Called once per ingestion cycle
// by the orchestrator, never concurrently with TryClaim.
func (c *Claimer) BeginCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = make(map[string]struct{})
}

// TryClaim reserves the hash for the caller. A false return means another
// entry already holds or persisted it, an expected branch rather than an error.
func (c *Claimer) TryClaim(ctx context.Context, hash string) (bool, error) {
	c.mu.Lock()
	if _, taken := c.inflight[hash]; taken {
		c.mu.Unlock()
		return false, nil
	}
	c.inflight[hash] = struct{}{}
	c.mu.Unlock()

	if c.known.Has(hash) {
		return false, nil
	}

	exists, err := c.store.HasArticle(ctx, hash)
	if err != nil {
		c.Release(hash)
		return false, err
	}
	if exists {
		c.known.Add(hash)
		return false, nil
	}

	return true, nil
}

// Confirm records a successfully persisted hash.
func (c *Claimer) Confirm(hash string) {
	c.known.Add(hash)
}

// Release returns a claimed hash to the pool, used when the entry fails to
// persist so a later cycle can pick the story up again.
func (c *Claimer) Release(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, hash)
}
