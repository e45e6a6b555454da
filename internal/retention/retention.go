// Package retention keeps the corpus bounded by deleting articles that
// aged out of the configured window.
package retention

import (
	"context"
	"time"

	"secwire/internal/logger"
	"secwire/internal/metrics"
	"secwire/internal/store"
)

type Sweeper struct {
	store  store.Store
	maxAge time.Duration
}

func NewSweeper(st store.Store, maxAge time.Duration) *Sweeper {
	return &Sweeper{store: st, maxAge: maxAge}
}

// Sweep deletes articles ingested strictly earlier than now-maxAge. An
// article exactly at the boundary survives. Deletion runs in the store's
// own transaction, so an in-flight cycle's fresh claims are never touched:
// a just-claimed hash is by definition not old.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.maxAge)

	deleted, err := s.store.DeleteArticlesBefore(ctx, cutoff)
	if err != nil {
		logger.Error("retention sweep failed", "error", err)
		metrics.Global.SetError(err.Error())
		return 0, err
	}

	metrics.Global.RecordSweep(int(deleted))
	if deleted > 0 {
		logger.Info("retention sweep complete", "deleted", deleted, "cutoff", cutoff)
	}
	return int(deleted), nil
}
