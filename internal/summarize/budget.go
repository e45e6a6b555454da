package summarize

import (
	"context"
	"strings"
	"sync"
	"time"

	"secwire/internal/logger"
)

// Budget caps summarizer calls per day. A spent budget fails the call
// before any network traffic; the pipeline degrades to null summaries.
type Budget struct {
	mu        sync.Mutex
	count     int
	max       int // 0 = unlimited
	resetTime time.Time
}

func NewBudget(maxPerDay int) *Budget {
	return &Budget{
		max:       maxPerDay,
		resetTime: time.Now().Add(24 * time.Hour),
	}
}

// Take consumes one call from the budget or reports exhaustion.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if time.Now().After(b.resetTime) {
		logger.Debug("summarizer budget reset", "used", b.count, "max", b.max)
		b.count = 0
		b.resetTime = time.Now().Add(24 * time.Hour)
	}

	if b.max > 0 && b.count >= b.max {
		return ErrBudgetExhausted
	}

	b.count++
	return nil
}

// Used reports calls consumed in the current window.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// budgeted decorates a backend with the call budget and the shared input
// check, so every backend behaves identically at the edges.
type budgeted struct {
	inner  Summarizer
	budget *Budget
}

func withBudget(inner Summarizer, budget *Budget) Summarizer {
	return &budgeted{inner: inner, budget: budget}
}

func (b *budgeted) Name() string { return b.inner.Name() }

func (b *budgeted) Summarize(ctx context.Context, title, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	if err := b.budget.Take(); err != nil {
		return "", err
	}
	return b.inner.Summarize(ctx, title, text)
}
