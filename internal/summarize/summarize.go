// Package summarize produces a short machine-generated summary of an
// article through one of several interchangeable language-model backends.
// Exactly one backend is active per deployment; the orchestrator never
// knows which.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"secwire/internal/config"
)

var (
	// ErrEmptyInput is returned before any backend call when there is
	// nothing to summarize.
	ErrEmptyInput = errors.New("empty summarization input")

	// ErrBudgetExhausted is returned when the daily call budget is spent.
	ErrBudgetExhausted = errors.New("summarizer call budget exhausted")
)

// MarketingToken is the backend's escape hatch: a reply of exactly this
// token marks the article as marketing content to hide, not to summarize.
const MarketingToken = "MARKETING_ONLY"

// Summarizer is the single capability the pipeline depends on.
type Summarizer interface {
	// Summarize returns a 50-60 word plain-text summary of the article,
	// or MarketingToken, or an error. One attempt; no internal retries.
	Summarize(ctx context.Context, title, text string) (string, error)
	Name() string
}

// New selects the configured backend and wraps it with the call budget.
func New(cfg *config.Config) (Summarizer, error) {
	var backend Summarizer
	switch cfg.LLMProvider {
	case "ollama":
		backend = NewOllama(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.LLMTimeout)
	case "openai":
		backend = NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIAPIKey, cfg.LLMTimeout)
	case "gemini":
		g, err := NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		backend = g
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}

	return withBudget(backend, NewBudget(cfg.MaxLLMRequestsPerDay)), nil
}

// maxPromptRunes bounds prompt size; long tails add cost, not signal.
const maxPromptRunes = 2000

// shortInputWords marks inputs that are effectively just a headline.
const shortInputWords = 30

func buildPrompt(title, text string) string {
	text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	if utf8.RuneCountInString(text) > maxPromptRunes {
		runes := []rune(text)
		text = string(runes[:maxPromptRunes])
	}

	if len(strings.Fields(text)) < shortInputWords {
		return fmt.Sprintf(
			"You are a cybersecurity analyst.\n"+
				"If this is a product announcement, vendor feature, or marketing content "+
				"with no real threat or vulnerability, reply with exactly: %s\n"+
				"Otherwise write a summary of 50 to 60 words: what happened, what threat or "+
				"vulnerability is involved, who is affected, and why it matters. "+
				"Plain English, no bullets, no headers.\n\n"+
				"Title: %s\n%s\n\nSummary:",
			MarketingToken, title, text)
	}

	return fmt.Sprintf(
		"You are a cybersecurity analyst.\n\n"+
			"FIRST: If this article is a product announcement, vendor feature launch, "+
			"platform pitch, or marketing copy, with no actual threat, attack, or "+
			"vulnerability, reply with exactly: %s\n\n"+
			"OTHERWISE: Write a summary of 50 to 60 words covering the threat, attack "+
			"technique, vulnerability, breach, or malware. Keep researcher or org "+
			"attributions. Do NOT mention products, pricing, features, or calls to "+
			"action. Plain English, no bullets.\n\n"+
			"Title: %s\n\nArticle: %s\n\nSummary:",
		MarketingToken, title, text)
}

// validateReply rejects empty or garbled backend output. A clean
// MarketingToken reply passes through for the pipeline to act on.
func validateReply(reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(strings.ToUpper(reply), MarketingToken) {
		return MarketingToken, nil
	}
	if utf8.RuneCountInString(reply) < 10 {
		return "", fmt.Errorf("backend returned empty or too-short reply (%d chars)", len(reply))
	}
	return reply, nil
}
