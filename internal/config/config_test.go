package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/secwire_test")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.FetchInterval != 30*time.Minute {
		t.Errorf("FetchInterval = %v", cfg.FetchInterval)
	}
	if cfg.RetentionWindow != 72*time.Hour {
		t.Errorf("RetentionWindow = %v", cfg.RetentionWindow)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d", cfg.Concurrency)
	}
	if cfg.LLMProvider != "ollama" {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.CycleDeadline != 0 {
		t.Errorf("CycleDeadline = %v, want disabled by default", cfg.CycleDeadline)
	}
	if cfg.EnableMonitoring {
		t.Error("monitoring enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/secwire_test")
	t.Setenv("FETCH_INTERVAL_MINUTES", "10")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("CONCURRENCY", "2")
	t.Setenv("CYCLE_DEADLINE_MINUTES", "25")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ENABLE_HTTP_MONITORING", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.FetchInterval != 10*time.Minute {
		t.Errorf("FetchInterval = %v", cfg.FetchInterval)
	}
	if cfg.RetentionWindow != 7*24*time.Hour {
		t.Errorf("RetentionWindow = %v", cfg.RetentionWindow)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("Concurrency = %d", cfg.Concurrency)
	}
	if cfg.CycleDeadline != 25*time.Minute {
		t.Errorf("CycleDeadline = %v", cfg.CycleDeadline)
	}
	if !cfg.EnableMonitoring {
		t.Error("ENABLE_HTTP_MONITORING not honored")
	}
}

func TestValidate(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		if _, err := Load(); err == nil {
			t.Fatal("missing DATABASE_URL accepted")
		}
	})

	t.Run("openai requires key", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/x")
		t.Setenv("LLM_PROVIDER", "openai")
		t.Setenv("OPENAI_API_KEY", "")
		if _, err := Load(); err == nil {
			t.Fatal("openai without key accepted")
		}
	})

	t.Run("gemini requires key", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/x")
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "")
		if _, err := Load(); err == nil {
			t.Fatal("gemini without key accepted")
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/x")
		t.Setenv("LLM_PROVIDER", "bedrock")
		if _, err := Load(); err == nil {
			t.Fatal("unknown provider accepted")
		}
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/x")
		t.Setenv("LLM_PROVIDER", "ollama")
		if _, err := Load(); err != nil {
			t.Fatalf("ollama rejected: %v", err)
		}
	})
}
