package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJSONAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"llm":{"provider":"openai","model":"gpt-4o-mini","api_key":"k"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("API_KEY", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.DefaultDurationHours != DefaultDurationHours {
		t.Fatalf("default duration = %v", cfg.Pipeline.DefaultDurationHours)
	}
	if cfg.Pipeline.MaxParallelLessons != DefaultMaxParallelLessons {
		t.Fatalf("max parallel = %d", cfg.Pipeline.MaxParallelLessons)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != DefaultDatabaseDSN {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if !cfg.Pipeline.TransliterateEnabled() {
		t.Fatalf("transliteration should default to on")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
llm:
  provider: gemini
  model: gemini-1.5-flash
pipeline:
  default_duration_hours: 4.5
  transliterate: false
log:
  mode: prod
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Fatalf("API_KEY fallback not applied: %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != GeminiOpenAIBaseURL {
		t.Fatalf("gemini base url = %q", cfg.LLM.BaseURL)
	}
	if cfg.Pipeline.DefaultDurationHours != 4.5 {
		t.Fatalf("duration = %v", cfg.Pipeline.DefaultDurationHours)
	}
	if cfg.Pipeline.TransliterateEnabled() {
		t.Fatalf("transliteration should be off")
	}
	if cfg.Log.Mode != "prod" {
		t.Fatalf("log mode = %q", cfg.Log.Mode)
	}
}

func TestValidateRejectsMissingProvider(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing provider")
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Config{LLM: &LLMConfig{Provider: "mock"}, Database: DatabaseConfig{Driver: "mysql", DSN: "x"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for mysql driver")
	}
}
