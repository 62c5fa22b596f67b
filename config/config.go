package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDurationHours      = 3.0
	DefaultMaxParallelLessons = 4
	DefaultHoursPerWeek       = 3.0
	DefaultDatabaseDSN        = "course_history.db"
	DefaultOutputDir          = "output"
	DefaultServerAddr         = ":8080"
	GeminiOpenAIBaseURL       = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// Config is the on-disk configuration of the generator service.
type Config struct {
	LLM        *LLMConfig     `json:"llm,omitempty" yaml:"llm,omitempty"`
	ServerAddr string         `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	OutputDir  string         `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Database   DatabaseConfig `json:"database" yaml:"database"`
	Pipeline   PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Log        LogConfig      `json:"log" yaml:"log"`
}

// LLMConfig selects the chat model provider.
type LLMConfig struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// DatabaseConfig points the conversation store at sqlite (a file path) or postgres (a DSN).
type DatabaseConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

type PipelineConfig struct {
	MaxParallelLessons   int     `json:"max_parallel_lessons,omitempty" yaml:"max_parallel_lessons,omitempty"`
	DefaultDurationHours float64 `json:"default_duration_hours,omitempty" yaml:"default_duration_hours,omitempty"`
	HoursPerWeek         float64 `json:"hours_per_week,omitempty" yaml:"hours_per_week,omitempty"`
	// Transliterate folds text to ASCII before PDF layout. Nil means enabled.
	Transliterate *bool `json:"transliterate,omitempty" yaml:"transliterate,omitempty"`
	FullOutline   bool  `json:"full_outline,omitempty" yaml:"full_outline,omitempty"`
}

type LogConfig struct {
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// TransliterateEnabled reports whether ASCII folding is on.
func (p PipelineConfig) TransliterateEnabled() bool {
	return p.Transliterate == nil || *p.Transliterate
}

// Load reads JSON or YAML config from disk, applies env overrides and defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. API_KEY is honored as a fallback for LLM_API_KEY.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if v := firstNonEmpty(getenv("LLM_API_KEY"), getenv("API_KEY")); v != "" {
		c.LLM.APIKey = v
	}
	if v := getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("SERVER_ADDR"); v != "" {
		c.ServerAddr = v
	}
}

func (c *Config) ApplyDefaults() {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if c.LLM.Provider == "gemini" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = GeminiOpenAIBaseURL
	}
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = DefaultDatabaseDSN
	}
	if c.Pipeline.MaxParallelLessons <= 0 {
		c.Pipeline.MaxParallelLessons = DefaultMaxParallelLessons
	}
	if c.Pipeline.DefaultDurationHours <= 0 {
		c.Pipeline.DefaultDurationHours = DefaultDurationHours
	}
	if c.Pipeline.HoursPerWeek <= 0 {
		c.Pipeline.HoursPerWeek = DefaultHoursPerWeek
	}
}

func (c Config) Validate() error {
	if c.LLM == nil || c.LLM.Provider == "" {
		return errors.New("llm config missing; please set llm.provider/model/api_key in config")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database driver %q not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
