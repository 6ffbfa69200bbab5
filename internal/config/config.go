// Package config loads the quarry CLI configuration from TOML and
// environment variables.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM        LLMConfig        `toml:"llm"`
	Database   DatabaseConfig   `toml:"database"`
	Extraction ExtractionConfig `toml:"extraction"`
	Ask        AskConfig        `toml:"ask"`
	Observer   ObserverConfig   `toml:"observer"`
}

type LLMConfig struct {
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file; PostgresURL, when set, takes
	// precedence and switches the store to PostgreSQL.
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type ExtractionConfig struct {
	ChunkTokens   int  `toml:"chunk_tokens"`
	OverlapTokens int  `toml:"overlap_tokens"`
	TitleWindow   int  `toml:"title_window"`
	QuestionCount int  `toml:"question_count"`
	Workers       int  `toml:"workers"`
	Summaries     bool `toml:"summaries"`
	Keywords      bool `toml:"keywords"`
}

type AskConfig struct {
	TopK    int `toml:"top_k"`
	Workers int `toml:"workers"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
		},
		Database: DatabaseConfig{Path: "quarry.db"},
		Extraction: ExtractionConfig{
			ChunkTokens:   512,
			OverlapTokens: 128,
			TitleWindow:   5,
			QuestionCount: 5,
			Workers:       4,
		},
		Ask: AskConfig{TopK: 5, Workers: 4},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "quarry.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("QUARRY_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("QUARRY_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("QUARRY_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("QUARRY_POSTGRES_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if os.Getenv("QUARRY_OBSERVER_ENABLED") == "true" || os.Getenv("QUARRY_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
