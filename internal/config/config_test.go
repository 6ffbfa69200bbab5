package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Extraction.ChunkTokens != 512 || cfg.Extraction.OverlapTokens != 128 {
		t.Errorf("chunking defaults = %d/%d", cfg.Extraction.ChunkTokens, cfg.Extraction.OverlapTokens)
	}
	if cfg.Ask.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Ask.TopK)
	}
	if cfg.Database.Path == "" {
		t.Error("default database path empty")
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quarry.toml")
	toml := `
[llm]
model = "my-model"
api_key = "sk-file"

[extraction]
chunk_tokens = 256
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.LLM.Model != "my-model" || cfg.LLM.APIKey != "sk-file" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Extraction.ChunkTokens != 256 {
		t.Errorf("ChunkTokens = %d, want 256", cfg.Extraction.ChunkTokens)
	}
	// Untouched fields keep defaults.
	if cfg.Extraction.OverlapTokens != 128 {
		t.Errorf("OverlapTokens = %d, want default 128", cfg.Extraction.OverlapTokens)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quarry.toml")
	if err := os.WriteFile(path, []byte("[llm]\napi_key = \"sk-file\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUARRY_LLM_API_KEY", "sk-env")

	cfg := Load(path)
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want env value", cfg.LLM.APIKey)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.LLM.Model == "" {
		t.Error("defaults not applied for missing file")
	}
}
