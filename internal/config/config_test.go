package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider != ProviderOpenAI {
		t.Errorf("Provider: got %q, want %q", cfg.Provider, ProviderOpenAI)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers: got %d, want 3", cfg.Workers)
	}
	if cfg.Retrieval.RRFConstant != 60 {
		t.Errorf("RRFConstant: got %d, want 60", cfg.Retrieval.RRFConstant)
	}
	if cfg.Retrieval.K != 50 {
		t.Errorf("Retrieval.K: got %d, want 50", cfg.Retrieval.K)
	}
	if cfg.Retrieval.LexicalWeight != cfg.Retrieval.VectorWeight {
		t.Errorf("default backend weights should be equal, got %v and %v",
			cfg.Retrieval.LexicalWeight, cfg.Retrieval.VectorWeight)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8420 {
		t.Errorf("Port: got %d, want default 8420", cfg.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".clausewise.yml")
	content := `provider: ollama
model: llama3
workers: 5
retrieval:
  rrf_constant: 30
  k: 25
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("Provider: got %q, want ollama", cfg.Provider)
	}
	if cfg.Workers != 5 {
		t.Errorf("Workers: got %d, want 5", cfg.Workers)
	}
	if cfg.Retrieval.RRFConstant != 30 {
		t.Errorf("RRFConstant: got %d, want 30", cfg.Retrieval.RRFConstant)
	}
	// Untouched fields keep defaults.
	if cfg.Answer.MaxContextChunks != 12 {
		t.Errorf("MaxContextChunks: got %d, want default 12", cfg.Answer.MaxContextChunks)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLAUSEWISE_PORT", "9001")
	t.Setenv("CLAUSEWISE_PROVIDER", "ollama")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9001 {
		t.Errorf("Port: got %d, want env override 9001", cfg.Port)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("Provider: got %q, want env override ollama", cfg.Provider)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing provider", func(c *Config) { c.Provider = "" }, true},
		{"unknown provider", func(c *Config) { c.Provider = "duckdb" }, true},
		{"missing model", func(c *Config) { c.Model = "" }, true},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"zero rrf constant", func(c *Config) { c.Retrieval.RRFConstant = 0 }, true},
		{"negative weight", func(c *Config) { c.Retrieval.LexicalWeight = -0.5 }, true},
		{"threshold above one", func(c *Config) { c.Competency.DefaultThreshold = 1.5 }, true},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }, true},
		{"s3 with bucket", func(c *Config) {
			c.Storage.Backend = "s3"
			c.Storage.S3Bucket = "contracts"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate: got err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yml")

	cfg := DefaultConfig()
	cfg.Workers = 7
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Workers != 7 {
		t.Errorf("Workers after round trip: got %d, want 7", loaded.Workers)
	}
}
