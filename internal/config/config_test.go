package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Paper.InitialBalance != 100000 {
		t.Errorf("expected default initial balance 100000, got %v", cfg.Paper.InitialBalance)
	}
	if len(cfg.MarketData.PopularSymbols) == 0 {
		t.Error("expected default popular symbols")
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = 9999

[paper]
initial_balance = 50000.0

[marketdata]
popular_symbols = ["aapl", " tsla ", "AAPL", ""]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Paper.InitialBalance != 50000 {
		t.Errorf("expected initial balance 50000, got %v", cfg.Paper.InitialBalance)
	}
	// Normalized: upper-cased, trimmed, de-duplicated, empties dropped.
	want := []string{"AAPL", "TSLA"}
	if len(cfg.MarketData.PopularSymbols) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.MarketData.PopularSymbols)
	}
	for i, s := range want {
		if cfg.MarketData.PopularSymbols[i] != s {
			t.Errorf("expected %v, got %v", want, cfg.MarketData.PopularSymbols)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SQLITE_PATH", "/tmp/paper.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected env port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Analysis.OpenAIAPIKey != "sk-test" {
		t.Error("expected OPENAI_API_KEY to be picked up from env")
	}
	if cfg.Storage.SQLitePath != "/tmp/paper.db" {
		t.Error("expected SQLITE_PATH to be picked up from env")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected defaults, got port %d", cfg.Server.Port)
	}
}
