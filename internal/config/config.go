// Package config loads service configuration from an optional TOML file
// with environment variable overrides. API keys come from the environment
// only and never leave the server.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Port              int `toml:"port"`
		ReadTimeoutSec    int `toml:"read_timeout_sec"`
		WriteTimeoutSec   int `toml:"write_timeout_sec"`
		RequestTimeoutSec int `toml:"request_timeout_sec"`
	} `toml:"server"`

	Paper struct {
		InitialBalance float64 `toml:"initial_balance"`
	} `toml:"paper"`

	Storage struct {
		DatabaseURL string `toml:"database_url"`
		RedisURL    string `toml:"redis_url"`
		SQLitePath  string `toml:"sqlite_path"`
		CacheTTLSec int    `toml:"cache_ttl_sec"`
	} `toml:"storage"`

	MarketData struct {
		StocksBaseURL  string   `toml:"stocks_base_url"`
		CryptoBaseURL  string   `toml:"crypto_base_url"`
		CryptoAPIKey   string   `toml:"-"` // env only
		TimeoutSec     int      `toml:"timeout_sec"`
		PopularSymbols []string `toml:"popular_symbols"`
	} `toml:"marketdata"`

	Analysis struct {
		OpenAIBaseURL string `toml:"openai_base_url"`
		OpenAIAPIKey  string `toml:"-"` // env only
		Model         string `toml:"model"`
	} `toml:"analysis"`

	News struct {
		RSSBaseURL string `toml:"rss_base_url"`
	} `toml:"news"`
}

// Load reads the TOML file at path (skipped if path is empty or missing),
// applies defaults, environment overrides, and validation.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		cfg.Server.ReadTimeoutSec = 10
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		cfg.Server.WriteTimeoutSec = 10
	}
	if cfg.Server.RequestTimeoutSec <= 0 {
		cfg.Server.RequestTimeoutSec = 30
	}
	if cfg.Paper.InitialBalance <= 0 {
		cfg.Paper.InitialBalance = 100000
	}
	if cfg.Storage.CacheTTLSec <= 0 {
		cfg.Storage.CacheTTLSec = 30
	}
	if cfg.MarketData.StocksBaseURL == "" {
		cfg.MarketData.StocksBaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.MarketData.CryptoBaseURL == "" {
		cfg.MarketData.CryptoBaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.MarketData.TimeoutSec <= 0 {
		cfg.MarketData.TimeoutSec = 10
	}
	if len(cfg.MarketData.PopularSymbols) == 0 {
		cfg.MarketData.PopularSymbols = []string{
			"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "META", "NVDA", "NFLX",
		}
	}
	if cfg.Analysis.OpenAIBaseURL == "" {
		cfg.Analysis.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.Analysis.Model == "" {
		cfg.Analysis.Model = "gpt-3.5-turbo"
	}
	if cfg.News.RSSBaseURL == "" {
		cfg.News.RSSBaseURL = "https://news.google.com/rss"
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	cfg.Analysis.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.MarketData.CryptoAPIKey = os.Getenv("COINGECKO_API_KEY")
}

func validate(cfg *Config) error {
	cfg.MarketData.PopularSymbols = normalizeSymbols(cfg.MarketData.PopularSymbols)
	if len(cfg.MarketData.PopularSymbols) == 0 {
		return errors.New("marketdata.popular_symbols is empty")
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
