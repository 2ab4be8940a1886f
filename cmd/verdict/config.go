package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rendis/verdict/internal/plugins"
	"github.com/rendis/verdict/pkg/schema"
)

// Config holds all verdict configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr   string `json:"listen_addr"`
	BaseURL      string `json:"base_url"`
	DBPath       string `json:"db_path"`
	DecisionsDir string `json:"decisions_dir"`
	LogLevel     string `json:"log_level"`
	Concurrency  int    `json:"concurrency"`
	MaxDepth     int    `json:"max_depth"`

	// Plugins are MCP servers whose tools back custom nodes. settings.json only.
	Plugins []plugins.PluginConfig `json:"plugins,omitempty"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:  ":4100",
		DBPath:      filepath.Join(verdictDir(), "verdict.db"),
		LogLevel:    "info",
		Concurrency: 8,
		MaxDepth:    schema.DefaultMaxDepth,
	}
}

func verdictDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".verdict"
	}
	return filepath.Join(home, ".verdict")
}

func settingsPath() string {
	return filepath.Join(verdictDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("VERDICT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("VERDICT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("VERDICT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VERDICT_DECISIONS_DIR"); v != "" {
		cfg.DecisionsDir = v
	}
	if v := os.Getenv("VERDICT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VERDICT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("VERDICT_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDepth = n
		}
	}

	return cfg
}

// baseURL derives the public SSE URL from the listen address when unset.
func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "http://localhost" + c.ListenAddr
}
