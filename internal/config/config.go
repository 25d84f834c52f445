// Package config provides application configuration from flags, environment
// variables, and an optional .env file.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const DefaultGlamourStyle = "dark"

const defaultBaseURL = "http://localhost:8000"

type AppConfig struct {
	BaseURL     string
	TopK        int
	Timeout     time.Duration
	HistoryPath string
	NoHistory   bool
	ExportDir   string
	LogPath     string
}

func Parse() (AppConfig, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	var cfg AppConfig
	defaultDataDir, err := dataDir()
	if err != nil {
		return cfg, err
	}

	baseURL := os.Getenv("CAMPUSIQ_API_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	flag.StringVar(&cfg.BaseURL, "api-url", baseURL, "base URL of the CampusIQ RAG API")
	flag.IntVar(&cfg.TopK, "k", 5, "number of sources to retrieve per query")
	flag.DurationVar(&cfg.Timeout, "timeout", 90*time.Second, "query request timeout")
	flag.StringVar(&cfg.HistoryPath, "history-path", filepath.Join(defaultDataDir, "history.sqlite"), "path to the query history database")
	flag.BoolVar(&cfg.NoHistory, "no-history", false, "disable the query history log")
	flag.StringVar(&cfg.ExportDir, "export-dir", "", "override transcript export directory")
	flag.StringVar(&cfg.LogPath, "log-path", filepath.Join(defaultDataDir, "campusiq-chat.log"), "path to the diagnostics log file")
	flag.Parse()

	if cfg.BaseURL == "" {
		return cfg, fmt.Errorf("api base URL must not be empty")
	}
	if cfg.TopK <= 0 {
		return cfg, fmt.Errorf("invalid -k value %d: must be positive", cfg.TopK)
	}
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("invalid -timeout value %s: must be positive", cfg.Timeout)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create log dir: %w", err)
	}
	return cfg, nil
}

func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "campusiq-chat"), nil
}
