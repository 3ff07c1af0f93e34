// Package config loads cvsift settings from defaults, a JSON config file,
// and CVSIFT_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server     ServerConfig
	Watch      WatchConfig
	Manifest   ManifestConfig
	Queue      QueueConfig
	Classifier ClassifierConfig
	Ollama     OllamaConfig
	Gemini     GeminiConfig
	Ashby      AshbyConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type WatchConfig struct {
	Dir string
	// Quiescence is how long a file must stay unchanged before it is
	// treated as fully written, e.g. "1s".
	Quiescence string
}

type ManifestConfig struct {
	// Backend is "file" (CSV) or "sqlite".
	Backend string
	Path    string
}

type QueueConfig struct {
	MaxConcurrency int
	MaxAttempts    int
}

type ClassifierConfig struct {
	// Provider is "ollama" or "gemini".
	Provider       string
	StrictMode     bool
	TieringEnabled bool
	MaxResumeChars int
	Condition      string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AshbyConfig struct {
	APIKey          string
	ArchiveStageID  string
	ArchiveReasonID string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Watch: WatchConfig{
			Dir:        filepath.Join(dataDir, "inbox"),
			Quiescence: "1s",
		},
		Manifest: ManifestConfig{
			Backend: "file",
			Path:    filepath.Join(dataDir, "manifest.csv"),
		},
		Queue: QueueConfig{
			MaxConcurrency: 3,
			MaxAttempts:    3,
		},
		Classifier: ClassifierConfig{
			Provider:       "ollama",
			TieringEnabled: true,
			MaxResumeChars: 12000,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "mistral-nemo",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/cvsift/config.json with CVSIFT_* environment variables
// overriding file values. Secrets (API keys, the server token) are
// environment-only.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Server.Token == "" {
		return Config{}, fmt.Errorf("missing required config: API token; set it via environment variable CVSIFT_SERVER_TOKEN")
	}
	if cfg.Classifier.Provider == "gemini" && cfg.Gemini.APIKey == "" {
		return Config{}, fmt.Errorf("classifier provider is gemini but CVSIFT_GEMINI_API_KEY is not set")
	}

	if _, err := time.ParseDuration(cfg.Watch.Quiescence); err != nil {
		return Config{}, fmt.Errorf("invalid watch.quiescence %q: %w", cfg.Watch.Quiescence, err)
	}
	switch cfg.Manifest.Backend {
	case "file", "sqlite":
	default:
		return Config{}, fmt.Errorf("unknown manifest.backend %q (want file or sqlite)", cfg.Manifest.Backend)
	}

	return cfg, nil
}

// QuiescenceDuration returns the parsed watch quiescence window.
func (c Config) QuiescenceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Quiescence)
	if err != nil {
		return time.Second
	}
	return d
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "cvsift-data"
		}
	}
	return filepath.Join(dir, "cvsift")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "cvsift", "config.json")
}
