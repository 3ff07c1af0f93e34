package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "CVSIFT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "CVSIFT_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "watch.dir", typ: kString, env: "CVSIFT_WATCH_DIR",
		apply:   func(cfg *Config, v any) { cfg.Watch.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Watch.Dir },
	},
	{
		key: "watch.quiescence", typ: kString, env: "CVSIFT_WATCH_QUIESCENCE",
		apply:   func(cfg *Config, v any) { cfg.Watch.Quiescence = v.(string) },
		extract: func(cfg Config) any { return cfg.Watch.Quiescence },
	},
	{
		key: "manifest.backend", typ: kString, env: "CVSIFT_MANIFEST_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Manifest.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Manifest.Backend },
	},
	{
		key: "manifest.path", typ: kString, env: "CVSIFT_MANIFEST_PATH",
		apply:   func(cfg *Config, v any) { cfg.Manifest.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Manifest.Path },
	},
	{
		key: "queue.max_concurrency", typ: kInt, env: "CVSIFT_QUEUE_MAX_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Queue.MaxConcurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Queue.MaxConcurrency },
	},
	{
		key: "queue.max_attempts", typ: kInt, env: "CVSIFT_QUEUE_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Queue.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Queue.MaxAttempts },
	},
	{
		key: "classifier.provider", typ: kString, env: "CVSIFT_CLASSIFIER_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Classifier.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.Provider },
	},
	{
		key: "classifier.strict_mode", typ: kBool, env: "CVSIFT_CLASSIFIER_STRICT_MODE",
		apply:   func(cfg *Config, v any) { cfg.Classifier.StrictMode = v.(bool) },
		extract: func(cfg Config) any { return cfg.Classifier.StrictMode },
	},
	{
		key: "classifier.tiering_enabled", typ: kBool, env: "CVSIFT_CLASSIFIER_TIERING_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Classifier.TieringEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Classifier.TieringEnabled },
	},
	{
		key: "classifier.max_resume_chars", typ: kInt, env: "CVSIFT_CLASSIFIER_MAX_RESUME_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Classifier.MaxResumeChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Classifier.MaxResumeChars },
	},
	{
		key: "classifier.condition", typ: kString, env: "CVSIFT_CLASSIFIER_CONDITION",
		apply:   func(cfg *Config, v any) { cfg.Classifier.Condition = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.Condition },
	},
	{
		key: "ollama.base_url", typ: kString, env: "CVSIFT_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "CVSIFT_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "gemini.api_key", typ: kString, env: "CVSIFT_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.model", typ: kString, env: "CVSIFT_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "ashby.api_key", typ: kString, env: "CVSIFT_ASHBY_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Ashby.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Ashby.APIKey },
	},
	{
		key: "ashby.archive_stage_id", typ: kString, env: "CVSIFT_ASHBY_ARCHIVE_STAGE_ID",
		apply:   func(cfg *Config, v any) { cfg.Ashby.ArchiveStageID = v.(string) },
		extract: func(cfg Config) any { return cfg.Ashby.ArchiveStageID },
	},
	{
		key: "ashby.archive_reason_id", typ: kString, env: "CVSIFT_ASHBY_ARCHIVE_REASON_ID",
		apply:   func(cfg *Config, v any) { cfg.Ashby.ArchiveReasonID = v.(string) },
		extract: func(cfg Config) any { return cfg.Ashby.ArchiveReasonID },
	},
	{
		key: "log.level", typ: kString, env: "CVSIFT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
