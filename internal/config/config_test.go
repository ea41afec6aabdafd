package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	// Set required env vars for all subtests
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL":   "postgres://localhost/test",
		"OPENAI_API_KEY": "sk-test",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.WhisperModel != "whisper-1" {
			t.Errorf("WhisperModel = %q, want whisper-1", cfg.WhisperModel)
		}
		if cfg.MinConfidence != 0.6 {
			t.Errorf("MinConfidence = %v, want 0.6", cfg.MinConfidence)
		}
		if cfg.DefaultTranslation != "NIV" {
			t.Errorf("DefaultTranslation = %q, want NIV", cfg.DefaultTranslation)
		}
		if cfg.MaxQueueSize != 10 {
			t.Errorf("MaxQueueSize = %d, want 10", cfg.MaxQueueSize)
		}
		if cfg.MaxChunkMs != 3600000 {
			t.Errorf("MaxChunkMs = %d, want 3600000", cfg.MaxChunkMs)
		}
		if cfg.MQTTClientID != "verse-catch" {
			t.Errorf("MQTTClientID = %q, want verse-catch", cfg.MQTTClientID)
		}
	})

	t.Run("detect_key_falls_back_to_openai_key", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.DetectAPIKey != "sk-test" {
			t.Errorf("DetectAPIKey = %q, want sk-test", cfg.DetectAPIKey)
		}
	})

	t.Run("temp_dir_defaults_to_os_temp", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.TempDir != os.TempDir() {
			t.Errorf("TempDir = %q, want %q", cfg.TempDir, os.TempDir())
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:     "nonexistent.env",
			HTTPAddr:    ":9090",
			LogLevel:    "debug",
			DatabaseURL: "postgres://override/db",
			WatchDir:    "/tmp/drop",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.DatabaseURL != "postgres://override/db" {
			t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
		}
		if cfg.WatchDir != "/tmp/drop" {
			t.Errorf("WatchDir = %q, want /tmp/drop", cfg.WatchDir)
		}
	})

	t.Run("missing_required_fails", func(t *testing.T) {
		old := os.Getenv("DATABASE_URL")
		os.Unsetenv("DATABASE_URL")
		defer os.Setenv("DATABASE_URL", old)

		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Error("Load should fail without DATABASE_URL")
		}
	})
}

func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	old := make(map[string]string, len(envs))
	for k, v := range envs {
		old[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
	return func() {
		for k, v := range old {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}
}
