package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Speech-to-text vendor (OpenAI-compatible).
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY,required"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	WhisperModel   string        `env:"WHISPER_MODEL" envDefault:"whisper-1"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"60s"`

	// Generative-language vendor for verse detection. Falls back to the
	// transcription key/endpoint when unset.
	DetectAPIKey  string        `env:"DETECT_API_KEY"`
	DetectBaseURL string        `env:"DETECT_BASE_URL"`
	DetectModel   string        `env:"DETECT_MODEL" envDefault:"gemini-2.0-flash"`
	DetectTimeout time.Duration `env:"DETECT_TIMEOUT" envDefault:"30s"`

	MinConfidence      float64 `env:"MIN_CONFIDENCE" envDefault:"0.6"`
	DefaultTranslation string  `env:"DEFAULT_TRANSLATION" envDefault:"NIV"`
	PromptFile         string  `env:"PROMPT_FILE"`

	// Pipeline limits.
	MaxQueueSize   int           `env:"MAX_QUEUE_SIZE" envDefault:"10"`
	MaxChunkMs     int64         `env:"MAX_CHUNK_DURATION_MS" envDefault:"3600000"`
	MaxAccumBuffer int           `env:"MAX_ACCUM_BUFFER" envDefault:"8192"`
	TempDir        string        `env:"TEMP_DIR"`
	RetryDelay     time.Duration `env:"TRANSCRIBE_RETRY_DELAY" envDefault:"1s"`

	// Watch-folder ingest (optional).
	WatchDir string `env:"WATCH_DIR"`

	// MQTT fan-out (optional; disabled when broker URL is empty).
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"verse-catch"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"versecatch/verses"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	// Local chunk archive (optional; disabled when empty).
	ArchiveDir string `env:"ARCHIVE_DIR"`

	// S3 chunk archive (optional; disabled when bucket is empty; wins over
	// ARCHIVE_DIR when both are set).
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Prefix    string `env:"S3_PREFIX" envDefault:"chunks"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	WatchDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.DetectAPIKey == "" {
		cfg.DetectAPIKey = cfg.OpenAIAPIKey
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}

	return cfg, nil
}
