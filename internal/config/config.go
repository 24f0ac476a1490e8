package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	LocalStorage = "local"
	S3Storage    = "s3"
)

type Config struct {
	Root        string `env:"ROOT" envDefault:"./soil-data"`
	Port        int    `env:"PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL"`

	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"local"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	ImageBucket       string `env:"IMAGE_BUCKET" envDefault:"soil-images"`

	ModelType           string        `env:"MODEL_TYPE" envDefault:"static"`
	ModelDir            string        `env:"MODEL_DIR"`
	OnnxRuntimeDylib    string        `env:"ONNX_RUNTIME_DYLIB"`
	ModelInputSize      int           `env:"MODEL_INPUT_SIZE" envDefault:"224"`
	RemoteClassifierURL string        `env:"REMOTE_CLASSIFIER_URL"`
	RemoteTimeout       time.Duration `env:"REMOTE_TIMEOUT" envDefault:"30s"`
	StaticLabel         string        `env:"STATIC_LABEL" envDefault:"01-Aluvial"`

	// Empty RabbitMQURL uses the in-process queue.
	RabbitMQURL     string `env:"RABBITMQ_URL"`
	StrictReadings  bool   `env:"STRICT_READINGS" envDefault:"false"`
	HistoryDiffMode string `env:"HISTORY_DIFF_MODE" envDefault:"id"`
	MaxSessions     int    `env:"MAX_SESSIONS" envDefault:"128"`
	MaxUploadBytes  int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageBackend {
	case LocalStorage, S3Storage:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND '%s': expected local or s3", c.StorageBackend)
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.ModelInputSize <= 0 {
		return fmt.Errorf("invalid MODEL_INPUT_SIZE %d", c.ModelInputSize)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("invalid MAX_SESSIONS %d", c.MaxSessions)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid MAX_UPLOAD_BYTES %d", c.MaxUploadBytes)
	}
	return nil
}

// DatabasePath falls back to a sqlite file under Root.
func (c Config) DatabasePath() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.Root, "history.db")
}

func (c Config) StoragePath() string {
	return filepath.Join(c.Root, "storage")
}

func (c Config) ModelPath() string {
	if c.ModelDir != "" {
		return c.ModelDir
	}
	return filepath.Join(c.Root, "model")
}
