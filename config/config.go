package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds every runtime knob for the framepoint service and its CLIs.
// Values come from the environment, optionally overloaded from a .env file.
type Config struct {
	Mode string `env:"FRAMEPOINT_ENV" envDefault:"production"` // production | development
	Host string `env:"FRAMEPOINT_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"FRAMEPOINT_PORT" envDefault:"8000"`

	// DatabaseURL is the Postgres DSN backing conversation checkpoints.
	// It may be empty at startup; the pool reports a configuration error on
	// first use instead, so chat without persistence still works.
	DatabaseURL     string        `env:"DATABASE_URL"`
	PoolMaxConns    int           `env:"FRAMEPOINT_POOL_MAX_CONNS" envDefault:"20"`
	PoolMaxLifetime time.Duration `env:"FRAMEPOINT_POOL_MAX_LIFETIME" envDefault:"5m"`

	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	ChatModel      string `env:"FRAMEPOINT_CHAT_MODEL" envDefault:"gpt-4o"`
	EmbeddingModel string `env:"FRAMEPOINT_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	QdrantHost       string `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantAPIKey     string `env:"QDRANT_API_KEY"`
	QdrantUseTLS     bool   `env:"QDRANT_USE_TLS" envDefault:"false"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"video-segments"`

	UploadDir  string `env:"FRAMEPOINT_UPLOAD_DIR" envDefault:"temp_uploads"`
	FFmpegPath string `env:"FRAMEPOINT_FFMPEG" envDefault:"ffmpeg"`

	// PublicBaseURL is the externally reachable base for links to hosted
	// uploads, such as the URLs in the video listing.
	PublicBaseURL string `env:"FRAMEPOINT_PUBLIC_URL" envDefault:"http://127.0.0.1:8000"`

	RetrievalK    int  `env:"FRAMEPOINT_RETRIEVAL_K" envDefault:"50"`
	RerankEnabled bool `env:"FRAMEPOINT_RERANK" envDefault:"false"`
	MaxHops       int  `env:"FRAMEPOINT_MAX_HOPS" envDefault:"4"`

	LogLevel  string `env:"FRAMEPOINT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FRAMEPOINT_LOG_FORMAT" envDefault:"TEXT"` // TEXT | JSON
}

// Load reads configuration from the process environment. If envfile is
// non-empty and exists, its values overload the environment first.
func Load(envfile string) (Config, error) {
	if envfile != "" {
		path, err := filepath.Abs(envfile)
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				if err := godotenv.Overload(path); err != nil {
					return Config{}, fmt.Errorf("load env file %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.UploadDir != "" {
		abs, err := filepath.Abs(cfg.UploadDir)
		if err == nil {
			cfg.UploadDir = abs
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the service cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("config: port must be in 1..65535")
	}
	if c.PoolMaxConns <= 0 {
		return errors.New("config: pool max conns must be > 0")
	}
	if c.PoolMaxLifetime <= 0 {
		return errors.New("config: pool max lifetime must be > 0")
	}
	if c.RetrievalK <= 0 {
		return errors.New("config: retrieval k must be > 0")
	}
	if c.MaxHops <= 0 {
		return errors.New("config: max hops must be > 0")
	}
	if c.QdrantPort <= 0 || c.QdrantPort > 65535 {
		return errors.New("config: qdrant port must be in 1..65535")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ApplyLogging configures the process-wide logger from the config.
func (c Config) ApplyLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.LogFormat == "JSON" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
