package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Drafts   DraftsConfig
	Log      LogConfig
	App      AppConfig
}

type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:4321,http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"casegen"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"DB_MAX_CONNECTIONS" default:"25"`
}

type RedisConfig struct {
	// Addr empty disables Redis; drafts then go to DRAFT_STORE.
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type AIConfig struct {
	APIKey            string        `envconfig:"AI_API_KEY"`
	BaseURL           string        `envconfig:"AI_BASE_URL"`
	Model             string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Temperature       float32       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	MaxTokens         int           `envconfig:"AI_MAX_TOKENS" default:"2000"`
	Timeout           time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	RequestsPerMinute int           `envconfig:"AI_REQUESTS_PER_MINUTE" default:"60"`
}

type DraftsConfig struct {
	// Store is one of memory, file, redis or postgres.
	Store         string        `envconfig:"DRAFT_STORE" default:"postgres"`
	Dir           string        `envconfig:"DRAFT_DIR" default:".drafts"`
	TTL           time.Duration `envconfig:"DRAFT_TTL" default:"168h"`
	SaveDelay     time.Duration `envconfig:"DRAFT_SAVE_DELAY" default:"500ms"`
	SweepSchedule string        `envconfig:"DRAFT_SWEEP_SCHEDULE" default:"0 0 3 * * *"`
}

type LogConfig struct {
	Level    string `envconfig:"LOG_LEVEL" default:"info"`
	Encoding string `envconfig:"LOG_ENCODING" default:"json"`
}

type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"casegen-backend"`
}

var draftStores = map[string]bool{"memory": true, "file": true, "redis": true, "postgres": true}

func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read loads the configuration without validating it. Worker commands that
// never call the model use it directly.
func Read() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.AI.APIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}

	if !draftStores[c.Drafts.Store] {
		return fmt.Errorf("DRAFT_STORE must be one of memory, file, redis, postgres; got %q", c.Drafts.Store)
	}

	if c.Drafts.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when DRAFT_STORE=redis")
	}

	return nil
}
