package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full server configuration, loaded from environment
// variables plus file-based secrets.
type Config struct {
	// Server settings
	Port     string `envconfig:"ARENA_SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PostgreSQL settings
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Secret field WITHOUT an envconfig tag, loaded from /run/secrets.
	DBPassword string

	// Redis settings (latest-turn snapshot cache)
	RedisAddr        string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	SnapshotCacheTTL time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"1h"`

	// RabbitMQ settings
	RabbitMQURL            string `envconfig:"RABBITMQ_URL" required:"true"`
	ClientUpdatesQueueName string `envconfig:"CLIENT_UPDATES_QUEUE_NAME" default:"client_updates"`

	// AI settings (arbiter and agents share one client)
	AIClientType     string        `envconfig:"AI_CLIENT_TYPE" default:"openai"` // openai, ollama, mock
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:""`
	AIModel          string        `envconfig:"AI_MODEL" default:"gpt-4.1-nano"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"2s"`
	// Secret field WITHOUT an envconfig tag; only required for the openai
	// client type.
	AIAPIKey string

	// Game rule defaults, overridable per game at creation time
	WorldSize            int `envconfig:"GAME_WORLD_SIZE" default:"2"`
	CurrencyTarget       int `envconfig:"GAME_CURRENCY_TARGET" default:"1000"`
	MaxTurns             int `envconfig:"GAME_MAX_TURNS" default:"10"`
	NumResponses         int `envconfig:"GAME_NUM_RESPONSES" default:"1"`
	NumNegotiationRounds int `envconfig:"GAME_NEGOTIATION_ROUNDS" default:"0"`
	PlayerVision         int `envconfig:"GAME_PLAYER_VISION" default:"1"`
	StartingHealth       int `envconfig:"GAME_STARTING_HEALTH" default:"100"`
	StartingWealth       int `envconfig:"GAME_STARTING_WEALTH" default:"0"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load arena-server configuration: %w", err)
	}

	var loadErr error
	cfg.DBPassword, loadErr = ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	if cfg.AIClientType == "openai" {
		cfg.AIAPIKey, loadErr = ReadSecret("openai_api_key")
		if loadErr != nil {
			return nil, loadErr
		}
	}

	log.Printf("Arena server configuration loaded (secrets from files):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %s (db %d, snapshot TTL %v)", cfg.RedisAddr, cfg.RedisDB, cfg.SnapshotCacheTTL)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Client Updates Queue Name: %s", cfg.ClientUpdatesQueueName)
	log.Printf("  AI Client: %s (model %s, timeout %v)", cfg.AIClientType, cfg.AIModel, cfg.AITimeout)
	log.Printf("  Game defaults: world=%d target=%d turns=%d vision=%d", cfg.WorldSize, cfg.CurrencyTarget, cfg.MaxTurns, cfg.PlayerVision)

	return &cfg, nil
}
