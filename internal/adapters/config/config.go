package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"minerva/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Pipeline      PipelineConfig
	MarketData    MarketDataConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"minerva"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Host            string        `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"minerva"`
}

// PipelineConfig defines which agents must report a terminal result before a
// batch can be aggregated. The set is closed at deploy time; it is never
// extended at runtime.
type PipelineConfig struct {
	RequiredAgents []string      `envconfig:"PIPELINE_REQUIRED_AGENTS" default:"market_data,patent,backtest,annual_statement"`
	LockTTL        time.Duration `envconfig:"PIPELINE_AGGREGATION_LOCK_TTL" default:"30s"`
	ViewCacheTTL   time.Duration `envconfig:"PIPELINE_VIEW_CACHE_TTL" default:"10m"`
}

type MarketDataConfig struct {
	BaseURL        string        `envconfig:"MARKET_DATA_BASE_URL" default:"http://localhost:8000"`
	Timeout        time.Duration `envconfig:"MARKET_DATA_TIMEOUT" default:"30s"`
	RequestsPerSec float64       `envconfig:"MARKET_DATA_REQUESTS_PER_SEC" default:"5"`
	MaxTickers     int           `envconfig:"MARKET_DATA_MAX_TICKERS" default:"50"`
	LookbackDays   int           `envconfig:"MARKET_DATA_LOOKBACK_DAYS" default:"365"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	// Aggregation sweep re-checks non-terminal batches in case a Kafka
	// trigger was lost
	SweeperInterval time.Duration `envconfig:"WORKER_SWEEPER_INTERVAL" default:"1m"`
	SweeperEnabled  bool          `envconfig:"WORKER_SWEEPER_ENABLED" default:"true"`

	// Reaper force-fails batches that stay non-terminal past the deadline
	ReaperInterval time.Duration `envconfig:"WORKER_REAPER_INTERVAL" default:"10m"`
	ReaperDeadline time.Duration `envconfig:"WORKER_BATCH_REAPER_DEADLINE" default:"6h"`
	ReaperEnabled  bool          `envconfig:"WORKER_REAPER_ENABLED" default:"true"`

	// Market data agent picks up batches missing a market_data result
	MarketDataInterval time.Duration `envconfig:"WORKER_MARKET_DATA_INTERVAL" default:"30s"`
	MarketDataEnabled  bool          `envconfig:"WORKER_MARKET_DATA_ENABLED" default:"true"`
}

// Load reads configuration from environment variables.
// It first tries to load a .env file (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if len(cfg.Pipeline.RequiredAgents) == 0 {
		// An empty required set would let every batch complete as a no-op.
		return nil, errors.Wrap(errors.ErrConfiguration, "PIPELINE_REQUIRED_AGENTS must not be empty")
	}

	return &cfg, nil
}
