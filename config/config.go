package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"clover"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version, 0 means latest
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	// Run migrations when serving
	DatabaseMigrateOnStart bool `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`
	// Connection pool size, 0 for the client default
	RedisPoolSize int `env:"REDIS_POOL_SIZE" env-default:"0"`
	// Dial and initial ping timeout
	RedisDialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	// Key prefix for per-order evaluation locks
	RedisLockPrefix string `env:"REDIS_LOCK_PREFIX" env-default:"clover:lock:"`
	// Dead letter stream for order events that could not be evaluated
	RedisDLQStream string `env:"REDIS_DLQ_STREAM" env-default:"clover:dlq"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Topic carrying order created/updated events
	KafkaOrdersTopic string `env:"KAFKA_ORDERS_TOPIC" env-default:"orders"`
	// Topic receiving duplicate alerts
	KafkaAlertsTopic string `env:"KAFKA_ALERTS_TOPIC" env-default:"duplicate-alerts"`
	// Consumer group for order events
	KafkaConsumerGroup string `env:"KAFKA_CONSUMER_GROUP" env-default:"clover"`
	// Handler attempts before an order event is dead-lettered
	KafkaMaxAttempts int `env:"KAFKA_MAX_ATTEMPTS" env-default:"5"`
	// Initial delay between attempts
	KafkaRetryBackoff time.Duration `env:"KAFKA_RETRY_BACKOFF" env-default:"200ms"`
	// Disable to run the API without consuming order events
	KafkaConsumerEnabled bool `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	// Producer batch size
	KafkaBatchSize int `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	// Producer batch timeout
	KafkaBatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" env-default:"10ms"`
	// Producer required acks (-1 all, 0 none, 1 leader)
	KafkaRequiredAcks int `env:"KAFKA_REQUIRED_ACKS" env-default:"-1"`
	// Producer compression (snappy, gzip, lz4, zstd, none)
	KafkaCompression string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Evaluation settings
	// Upper bound on one evaluation while it holds the order lock
	EvaluationLockTTL time.Duration `env:"EVALUATION_LOCK_TTL" env-default:"30s"`
	// Evaluate shops with no stored settings using the defaults instead of failing
	EvaluationUseDefaultSettings bool `env:"EVALUATION_USE_DEFAULT_SETTINGS" env-default:"false"`
	// Candidate count above which scoring fans out across workers
	EvaluationParallelThreshold int `env:"EVALUATION_PARALLEL_THRESHOLD" env-default:"64"`
	// Scoring workers per evaluation
	EvaluationWorkers int `env:"EVALUATION_WORKERS" env-default:"4"`

	// Tracing settings
	// Enable OTLP tracing export
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file and then the environment. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	if len(c.Brokers()) == 0 {
		problems = append(problems, "KAFKA_BROKERS is empty")
	}
	if c.KafkaOrdersTopic == "" {
		problems = append(problems, "KAFKA_ORDERS_TOPIC is empty")
	}
	if c.KafkaAlertsTopic == "" {
		problems = append(problems, "KAFKA_ALERTS_TOPIC is empty")
	}
	if c.EvaluationLockTTL <= 0 {
		problems = append(problems, "EVALUATION_LOCK_TTL must be positive")
	}
	switch c.OTLPProtocol {
	case "grpc", "http":
	default:
		problems = append(problems, fmt.Sprintf("OTLP_PROTOCOL %q must be grpc or http", c.OTLPProtocol))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Brokers splits KAFKA_BROKERS
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
