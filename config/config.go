package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"yeastmine-load"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`
	ManifestPath       string `env:"MANIFEST_PATH" env-default:"manifest.yaml"`

	// Store backend
	StoreBackend string `env:"STORE_BACKEND" env-default:"memory" validate:"oneof=memory postgres sqlite graph kafka"`

	// PostgreSQL item store
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"yeastmine"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseAutoMigrate           bool          `env:"DB_AUTO_MIGRATE" env-default:"true"`

	// SQLite item store
	SQLitePath                string `env:"SQLITE_PATH" env-default:"yeastmine.db"`
	SQLiteMigrationFolderPath string `env:"SQLITE_MIGRATION_FOLDER_PATH" env-default:"db/sqlite"`

	// Source database for query jobs
	SourceDatabaseDriver string `env:"SOURCE_DB_DRIVER" env-default:"postgres" validate:"oneof=postgres sqlite"`
	SourceDatabaseDSN    string `env:"SOURCE_DB_DSN" env-default:""`

	// Graph database
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBDatabase string `env:"GRAPH_DB_DATABASE" env-default:""`

	// Kafka item events
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaTopic        string   `env:"KAFKA_TOPIC" env-default:"yeastmine.items"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1" validate:"oneof=-1 0 1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`

	// Redis run lock
	RunLockEnabled bool          `env:"RUN_LOCK_ENABLED" env-default:"false"`
	RunLockTTL     time.Duration `env:"RUN_LOCK_TTL" env-default:"1m"`
	RunLockWait    time.Duration `env:"RUN_LOCK_WAIT" env-default:"0s"`
	RunLockPrefix  string        `env:"RUN_LOCK_PREFIX" env-default:"yeastmine:lock:"`
	RedisHost      string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort      int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB        int           `env:"REDIS_DB" env-default:"0"`

	// S3 inputs
	S3Endpoint string `env:"S3_ENDPOINT" env-default:""`
	S3Region   string `env:"S3_REGION" env-default:"us-west-2"`

	// Tracing
	TracingEnabled  bool          `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string        `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
	TracingProtocol string        `env:"TRACING_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	TracingInsecure bool          `env:"TRACING_INSECURE" env-default:"true"`
	TracingTimeout  time.Duration `env:"TRACING_TIMEOUT" env-default:"10s"`

	// Metrics
	MetricsPushgatewayURL string `env:"METRICS_PUSHGATEWAY_URL" env-default:""`
	MetricsJob            string `env:"METRICS_JOB" env-default:"yeastmine_load"`

	// Status server
	StatusServerEnabled bool   `env:"STATUS_SERVER_ENABLED" env-default:"false"`
	StatusServerAddr    string `env:"STATUS_SERVER_ADDR" env-default:":8080"`
}

// Load reads an optional .env file, then the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DatabaseDSN is the lib/pq connection string for the Postgres item store.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}
