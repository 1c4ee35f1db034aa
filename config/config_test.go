package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Minute, cfg.RunLockTTL)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/load.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "/tmp/load.db", cfg.SQLitePath)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{name: "backend", key: "STORE_BACKEND", value: "mongo"},
		{name: "log level", key: "LOG_LEVEL", value: "loud"},
		{name: "tracing protocol", key: "TRACING_PROTOCOL", value: "udp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DatabaseHost:     "db",
		DatabasePort:     "5432",
		DatabaseUserName: "mine",
		DatabasePassword: "secret",
		DatabaseName:     "yeastmine",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=mine password=secret dbname=yeastmine sslmode=disable", cfg.DatabaseDSN())
}
