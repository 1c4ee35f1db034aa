package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/yeastgenome/yeastmine-bio-sources/config"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/database"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/startup"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store/graphstore"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store/kafkastore"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store/memstore"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/store/sqlstore"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendGraph    = "graph"
	BackendKafka    = "kafka"
)

// backend is the store a load writes into, started as a startup
// dependency and closed by Stop.
type backend struct {
	name   string
	cfg    *config.Config
	runID  string
	logger ectologger.Logger

	store store.Store
}

func (b *backend) GetName() string {
	return "store"
}

func (b *backend) DependsOn() []string {
	return nil
}

func (b *backend) Start(ctx context.Context) error {
	if b.store != nil {
		return nil
	}

	s, err := openStore(ctx, b.name, b.cfg, b.runID, b.logger)
	if err != nil {
		return err
	}
	b.store = s
	return nil
}

func (b *backend) Stop(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	err := b.store.Close(ctx)
	b.store = nil
	return err
}

func openStore(ctx context.Context, name string, cfg *config.Config, runID string, logger ectologger.Logger) (store.Store, error) {
	switch name {
	case BackendMemory:
		return memstore.New(), nil

	case BackendPostgres, BackendSQLite:
		db, err := OpenDatabase(ctx, cfg, name, logger)
		if err != nil {
			return nil, err
		}
		if cfg.DatabaseAutoMigrate {
			if err := Migrate(cfg, name, db, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return sqlstore.New(db, runID, logger), nil

	case BackendGraph:
		client, err := graphstore.NewClient(graphstore.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
			Database: cfg.GraphDBDatabase,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := client.VerifyConnectivity(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("graph database unreachable: %w", err)
		}
		return graphstore.New(client, runID, logger), nil

	case BackendKafka:
		return kafkastore.New(kafkastore.Config{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, runID, logger), nil
	}

	return nil, fmt.Errorf("unknown store backend %s", name)
}

// OpenDatabase connects to the item store database for a SQL backend.
func OpenDatabase(ctx context.Context, cfg *config.Config, backendName string, logger ectologger.Logger) (database.DB, error) {
	dbCfg := database.Config{
		Driver:          database.DriverPostgres,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
	if backendName == BackendSQLite {
		dbCfg = database.Config{Driver: database.DriverSQLite, DSN: cfg.SQLitePath}
	}
	return database.Open(ctx, dbCfg, logger)
}

// Migrate applies the item store migrations for backendName.
func Migrate(cfg *config.Config, backendName string, db database.DB, logger ectologger.Logger) error {
	migrationCfg := &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             cfg.DatabaseMigrationVersion,
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	}
	if backendName == BackendSQLite {
		migrationCfg.MigrationFolderPath = cfg.SQLiteMigrationFolderPath
	}
	return database.NewMigrationService(logger, migrationCfg).Migrate(db)
}

// sourceDatabase is the database query jobs read from.
func sourceDatabase(cfg *config.Config, logger ectologger.Logger, db *database.DB) *startup.Dependency {
	return &startup.Dependency{
		Name: "source-database",
		StartFunc: func(ctx context.Context) error {
			if *db != nil {
				return nil
			}
			if cfg.SourceDatabaseDSN == "" {
				return fmt.Errorf("query jobs need SOURCE_DB_DSN")
			}
			opened, err := database.Open(ctx, database.Config{
				Driver: cfg.SourceDatabaseDriver,
				DSN:    cfg.SourceDatabaseDSN,
			}, logger)
			if err != nil {
				return err
			}
			*db = opened
			return nil
		},
		StopFunc: func(context.Context) error {
			if *db == nil {
				return nil
			}
			err := (*db).Close()
			*db = nil
			return err
		},
	}
}
