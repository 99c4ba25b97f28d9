package main

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/duplicateflag"
	"github.com/Ramsey-B/clover/internal/repositories/order"
	settingsrepo "github.com/Ramsey-B/clover/internal/repositories/settings"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// app owns the process-wide components. Each command connects only what it needs.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger
	sync   func()

	db        *database.DatabaseInstance
	redis     *redis.Client
	producer  *kafka.Producer
	dlq       *redis.DeadLetterQueue
	settings  *settingsrepo.Repository
	flags     *duplicateflag.Repository
	processor *processor.Processor
}

func newApp() (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logger, sync, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, sync: sync}, nil
}

// setupTracing installs the global tracer provider and returns its shutdown
func (a *app) setupTracing(ctx context.Context) (func(context.Context) error, error) {
	otlp := exporters.OTLPConfig{
		Protocol: a.cfg.OTLPProtocol,
		Insecure: a.cfg.OTLPInsecure,
	}
	if a.cfg.OTLPEnabled {
		otlp.Endpoint = a.cfg.OTLPEndpoint
	}

	exporter, err := exporters.New(ctx, otlp, a.logger)
	if err != nil {
		return nil, err
	}
	return tracing.Setup(a.cfg.AppName, exporter), nil
}

func (a *app) connectDatabase(ctx context.Context) error {
	db, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          a.cfg.DatabaseDriver,
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *app) migrate(version uint) error {
	if a.db == nil {
		return errors.New("database is not connected")
	}
	if version == 0 {
		version = uint(a.cfg.DatabaseMigrationVersion)
	}
	ms := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             version,
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	return ms.Migrate(a.cfg.DatabaseName, a.db.DB)
}

func (a *app) connectRedis(_ context.Context) error {
	client, err := redis.NewClient(redis.Config{
		Host:        a.cfg.RedisHost,
		Port:        a.cfg.RedisPort,
		Password:    a.cfg.RedisPassword,
		DB:          a.cfg.RedisDB,
		PoolSize:    a.cfg.RedisPoolSize,
		DialTimeout: a.cfg.RedisDialTimeout,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.dlq = redis.NewDeadLetterQueue(client, a.cfg.RedisDLQStream, a.logger)
	return nil
}

func (a *app) openProducer() {
	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.Brokers(),
		Topic:        a.cfg.KafkaAlertsTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: a.cfg.KafkaBatchTimeout,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
}

// buildProcessor wires the evaluation pipeline over the connected stores. A nil producer disables alerts.
func (a *app) buildProcessor() {
	a.settings = settingsrepo.NewRepository(a.db, a.logger)
	a.flags = duplicateflag.NewRepository(a.db, a.logger)

	engine := matching.NewEngine(a.logger, matching.EngineConfig{
		ParallelThreshold: a.cfg.EvaluationParallelThreshold,
		Workers:           a.cfg.EvaluationWorkers,
	})

	var notifier processor.Notifier
	if a.producer != nil {
		notifier = a.producer
	}

	a.processor = processor.NewProcessor(
		a.logger,
		engine,
		a.settings,
		order.NewRepository(a.db, a.logger),
		a.flags,
		notifier,
		redis.NewLocker(a.redis, a.cfg.RedisLockPrefix),
		processor.Config{
			LockTTL:            a.cfg.EvaluationLockTTL,
			UseDefaultSettings: a.cfg.EvaluationUseDefaultSettings,
		},
	)
}

// connectAll connects every store and builds the processor, for one-shot commands
func (a *app) connectAll(ctx context.Context, alerts bool) error {
	if err := a.connectDatabase(ctx); err != nil {
		return err
	}
	if err := a.connectRedis(ctx); err != nil {
		return err
	}
	if alerts {
		a.openProducer()
	}
	a.buildProcessor()
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.WithContext(ctx).WithError(err).Warn("Failed to close Kafka producer")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithContext(ctx).WithError(err).Warn("Failed to close Redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithContext(ctx).WithError(err).Warn("Failed to close database")
		}
	}
	a.sync()
}
