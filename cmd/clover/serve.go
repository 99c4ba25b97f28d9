package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/routes/dlq"
	"github.com/Ramsey-B/clover/pkg/routes/evaluate"
	"github.com/Ramsey-B/clover/pkg/routes/flags"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/settings"
	"github.com/Ramsey-B/clover/pkg/server"
	"github.com/Ramsey-B/clover/pkg/startup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume order events and serve the review API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := a.setupTracing(ctx)
	if err != nil {
		return err
	}

	checker := health.NewChecker(a.cfg.Version)
	var consumer *kafka.Consumer
	var srv *server.Server

	s := startup.NewStartup(a.logger, a.cfg.StartupMaxAttempts)
	s.AddDependency(&startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			if a.db == nil {
				if err := a.connectDatabase(ctx); err != nil {
					return err
				}
			}
			if a.cfg.DatabaseMigrateOnStart {
				return a.migrate(0)
			}
			return nil
		},
		StopFunc: func(context.Context) error { return a.db.Close() },
	})
	s.AddDependency(&startup.Func{
		Name:      "redis",
		StartFunc: a.connectRedis,
		StopFunc:  func(context.Context) error { return a.redis.Close() },
	})
	s.AddDependency(&startup.Func{
		Name: "producer",
		StartFunc: func(context.Context) error {
			a.openProducer()
			return nil
		},
		StopFunc: func(context.Context) error { return a.producer.Close() },
	})
	s.AddDependency(&startup.Func{
		Name:     "processor",
		Requires: []string{"database", "redis", "producer"},
		StartFunc: func(context.Context) error {
			a.buildProcessor()
			checker.AddCheck("database", a.db)
			checker.AddCheck("redis", a.redis)
			return nil
		},
	})
	if a.cfg.KafkaConsumerEnabled {
		s.AddDependency(&startup.Func{
			Name:     "consumer",
			Requires: []string{"processor"},
			StartFunc: func(ctx context.Context) error {
				consumer = kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:       a.cfg.Brokers(),
					Topic:         a.cfg.KafkaOrdersTopic,
					ConsumerGroup: a.cfg.KafkaConsumerGroup,
					MaxAttempts:   a.cfg.KafkaMaxAttempts,
					RetryBackoff:  a.cfg.KafkaRetryBackoff,
				}, a.logger, a.processor.HandleMessage, processor.IsRetryable, a.dlq)
				checker.AddCheck("kafka", health.PingFunc(func(context.Context) error {
					if !consumer.Health() {
						return errors.New("consumer is not running")
					}
					return nil
				}))
				return consumer.Start(ctx)
			},
			StopFunc: func(context.Context) error { return consumer.Stop() },
		})
	}
	s.AddDependency(&startup.Func{
		Name:     "http",
		Requires: []string{"processor"},
		StartFunc: func(ctx context.Context) error {
			srv = server.New(server.Config{
				ServiceName:  a.cfg.AppName,
				Port:         a.cfg.Port,
				ReadTimeout:  time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout: time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:  time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
				AllowOrigins: a.cfg.AllowOrigins,
				AllowMethods: a.cfg.AllowMethods,
			}, a.logger, server.Handlers{
				Flags:    flags.NewHandler(a.flags, a.processor),
				Settings: settings.NewHandler(a.settings),
				Evaluate: evaluate.NewHandler(a.processor),
				DLQ:      dlq.NewHandler(a.dlq, a.processor, a.logger),
				Health:   checker,
			})
			return srv.Start(ctx)
		},
		StopFunc: func(ctx context.Context) error { return srv.Stop(ctx) },
	})

	if err := s.Start(ctx); err != nil {
		return err
	}
	checker.SetReady(true)
	a.logger.WithField("version", a.cfg.Version).Info("Clover is ready")

	<-ctx.Done()
	checker.SetReady(false)
	a.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err = s.Stop(shutdownCtx)
	if terr := shutdownTracing(shutdownCtx); terr != nil {
		a.logger.WithError(terr).Warn("Failed to flush traces")
	}
	return err
}
