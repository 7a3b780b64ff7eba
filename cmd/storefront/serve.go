package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Roman-G-men/vipsneaker-bot/internal/inventory"
	"github.com/Roman-G-men/vipsneaker-bot/internal/orders"
	"github.com/Roman-G-men/vipsneaker-bot/internal/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog API and order intake",
	Long: `Serve /api/products, /api/product/{id}, and /api/orders from the configured
database. When Kafka brokers are configured, orders published by storefront
sessions are also consumed from the orders topic.`,
	RunE: runServe,
}

var serveSeedFile string

func init() {
	serveCmd.Flags().StringVar(&serveSeedFile, "seed", "", "seed an empty database from this JSON or YAML file")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := initLogger(os.Stdout, cfg)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("db_driver", cfg.Database.Driver),
		slog.Int("kafka_brokers", len(cfg.Orders.KafkaBrokers)),
	)

	repo, err := inventory.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	defer repo.Close()

	if serveSeedFile != "" {
		if err := seedFromFile(ctx, repo, serveSeedFile, logger); err != nil {
			return err
		}
	}

	processor := orders.NewProcessor(repo, logger)

	// Consume orders relayed over Kafka alongside the HTTP intake
	consumerDone := make(chan struct{})
	if len(cfg.Orders.KafkaBrokers) > 0 {
		sub, err := relay.NewKafkaSubscriber(cfg.Orders.KafkaBrokers, cfg.Orders.ConsumerGroup, logger)
		if err != nil {
			return err
		}
		defer sub.Close()

		go func() {
			defer close(consumerDone)
			if err := relay.Consume(ctx, sub, cfg.Orders.Topic, processor.Consume, logger); err != nil {
				logger.Error("order consumer stopped", slog.String("error", err.Error()))
			}
		}()
	} else {
		close(consumerDone)
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newAPIHandler(repo, processor, cfg, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	cancel()
	<-consumerDone

	logger.Info("server stopped")
	return nil
}
