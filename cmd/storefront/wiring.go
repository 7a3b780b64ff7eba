package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/Roman-G-men/vipsneaker-bot/internal/catalog"
	"github.com/Roman-G-men/vipsneaker-bot/internal/config"
	"github.com/Roman-G-men/vipsneaker-bot/internal/handler"
	"github.com/Roman-G-men/vipsneaker-bot/internal/hostbridge"
	"github.com/Roman-G-men/vipsneaker-bot/internal/inventory"
	"github.com/Roman-G-men/vipsneaker-bot/internal/kvstore"
	"github.com/Roman-G-men/vipsneaker-bot/internal/middleware"
	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
	"github.com/Roman-G-men/vipsneaker-bot/internal/orders"
	"github.com/Roman-G-men/vipsneaker-bot/internal/relay"
	"github.com/Roman-G-men/vipsneaker-bot/internal/transport"
)

// localUserID identifies the shopper when the backend runs in-process.
const localUserID = 1

// newCatalogClient creates the catalog client a session reads from.
func newCatalogClient(cfg *config.Config, baseURL, platform, sessionID string) (*catalog.Client, error) {
	mode, err := transport.ParseMode(cfg.Catalog.TLSMode)
	if err != nil {
		return nil, err
	}
	return catalog.NewClient(catalog.Config{
		BaseURL:   baseURL,
		Transport: mode,
		Client: model.ClientInfo{
			Platform: platform,
			Version:  cfg.Session.HostVersion,
			Session:  sessionID,
		},
	})
}

// newCartStore opens the configured cart snapshot store. The returned close
// function is never nil.
func newCartStore(ctx context.Context, cfg *config.Config) (kvstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Backend {
	case config.StorageFile:
		store, err := kvstore.NewFile(cfg.Storage.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.StorageRedis:
		userID := cfg.Orders.UserID
		if userID <= 0 {
			userID = localUserID
		}
		store, err := kvstore.NewRedis(ctx, kvstore.RedisConfig{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Prefix:   fmt.Sprintf("storefront:user:%d:", userID),
			TTL:      30 * 24 * time.Hour,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return kvstore.NewMemory(), noop, nil
	}
}

// newOrderSink creates the sink a session's host relays orders through.
func newOrderSink(cfg *config.Config, out io.Writer, logger *slog.Logger) (hostbridge.DataSink, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Orders.Sink {
	case config.SinkHTTP:
		return relay.NewHTTPSink(cfg.Orders.IntakeURL, cfg.Orders.UserID, catalog.DefaultTimeout), noop, nil
	case config.SinkKafka:
		pub, err := relay.NewKafkaPublisher(cfg.Orders.KafkaBrokers, logger)
		if err != nil {
			return nil, noop, err
		}
		return relay.NewWatermillSink(pub, cfg.Orders.Topic, cfg.Orders.UserID), pub.Close, nil
	default:
		return relay.NewWriterSink(out), noop, nil
	}
}

// newSessionID returns a fresh session identifier.
func newSessionID() string {
	return uuid.NewString()
}

// === API server ===

// newAPIHandler builds the catalog and order intake HTTP handler with its middleware.
func newAPIHandler(repo *inventory.Repository, processor *orders.Processor, cfg *config.Config, logger *slog.Logger) http.Handler {
	h := handler.New(repo, processor, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Recovery must be outermost to catch panics from the other middleware.
	// ClientIdentity runs before Logging so request logs carry the client fields.
	return middleware.Chain(
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.ClientIdentity(logger),
		middleware.Logging(logger),
	)(mux)
}

// localBackend is the catalog API, order intake, and order bus running
// in-process for development.
type localBackend struct {
	BaseURL string
	Sink    hostbridge.DataSink

	repo   *inventory.Repository
	server *http.Server
	bus    message.Publisher
	cancel context.CancelFunc
	done   chan struct{}
}

// startLocalBackend opens the configured database, serves the API on a
// loopback port, and consumes orders from an in-process channel. onOrder is
// called with each confirmation caption.
func startLocalBackend(ctx context.Context, cfg *config.Config, onOrder func(caption string), logger *slog.Logger) (*localBackend, error) {
	repo, err := inventory.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening inventory: %w", err)
	}

	processor := orders.NewProcessor(repo, logger)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("listening on loopback: %w", err)
	}
	server := &http.Server{
		Handler:     newAPIHandler(repo, processor, cfg, logger),
		ReadTimeout: 30 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("local api stopped", slog.String("error", err.Error()))
		}
	}()

	// Subscribe before returning: the in-process bus drops messages that
	// have no subscriber yet.
	bus := relay.NewGoChannel(logger)
	consumeCtx, cancel := context.WithCancel(ctx)
	messages, err := relay.Subscribe(consumeCtx, bus, cfg.Orders.Topic)
	if err != nil {
		cancel()
		bus.Close()
		server.Close()
		repo.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handle := func(ctx context.Context, userID int64, payload []byte) error {
			res, err := processor.Handle(ctx, userID, payload)
			if err != nil {
				onOrder(fmt.Sprintf("Заказ не принят: %v", err))
				return err
			}
			if res.Order != nil {
				onOrder(res.Caption)
			}
			return nil
		}
		relay.Process(consumeCtx, messages, handle, logger)
	}()

	return &localBackend{
		BaseURL: "http://" + listener.Addr().String(),
		Sink:    relay.NewWatermillSink(bus, cfg.Orders.Topic, localUserID),
		repo:    repo,
		server:  server,
		bus:     bus,
		cancel:  cancel,
		done:    done,
	}, nil
}

// Close stops the consumer, the API server, and the database.
func (b *localBackend) Close() error {
	b.cancel()
	<-b.done
	b.bus.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.server.Shutdown(shutdownCtx)

	return b.repo.Close()
}
