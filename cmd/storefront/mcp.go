package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/Roman-G-men/vipsneaker-bot/internal/handler"
	"github.com/Roman-G-men/vipsneaker-bot/internal/hostbridge"
	"github.com/Roman-G-men/vipsneaker-bot/internal/middleware"
	"github.com/Roman-G-men/vipsneaker-bot/internal/session"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose a storefront session to agents over MCP",
	Long: `Run one storefront session and expose it as MCP tools. By default the
server speaks MCP over stdio; --listen serves Streamable HTTP at /mcp instead.`,
	RunE: runMCP,
}

var (
	mcpListen string
	mcpLocal  bool
)

func init() {
	mcpCmd.Flags().StringVarP(&mcpListen, "listen", "l", "", "serve Streamable HTTP on this address instead of stdio")
	mcpCmd.Flags().BoolVar(&mcpLocal, "local", false, "run the catalog API and order intake in-process")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	// stdout carries the protocol in stdio mode
	logger := initLogger(os.Stderr, cfg)

	// Alerts, popups, and confirmations the host prints are handed back to
	// the agent with the next tool result.
	out := &noticeBuffer{}

	baseURL := cfg.Catalog.BaseURL
	var sink hostbridge.DataSink
	if mcpLocal {
		backend, err := startLocalBackend(ctx, cfg, func(caption string) {
			fmt.Fprintln(out, caption)
		}, logger)
		if err != nil {
			return err
		}
		defer backend.Close()
		baseURL, sink = backend.BaseURL, backend.Sink
	} else {
		var closeSink func() error
		sink, closeSink, err = newOrderSink(cfg, out, logger)
		if err != nil {
			return err
		}
		defer closeSink()
	}

	sessionID := newSessionID()
	client, err := newCatalogClient(cfg, baseURL, "mcp", sessionID)
	if err != nil {
		return err
	}
	store, closeStore, err := newCartStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	host := hostbridge.NewTerminal(out, sink, cfg.Session.HostVersion, logger)
	sess := session.New(client, host, store, session.Options{
		ID:      sessionID,
		CartKey: cfg.Session.CartKey,
		Logger:  logger,
	})
	if err := sess.Start(ctx); err != nil {
		logger.Warn("catalog unavailable at start", slog.String("error", err.Error()))
	}

	shopper := handler.NewShopper(sess, host, out, logger)

	if mcpListen == "" {
		logger.Info("mcp server starting", slog.String("transport", "stdio"), slog.String("session", sessionID))
		return shopper.NewMCPServer().Run(ctx, &mcp.StdioTransport{})
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", shopper.NewMCPHandler())
	server := &http.Server{
		Addr: mcpListen,
		Handler: middleware.Chain(
			middleware.Recovery(logger),
			middleware.Logging(logger),
		)(mux),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("mcp server starting",
			slog.String("transport", "http"),
			slog.String("addr", mcpListen),
			slog.String("session", sessionID))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("mcp server stopped")
	return nil
}

// noticeBuffer collects host output between tool calls. The order consumer
// writes to it from its own goroutine.
type noticeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *noticeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *noticeBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}
