// VipSneaker storefront - a mini-app storefront session with a terminal host,
// an MCP shopper endpoint, and the catalog and order intake API it talks to.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Roman-G-men/vipsneaker-bot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "VipSneaker storefront - catalog, cart, and order hand-off",
	Long: `storefront runs the VipSneaker mini-app storefront outside the chat client.

  serve   catalog API and order intake backed by SQLite or Postgres
  shop    interactive terminal storefront session
  mcp     the same session exposed to agents as MCP tools
  seed    load products from a JSON or YAML file
  admin   list, hide, show, delete, and add catalog products`,
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (JSON or YAML, overrides CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shopCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(adminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration, honouring the --config flag.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if configPath != "" {
		os.Setenv("CONFIG_FILE", configPath)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
