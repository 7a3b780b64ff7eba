package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Roman-G-men/vipsneaker-bot/internal/inventory"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load products from a JSON or YAML file",
	Long: `Load products with their variants into the configured database.
Nothing is written when the database already holds products.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := initLogger(os.Stderr, cfg)

	repo, err := inventory.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	defer repo.Close()

	return seedFromFile(ctx, repo, args[0], logger)
}

func seedFromFile(ctx context.Context, repo *inventory.Repository, path string, logger *slog.Logger) error {
	products, err := inventory.LoadSeedFile(path)
	if err != nil {
		return err
	}

	n, err := repo.Seed(ctx, products)
	if err != nil {
		return fmt.Errorf("seeding inventory: %w", err)
	}
	if n == 0 {
		logger.Info("inventory already populated, seed skipped", slog.String("file", path))
		return nil
	}
	logger.Info("inventory seeded", slog.Int("products", n), slog.String("file", path))
	return nil
}
