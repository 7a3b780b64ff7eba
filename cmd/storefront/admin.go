package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Roman-G-men/vipsneaker-bot/internal/inventory"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the catalog in the configured database",
	Long: `List products page by page, hide or show them in the catalog, delete them,
or add new ones from a JSON or YAML file.`,
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all products, newest first",
	Args:  cobra.NoArgs,
	RunE: withInventory(func(ctx context.Context, repo *inventory.Repository, args []string, logger *slog.Logger) error {
		return adminList(ctx, repo, os.Stdout, adminPage)
	}),
}

var adminHideCmd = &cobra.Command{
	Use:   "hide ID",
	Short: "Hide a product from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: withInventory(func(ctx context.Context, repo *inventory.Repository, args []string, logger *slog.Logger) error {
		return adminSetActive(ctx, repo, args[0], false, logger)
	}),
}

var adminShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a hidden product in the catalog again",
	Args:  cobra.ExactArgs(1),
	RunE: withInventory(func(ctx context.Context, repo *inventory.Repository, args []string, logger *slog.Logger) error {
		return adminSetActive(ctx, repo, args[0], true, logger)
	}),
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a product and its sizes",
	Args:  cobra.ExactArgs(1),
	RunE: withInventory(func(ctx context.Context, repo *inventory.Repository, args []string, logger *slog.Logger) error {
		return adminDelete(ctx, repo, args[0], logger)
	}),
}

var adminAddCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Add the products in a JSON or YAML file",
	Long:  `Add products to the catalog. Unlike seed, this also works on a non-empty catalog.`,
	Args:  cobra.ExactArgs(1),
	RunE: withInventory(func(ctx context.Context, repo *inventory.Repository, args []string, logger *slog.Logger) error {
		return adminAdd(ctx, repo, args[0], os.Stdout, logger)
	}),
}

var adminPage int

func init() {
	adminListCmd.Flags().IntVarP(&adminPage, "page", "p", 1, "page to show")

	adminCmd.AddCommand(adminListCmd, adminHideCmd, adminShowCmd, adminDeleteCmd, adminAddCmd)
}

// withInventory opens the configured database around an admin command.
func withInventory(run func(ctx context.Context, repo *inventory.Repository, args []string, logger *slog.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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

		return run(ctx, repo, args, logger)
	}
}

// adminList prints one page (1-based) of the catalog.
func adminList(ctx context.Context, repo *inventory.Repository, w io.Writer, page int) error {
	listings, total, err := repo.ProductPage(ctx, page-1, inventory.AdminPageSize)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Fprintln(w, "no products")
		return nil
	}

	pages := (total + inventory.AdminPageSize - 1) / inventory.AdminPageSize
	fmt.Fprintf(w, "page %d/%d, %d products\n", page, pages, total)
	for _, l := range listings {
		state := ""
		if !l.Active {
			state = "  [hidden]"
		}
		fmt.Fprintf(w, "#%-4d %s %s (%s)%s\n", l.ID, l.Brand, l.Name, l.Category, state)

		sizes := make([]string, 0, len(l.Variants))
		for _, v := range l.Variants {
			sizes = append(sizes, fmt.Sprintf("%s: %s ₽ x %d", v.Size, v.Price, v.Stock))
		}
		if len(sizes) > 0 {
			fmt.Fprintf(w, "      %s\n", strings.Join(sizes, ", "))
		}
	}
	return nil
}

func adminSetActive(ctx context.Context, repo *inventory.Repository, rawID string, active bool, logger *slog.Logger) error {
	id, err := parseProductID(rawID)
	if err != nil {
		return err
	}
	if err := repo.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("updating product %d: %w", id, err)
	}
	logger.Info("product visibility changed", slog.Int64("product_id", id), slog.Bool("active", active))
	return nil
}

func adminDelete(ctx context.Context, repo *inventory.Repository, rawID string, logger *slog.Logger) error {
	id, err := parseProductID(rawID)
	if err != nil {
		return err
	}
	if err := repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	logger.Info("product deleted", slog.Int64("product_id", id))
	return nil
}

// adminAdd inserts every product in path and prints the new IDs.
func adminAdd(ctx context.Context, repo *inventory.Repository, path string, w io.Writer, logger *slog.Logger) error {
	products, err := inventory.LoadSeedFile(path)
	if err != nil {
		return err
	}
	for _, p := range products {
		created, err := repo.CreateProduct(ctx, p)
		if err != nil {
			return fmt.Errorf("adding %q: %w", p.Name, err)
		}
		fmt.Fprintf(w, "added #%d %s %s\n", created.ID, created.Brand, created.Name)
	}
	logger.Info("products added", slog.Int("products", len(products)), slog.String("file", path))
	return nil
}

func parseProductID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("product id must be a positive integer, got %q", raw)
	}
	return id, nil
}
