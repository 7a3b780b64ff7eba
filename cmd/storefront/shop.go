package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Roman-G-men/vipsneaker-bot/internal/hostbridge"
	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
	"github.com/Roman-G-men/vipsneaker-bot/internal/session"
)

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Run an interactive storefront session in the terminal",
	Long: `Run a storefront session with the terminal as its host. The native back and
order buttons appear on the status line; "back" and "order" press them.

With --local the catalog API and order intake run in-process against the
configured database, and order confirmations are printed as they are recorded.`,
	RunE: runShop,
}

var shopLocal bool

func init() {
	shopCmd.Flags().BoolVar(&shopLocal, "local", false, "run the catalog API and order intake in-process")
}

func runShop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := initLogger(os.Stderr, cfg)
	out := &syncWriter{w: os.Stdout}

	baseURL := cfg.Catalog.BaseURL
	var sink hostbridge.DataSink
	if shopLocal {
		backend, err := startLocalBackend(ctx, cfg, func(caption string) {
			fmt.Fprintf(out, "\n%s\n", caption)
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
	client, err := newCatalogClient(cfg, baseURL, "terminal", sessionID)
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

	sh := &shell{session: sess, host: host, out: out}
	if err := sess.Start(ctx); err != nil {
		logger.Warn("catalog unavailable at start", slog.String("error", err.Error()))
	}
	return sh.run(ctx, os.Stdin)
}

// syncWriter serialises writes from the REPL and the order consumer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// shell is the terminal REPL driving one session.
type shell struct {
	session *session.Session
	host    *hostbridge.Terminal
	out     io.Writer
}

const shellHelp = `commands:
  list                      show products matching the filters
  filter [category=X] [brand=Y]   set filters ("filter" alone clears them)
  search TEXT               filter by name or brand
  brands | categories       list the catalog's brands or categories
  reload                    fetch the catalog again
  show ID                   open a product
  select VARIANT|SIZE       pick a size of the open product
  add                       add the selected size to the cart
  cart                      open the cart
  inc VARIANT | dec VARIANT change a cart line's quantity
  order                     press the order button
  back                      press the back button
  quit`

// run reads commands from in until EOF or quit.
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(sh.out, "VipSneaker storefront. Type help for commands.")
	sh.printCatalog()
	sh.prompt()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if line != "" {
			sh.exec(ctx, line)
		}
		sh.prompt()
	}
	return scanner.Err()
}

func (sh *shell) prompt() {
	if status := sh.host.StatusLine(); status != "" {
		fmt.Fprintln(sh.out, status)
	}
	fmt.Fprintf(sh.out, "%s> ", sh.session.View())
}

// exec runs one command line.
func (sh *shell) exec(ctx context.Context, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
	case "list":
		sh.printCatalog()
	case "filter":
		f, err := parseFilters(args, sh.session.Filters().Query)
		if err != nil {
			fmt.Fprintln(sh.out, err)
			return
		}
		sh.session.SetFilters(f)
		sh.printCatalog()
	case "search":
		sh.session.SetSearchQuery(strings.Join(args, " "))
		sh.printCatalog()
	case "brands":
		fmt.Fprintln(sh.out, strings.Join(sh.session.UniqueBrands(), ", "))
	case "categories":
		fmt.Fprintln(sh.out, strings.Join(sh.session.UniqueCategories(), ", "))
	case "reload":
		if sh.session.LoadProducts(ctx) == nil {
			sh.printCatalog()
		}
	case "show":
		id, ok := sh.intArg(args, "show ID")
		if !ok {
			return
		}
		if sh.session.ShowProduct(ctx, id) == nil {
			sh.printProduct()
		}
	case "select":
		sh.selectVariant(args)
	case "add":
		if _, ok := sh.session.SelectedVariant(); !ok {
			fmt.Fprintln(sh.out, "select a size first")
			return
		}
		if sh.session.AddToCart() {
			fmt.Fprintln(sh.out, "added to cart")
		}
	case "cart":
		sh.session.ShowView(model.ViewCart)
		sh.printCart()
	case "inc", "dec":
		id, ok := sh.intArg(args, cmd+" VARIANT")
		if !ok {
			return
		}
		delta := 1
		if cmd == "dec" {
			delta = -1
		}
		sh.session.UpdateQuantity(id, delta)
		sh.printCart()
	case "order":
		if !sh.host.MainButtonVisible() {
			fmt.Fprintln(sh.out, "the order button is shown on a non-empty cart")
			return
		}
		sh.host.TriggerMainButton()
		fmt.Fprintln(sh.out, "order button pressed")
	case "back":
		if !sh.host.BackButtonVisible() {
			fmt.Fprintln(sh.out, "already at the catalog")
			return
		}
		sh.host.TriggerBack()
		sh.printCatalog()
	default:
		fmt.Fprintf(sh.out, "unknown command %q, type help\n", cmd)
	}
}

func (sh *shell) intArg(args []string, usage string) (int64, bool) {
	if len(args) != 1 {
		fmt.Fprintf(sh.out, "usage: %s\n", usage)
		return 0, false
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(sh.out, "usage: %s\n", usage)
		return 0, false
	}
	return n, true
}

// selectVariant accepts a variant ID or a size label of the open product.
func (sh *shell) selectVariant(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(sh.out, "usage: select VARIANT|SIZE")
		return
	}
	p, ok := sh.session.CurrentProduct()
	if !ok {
		fmt.Fprintln(sh.out, "open a product first")
		return
	}

	if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
		if sh.session.SelectVariantByID(id) == nil {
			sh.printSelected()
			return
		}
	}
	for _, v := range p.Variants {
		if strings.EqualFold(v.Size, args[0]) {
			sh.session.SelectVariant(v)
			sh.printSelected()
			return
		}
	}
	fmt.Fprintf(sh.out, "no size %q for %s\n", args[0], p.Name)
}

// parseFilters reads key=value filter arguments, keeping the search query.
func parseFilters(args []string, query string) (model.Filters, error) {
	f := model.Filters{Query: query}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return f, fmt.Errorf("filter arguments are category=X or brand=Y, got %q", arg)
		}
		switch key {
		case "category":
			f.Category = value
		case "brand":
			f.Brand = value
		default:
			return f, fmt.Errorf("unknown filter %q", key)
		}
	}
	return f, nil
}

// === Rendering ===

func (sh *shell) printCatalog() {
	products := sh.session.FilteredProducts()
	if len(products) == 0 {
		if sh.session.Filters().IsZero() {
			fmt.Fprintln(sh.out, "no products")
		} else {
			fmt.Fprintln(sh.out, "no products match the filters")
		}
		return
	}
	for _, p := range products {
		fmt.Fprintf(sh.out, "#%-4d %s %s  %s\n", p.ID, p.Brand, p.Name, priceRange(p))
	}
}

func (sh *shell) printProduct() {
	p, ok := sh.session.CurrentProduct()
	if !ok {
		return
	}
	fmt.Fprintf(sh.out, "%s %s (%s)\n", p.Brand, p.Name, p.Category)
	if p.Description != "" {
		fmt.Fprintln(sh.out, p.Description)
	}
	if p.Composition != "" {
		fmt.Fprintf(sh.out, "Состав: %s\n", p.Composition)
	}
	for _, v := range p.Variants {
		fmt.Fprintf(sh.out, "  [%d] %s  %s ₽\n", v.ID, v.Size, v.Price)
	}
}

func (sh *shell) printSelected() {
	v, _ := sh.session.SelectedVariant()
	state := ""
	if sh.session.IsProductInCart() {
		state = " (in cart)"
	}
	fmt.Fprintf(sh.out, "selected %s, %s ₽%s\n", v.Size, v.Price, state)
}

func (sh *shell) printCart() {
	lines := sh.session.Cart()
	if len(lines) == 0 {
		fmt.Fprintln(sh.out, "cart is empty")
		return
	}
	for _, l := range lines {
		fmt.Fprintf(sh.out, "  [%d] %s (%s) x %d  %s ₽\n", l.VariantID, l.ProductName, l.Size, l.Quantity, l.Subtotal())
	}
	fmt.Fprintf(sh.out, "%d items, total %s ₽\n", sh.session.CartCount(), sh.session.CartTotal())
}

// priceRange renders the cheapest and dearest variant price.
func priceRange(p model.Product) string {
	if len(p.Variants) == 0 {
		return "нет в наличии"
	}
	lo, hi := p.Variants[0].Price, p.Variants[0].Price
	for _, v := range p.Variants[1:] {
		lo, hi = min(lo, v.Price), max(hi, v.Price)
	}
	if lo == hi {
		return lo.String() + " ₽"
	}
	return fmt.Sprintf("%s–%s ₽", lo, hi)
}
