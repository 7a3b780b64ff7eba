// MCP transport for driving a storefront session from an agent, using the
// official MCP Go SDK. Each tool maps to one shopper action on the session.
package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
	"github.com/Roman-G-men/vipsneaker-bot/internal/session"
)

// StatusReporter renders the host's native buttons. hostbridge.Terminal implements it.
type StatusReporter interface {
	StatusLine() string
}

// Shopper exposes one storefront session as MCP tools. Calls are serialised:
// a session is single-threaded.
type Shopper struct {
	mu      sync.Mutex
	session *session.Session
	status  StatusReporter
	notices io.Reader
	logger  *slog.Logger
}

// NewShopper creates a shopper over sess. notices, if non-nil, is drained
// after every call and its lines returned to the agent (alerts and popups the
// host printed). status may be nil.
func NewShopper(sess *session.Session, status StatusReporter, notices io.Reader, logger *slog.Logger) *Shopper {
	return &Shopper{
		session: sess,
		status:  status,
		notices: notices,
		logger:  logger,
	}
}

// === MCP Tool Input/Output Types ===

// ListProductsInput is the input schema for list_products.
type ListProductsInput struct {
	Category string `json:"category,omitempty" jsonschema:"only products in this category"`
	Brand    string `json:"brand,omitempty" jsonschema:"only products of this brand"`
	Query    string `json:"query,omitempty" jsonschema:"case-insensitive substring of name or brand"`
	Reload   bool   `json:"reload,omitempty" jsonschema:"re-fetch the catalog before filtering"`
}

// ShowProductInput is the input schema for show_product.
type ShowProductInput struct {
	ID int64 `json:"id" jsonschema:"product ID"`
}

// SelectVariantInput is the input schema for select_variant.
type SelectVariantInput struct {
	VariantID int64 `json:"variant_id" jsonschema:"variant ID of the shown product"`
}

// UpdateQuantityInput is the input schema for update_quantity.
type UpdateQuantityInput struct {
	VariantID int64 `json:"variant_id" jsonschema:"variant ID of a cart line"`
	Delta     int   `json:"delta" jsonschema:"quantity change; the line is removed at zero or below"`
}

// ShowViewInput is the input schema for show_view.
type ShowViewInput struct {
	View string `json:"view" jsonschema:"catalog, product or cart"`
}

// EmptyInput is the input schema for tools without arguments.
type EmptyInput struct{}

// ShopperState is the session snapshot returned by every tool.
type ShopperState struct {
	View       string           `json:"view"`
	Loading    bool             `json:"loading"`
	Filters    *model.Filters   `json:"filters,omitempty"`
	Products   []model.Product  `json:"products,omitempty"`
	Brands     []string         `json:"brands,omitempty"`
	Categories []string         `json:"categories,omitempty"`
	Product    *model.Product   `json:"product,omitempty"`
	Selected   *model.Variant   `json:"selected_variant,omitempty"`
	InCart     bool             `json:"in_cart,omitempty"`
	Added      *bool            `json:"added,omitempty"`
	Cart       []model.CartLine `json:"cart"`
	CartCount  int              `json:"cart_count"`
	CartTotal  model.Amount     `json:"cart_total"`
	Buttons    string           `json:"buttons,omitempty"`
	Notices    []string         `json:"notices,omitempty"`
}

// NewMCPServer creates an MCP server with the shopper tools registered.
func (s *Shopper) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "vipsneaker-storefront",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "VipSneaker storefront. Browse the catalog, open a product, " +
				"pick a size variant, manage the cart, and place the order.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List catalog products matching the given filters, with the available brands and categories.",
	}, s.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "show_product",
		Description: "Open a product's detail view with its size/price variants.",
	}, s.mcpShowProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_variant",
		Description: "Select a size variant of the product currently shown.",
	}, s.mcpSelectVariant)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add the selected variant to the cart with quantity 1. A variant already in the cart is not added twice.",
	}, s.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_quantity",
		Description: "Change the quantity of a cart line by delta. The line is removed when its quantity drops to zero.",
	}, s.mcpUpdateQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "show_view",
		Description: "Switch the active view: catalog, product or cart.",
	}, s.mcpShowView)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "view_cart",
		Description: "Show the cart lines, item count and total.",
	}, s.mcpViewCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "place_order",
		Description: "Send the cart as an order and clear it. Does nothing when the cart is empty.",
	}, s.mcpPlaceOrder)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (s *Shopper) NewMCPHandler() http.Handler {
	server := s.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (s *Shopper) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Reload || len(s.session.Products()) == 0 {
		if err := s.session.LoadProducts(ctx); err != nil {
			return nil, nil, s.mcpError(err)
		}
	}

	filters := model.Filters{Category: input.Category, Brand: input.Brand, Query: input.Query}
	s.session.SetFilters(filters)

	state := s.snapshot()
	if !filters.IsZero() {
		state.Filters = &filters
	}
	state.Products = s.session.FilteredProducts()
	state.Brands = s.session.UniqueBrands()
	state.Categories = s.session.UniqueCategories()
	return s.result(state)
}

func (s *Shopper) mcpShowProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ShowProductInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID <= 0 {
		return nil, nil, fmt.Errorf("id is required")
	}
	if err := s.session.ShowProduct(ctx, input.ID); err != nil {
		return nil, nil, s.mcpError(err)
	}
	return s.result(s.snapshot())
}

func (s *Shopper) mcpSelectVariant(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SelectVariantInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.SelectVariantByID(input.VariantID); err != nil {
		return nil, nil, s.mcpError(err)
	}
	return s.result(s.snapshot())
}

func (s *Shopper) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.session.SelectedVariant(); !ok {
		return nil, nil, fmt.Errorf("select a variant first")
	}
	added := s.session.AddToCart()

	state := s.snapshot()
	state.Added = &added
	return s.result(state)
}

func (s *Shopper) mcpUpdateQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.UpdateQuantity(input.VariantID, input.Delta)
	return s.result(s.snapshot())
}

func (s *Shopper) mcpShowView(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ShowViewInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := model.ParseViewState(input.View)
	if err != nil {
		return nil, nil, s.mcpError(err)
	}
	if view == model.ViewProduct {
		if _, ok := s.session.CurrentProduct(); !ok {
			return nil, nil, fmt.Errorf("no product shown yet; use show_product")
		}
	}
	s.session.ShowView(view)
	return s.result(s.snapshot())
}

func (s *Shopper) mcpViewCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result(s.snapshot())
}

func (s *Shopper) mcpPlaceOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.CartCount() == 0 {
		return nil, nil, fmt.Errorf("cart is empty")
	}
	if err := s.session.PlaceOrder(ctx); err != nil {
		return nil, nil, s.mcpError(err)
	}
	return s.result(s.snapshot())
}

// === Helpers ===

// snapshot captures the session state common to every tool result.
func (s *Shopper) snapshot() ShopperState {
	state := ShopperState{
		View:      s.session.View().String(),
		Loading:   s.session.Loading(),
		Cart:      s.session.Cart(),
		CartCount: s.session.CartCount(),
		CartTotal: s.session.CartTotal(),
	}
	if s.session.View() == model.ViewProduct {
		if p, ok := s.session.CurrentProduct(); ok {
			state.Product = &p
			state.InCart = s.session.IsProductInCart()
		}
		if v, ok := s.session.SelectedVariant(); ok {
			state.Selected = &v
		}
	}
	if s.status != nil {
		state.Buttons = s.status.StatusLine()
	}
	return state
}

// result encodes state as the tool's text content, attaching host notices.
func (s *Shopper) result(state ShopperState) (*mcp.CallToolResult, any, error) {
	state.Notices = s.drainNotices()
	data, err := json.Marshal(state)
	if err != nil {
		return nil, nil, s.mcpError(err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Shopper) drainNotices() []string {
	if s.notices == nil {
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(s.notices)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// mcpError converts session errors to MCP-friendly errors, passing along
// any alert the host showed.
func (s *Shopper) mcpError(err error) error {
	notices := s.drainNotices()

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)
		if len(notices) > 0 {
			msg += " (" + strings.Join(notices, "; ") + ")"
		}
		return errors.New(msg)
	}
	if errors.Is(err, model.ErrVariantNotFound) {
		return err
	}
	// Don't leak internal error details
	s.logger.Error("mcp internal error", "error", err.Error())
	if len(notices) > 0 {
		return errors.New(strings.Join(notices, "; "))
	}
	return fmt.Errorf("internal error")
}
