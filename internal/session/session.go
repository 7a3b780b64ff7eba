// Package session implements the storefront session: catalog browsing with
// filters, product detail with variant selection, a persisted cart, view
// navigation synced to the host's native buttons, and order hand-off.
//
// A Session is driven by one goroutine at a time. Callers that share it across
// goroutines (the MCP endpoint) serialize access themselves.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Roman-G-men/vipsneaker-bot/internal/catalog"
	"github.com/Roman-G-men/vipsneaker-bot/internal/hostbridge"
	"github.com/Roman-G-men/vipsneaker-bot/internal/kvstore"
	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// Options tunes a Session. The zero value is usable.
type Options struct {
	// ID identifies the session in logs and the Storefront-Client header.
	// Empty means a random UUID.
	ID string

	// CartKey is the storage key for the cart snapshot. Empty means DefaultCartKey.
	CartKey string

	Messages Messages
	Logger   *slog.Logger
}

// Session owns all storefront state.
type Session struct {
	catalog catalog.Service
	host    hostbridge.Bridge
	store   kvstore.Store

	id       string
	cartKey  string
	messages Messages
	logger   *slog.Logger

	products []model.Product
	filters  model.Filters
	current  *model.Product
	selected *model.Variant
	cart     model.Cart
	view     model.ViewState
	loading  bool
}

// New creates a session in the catalog view with an empty cart.
// Call Start to attach it to the host and restore state.
func New(svc catalog.Service, host hostbridge.Bridge, store kvstore.Store, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	key := opts.CartKey
	if key == "" {
		key = DefaultCartKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		catalog:  svc,
		host:     host,
		store:    store,
		id:       id,
		cartKey:  key,
		messages: opts.Messages.withDefaults(),
		logger:   logger.With(slog.String("session", id)),
		products: []model.Product{},
		cart:     model.Cart{},
		view:     model.ViewCatalog,
	}
}

// Start configures the host UI, restores the cart, loads the catalog, and
// syncs the host buttons. The back signal always returns to the catalog and
// the main button places the order. A catalog failure has already been shown
// to the user when Start returns it; the session stays usable.
func (s *Session) Start(ctx context.Context) error {
	s.host.Expand()

	// Signals outlive the request that started the session.
	bg := context.WithoutCancel(ctx)
	s.host.OnBack(func() { s.ShowView(model.ViewCatalog) })
	s.host.OnMainButton(func() {
		if err := s.PlaceOrder(bg); err != nil {
			s.logger.Error("placing order from main button", slog.String("error", err.Error()))
		}
	})

	s.loadCart(ctx)
	err := s.LoadProducts(ctx)
	s.syncChrome()
	return err
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// View returns the active view.
func (s *Session) View() model.ViewState { return s.view }

// Loading reports whether a catalog or product fetch is in flight.
func (s *Session) Loading() bool { return s.loading }

// === Catalog & filtering ===

// LoadProducts fetches the full catalog. On failure the last-known catalog is
// kept, the host shows an alert, and the error is returned.
func (s *Session) LoadProducts(ctx context.Context) error {
	s.loading = true
	defer func() { s.loading = false }()

	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		s.logger.Error("failed to load products", slog.String("error", err.Error()))
		s.host.ShowAlert(s.messages.LoadProductsFailed)
		return fmt.Errorf("loading products: %w", err)
	}

	s.products = products
	s.logger.Debug("catalog loaded", slog.Int("products", len(products)))
	return nil
}

// Products returns the full catalog.
func (s *Session) Products() []model.Product {
	out := make([]model.Product, len(s.products))
	copy(out, s.products)
	return out
}

// FilteredProducts returns the catalog narrowed by the active filters.
func (s *Session) FilteredProducts() []model.Product {
	return FilterProducts(s.products, s.filters)
}

// UniqueBrands returns the brands of the full catalog, sorted.
func (s *Session) UniqueBrands() []string {
	return UniqueBrands(s.products)
}

// UniqueCategories returns the categories of the full catalog, sorted.
func (s *Session) UniqueCategories() []string {
	return UniqueCategories(s.products)
}

// Filters returns the active filters.
func (s *Session) Filters() model.Filters { return s.filters }

// SetFilters replaces the category and brand filters and the search query.
func (s *Session) SetFilters(f model.Filters) { s.filters = f }

// SetSearchQuery replaces only the search query.
func (s *Session) SetSearchQuery(q string) { s.filters.Query = q }

// === Product detail ===

// ShowProduct fetches one product and switches to the product view.
// On failure the host shows an alert and the view and current product are unchanged.
func (s *Session) ShowProduct(ctx context.Context, id int64) error {
	s.loading = true
	defer func() { s.loading = false }()

	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		s.logger.Error("failed to load product",
			slog.Int64("product_id", id),
			slog.String("error", err.Error()))
		s.host.ShowAlert(s.messages.LoadProductFailed)
		return fmt.Errorf("showing product %d: %w", id, err)
	}

	s.current = p
	s.selected = nil
	s.ShowView(model.ViewProduct)
	return nil
}

// CurrentProduct returns the product shown in the product view, if any.
func (s *Session) CurrentProduct() (model.Product, bool) {
	if s.current == nil {
		return model.Product{}, false
	}
	return *s.current, true
}

// SelectVariant makes v the active variant. Membership in the current
// product's variants is the caller's responsibility.
func (s *Session) SelectVariant(v model.Variant) {
	s.selected = &v
}

// SelectVariantByID selects a variant of the current product.
func (s *Session) SelectVariantByID(id int64) error {
	if s.current == nil {
		return fmt.Errorf("selecting variant %d: no product shown: %w", id, model.ErrVariantNotFound)
	}
	v, ok := s.current.Variant(id)
	if !ok {
		return fmt.Errorf("selecting variant %d of product %d: %w", id, s.current.ID, model.ErrVariantNotFound)
	}
	s.SelectVariant(v)
	return nil
}

// SelectedVariant returns the active variant, if any.
func (s *Session) SelectedVariant() (model.Variant, bool) {
	if s.selected == nil {
		return model.Variant{}, false
	}
	return *s.selected, true
}

// IsProductInCart reports whether the selected variant already has a cart line.
func (s *Session) IsProductInCart() bool {
	if s.selected == nil {
		return false
	}
	return s.cart.Contains(s.selected.ID)
}

// === Cart ===

// AddToCart adds the selected variant with quantity 1, snapshotting the
// current product's name and photo and the variant's size and price.
// A variant already in the cart is not added again; the host shows a notice
// instead. Reports whether the cart changed.
func (s *Session) AddToCart() bool {
	if s.selected == nil {
		return false
	}

	product := s.current
	if product == nil {
		product = &model.Product{}
	}
	if !s.cart.Add(model.NewCartLine(product, *s.selected)) {
		s.notifyDuplicate()
		return false
	}

	s.saveCart()
	if hostbridge.Supports(s.host.Version(), hostbridge.FeatureHaptics) {
		s.host.NotificationOccurred(hostbridge.NotificationSuccess)
	}
	s.syncChrome()
	return true
}

// UpdateQuantity adds delta to the line for variantID and removes the line
// when its quantity drops to zero or below. An unknown variant leaves the
// cart alone. The haptic cue and the save happen either way.
func (s *Session) UpdateQuantity(variantID int64, delta int) {
	s.cart.Adjust(variantID, delta)

	if hostbridge.Supports(s.host.Version(), hostbridge.FeatureHaptics) {
		s.host.ImpactOccurred(hostbridge.ImpactLight)
	}
	s.saveCart()
	s.syncChrome()
}

// Cart returns a copy of the cart lines.
func (s *Session) Cart() []model.CartLine {
	return s.cart.Clone()
}

// CartCount is the sum of quantities.
func (s *Session) CartCount() int { return s.cart.Count() }

// CartTotal is the sum of price × quantity.
func (s *Session) CartTotal() model.Amount { return s.cart.Total() }

// PlaceOrder sends the cart to the host as a newOrder event, then clears the
// cart and its stored snapshot. An empty cart is a no-op. Delivery is not
// acknowledged: the cart is cleared even when the host rejects the bytes, and
// that error is returned for the caller to report.
func (s *Session) PlaceOrder(ctx context.Context) error {
	if len(s.cart) == 0 {
		return nil
	}

	payload, err := json.Marshal(model.NewOrderEvent(s.cart))
	if err != nil {
		return fmt.Errorf("encoding order: %w", err)
	}

	count, total := s.cart.Count(), s.cart.Total()
	sendErr := s.host.SendData(ctx, payload)

	s.cart = model.Cart{}
	if err := s.store.Delete(ctx, s.cartKey); err != nil {
		s.logger.Warn("failed to delete cart snapshot", slog.String("error", err.Error()))
	}
	s.syncChrome()

	if sendErr != nil {
		s.logger.Error("order hand-off failed",
			slog.Int("items", count),
			slog.String("total", total.String()),
			slog.String("error", sendErr.Error()))
		return fmt.Errorf("sending order: %w", sendErr)
	}

	s.logger.Info("order placed",
		slog.Int("items", count),
		slog.String("total", total.String()))
	return nil
}

// === Navigation ===

// ShowView switches the active view, scrolls to the top, and syncs the host buttons.
func (s *Session) ShowView(v model.ViewState) {
	s.view = v
	s.host.ScrollToTop()
	s.syncChrome()
}

// syncChrome pushes the button state derived from the view and the cart.
// It runs after every cart mutation and view change.
func (s *Session) syncChrome() {
	hostbridge.ApplyChrome(s.host,
		hostbridge.DeriveChrome(s.view, s.cart.Count(), s.cart.Total(), s.messages.OrderButton))
}

func (s *Session) notifyDuplicate() {
	if !hostbridge.Supports(s.host.Version(), hostbridge.FeaturePopup) {
		s.host.ShowAlert(s.messages.DuplicateMessage)
		return
	}
	s.host.ShowPopup(hostbridge.Popup{
		Title:   s.messages.DuplicateTitle,
		Message: s.messages.DuplicateMessage,
		Buttons: []hostbridge.PopupButton{{Type: "ok"}},
	})
}

// === Persistence ===

// loadCart restores the stored snapshot. A snapshot that does not decode or
// breaks the cart invariants is ignored; the next mutation overwrites it.
func (s *Session) loadCart(ctx context.Context) {
	data, ok, err := s.store.Get(ctx, s.cartKey)
	if err != nil {
		s.logger.Warn("failed to read cart snapshot", slog.String("error", err.Error()))
		return
	}
	if !ok || len(data) == 0 {
		return
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		s.logger.Warn("discarding undecodable cart snapshot", slog.String("error", err.Error()))
		return
	}
	if err := cart.Validate(); err != nil {
		s.logger.Warn("discarding invalid cart snapshot", slog.String("error", err.Error()))
		return
	}

	s.cart = cart.Clone()
	s.logger.Debug("cart restored", slog.Int("lines", len(cart)))
}

func (s *Session) saveCart() {
	data, err := json.Marshal(s.cart.Clone())
	if err != nil {
		s.logger.Error("failed to encode cart", slog.String("error", err.Error()))
		return
	}
	// Persistence is best effort: the in-memory cart stays authoritative.
	if err := s.store.Set(context.Background(), s.cartKey, data); err != nil {
		s.logger.Warn("failed to save cart", slog.String("error", err.Error()))
	}
}
