package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Roman-G-men/vipsneaker-bot/internal/catalog"
	"github.com/Roman-G-men/vipsneaker-bot/internal/hostbridge"
	"github.com/Roman-G-men/vipsneaker-bot/internal/kvstore"
	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

var (
	sneaker = model.Product{
		ID: 1, Name: "Air Max", Brand: "Nike", Category: "Sneakers", PhotoURL: "/img/1.jpg",
		Variants: []model.Variant{{ID: 10, Size: "42", Price: 10000}, {ID: 11, Size: "43", Price: 10000}},
	}
	tee = model.Product{
		ID: 2, Name: "Logo Tee", Brand: "Vibes", Category: "Clothes", PhotoURL: "/img/2.jpg",
		Variants: []model.Variant{{ID: 20, Size: "M", Price: 5000}},
	}
)

func testCatalog() *catalog.Mock {
	return &catalog.Mock{
		ListProductsFunc: func(ctx context.Context) ([]model.Product, error) {
			return []model.Product{sneaker, tee}, nil
		},
		GetProductFunc: func(ctx context.Context, id int64) (*model.Product, error) {
			switch id {
			case sneaker.ID:
				p := sneaker
				return &p, nil
			case tee.ID:
				p := tee
				return &p, nil
			}
			return nil, model.NewNotFoundError("product")
		},
	}
}

type fixture struct {
	session *Session
	host    *hostbridge.Recorder
	store   *kvstore.Memory
	catalog *catalog.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		host:    &hostbridge.Recorder{},
		store:   kvstore.NewMemory(),
		catalog: testCatalog(),
	}
	f.session = New(f.catalog, f.host, f.store, Options{
		ID:     "test",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

// addVariant shows the product, selects the variant, and adds it.
func (f *fixture) addVariant(t *testing.T, productID, variantID int64) {
	t.Helper()
	ctx := context.Background()
	if err := f.session.ShowProduct(ctx, productID); err != nil {
		t.Fatalf("ShowProduct(%d): %v", productID, err)
	}
	if err := f.session.SelectVariantByID(variantID); err != nil {
		t.Fatalf("SelectVariantByID(%d): %v", variantID, err)
	}
	if !f.session.AddToCart() {
		t.Fatalf("AddToCart(%d) = false", variantID)
	}
}

func (f *fixture) storedCart(t *testing.T) (model.Cart, bool) {
	t.Helper()
	data, ok, err := f.store.Get(context.Background(), DefaultCartKey)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if !ok {
		return nil, false
	}
	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		t.Fatalf("stored cart is not JSON: %v (%s)", err, data)
	}
	return cart, true
}

func TestStart(t *testing.T) {
	f := newFixture(t)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !f.host.Expanded {
		t.Error("host was not expanded")
	}
	if got := len(f.session.Products()); got != 2 {
		t.Errorf("len(Products) = %d, want 2", got)
	}
	if f.session.Loading() {
		t.Error("loading flag still set after Start")
	}
	if f.host.MainVisible || f.host.BackVisible {
		t.Errorf("catalog view should hide both buttons: main=%v back=%v", f.host.MainVisible, f.host.BackVisible)
	}
}

func TestStartRestoresCart(t *testing.T) {
	f := newFixture(t)
	snapshot := `[{"variant_id":10,"product_name":"Air Max","photo_url":"/img/1.jpg","size":"42","price":100,"quantity":2}]`
	f.store.Set(context.Background(), DefaultCartKey, []byte(snapshot))

	f.session.Start(context.Background())

	if got := f.session.CartCount(); got != 2 {
		t.Errorf("CartCount = %d, want 2", got)
	}
	if got := f.session.CartTotal(); got != 20000 {
		t.Errorf("CartTotal = %d, want 20000", got)
	}
}

func TestStartDiscardsCorruptCart(t *testing.T) {
	tests := []struct {
		name     string
		snapshot string
	}{
		{"not json", `{oops`},
		{"wrong shape", `{"variant_id": 1}`},
		{"zero quantity", `[{"variant_id":10,"price":100,"quantity":0}]`},
		{"duplicate variant", `[{"variant_id":10,"price":100,"quantity":1},{"variant_id":10,"price":100,"quantity":1}]`},
		{"bad price", `[{"variant_id":10,"price":"free","quantity":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.Set(context.Background(), DefaultCartKey, []byte(tt.snapshot))

			f.session.Start(context.Background())

			if got := f.session.CartCount(); got != 0 {
				t.Errorf("CartCount = %d, want 0", got)
			}

			// The next mutation overwrites the bad snapshot.
			f.addVariant(t, 1, 10)
			cart, ok := f.storedCart(t)
			if !ok || len(cart) != 1 || cart[0].VariantID != 10 {
				t.Errorf("stored cart = %+v, ok=%v", cart, ok)
			}
		})
	}
}

func TestLoadProductsFailureKeepsCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.session.LoadProducts(ctx); err != nil {
		t.Fatalf("first LoadProducts: %v", err)
	}

	f.catalog.ListProductsFunc = func(ctx context.Context) ([]model.Product, error) {
		return nil, model.NewUpstreamError("catalog", errors.New("connection refused"))
	}
	err := f.session.LoadProducts(ctx)
	if !errors.Is(err, model.ErrUpstreamError) {
		t.Fatalf("error = %v, want upstream error", err)
	}

	if got := len(f.session.Products()); got != 2 {
		t.Errorf("catalog replaced on failure: %d products", got)
	}
	if len(f.host.Alerts) != 1 || f.host.Alerts[0] != "Не удалось загрузить товары." {
		t.Errorf("Alerts = %v", f.host.Alerts)
	}
	if f.session.Loading() {
		t.Error("loading flag not cleared after failure")
	}
}

func TestLoadProductsFailureOnFirstLoadLeavesEmptyCatalog(t *testing.T) {
	f := newFixture(t)
	f.catalog.ListProductsFunc = func(ctx context.Context) ([]model.Product, error) {
		return nil, errors.New("dns failure")
	}

	if err := f.session.Start(context.Background()); err == nil {
		t.Fatal("Start should report the catalog failure")
	}
	if got := f.session.Products(); got == nil || len(got) != 0 {
		t.Errorf("Products = %v, want empty", got)
	}
	if len(f.session.FilteredProducts()) != 0 {
		t.Error("FilteredProducts should be empty")
	}
}

func TestSessionFilters(t *testing.T) {
	f := newFixture(t)
	f.session.LoadProducts(context.Background())

	f.session.SetFilters(model.Filters{Brand: "Vibes"})
	if got := ids(f.session.FilteredProducts()); len(got) != 1 || got[0] != 2 {
		t.Errorf("brand filter = %v, want [2]", got)
	}

	f.session.SetFilters(model.Filters{})
	f.session.SetSearchQuery("air")
	if got := ids(f.session.FilteredProducts()); len(got) != 1 || got[0] != 1 {
		t.Errorf("search = %v, want [1]", got)
	}
	if f.session.Filters().Query != "air" {
		t.Errorf("Filters().Query = %q", f.session.Filters().Query)
	}

	// Brands come from the full catalog, not the filtered view.
	if got := f.session.UniqueBrands(); len(got) != 2 {
		t.Errorf("UniqueBrands = %v", got)
	}
	if got := f.session.UniqueCategories(); len(got) != 2 {
		t.Errorf("UniqueCategories = %v", got)
	}
}

func TestShowProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.session.ShowProduct(ctx, 1); err != nil {
		t.Fatalf("ShowProduct: %v", err)
	}
	f.session.SelectVariant(sneaker.Variants[0])

	if err := f.session.ShowProduct(ctx, 2); err != nil {
		t.Fatalf("ShowProduct: %v", err)
	}

	if f.session.View() != model.ViewProduct {
		t.Errorf("View = %v, want product", f.session.View())
	}
	if p, ok := f.session.CurrentProduct(); !ok || p.ID != 2 {
		t.Errorf("CurrentProduct = %+v, %v", p, ok)
	}
	if _, ok := f.session.SelectedVariant(); ok {
		t.Error("selected variant should be cleared on product change")
	}
	if f.host.CallCount("ScrollToTop") != 2 {
		t.Errorf("ScrollToTop called %d times", f.host.CallCount("ScrollToTop"))
	}
	if !f.host.BackVisible {
		t.Error("back button should be visible on product view")
	}
}

func TestShowProductFailureLeavesViewUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.session.ShowView(model.ViewCart)

	err := f.session.ShowProduct(ctx, 99)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}

	if f.session.View() != model.ViewCart {
		t.Errorf("View = %v, want cart", f.session.View())
	}
	if _, ok := f.session.CurrentProduct(); ok {
		t.Error("no product should be current")
	}
	if len(f.host.Alerts) != 1 || f.host.Alerts[0] != "Не удалось загрузить информацию о товаре." {
		t.Errorf("Alerts = %v", f.host.Alerts)
	}
}

func TestSelectVariantByID(t *testing.T) {
	f := newFixture(t)

	if err := f.session.SelectVariantByID(10); !errors.Is(err, model.ErrVariantNotFound) {
		t.Errorf("without product: error = %v", err)
	}

	f.session.ShowProduct(context.Background(), 1)
	if err := f.session.SelectVariantByID(20); !errors.Is(err, model.ErrVariantNotFound) {
		t.Errorf("foreign variant: error = %v", err)
	}
	if err := f.session.SelectVariantByID(11); err != nil {
		t.Fatalf("SelectVariantByID: %v", err)
	}
	if v, ok := f.session.SelectedVariant(); !ok || v.Size != "43" {
		t.Errorf("SelectedVariant = %+v, %v", v, ok)
	}
}

func TestAddToCartRequiresVariant(t *testing.T) {
	f := newFixture(t)
	f.session.ShowProduct(context.Background(), 1)

	if f.session.AddToCart() {
		t.Error("AddToCart without variant should be a no-op")
	}
	if len(f.session.Cart()) != 0 {
		t.Error("cart mutated")
	}
	if _, ok := f.storedCart(t); ok {
		t.Error("store written")
	}
}

func TestAddToCart(t *testing.T) {
	f := newFixture(t)

	f.addVariant(t, 1, 10)

	cart := f.session.Cart()
	want := model.CartLine{VariantID: 10, ProductName: "Air Max", PhotoURL: "/img/1.jpg", Size: "42", Price: 10000, Quantity: 1}
	if len(cart) != 1 || cart[0] != want {
		t.Fatalf("Cart = %+v, want [%+v]", cart, want)
	}
	if !f.session.IsProductInCart() {
		t.Error("IsProductInCart = false after add")
	}
	if len(f.host.Notifications) != 1 || f.host.Notifications[0] != hostbridge.NotificationSuccess {
		t.Errorf("Notifications = %v", f.host.Notifications)
	}
	if stored, ok := f.storedCart(t); !ok || len(stored) != 1 {
		t.Errorf("stored cart = %+v", stored)
	}
}

func TestAddToCartDuplicate(t *testing.T) {
	f := newFixture(t)
	f.addVariant(t, 1, 10)
	f.session.UpdateQuantity(10, 2)

	if f.session.AddToCart() {
		t.Error("second AddToCart should be rejected")
	}

	cart := f.session.Cart()
	if len(cart) != 1 || cart[0].Quantity != 3 {
		t.Errorf("Cart = %+v, want one line with quantity 3", cart)
	}
	if len(f.host.Popups) != 1 {
		t.Fatalf("Popups = %v", f.host.Popups)
	}
	p := f.host.Popups[0]
	if p.Title != "Уведомление" || p.Message != "Этот товар уже в корзине. Вы можете изменить количество в корзине." {
		t.Errorf("popup = %+v", p)
	}
	if len(p.Buttons) != 1 || p.Buttons[0].Type != "ok" {
		t.Errorf("popup buttons = %+v", p.Buttons)
	}
	if len(f.host.Notifications) != 1 {
		t.Error("duplicate add should not fire a success haptic")
	}
}

func TestAddToCartDuplicateOnOldHostFallsBackToAlert(t *testing.T) {
	f := newFixture(t)
	f.host.HostVersion = "6.0"
	f.addVariant(t, 1, 10)

	f.session.AddToCart()

	if len(f.host.Popups) != 0 {
		t.Error("popup shown on a host without popups")
	}
	if len(f.host.Alerts) != 1 {
		t.Errorf("Alerts = %v", f.host.Alerts)
	}
	if len(f.host.Notifications) != 0 || f.host.CallCount("SetBackButton") != 0 {
		t.Error("haptics and back button must be skipped on 6.0 hosts")
	}
}

func TestAddToCartSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	f.addVariant(t, 1, 10)

	// The catalog reprices; the cart line keeps the add-time price.
	f.catalog.GetProductFunc = func(ctx context.Context, id int64) (*model.Product, error) {
		p := sneaker
		p.Name = "Air Max (sale)"
		p.Variants = []model.Variant{{ID: 10, Size: "42", Price: 1}}
		return &p, nil
	}
	f.session.ShowProduct(context.Background(), 1)

	line := f.session.Cart()[0]
	if line.Price != 10000 || line.ProductName != "Air Max" {
		t.Errorf("line changed with catalog: %+v", line)
	}
}

func TestUpdateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		delta     int
		wantLines int
		wantQty   int
	}{
		{"increment", 2, 1, 3},
		{"zero delta keeps line", 0, 1, 1},
		{"to exactly zero", -1, 0, 0},
		{"below zero", -5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addVariant(t, 1, 10)

			f.session.UpdateQuantity(10, tt.delta)

			cart := f.session.Cart()
			if len(cart) != tt.wantLines {
				t.Fatalf("lines = %d, want %d", len(cart), tt.wantLines)
			}
			if tt.wantLines == 1 {
				if cart[0].Quantity != tt.wantQty {
					t.Errorf("quantity = %d, want %d", cart[0].Quantity, tt.wantQty)
				}
				if cart[0].Price != 10000 || cart[0].ProductName != "Air Max" || cart[0].Size != "42" {
					t.Errorf("snapshot changed: %+v", cart[0])
				}
			}
			if len(f.host.Impacts) != 1 || f.host.Impacts[0] != hostbridge.ImpactLight {
				t.Errorf("Impacts = %v", f.host.Impacts)
			}
			stored, _ := f.storedCart(t)
			if len(stored) != tt.wantLines {
				t.Errorf("stored lines = %d, want %d", len(stored), tt.wantLines)
			}
		})
	}
}

func TestUpdateQuantityUnknownVariant(t *testing.T) {
	f := newFixture(t)
	f.addVariant(t, 1, 10)

	f.session.UpdateQuantity(999, 1)

	if got := f.session.CartCount(); got != 1 {
		t.Errorf("CartCount = %d, want 1", got)
	}
	if len(f.host.Impacts) != 1 {
		t.Error("haptic cue should fire even for an unknown variant")
	}
}

// Add A (100), add B (50) and bump it by +2: A x1 + B x3 is count 4, total 250.
func TestScenarioCountAndTotal(t *testing.T) {
	f := newFixture(t)
	f.catalog.GetProductFunc = func(ctx context.Context, id int64) (*model.Product, error) {
		switch id {
		case 1:
			return &model.Product{ID: 1, Name: "A", Variants: []model.Variant{{ID: 1, Price: 10000}}}, nil
		case 2:
			return &model.Product{ID: 2, Name: "B", Variants: []model.Variant{{ID: 2, Price: 5000}}}, nil
		}
		return nil, model.NewNotFoundError("product")
	}

	f.addVariant(t, 1, 1)
	f.addVariant(t, 2, 2)
	f.session.UpdateQuantity(2, 2)

	if got := f.session.CartCount(); got != 4 {
		t.Errorf("CartCount = %d, want 4", got)
	}
	if got := f.session.CartTotal(); got != 25000 {
		t.Errorf("CartTotal = %s, want 250", got)
	}

	f.session.ShowView(model.ViewCart)
	if !f.host.MainVisible || f.host.MainText != "Оформить заказ на 250 ₽" {
		t.Errorf("main button = %q visible=%v", f.host.MainText, f.host.MainVisible)
	}
}

// Add A, then -5: the line is gone and the store holds an empty array.
func TestScenarioRemoveByLargeDecrement(t *testing.T) {
	f := newFixture(t)
	f.addVariant(t, 1, 10)

	f.session.UpdateQuantity(10, -5)

	if len(f.session.Cart()) != 0 {
		t.Errorf("Cart = %+v, want empty", f.session.Cart())
	}
	data, ok, _ := f.store.Get(context.Background(), DefaultCartKey)
	if !ok || string(data) != "[]" {
		t.Errorf("stored = %q (ok=%v), want []", data, ok)
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	f.addVariant(t, 1, 10)
	f.addVariant(t, 2, 20)
	f.session.UpdateQuantity(20, 1)
	f.session.ShowView(model.ViewCart)

	if err := f.session.PlaceOrder(context.Background()); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(f.host.Sent) != 1 {
		t.Fatalf("Sent %d payloads, want 1", len(f.host.Sent))
	}
	var event struct {
		Event string `json:"event"`
		Data  struct {
			Items       []map[string]any `json:"items"`
			TotalAmount float64          `json:"total_amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(f.host.Sent[0], &event); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if event.Event != "newOrder" || len(event.Data.Items) != 2 || event.Data.TotalAmount != 200 {
		t.Errorf("event = %+v", event)
	}
	if event.Data.Items[1]["quantity"] != float64(2) {
		t.Errorf("second item = %v", event.Data.Items[1])
	}

	if f.session.CartCount() != 0 {
		t.Error("cart not cleared")
	}
	if _, ok := f.storedCart(t); ok {
		t.Error("stored snapshot not deleted")
	}
	if f.host.MainVisible {
		t.Error("main button should hide once the cart is empty")
	}
}

func TestPlaceOrderEmptyCartIsNoop(t *testing.T) {
	f := newFixture(t)
	f.session.ShowView(model.ViewCart)
	before := len(f.host.Calls)

	if err := f.session.PlaceOrder(context.Background()); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if len(f.host.Sent) != 0 {
		t.Error("empty order sent")
	}
	if len(f.host.Calls) != before {
		t.Errorf("host touched: %v", f.host.Calls[before:])
	}
}

func TestPlaceOrderSendFailureStillClearsCart(t *testing.T) {
	f := newFixture(t)
	f.host.SendErr = errors.New("host closed")
	f.addVariant(t, 1, 10)

	err := f.session.PlaceOrder(context.Background())
	if !errors.Is(err, f.host.SendErr) {
		t.Fatalf("error = %v, want host error", err)
	}
	if f.session.CartCount() != 0 {
		t.Error("cart not cleared after failed send")
	}
	if _, ok := f.storedCart(t); ok {
		t.Error("snapshot not deleted after failed send")
	}
}

func TestHostSignals(t *testing.T) {
	f := newFixture(t)
	f.session.Start(context.Background())
	f.addVariant(t, 1, 10)
	f.session.ShowView(model.ViewCart)

	f.host.TriggerMainButton()
	if len(f.host.Sent) != 1 {
		t.Errorf("main button sent %d orders, want 1", len(f.host.Sent))
	}

	f.host.TriggerBack()
	if f.session.View() != model.ViewCatalog {
		t.Errorf("View after back = %v, want catalog", f.session.View())
	}
	if f.host.BackVisible {
		t.Error("back button visible on catalog")
	}
}

func TestChromeFollowsCartAndView(t *testing.T) {
	f := newFixture(t)
	f.session.ShowView(model.ViewCart)
	if f.host.MainVisible {
		t.Error("main button visible with empty cart")
	}

	f.addVariant(t, 1, 10) // switches to product view
	if f.host.MainVisible {
		t.Error("main button visible outside the cart view")
	}

	f.session.ShowView(model.ViewCart)
	if !f.host.MainVisible || f.host.MainText != "Оформить заказ на 100 ₽" {
		t.Errorf("main = %q visible=%v", f.host.MainText, f.host.MainVisible)
	}

	f.session.UpdateQuantity(10, 1)
	if f.host.MainText != "Оформить заказ на 200 ₽" {
		t.Errorf("main text after increment = %q", f.host.MainText)
	}

	f.session.UpdateQuantity(10, -2)
	if f.host.MainVisible {
		t.Error("main button visible after cart emptied")
	}
}

type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, s.err }
func (s failingStore) Set(context.Context, string, []byte) error          { return s.err }
func (s failingStore) Delete(context.Context, string) error               { return s.err }

func TestPersistenceErrorsAreNotFatal(t *testing.T) {
	host := &hostbridge.Recorder{}
	s := New(testCatalog(), host, failingStore{errors.New("disk full")}, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.ShowProduct(context.Background(), 1)
	s.SelectVariantByID(10)
	if !s.AddToCart() {
		t.Fatal("AddToCart failed on store error")
	}
	if err := s.PlaceOrder(context.Background()); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(host.Sent) != 1 || s.CartCount() != 0 {
		t.Errorf("sent=%d count=%d", len(host.Sent), s.CartCount())
	}
	if s.ID() == "" {
		t.Error("generated session ID is empty")
	}
}

func TestCustomCartKey(t *testing.T) {
	store := kvstore.NewMemory()
	s := New(testCatalog(), &hostbridge.Recorder{}, store, Options{
		CartKey: "cart:42",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.ShowProduct(context.Background(), 2)
	s.SelectVariantByID(20)
	s.AddToCart()

	if _, ok, _ := store.Get(context.Background(), "cart:42"); !ok {
		t.Error("cart not stored under custom key")
	}
	if _, ok, _ := store.Get(context.Background(), DefaultCartKey); ok {
		t.Error("cart stored under default key")
	}
}
