package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func mustCreate(t *testing.T, r *Repository, p model.Product) *model.Product {
	t.Helper()
	out, err := r.CreateProduct(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", p.Name, err)
	}
	return out
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &Repository{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b >= ?"); got != "a = $1 AND b >= $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &Repository{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestActiveProducts(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	older := mustCreate(t, r, model.Product{Name: "Air Max", Brand: "Nike", Category: "Sneakers", PhotoURL: "/1.jpg",
		Variants: []model.Variant{{Size: "42", Price: 1299000, Stock: 2}, {Size: "43", Price: 1299000, Stock: 0}}})
	mustCreate(t, r, model.Product{Name: "Sold Out", Brand: "Nike", Category: "Sneakers", PhotoURL: "/2.jpg",
		Variants: []model.Variant{{Size: "40", Price: 100, Stock: 0}}})
	hidden := mustCreate(t, r, model.Product{Name: "Hidden", Brand: "Vibes", Category: "Clothes", PhotoURL: "/3.jpg",
		Variants: []model.Variant{{Size: "M", Price: 100, Stock: 1}}})
	newer := mustCreate(t, r, model.Product{Name: "Tee", Brand: "Vibes", Category: "Clothes", PhotoURL: "/4.jpg",
		Variants: []model.Variant{{Size: "S", Price: 250000, Stock: 1}, {Size: "M", Price: 250000, Stock: 3}}})

	if err := r.SetActive(ctx, hidden.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	products, err := r.ActiveProducts(ctx)
	if err != nil {
		t.Fatalf("ActiveProducts: %v", err)
	}

	if len(products) != 2 {
		t.Fatalf("len(products) = %d, want 2: %+v", len(products), products)
	}
	if products[0].ID != newer.ID || products[1].ID != older.ID {
		t.Errorf("order = [%d %d], want newest first [%d %d]", products[0].ID, products[1].ID, newer.ID, older.ID)
	}
	if len(products[0].Variants) != 2 {
		t.Errorf("Tee variants = %+v", products[0].Variants)
	}
	if len(products[1].Variants) != 1 || products[1].Variants[0].Size != "42" {
		t.Errorf("Air Max variants = %+v, want only in-stock 42", products[1].Variants)
	}
	if products[1].Variants[0].Price != 1299000 {
		t.Errorf("price = %d", products[1].Variants[0].Price)
	}
}

func TestActiveProductsEmpty(t *testing.T) {
	products, err := testRepo(t).ActiveProducts(context.Background())
	if err != nil {
		t.Fatalf("ActiveProducts: %v", err)
	}
	if products == nil || len(products) != 0 {
		t.Errorf("products = %#v, want empty non-nil", products)
	}
}

func TestProduct(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	p := mustCreate(t, r, model.Product{Name: "Air Max", Brand: "Nike", Category: "Sneakers", PhotoURL: "/1.jpg",
		Description: "Classic", Composition: "Leather",
		Variants: []model.Variant{{Size: "42", Price: 100, Stock: 1}, {Size: "43", Price: 100, Stock: 0}}})

	got, err := r.Product(ctx, p.ID)
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if got.Description != "Classic" || got.Composition != "Leather" {
		t.Errorf("product = %+v", got)
	}
	if len(got.Variants) != 1 || got.Variants[0].Stock != 1 {
		t.Errorf("variants = %+v", got.Variants)
	}

	if _, err := r.Product(ctx, 999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing product error = %v", err)
	}

	r.SetActive(ctx, p.ID, false)
	if _, err := r.Product(ctx, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("inactive product error = %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	if _, err := r.CreateProduct(ctx, model.Product{}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("empty name error = %v", err)
	}
	_, err := r.CreateProduct(ctx, model.Product{Name: "X", Variants: []model.Variant{{Size: "1", Price: -1}}})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("negative price error = %v", err)
	}

	// The failed insert is rolled back entirely.
	products, _ := r.ActiveProducts(ctx)
	var count int
	r.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&count)
	if count != 0 || len(products) != 0 {
		t.Errorf("partial product left behind: count=%d", count)
	}
}

func TestSetActiveMissing(t *testing.T) {
	if err := testRepo(t).SetActive(context.Background(), 42, true); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestCreateOrder(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	p := mustCreate(t, r, model.Product{Name: "Air Max", Brand: "Nike", Category: "Sneakers", PhotoURL: "/1.jpg",
		Variants: []model.Variant{{Size: "42", Price: 10000, Stock: 3}, {Size: "43", Price: 10000, Stock: 1}}})
	v42, v43 := p.Variants[0].ID, p.Variants[1].ID

	data := model.OrderData{
		Items: []model.CartLine{
			{VariantID: v42, ProductName: "Air Max", Size: "42", Price: 10000, Quantity: 2},
			{VariantID: v43, ProductName: "Air Max", Size: "43", Price: 10000, Quantity: 1},
		},
		TotalAmount: 30000,
	}
	order, err := r.CreateOrder(ctx, 555, data)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.ID == 0 || order.UserID != 555 || order.Status != "Обработка" || order.TotalAmount != 30000 {
		t.Errorf("order = %+v", order)
	}

	got, _ := r.Product(ctx, p.ID)
	if len(got.Variants) != 1 || got.Variants[0].ID != v42 || got.Variants[0].Stock != 1 {
		t.Errorf("stock after order = %+v, want 42 with 1 left and 43 sold out", got.Variants)
	}
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	p := mustCreate(t, r, model.Product{Name: "Air Max", Brand: "Nike", Category: "Sneakers", PhotoURL: "/1.jpg",
		Variants: []model.Variant{{Size: "42", Price: 100, Stock: 5}, {Size: "43", Price: 100, Stock: 1}}})

	_, err := r.CreateOrder(ctx, 1, model.OrderData{
		Items: []model.CartLine{
			{VariantID: p.Variants[0].ID, Quantity: 2},
			{VariantID: p.Variants[1].ID, Quantity: 2},
		},
	})
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("error = %v, want insufficient stock", err)
	}

	got, _ := r.Product(ctx, p.ID)
	if got.Variants[0].Stock != 5 {
		t.Errorf("first variant stock = %d, want 5 (rolled back)", got.Variants[0].Stock)
	}
	orders, _ := r.RecentOrders(ctx, 1, 0)
	if len(orders) != 0 {
		t.Errorf("orders recorded despite failure: %d", len(orders))
	}
}

func TestCreateOrderRejects(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		data    model.OrderData
		wantErr error
	}{
		{"no items", model.OrderData{}, model.ErrInvalidRequest},
		{"zero quantity", model.OrderData{Items: []model.CartLine{{VariantID: 1, Quantity: 0}}}, model.ErrInvalidRequest},
		{"unknown variant", model.OrderData{Items: []model.CartLine{{VariantID: 404, Quantity: 1}}}, model.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.CreateOrder(ctx, 1, tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecentOrders(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	p := mustCreate(t, r, model.Product{Name: "Tee", Brand: "Vibes", Category: "Clothes", PhotoURL: "/t.jpg",
		Variants: []model.Variant{{Size: "M", Price: 100, Stock: 100}}})
	line := model.CartLine{VariantID: p.Variants[0].ID, ProductName: "Tee", Size: "M", Price: 100, Quantity: 1}

	var last int64
	for i := 0; i < 7; i++ {
		o, err := r.CreateOrder(ctx, 10, model.OrderData{Items: []model.CartLine{line}, TotalAmount: 100})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		last = o.ID
	}
	r.CreateOrder(ctx, 20, model.OrderData{Items: []model.CartLine{line}, TotalAmount: 100})

	orders, err := r.RecentOrders(ctx, 10, RecentOrdersLimit)
	if err != nil {
		t.Fatalf("RecentOrders: %v", err)
	}
	if len(orders) != 5 {
		t.Fatalf("len(orders) = %d, want 5", len(orders))
	}
	if orders[0].ID != last {
		t.Errorf("first order = %d, want newest %d", orders[0].ID, last)
	}
	for _, o := range orders {
		if o.UserID != 10 || len(o.Items) != 1 || o.Items[0].ProductName != "Tee" {
			t.Errorf("order = %+v", o)
		}
		if o.CreatedAt.IsZero() {
			t.Error("created_at not scanned")
		}
	}

	none, _ := r.RecentOrders(ctx, 99, 5)
	if none == nil || len(none) != 0 {
		t.Errorf("orders of unknown user = %#v", none)
	}
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "catalog.yaml")
	os.WriteFile(yamlPath, []byte(`
- name: Air Max
  brand: Nike
  category: Sneakers
  photo_url: /img/airmax.jpg
  variants:
    - {size: "42", price: 12990.5, stock: 2}
- name: Tee
  brand: Vibes
  category: Clothes
  photo_url: /img/tee.jpg
  variants:
    - {size: M, price: 2500, stock: 1}
`), 0o644)

	products, err := LoadSeedFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if len(products) != 2 || products[0].Variants[0].Price != 1299050 || products[0].PhotoURL != "/img/airmax.jpg" {
		t.Fatalf("products = %+v", products)
	}

	r := testRepo(t)
	ctx := context.Background()
	n, err := r.Seed(ctx, products)
	if err != nil || n != 2 {
		t.Fatalf("Seed = %d, %v", n, err)
	}
	n, err = r.Seed(ctx, products)
	if err != nil || n != 0 {
		t.Errorf("second Seed = %d, %v, want 0 (already seeded)", n, err)
	}

	active, _ := r.ActiveProducts(ctx)
	if len(active) != 2 {
		t.Errorf("active products = %d", len(active))
	}
}

func TestLoadSeedFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	os.WriteFile(path, []byte(`[{"name":"Samba","brand":"Adidas","category":"Sneakers","photo_url":"/s.jpg",
		"variants":[{"size":"41","price":9990,"stock":4}]}]`), 0o644)

	products, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if len(products) != 1 || products[0].Variants[0].Stock != 4 || products[0].Variants[0].Price != 999000 {
		t.Errorf("products = %+v", products)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`{`), 0o644)
	if _, err := LoadSeedFile(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestProductPage(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	var ids []int64
	for i := range 7 {
		p := mustCreate(t, r, model.Product{
			Name: fmt.Sprintf("P%d", i), Brand: "B", Category: "C", PhotoURL: "/p.jpg",
			Variants: []model.Variant{{Size: "M", Price: 100, Stock: 0}, {Size: "L", Price: 200, Stock: 1}},
		})
		ids = append(ids, p.ID)
	}
	if err := r.SetActive(ctx, ids[6], false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	tests := []struct {
		name      string
		page      int
		wantCount int
		wantFirst int64
	}{
		{"first page newest first", 0, AdminPageSize, ids[6]},
		{"last page", 1, 2, ids[1]},
		{"past the end", 2, 0, 0},
		{"negative page is first", -1, AdminPageSize, ids[6]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, total, err := r.ProductPage(ctx, tt.page, 0)
			if err != nil {
				t.Fatalf("ProductPage: %v", err)
			}
			if total != 7 {
				t.Errorf("total = %d, want 7", total)
			}
			if len(page) != tt.wantCount {
				t.Fatalf("len(page) = %d, want %d", len(page), tt.wantCount)
			}
			if tt.wantCount > 0 && page[0].ID != tt.wantFirst {
				t.Errorf("first ID = %d, want %d", page[0].ID, tt.wantFirst)
			}
		})
	}

	page, _, _ := r.ProductPage(ctx, 0, 0)
	if page[0].Active {
		t.Error("hidden product should be listed as inactive")
	}
	if !page[1].Active {
		t.Error("visible product should be listed as active")
	}
	if len(page[0].Variants) != 2 {
		t.Errorf("listing keeps out-of-stock variants, got %d", len(page[0].Variants))
	}
}

func TestDeleteProduct(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	p := mustCreate(t, r, model.Product{
		Name: "Samba", Brand: "Adidas", Category: "Sneakers", PhotoURL: "/s.jpg",
		Variants: []model.Variant{{Size: "41", Price: 999000, Stock: 3}},
	})

	if err := r.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if _, err := r.Product(ctx, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Product after delete = %v, want not found", err)
	}
	if _, total, _ := r.ProductPage(ctx, 0, 0); total != 0 {
		t.Errorf("total after delete = %d, want 0", total)
	}
	var variants int
	r.db.QueryRow(`SELECT COUNT(*) FROM product_variants`).Scan(&variants)
	if variants != 0 {
		t.Errorf("variants left after delete = %d", variants)
	}

	if err := r.DeleteProduct(ctx, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second DeleteProduct = %v, want not found", err)
	}
}
