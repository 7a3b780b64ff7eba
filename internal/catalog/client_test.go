package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

const productsJSON = `[
	{"id": 1, "name": "Air Max", "brand": "Nike", "category": "Sneakers", "photo_url": "/img/1.jpg",
	 "variants": [{"id": 10, "size": "42", "price": 12990}, {"id": 11, "size": "43", "price": "12990.50"}]},
	{"id": 2, "name": "Hoodie", "brand": "Vibes", "category": "Clothes", "photo_url": "/img/2.jpg", "variants": []}
]`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL: srv.URL + "/",
		Client:  model.ClientInfo{Platform: "terminal", Version: "6.9", Session: "abc"},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestListProducts(t *testing.T) {
	var gotPath, gotHeader string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get(model.ClientHeader)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(productsJSON))
	})

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}

	if gotPath != "/api/products" {
		t.Errorf("path = %q, want /api/products", gotPath)
	}
	if gotHeader != `platform="terminal", version="6.9", session="abc"` {
		t.Errorf("%s = %q", model.ClientHeader, gotHeader)
	}
	if len(products) != 2 {
		t.Fatalf("len(products) = %d, want 2", len(products))
	}
	if products[0].Variants[0].Price != 1299000 {
		t.Errorf("numeric price = %d, want 1299000", products[0].Variants[0].Price)
	}
	if products[0].Variants[1].Price != 1299050 {
		t.Errorf("string price = %d, want 1299050", products[0].Variants[1].Price)
	}
}

func TestListProductsNullBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	})

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if products == nil || len(products) != 0 {
		t.Errorf("products = %#v, want empty non-nil slice", products)
	}
}

func TestGetProduct(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/product/1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id": 1, "name": "Air Max", "brand": "Nike", "category": "Sneakers",
			"description": "Classic", "variants": [{"id": 10, "size": "42", "price": 100}]}`))
	})

	p, err := c.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.Name != "Air Max" || p.Description != "Classic" || len(p.Variants) != 1 {
		t.Errorf("unexpected product: %+v", p)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		wantCode string
	}{
		{"not found legacy body", 404, `{"error": "Product not found"}`, model.ErrNotFound, "NOT_FOUND"},
		{"not found structured body", 404, `{"error": {"code": "NOT_FOUND", "message": "product not found"}}`, model.ErrNotFound, "NOT_FOUND"},
		{"rate limited", 429, ``, model.ErrRateLimited, "RATE_LIMITED"},
		{"bad request", 400, `{"error": "bad id"}`, model.ErrInvalidRequest, "VALIDATION_ERROR"},
		{"server error", 500, `oops`, model.ErrUpstreamError, "UPSTREAM_ERROR"},
		{"malformed success body", 200, `{"id":`, model.ErrUpstreamError, "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GetProduct(context.Background(), 7)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Errorf("APIError code = %v, want %s", apiErr, tt.wantCode)
			}
		})
	}
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.ListProducts(context.Background())
	if !errors.Is(err, model.ErrUpstreamError) {
		t.Errorf("error = %v, want upstream error", err)
	}
}

func TestEncodeClientHeader(t *testing.T) {
	tests := []struct {
		name string
		info model.ClientInfo
		want string
	}{
		{"empty", model.ClientInfo{}, ""},
		{"platform only", model.ClientInfo{Platform: "mcp"}, `platform="mcp"`},
		{"quotes escaped", model.ClientInfo{Session: `a"b`}, `session="a\"b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeClientHeader(tt.info)
			if err != nil {
				t.Fatalf("encodeClientHeader: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeClientHeaderRejectsNonASCII(t *testing.T) {
	_, err := NewClient(Config{Client: model.ClientInfo{Platform: "телеграм"}})
	if err == nil || !strings.Contains(err.Error(), "client header") {
		t.Errorf("error = %v, want client header encoding error", err)
	}
}

func TestMockDefaults(t *testing.T) {
	m := &Mock{}
	products, err := m.ListProducts(context.Background())
	if err != nil || len(products) != 0 {
		t.Errorf("ListProducts = %v, %v", products, err)
	}
	if _, err := m.GetProduct(context.Background(), 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetProduct error = %v, want not found", err)
	}
}
