package catalog

import (
	"context"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// Mock implements Service for testing.
// Each method can be configured via function fields.
type Mock struct {
	ListProductsFunc func(ctx context.Context) ([]model.Product, error)
	GetProductFunc   func(ctx context.Context, id int64) (*model.Product, error)
}

// ListProducts calls the configured ListProductsFunc or returns an empty catalog.
func (m *Mock) ListProducts(ctx context.Context) ([]model.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx)
	}
	return []model.Product{}, nil
}

// GetProduct calls the configured GetProductFunc or returns not found.
func (m *Mock) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("product")
}

// Verify Mock implements Service interface at compile time.
var _ Service = (*Mock)(nil)
