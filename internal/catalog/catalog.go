// Package catalog reads products from the storefront's catalog API.
package catalog

import (
	"context"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// Service is the read side of the product catalog.
type Service interface {
	// ListProducts returns every product currently on sale. Variants carry
	// only in-stock sizes; the order is whatever the server chose.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// GetProduct returns one product with its variants.
	// Returns an error wrapping model.ErrNotFound when the id is unknown.
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
}
