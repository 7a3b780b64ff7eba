// Package handler provides HTTP handlers for the storefront catalog API and
// the MCP shopper endpoint.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
	"github.com/Roman-G-men/vipsneaker-bot/internal/orders"
)

// Catalog serves active products. inventory.Repository implements it.
type Catalog interface {
	ActiveProducts(ctx context.Context) ([]model.Product, error)
	Product(ctx context.Context, id int64) (*model.Product, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	catalog Catalog
	orders  *orders.Processor
	logger  *slog.Logger
}

// New creates a new Handler. processor may be nil to serve the catalog only;
// the order routes are then not registered.
func New(catalog Catalog, processor *orders.Processor, logger *slog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		orders:  processor,
		logger:  logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Catalog read API consumed by storefront sessions
	mux.HandleFunc("GET /api/products", h.handleListProducts)
	mux.HandleFunc("GET /api/product/{id}", h.handleGetProduct)

	// Order intake for hosts relaying over HTTP
	if h.orders != nil {
		mux.HandleFunc("POST /api/orders", h.handleCreateOrder)
		mux.HandleFunc("GET /api/orders", h.handleListOrders)
	}

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
