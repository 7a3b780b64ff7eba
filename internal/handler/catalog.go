package handler

import (
	"net/http"
	"strconv"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// handleListProducts returns active products with in-stock variants, newest first.
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ActiveProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

// handleGetProduct returns one active product with its in-stock variants.
func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	product, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// pathID parses the {id} path value as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}
