package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// createOrderResponse is returned for a recorded order.
type createOrderResponse struct {
	Order    *model.Order `json:"order"`
	Caption  string       `json:"caption"`
	PhotoURL string       `json:"photo_url,omitempty"`
}

// ignoredResponse is returned for events that carry no order.
type ignoredResponse struct {
	Ignored bool `json:"ignored"`
}

// handleCreateOrder records a newOrder event relayed by a host.
// The buyer is identified by the X-Telegram-User-Id header.
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r.Header.Get(model.UserIDHeader), model.UserIDHeader)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload json.RawMessage
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.orders.Handle(r.Context(), userID, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Order == nil {
		h.writeJSON(w, http.StatusOK, ignoredResponse{Ignored: true})
		return
	}

	h.writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:    res.Order,
		Caption:  res.Caption,
		PhotoURL: res.PhotoURL,
	})
}

// handleListOrders returns the user's most recent orders.
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r.URL.Query().Get("user_id"), "user_id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	list, err := h.orders.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []model.Order{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

func parseUserID(raw, field string) (int64, error) {
	if raw == "" {
		return 0, model.NewValidationError(field, "required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError(field, "must be a positive integer")
	}
	return id, nil
}
