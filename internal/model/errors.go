package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is. Every APIError wraps one of them.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUpstreamError     = errors.New("upstream error")
	ErrRateLimited       = errors.New("rate limited")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrCorruptCart       = errors.New("corrupt cart snapshot")
)

// APIError is an error the catalog API reports as {"error":{"code","message"}}.
// The catalog client rebuilds it from that body, so both sides share codes.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func newAPIError(status int, code, message string, err error) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: status, Err: err}
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewNotFoundError reports a missing or hidden resource ("product").
func NewNotFoundError(resource string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND", resource+" not found", ErrNotFound)
}

// NewValidationError reports a malformed request field.
func NewValidationError(field, reason string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_ERROR",
		fmt.Sprintf("invalid %s: %s", field, reason), ErrInvalidRequest)
}

// NewStockError reports a variant whose stock cannot cover an order.
func NewStockError(variantID int64) *APIError {
	return newAPIError(http.StatusConflict, "OUT_OF_STOCK",
		fmt.Sprintf("insufficient stock for variant %d", variantID), ErrInsufficientStock)
}

// NewUpstreamError reports a failed call to service. err stays reachable
// through errors.Is alongside ErrUpstreamError.
func NewUpstreamError(service string, err error) *APIError {
	return newAPIError(http.StatusBadGateway, "UPSTREAM_ERROR",
		service+" request failed", fmt.Errorf("%w: %w", ErrUpstreamError, err))
}

// NewRateLimitError reports that service asked us to slow down.
func NewRateLimitError(service string) *APIError {
	return newAPIError(http.StatusTooManyRequests, "RATE_LIMITED",
		service+" rate limit exceeded, please retry later", ErrRateLimited)
}

// NewInternalError hides err behind a generic message.
func NewInternalError(err error) *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", err)
}
