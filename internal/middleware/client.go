package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

type clientKey struct{}

// ParseClientHeader decodes a Storefront-Client header (RFC 8941 Dictionary).
//
// Examples:
//   - platform="terminal", version="6.9", session="a1b2" → all fields set
//   - platform="mcp";beta → Platform "mcp" (params ignored)
//
// Unknown keys are ignored. Returns an error if the header is empty,
// malformed, or a known key does not hold a string.
func ParseClientHeader(header string) (model.ClientInfo, error) {
	var info model.ClientInfo

	header = strings.TrimSpace(header)
	if header == "" {
		return info, errors.New("empty client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return info, fmt.Errorf("invalid client header: %w", err)
	}

	fields := map[string]*string{
		"platform": &info.Platform,
		"version":  &info.Version,
		"session":  &info.Session,
	}
	for name, dst := range fields {
		member, ok := dict.Get(name)
		if !ok {
			continue
		}
		item, ok := member.(httpsfv.Item)
		if !ok {
			return info, fmt.Errorf("%s value must be an item", name)
		}
		s, ok := item.Value.(string)
		if !ok {
			return info, fmt.Errorf("%s value must be a string", name)
		}
		*dst = s
	}
	return info, nil
}

// ClientIdentity returns middleware that parses the Storefront-Client header
// into the request context. A malformed header is logged and otherwise ignored:
// the catalog is public and the header is informational.
func ClientIdentity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(model.ClientHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := ParseClientHeader(header)
			if err != nil {
				logger.Warn("ignoring client header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), info)))
		})
	}
}

// WithClient returns a context carrying info.
func WithClient(ctx context.Context, info model.ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, info)
}

// ClientFromContext returns the client identification set by ClientIdentity.
func ClientFromContext(ctx context.Context) (model.ClientInfo, bool) {
	info, ok := ctx.Value(clientKey{}).(model.ClientInfo)
	return info, ok
}
