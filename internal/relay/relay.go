// Package relay carries order payloads from a Go-implemented host to the order
// intake. A browser host delivers them through the chat platform; the terminal
// and MCP hosts use one of these sinks instead.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Roman-G-men/vipsneaker-bot/internal/hostbridge"
	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// WriterSink writes each payload as one line to w. Used for dry runs.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing newline-delimited payloads to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Publish(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(append(bytes.TrimSpace(payload), '\n')); err != nil {
		return fmt.Errorf("writing order: %w", err)
	}
	return nil
}

// HTTPSink posts each payload to the order intake endpoint (POST /api/orders).
type HTTPSink struct {
	url        string
	userID     int64
	httpClient *http.Client
}

// NewHTTPSink creates a sink posting to url on behalf of userID.
func NewHTTPSink(url string, userID int64, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		url:        url,
		userID:     userID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Publish(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(model.UserIDHeader, strconv.FormatInt(s.userID, 10))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("order intake", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error model.APIError `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error.Code != "" {
			return fmt.Errorf("order rejected with status %d: %s: %s", resp.StatusCode, e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("order rejected with status %d", resp.StatusCode)
	}
	return nil
}

// Verify sinks implement DataSink at compile time.
var (
	_ hostbridge.DataSink = (*WriterSink)(nil)
	_ hostbridge.DataSink = (*HTTPSink)(nil)
	_ hostbridge.DataSink = (*WatermillSink)(nil)
)
