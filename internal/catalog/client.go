package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
	"github.com/Roman-G-men/vipsneaker-bot/internal/transport"
)

const (
	pathProducts = "/api/products"
	pathProduct  = "/api/product/"

	userAgent = "VipSneaker-Storefront/1.0"

	// DefaultTimeout bounds a single catalog request.
	DefaultTimeout = 15 * time.Second
)

// Config configures the HTTP catalog client.
type Config struct {
	// BaseURL is the catalog server root, e.g. "https://shop.example".
	// Empty means same-origin relative paths, which only works behind a proxy.
	BaseURL string

	// Transport selects the TLS dialer. Zero value is transport.ModeStandard.
	Transport transport.Mode

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Client, when set, is sent in the Storefront-Client header.
	Client model.ClientInfo
}

// Client is the catalog API HTTP client.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientHeader string
}

// NewClient creates a catalog client. It fails only when the client
// identification cannot be encoded as a structured header.
func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	header, err := encodeClientHeader(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("encoding client header: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport.New(cfg.Transport, timeout),
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientHeader: header,
	}, nil
}

// ListProducts fetches GET /api/products.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	req, err := c.newRequest(ctx, pathProducts)
	if err != nil {
		return nil, fmt.Errorf("creating products request: %w", err)
	}

	var products []model.Product
	if err := c.do(req, &products); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// GetProduct fetches GET /api/product/{id}.
func (c *Client) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	req, err := c.newRequest(ctx, pathProduct+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, fmt.Errorf("creating product request: %w", err)
	}

	var product model.Product
	if err := c.do(req, &product); err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &product, nil
}

// === HTTP Helpers ===

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.clientHeader != "" {
		req.Header.Set(model.ClientHeader, c.clientHeader)
	}

	return req, nil
}

// do executes the request and decodes the response.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("catalog", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return model.NewUpstreamError("catalog", fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// parseError converts catalog error responses to model.APIError.
// The server answers {"error":{"code","message"}}; older deployments send
// {"error":"Product not found"}. Both are accepted.
func parseError(statusCode int, body []byte) error {
	msg := errorMessage(body)

	switch statusCode {
	case http.StatusNotFound:
		return model.NewNotFoundError("product")
	case http.StatusTooManyRequests:
		return model.NewRateLimitError("catalog")
	case http.StatusBadRequest:
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	default:
		return model.NewUpstreamError("catalog", fmt.Errorf("status %d: %s", statusCode, msg))
	}
}

func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(envelope.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	json.Unmarshal(envelope.Error, &obj) // Best effort parse
	return obj.Message
}

// encodeClientHeader serializes info as an RFC 8941 dictionary.
// Empty fields are omitted; an all-empty info yields "".
func encodeClientHeader(info model.ClientInfo) (string, error) {
	dict := httpsfv.NewDictionary()
	if info.Platform != "" {
		dict.Add("platform", httpsfv.NewItem(info.Platform))
	}
	if info.Version != "" {
		dict.Add("version", httpsfv.NewItem(info.Version))
	}
	if info.Session != "" {
		dict.Add("session", httpsfv.NewItem(info.Session))
	}
	if len(dict.Names()) == 0 {
		return "", nil
	}
	return httpsfv.Marshal(dict)
}

// Verify Client implements Service interface at compile time.
var _ Service = (*Client)(nil)
