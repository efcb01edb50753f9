package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/vstore/pkg/store"
)

// DefaultTimeout is the request timeout of a Client built without
// WithTimeout or WithHTTPClient.
const DefaultTimeout = 30 * time.Second

// Client performs JSON requests against a base URL. Every error it returns
// is a *store.TransportError.
type Client struct {
	baseURL string
	http    *http.Client
	headers http.Header
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithLogger sets the logger for request logs.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for baseURL. Paths passed to Do are appended
// to it.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		headers: make(http.Header),
		logger:  slog.Default().With("component", "transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON performs a GET request and decodes the JSON response.
func (c *Client) GetJSON(ctx context.Context, path string) (any, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Do performs a request. A non-nil body is sent as JSON. The response body
// is decoded as JSON when possible and returned as a string otherwise; an
// empty body yields nil.
func (c *Client) Do(ctx context.Context, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, setupError(fmt.Errorf("encode request body: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, setupError(err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("transport request failed",
			"method", method,
			"url", url,
			"error", err,
		)
		return nil, classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyRequestError(ctx, err)
	}
	decoded := decodeBody(raw)

	c.logger.Debug("transport request",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &store.TransportError{
			Kind:   store.KindHTTP,
			Status: resp.StatusCode,
			Body:   decoded,
		}
	}
	return decoded, nil
}

// Action returns an async action performing method on pathTemplate.
//
// Placeholders {0}, {1}, ... in pathTemplate are replaced by the
// corresponding dispatch arguments. For methods that carry a body, the
// first argument not used by a placeholder is sent as the JSON body.
func (c *Client) Action(method, pathTemplate string) store.AsyncFunc {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	return func(ctx context.Context, args ...any) (any, error) {
		path, rest := expand(pathTemplate, args)
		var body any
		if hasBody(method) && len(rest) > 0 {
			body = rest[0]
		}
		return c.Do(ctx, method, path, body)
	}
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// expand substitutes {n} placeholders with args[n] and returns the
// arguments no placeholder referred to.
func expand(template string, args []any) (string, []any) {
	used := make([]bool, len(args))
	var b strings.Builder
	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			break
		}
		end += open
		n, err := strconv.Atoi(template[open+1 : end])
		if err != nil || n < 0 || n >= len(args) {
			b.WriteString(template[:end+1])
			template = template[end+1:]
			continue
		}
		b.WriteString(template[:open])
		b.WriteString(fmt.Sprint(args[n]))
		used[n] = true
		template = template[end+1:]
	}
	b.WriteString(template)

	var rest []any
	for i, arg := range args {
		if !used[i] {
			rest = append(rest, arg)
		}
	}
	return b.String(), rest
}

func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
