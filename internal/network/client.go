// Package network provides the default network capability: a pooled HTTP
// client implementing capability.HTTPHandler.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/pkg/schema"
)

const (
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
	defaultTimeout         = 30 * time.Second
	defaultMaxRedirects    = 10
)

// Config configures the client.
type Config struct {
	Timeout         time.Duration     // per request; zero means 30s
	MaxResponseBody int64             // bytes read from a response; zero means 10MB
	MaxRedirects    int               // zero means 10, negative disables redirects
	Headers         map[string]string // added to every request unless overridden
	Transport       http.RoundTripper // defaults to a clone of http.DefaultTransport
}

// Client is a concurrency-safe HTTPHandler sharing one connection pool
// across every request node of every evaluation.
type Client struct {
	http    *http.Client
	config  Config
	headers map[string]string
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	c := &http.Client{Transport: transport, Timeout: cfg.Timeout}
	limit := cfg.MaxRedirects
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if limit < 0 {
			return http.ErrUseLastResponse
		}
		if len(via) >= limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		return nil
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Client{http: c, config: cfg, headers: headers}
}

// Listener returns the capability listener installing this client.
func (c *Client) Listener() capability.HTTPListener {
	return capability.HTTPListener{Handler: c}
}

// Do performs one request. Request bodies are sent as JSON unless they are
// strings or byte slices; JSON responses are decoded, anything else is
// returned as text. Non-2xx statuses are not errors.
func (c *Client) Do(ctx context.Context, r *capability.HTTPRequest) (*capability.HTTPResponse, error) {
	if r == nil {
		return nil, schema.NewError(schema.ErrNodeExecution, "http: nil request")
	}
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	u, err := url.ParseRequestURI(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, schema.NewErrorf(schema.ErrNodeExecution, "http: invalid url %q", r.URL)
	}

	body, contentType, err := encodeBody(r.Body)
	if err != nil {
		return nil, schema.NewError(schema.ErrNodeExecution, "http: failed to encode body").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, schema.NewError(schema.ErrNodeExecution, "http: failed to create request").WithCause(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, schema.NewErrorf(schema.ErrCancelled, "http: %s %s cancelled", method, u.Redacted()).WithCause(ctxErr)
		}
		return nil, schema.NewErrorf(schema.ErrNodeExecution, "http: request failed: %v", err).WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBody))
	if err != nil {
		return nil, schema.NewError(schema.ErrNodeExecution, "http: failed to read response body").WithCause(err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &capability.HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       decodeBody(resp.Header.Get("Content-Type"), raw),
	}, nil
}

func encodeBody(v any) (io.Reader, string, error) {
	switch b := v.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "text/plain", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func decodeBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	if strings.Contains(contentType, "json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

var _ capability.HTTPHandler = (*Client)(nil)
