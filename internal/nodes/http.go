package nodes

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// HTTPTrace records the request that was sent and the response status.
type HTTPTrace struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status,omitempty"`
}

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true,
}

// httpHandler issues one outbound request through the network capability.
// The output is {status, headers, body}.
type httpHandler struct {
	deps *Deps
}

func (h *httpHandler) Prepare(node *schema.Node, data *schema.HTTPRequestContent) error {
	data.Method = strings.ToUpper(strings.TrimSpace(data.Method))
	if data.Method == "" {
		data.Method = "GET"
	}
	if !allowedMethods[data.Method] {
		return fmt.Errorf("unsupported HTTP method %q", data.Method)
	}
	u, err := url.Parse(data.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https, got %q", data.URL)
	}
	return nil
}

func (h *httpHandler) Handle(ctx context.Context, nc *engine.NodeContext[schema.HTTPRequestContent, HTTPTrace]) (any, error) {
	nc.Trace(func(tr *HTTPTrace) {
		tr.Method = nc.Data.Method
		tr.URL = nc.Data.URL
	})

	client := nc.Registry().HTTP()
	if client == nil {
		return nil, schema.NewError(schema.ErrFeatureDisabled, "network feature is disabled: http request node cannot run")
	}

	req := &capability.HTTPRequest{
		Method:  nc.Data.Method,
		URL:     nc.Data.URL,
		Headers: nc.Data.Headers,
		Body:    engine.DeepCopy(nc.Data.Body),
	}
	if nc.Data.BodyFromInput {
		req.Body = nc.Input
	}

	nc.Logger(ctx).Debug("http request node", "method", req.Method, "url", req.URL)
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("network capability returned no response")
	}

	nc.Trace(func(tr *HTTPTrace) { tr.Status = resp.StatusCode })

	headers := make(map[string]any, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}
	return map[string]any{
		"status":  float64(resp.StatusCode),
		"headers": headers,
		"body":    resp.Body,
	}, nil
}
