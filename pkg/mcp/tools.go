package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/verdict/internal/store"
	"github.com/rendis/verdict/pkg/schema"
)

// handleEvaluate runs a stored or inline decision.
func (s *Server) handleEvaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	content, hasContent := req.GetArguments()["content"]
	if key == "" && !hasContent {
		return mcp.NewToolResultError("one of key or content is required"), nil
	}

	// The context goes through untouched so a non-object fails evaluation.
	input := req.GetArguments()["context"]
	opts := schema.EvaluationOptions{MaxDepth: schema.Depth(req.GetInt("max_depth", schema.DefaultMaxDepth))}
	if req.GetBool("trace", false) {
		opts.Trace = schema.TraceDefault
	}

	var (
		result *schema.EvaluationResult
		err    error
	)
	if hasContent {
		data, marshalErr := contentBytes(content)
		if marshalErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid content: %v", marshalErr)), nil
		}
		d, parseErr := s.engine.ParseDecision(data)
		if parseErr != nil {
			return mcp.NewToolResultError(parseErr.Error()), nil
		}
		result, err = d.Evaluate(ctx, input, opts)
	} else {
		result, err = s.engine.Evaluate(ctx, key, input, opts)
	}
	if err != nil {
		s.logger.Debug("decision evaluation failed", "key", key, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(result)
}

// handleValidate checks a document.
func (s *Server) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, ok := req.GetArguments()["content"]
	if !ok {
		return mcp.NewToolResultError("content is required"), nil
	}
	data, err := contentBytes(content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid content: %v", err)), nil
	}
	if err := s.engine.Validate(data); err != nil {
		return marshalResult(map[string]any{"valid": false, "error": err.Error()})
	}
	return marshalResult(map[string]any{"valid": true})
}

// handleDefine stores a validated document as a new version.
func (s *Server) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("decision store is not configured"), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("key is required"), nil
	}
	raw, ok := req.GetArguments()["content"]
	if !ok {
		return mcp.NewToolResultError("content is required"), nil
	}
	data, err := contentBytes(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid content: %v", err)), nil
	}

	d, err := s.engine.ParseDecision(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.store.Put(ctx, key, d.Content(), req.GetString("description", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store decision: %v", err)), nil
	}
	if s.onDefine != nil {
		s.onDefine(key)
	}
	s.logger.Info("decision defined", "key", key, "version", rec.Version)

	return marshalResult(map[string]any{"key": rec.Key, "version": rec.Version})
}

// handleList returns stored keys.
func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := req.GetString("prefix", "")
	limit := req.GetInt("limit", 0)

	type entry struct {
		Key         string `json:"key"`
		Version     int    `json:"version,omitempty"`
		Description string `json:"description,omitempty"`
	}
	entries := make([]entry, 0)

	switch {
	case s.store != nil:
		recs, err := s.store.List(ctx, store.Filter{Prefix: prefix, Limit: limit})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		for _, r := range recs {
			entries = append(entries, entry{Key: r.Key, Version: r.Version, Description: r.Description})
		}
	case s.keys != nil:
		keys, err := s.keys(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		for _, k := range keys {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			if limit > 0 && len(entries) >= limit {
				break
			}
			entries = append(entries, entry{Key: k})
		}
	default:
		return mcp.NewToolResultError("no decision source is configured"), nil
	}

	return marshalResult(map[string]any{"decisions": entries})
}

// contentBytes accepts a document as an object or as a JSON string.
func contentBytes(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(v)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
