package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// Function node content formats.
const (
	FunctionV1 = 1 // bare script source string
	FunctionV2 = 2 // {source, omitNodes}
)

// FunctionTrace carries the console output of the script.
type FunctionTrace struct {
	Version int      `json:"version"`
	Logs    []string `json:"logs,omitempty"`
}

type functionData struct {
	Version   int
	Source    string
	OmitNodes bool
}

// decodeFunction accepts both content formats: a JSON string is v1, an
// object is v2.
func decodeFunction(node *schema.Node) (functionData, error) {
	raw := json.RawMessage(strings.TrimSpace(string(node.Content)))
	if len(raw) == 0 || string(raw) == "null" {
		return functionData{}, errors.New("function node has no source")
	}

	if raw[0] == '"' {
		var src string
		if err := json.Unmarshal(raw, &src); err != nil {
			return functionData{}, err
		}
		return functionData{Version: FunctionV1, Source: src}, nil
	}

	var v2 schema.FunctionContent
	if err := json.Unmarshal(raw, &v2); err != nil {
		return functionData{}, err
	}
	return functionData{Version: FunctionV2, Source: v2.Source, OmitNodes: v2.OmitNodes}, nil
}

// functionHandler hands scripts to the embedder's scripting runtime. Without
// one, every function node fails with FeatureDisabled.
type functionHandler struct{}

func (functionHandler) Handle(ctx context.Context, nc *engine.NodeContext[functionData, FunctionTrace]) (any, error) {
	nc.Trace(func(tr *FunctionTrace) { tr.Version = nc.Data.Version })

	rt := nc.Registry().Script()
	if rt == nil {
		return nil, schema.NewErrorf(schema.ErrFeatureDisabled,
			"scripting runtime feature is disabled: function node (v%d) cannot run", nc.Data.Version)
	}

	resp, err := rt.Run(ctx, capability.ScriptRequest{
		NodeID:  nc.ID(),
		Source:  nc.Data.Source,
		Input:   nc.Input,
		Version: nc.Data.Version,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	nc.Trace(func(tr *FunctionTrace) { tr.Logs = resp.Logs })
	return resp.Output, nil
}
