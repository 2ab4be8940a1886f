// Package loader provides the sub-decision loaders installed through
// capability.EngineListener: in-memory, filesystem, no-op and a caching
// wrapper.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/verdict/pkg/schema"
)

// ErrNotFound is the cause of every LOADER_ERROR returned for a missing key.
var ErrNotFound = errors.New("decision not found")

// NotFound returns the loader error for a missing key.
func NotFound(key string) error {
	return schema.NewErrorf(schema.ErrLoader, "decision not found: %s", key).WithCause(ErrNotFound)
}

// Format is the encoding of a decision document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf infers the format from a file name. Unknown extensions are JSON.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a decision document. YAML documents are converted to their
// JSON form first so node contents keep the same raw representation.
func Decode(data []byte, format Format) (*schema.DecisionContent, error) {
	if format == FormatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = converted
	}

	var content schema.DecisionContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &content, nil
}
