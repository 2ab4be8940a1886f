package store

import (
	"time"

	"github.com/rendis/verdict/pkg/schema"
)

// Decision is one stored version of a decision document.
type Decision struct {
	Key         string                  `json:"key"`
	Version     int                     `json:"version"`
	Description string                  `json:"description,omitempty"`
	Content     *schema.DecisionContent `json:"content"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Filter narrows List results.
type Filter struct {
	Prefix string // key prefix
	Limit  int
}
