package validation

import "github.com/rendis/verdict/pkg/schema"

// Validator checks decision documents and the values flowing through input
// and output nodes. Uses JSON Schema Draft 2020-12.
type Validator interface {
	ValidateContent(raw []byte) error
	ValidateDecision(content *schema.DecisionContent) error
	ValidateValue(value any, valueSchema []byte) error
}
