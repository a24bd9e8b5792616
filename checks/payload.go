// Package checks implements the page-level audits: HTTP navigation,
// security headers, performance, content weight and mobile friendliness.
//
// In-page checks run one script through the page.Evaluator, validate the
// returned payload against a JSON schema, then score it with static
// threshold tables shared through audit.Thresholds and audit.Scorecard.
package checks

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// payload is a compiled JSON schema guarding one evaluator result shape.
type payload struct {
	name   string
	schema *jsonschema.Schema
}

func mustPayload(name, src string) *payload {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("checks: compile %s schema: %v", name, err))
	}
	return &payload{name: name, schema: schema}
}

// decode validates raw and unmarshals it into out.
func (p *payload) decode(raw json.RawMessage, out any) error {
	result := p.schema.ValidateJSON(raw)
	if !result.IsValid() {
		return fmt.Errorf("checks: %s payload invalid: %v", p.name, result.Errors)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("checks: %s payload: %w", p.name, err)
	}
	return nil
}

// nullableNumber is the schema fragment for an optional metric.
const nullableNumber = `{"type": ["number", "null"]}`
