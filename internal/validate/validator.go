// Package validate checks extracted payloads against a JSON Schema and then
// runs an ordered pipeline of correction rules over the decoded document.
// Schema failure is recorded but does not stop the rules, so rule-level
// diagnostics are never masked by a structural error.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Document is a decoded payload. Rules mutate it through the keys they own
// (entities, relations) and leave everything else alone.
type Document = map[string]any

// Rule inspects the document as corrected by all prior rules and applies its
// own corrections. Implementations must compute their full correction set
// before mutating so a rule's effect is all-or-nothing.
type Rule interface {
	Name() string
	Apply(doc Document) Outcome
}

// Validator holds a compiled schema and an ordered rule pipeline, shared
// read-only across chunks.
type Validator struct {
	schema *jsonschema.Schema
	rules  []Rule
}

// New compiles schemaRaw and fixes the rule order. A schema that does not
// compile is a construction-time failure, never a per-chunk one.
func New(schemaRaw json.RawMessage, rules []Rule) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaRaw)); err != nil {
		return nil, fmt.Errorf("failed to load output schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile output schema: %w", err)
	}
	return &Validator{schema: schema, rules: rules}, nil
}

// Validate runs the schema check and the rule pipeline over payload and
// returns the corrected document with a fresh report.
func (v *Validator) Validate(payload json.RawMessage) (Document, *Report) {
	report := &Report{SchemaValid: true, RulesValid: true}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		report.SchemaValid = false
		report.RulesValid = false
		report.Errors = append(report.Errors, fmt.Sprintf("payload is not valid JSON: %v", err))
		return nil, report
	}

	if err := v.schema.Validate(decoded); err != nil {
		report.SchemaValid = false
		report.Errors = append(report.Errors, fmt.Sprintf("schema validation failed: %v", err))
	}

	doc, ok := decoded.(map[string]any)
	if !ok {
		// Rules operate on object payloads only; an array or scalar at the
		// top level is already a schema error above.
		report.RulesValid = false
		report.Errors = append(report.Errors, "payload is not a JSON object")
		return nil, report
	}

	for _, rule := range v.rules {
		report.absorb(rule.Apply(doc))
	}
	return doc, report
}

// entities returns doc's entity list as ordered maps, skipping malformed
// elements. Rules share this view.
func entities(doc Document) []map[string]any {
	raw, _ := doc["entities"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func relations(doc Document) []map[string]any {
	raw, _ := doc["relations"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func entityID(e map[string]any) string {
	id, _ := e["id"].(string)
	return id
}

func entityName(e map[string]any) string {
	name, _ := e["name"].(string)
	return name
}
