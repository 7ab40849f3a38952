// Package prompts loads template definitions and renders them into
// role-tagged messages. A definition bundles the output schema, the entity
// and relation type catalogs, the prompt text, and the rule options for one
// extraction task; it is loaded once and read-only afterward.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks malformed template definitions. Surfaces at load or
// pipeline construction, never per chunk.
var ErrConfig = errors.New("template config error")

// TypeDef names one entity or relation type for the catalog.
type TypeDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Definition is one template as persisted in YAML.
type Definition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// OutputSchema is a JSON Schema document the extraction must satisfy.
	OutputSchema map[string]any `yaml:"output_schema"`

	EntityTypes   []TypeDef `yaml:"entity_types,omitempty"`
	RelationTypes []TypeDef `yaml:"relation_types,omitempty"`

	// Go template strings; System may be empty.
	System string `yaml:"system,omitempty"`
	User   string `yaml:"user"`

	// OutputExample overrides the example generated from the schema.
	OutputExample string `yaml:"output_example,omitempty"`

	// Options feed the rule registry (max_entities_per_chunk, ...).
	Options map[string]any `yaml:"options,omitempty"`
}

// Load reads and validates a definition from a YAML file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: template has no name", ErrConfig)
	}
	if def.User == "" {
		return nil, fmt.Errorf("%w: template %q has no user message", ErrConfig, def.Name)
	}
	if len(def.OutputSchema) == 0 {
		return nil, fmt.Errorf("%w: template %q has no output schema", ErrConfig, def.Name)
	}
	if _, err := def.SchemaJSON(); err != nil {
		return nil, err
	}
	return &def, nil
}

// SchemaJSON returns the output schema as a JSON document.
func (d *Definition) SchemaJSON() (json.RawMessage, error) {
	raw, err := json.Marshal(d.OutputSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: template %q schema is not JSON-encodable: %v", ErrConfig, d.Name, err)
	}
	return raw, nil
}

// variablePattern matches Go template variable references like {{.VarName}}
// or {{ .VarName }}, including nested fields like {{.Chunk.Index}}.
var variablePattern = regexp.MustCompile(`\{\{\s*\.([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// ExtractVariables extracts template variable names from a Go template
// string, sorted for consistent ordering.
func ExtractVariables(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var vars []string

	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			seen[match[1]] = true
			vars = append(vars, match[1])
		}
	}

	sort.Strings(vars)
	return vars
}
