package prompts

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

const testTemplateYAML = `
name: test
output_schema:
  type: object
  required: [entities]
  properties:
    entities:
      type: array
      items:
        type: object
        properties:
          id: {type: string}
          name: {type: string}
entity_types:
  - name: Person
    description: A named human individual.
  - name: Organization
system: |
  You extract structured data.
user: |
  Types:
  {{.EntityTypes}}

  Example:
  {{.OutputExample}}

  Passage:
  {{.Text}}
options:
  max_entities_per_chunk: 10
`

func TestParseDefinition(t *testing.T) {
	def, err := Parse([]byte(testTemplateYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Name != "test" || len(def.EntityTypes) != 2 {
		t.Errorf("def = %+v", def)
	}
	if got := def.Options["max_entities_per_chunk"]; got != 10 {
		t.Errorf("option = %v (%T), want 10", got, got)
	}

	raw, err := def.SchemaJSON()
	if err != nil {
		t.Fatalf("SchemaJSON: %v", err)
	}
	if !json.Valid(raw) {
		t.Errorf("schema not valid JSON: %s", raw)
	}
}

func TestParseRejectsIncompleteDefinitions(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no name", "user: hi\noutput_schema: {type: object}"},
		{"no user", "name: x\noutput_schema: {type: object}"},
		{"no schema", "name: x\nuser: hi"},
		{"bad yaml", "name: [unclosed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); !errors.Is(err, ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	def, err := Parse([]byte(testTemplateYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	msgs, err := Render(def, map[string]any{"Text": "Ada met Grace."})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("messages = %+v, want system then user", msgs)
	}

	user := msgs[1].Content
	if !strings.Contains(user, "Ada met Grace.") {
		t.Error("user message missing the passage")
	}
	if !strings.Contains(user, "- Person: A named human individual.") {
		t.Errorf("user message missing catalog:\n%s", user)
	}
	if !strings.Contains(user, `"entities"`) {
		t.Error("user message missing generated example")
	}
}

func TestRenderMissingVariable(t *testing.T) {
	def, err := Parse([]byte(testTemplateYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Render(def, nil) // no Text binding
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if !strings.Contains(err.Error(), `"Text"`) {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("Hello {{.Name}}, {{ .Count }} items, {{.Name}} again, {{.Chunk.Index}}")
	want := []string{"Chunk.Index", "Count", "Name"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractVariables = %v, want %v", got, want)
	}
}

func TestPresetDefault(t *testing.T) {
	def, err := Preset("default")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	msgs, err := Render(def, map[string]any{"Text": "sample"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if !strings.Contains(msgs[1].Content, "works_for") {
		t.Error("relation catalog missing from preset render")
	}
}

func TestPresetUnknown(t *testing.T) {
	if _, err := Preset("nope"); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestExampleValueFromSchema(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind":  map[string]any{"type": "string", "enum": []any{"person", "org"}},
			"count": map[string]any{"type": "integer"},
			"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
	v := exampleValue(schema)
	obj, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("example = %T", v)
	}
	if obj["kind"] != "person" {
		t.Errorf("kind = %v, want first enum value", obj["kind"])
	}
	if obj["count"] != 0 {
		t.Errorf("count = %v, want 0", obj["count"])
	}
}
