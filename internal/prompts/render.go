package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/siftkit/sift/internal/providers"
)

// Derived variable names every template may reference without the caller
// supplying them.
const (
	varEntityTypes   = "EntityTypes"
	varRelationTypes = "RelationTypes"
	varOutputExample = "OutputExample"
	varOutputSchema  = "OutputSchema"
)

// Render binds vars plus the derived catalog and schema variables into the
// definition's messages. Placeholders with no binding fail with a config
// error naming the variable; extra vars are ignored. The system message, if
// present, always precedes the user message.
func Render(def *Definition, vars map[string]any) ([]providers.Message, error) {
	data := make(map[string]any, len(vars)+4)
	for k, v := range vars {
		data[k] = v
	}
	if _, ok := data[varEntityTypes]; !ok {
		data[varEntityTypes] = renderCatalog(def.EntityTypes)
	}
	if _, ok := data[varRelationTypes]; !ok {
		data[varRelationTypes] = renderCatalog(def.RelationTypes)
	}
	if _, ok := data[varOutputExample]; !ok {
		example, err := outputExample(def)
		if err != nil {
			return nil, err
		}
		data[varOutputExample] = example
	}
	if _, ok := data[varOutputSchema]; !ok {
		schemaJSON, err := def.SchemaJSON()
		if err != nil {
			return nil, err
		}
		data[varOutputSchema] = string(schemaJSON)
	}

	var messages []providers.Message
	for _, part := range []struct {
		role, text string
	}{
		{"system", def.System},
		{"user", def.User},
	} {
		if part.text == "" {
			continue
		}
		content, err := renderText(def.Name, part.role, part.text, data)
		if err != nil {
			return nil, err
		}
		messages = append(messages, providers.Message{Role: part.role, Content: content})
	}
	return messages, nil
}

func renderText(name, role, text string, data map[string]any) (string, error) {
	for _, v := range ExtractVariables(text) {
		root := v
		if i := strings.IndexByte(v, '.'); i >= 0 {
			root = v[:i]
		}
		if _, ok := data[root]; !ok {
			return "", fmt.Errorf("%w: template %q %s message references unbound variable %q",
				ErrConfig, name, role, v)
		}
	}

	tmpl, err := template.New(name + "/" + role).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: template %q %s message: %v", ErrConfig, name, role, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: template %q %s message: %v", ErrConfig, name, role, err)
	}
	return sb.String(), nil
}

// renderCatalog formats type definitions as bullet lines for the prompt.
func renderCatalog(types []TypeDef) string {
	if len(types) == 0 {
		return "(unconstrained)"
	}
	lines := make([]string, 0, len(types))
	for _, t := range types {
		if t.Description != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, t.Description))
		} else {
			lines = append(lines, fmt.Sprintf("- %s", t.Name))
		}
	}
	return strings.Join(lines, "\n")
}

// outputExample returns the declared example or generates an illustrative
// one from the schema.
func outputExample(def *Definition) (string, error) {
	if def.OutputExample != "" {
		return def.OutputExample, nil
	}
	example := exampleValue(def.OutputSchema)
	out, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: template %q: cannot build schema example: %v", ErrConfig, def.Name, err)
	}
	return string(out), nil
}

// exampleValue builds a minimal instance of a JSON Schema node, preferring
// declared enums and examples over generic placeholders.
func exampleValue(schema map[string]any) any {
	if ex, ok := schema["examples"].([]any); ok && len(ex) > 0 {
		return ex[0]
	}
	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}

	typ, _ := schema["type"].(string)
	switch typ {
	case "object":
		props, _ := schema["properties"].(map[string]any)
		out := make(map[string]any, len(props))
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if sub, ok := props[name].(map[string]any); ok {
				out[name] = exampleValue(sub)
			}
		}
		return out
	case "array":
		if items, ok := schema["items"].(map[string]any); ok {
			return []any{exampleValue(items)}
		}
		return []any{}
	case "string":
		if pattern, ok := schema["pattern"].(string); ok && pattern != "" {
			return "string matching " + pattern
		}
		return "..."
	case "number", "integer":
		return 0
	case "boolean":
		return true
	default:
		return nil
	}
}
