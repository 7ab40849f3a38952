package validate

import (
	"encoding/json"
	"strings"
	"testing"
)

const testSchema = `{
	"type": "object",
	"required": ["entities", "relations"],
	"properties": {
		"entities": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type", "name"],
				"properties": {
					"id": {"type": "string"},
					"type": {"type": "string"},
					"name": {"type": "string"}
				}
			}
		},
		"relations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["source", "target", "type"],
				"properties": {
					"source": {"type": "string"},
					"target": {"type": "string"},
					"type": {"type": "string"}
				}
			}
		}
	}
}`

func newTestValidator(t *testing.T, options map[string]any) *Validator {
	t.Helper()
	rules, err := BuildRules(DefaultSimilarityThreshold, options)
	if err != nil {
		t.Fatalf("BuildRules: %v", err)
	}
	v, err := New(json.RawMessage(testSchema), rules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestValidateCleanPayloadIsIdempotent(t *testing.T) {
	v := newTestValidator(t, nil)
	payload := json.RawMessage(`{
		"entities": [
			{"id": "E1", "type": "Person", "name": "Zhang San"},
			{"id": "E2", "type": "Organization", "name": "Globex"}
		],
		"relations": [
			{"source": "E1", "target": "E2", "type": "works_for"}
		]
	}`)

	doc, report := v.Validate(payload)
	if !report.SchemaValid || !report.RulesValid {
		t.Fatalf("report = %+v, want fully valid", report)
	}
	if len(report.Corrections) != 0 {
		t.Errorf("corrections = %v, want none", report.Corrections)
	}
	if len(entities(doc)) != 2 || len(relations(doc)) != 1 {
		t.Errorf("document mutated: %v", doc)
	}
}

func TestValidateSchemaFailureStillRunsRules(t *testing.T) {
	v := newTestValidator(t, nil)
	// Missing required "type" on E1, plus a dangling relation.
	payload := json.RawMessage(`{
		"entities": [{"id": "E1", "name": "Acme"}],
		"relations": [{"source": "E1", "target": "E9", "type": "owns"}]
	}`)

	doc, report := v.Validate(payload)
	if report.SchemaValid {
		t.Error("schema should be invalid")
	}
	if report.RulesValid {
		t.Error("dangling relation should mark rules invalid")
	}
	if len(relations(doc)) != 0 {
		t.Errorf("dangling relation not removed: %v", doc["relations"])
	}
	var removed bool
	for _, c := range report.Corrections {
		if c.Rule == "relation_consistency" && c.Op == OpRemove {
			removed = true
		}
	}
	if !removed {
		t.Errorf("no removal correction recorded: %v", report.Corrections)
	}
}

func TestValidateDedupMerge(t *testing.T) {
	v := newTestValidator(t, nil)
	payload := json.RawMessage(`{
		"entities": [
			{"id": "E1", "type": "Organization", "name": "Apple Inc."},
			{"id": "E2", "type": "Person", "name": "Tim Cook"},
			{"id": "E3", "type": "Organization", "name": "Apple"}
		],
		"relations": [
			{"source": "E2", "target": "E3", "type": "works_for"}
		]
	}`)

	doc, report := v.Validate(payload)
	if !report.SchemaValid || !report.RulesValid {
		t.Fatalf("report = %+v, want fully valid", report)
	}

	ents := entities(doc)
	if len(ents) != 2 {
		t.Fatalf("entities = %v, want Apple Inc. and Tim Cook", doc["entities"])
	}
	if entityName(ents[0]) != "Apple Inc." {
		t.Errorf("canonical = %q, want first occurrence kept", entityName(ents[0]))
	}

	rels := relations(doc)
	if len(rels) != 1 {
		t.Fatalf("relations = %v, want the rewritten one", doc["relations"])
	}
	if target, _ := rels[0]["target"].(string); target != "E1" {
		t.Errorf("relation target = %q, want canonical E1", target)
	}

	var merges, rewrites int
	for _, c := range report.Corrections {
		switch c.Op {
		case OpMerge:
			merges++
		case OpRewrite:
			rewrites++
		}
	}
	if merges != 1 || rewrites != 1 {
		t.Errorf("merges = %d, rewrites = %d, want 1 and 1", merges, rewrites)
	}
}

func TestValidateMaxEntitiesCascade(t *testing.T) {
	v := newTestValidator(t, map[string]any{"max_entities_per_chunk": 2})
	payload := json.RawMessage(`{
		"entities": [
			{"id": "E1", "type": "Person", "name": "Ada"},
			{"id": "E2", "type": "Person", "name": "Grace"},
			{"id": "E3", "type": "Person", "name": "Edsger"}
		],
		"relations": [
			{"source": "E1", "target": "E3", "type": "knows"}
		]
	}`)

	doc, report := v.Validate(payload)
	if len(entities(doc)) != 2 {
		t.Errorf("entities not capped: %v", doc["entities"])
	}
	// The relation to the truncated E3 dangles and must be removed by the
	// consistency rule running afterwards.
	if len(relations(doc)) != 0 {
		t.Errorf("dangling relation survived the cap: %v", doc["relations"])
	}
	if report.RulesValid {
		t.Error("removal of a dangling relation is an error")
	}
	if len(report.Warnings) == 0 {
		t.Error("truncation should warn")
	}
}

func TestValidateRelationBothEndpointsMissing(t *testing.T) {
	v := newTestValidator(t, nil)
	payload := json.RawMessage(`{
		"entities": [{"id": "E1", "type": "Person", "name": "Ada"}],
		"relations": [{"source": "E8", "target": "E9", "type": "knows"}]
	}`)

	doc, report := v.Validate(payload)
	if len(relations(doc)) != 0 {
		t.Errorf("dangling relation survived: %v", doc["relations"])
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want one", report.Errors)
	}
	for _, id := range []string{"E8", "E9"} {
		if !strings.Contains(report.Errors[0], id) {
			t.Errorf("error %q does not name missing endpoint %s", report.Errors[0], id)
		}
	}
}

func TestValidateRequireEvidence(t *testing.T) {
	v := newTestValidator(t, map[string]any{"require_evidence": true})
	payload := json.RawMessage(`{
		"entities": [
			{"id": "E1", "type": "Person", "name": "Ada", "evidence": "Ada wrote the notes."},
			{"id": "E2", "type": "Person", "name": "Ghost"}
		],
		"relations": []
	}`)

	doc, report := v.Validate(payload)
	ents := entities(doc)
	if len(ents) != 1 || entityName(ents[0]) != "Ada" {
		t.Errorf("entities = %v, want only Ada", doc["entities"])
	}
	if len(report.Corrections) != 1 || report.Corrections[0].Op != OpRemove {
		t.Errorf("corrections = %v, want one removal", report.Corrections)
	}
}

func TestNewRejectsBadSchema(t *testing.T) {
	if _, err := New(json.RawMessage(`{"type": "nonsense"}`), nil); err == nil {
		t.Error("expected compile error")
	}
}

func TestBuildRulesRejectsUnknownOption(t *testing.T) {
	if _, err := BuildRules(0, map[string]any{"embedding_dedup": true}); err == nil {
		t.Error("expected unknown option error")
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
	}{
		{"Apple Inc.", "Apple", 0.8},
		{"Jon Smith", "John Smith", 0.8},
		{"  ACME  Corp ", "acme corp", 1.0},
	}
	for _, tc := range cases {
		if got := Similarity(tc.a, tc.b); got < tc.min {
			t.Errorf("Similarity(%q, %q) = %v, want >= %v", tc.a, tc.b, got, tc.min)
		}
	}
	if got := Similarity("Apple", "Microsoft"); got >= DefaultSimilarityThreshold {
		t.Errorf("Similarity(Apple, Microsoft) = %v, want below threshold", got)
	}
	// One substitution in a five-letter name sits exactly on the default
	// threshold, and the dedup rule merges at >= threshold.
	if got := Similarity("Apple", "Ample"); got != DefaultSimilarityThreshold {
		t.Errorf("Similarity(Apple, Ample) = %v, want exactly %v", got, DefaultSimilarityThreshold)
	}
}
