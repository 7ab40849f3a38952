package validate

import "fmt"

// MaxEntitiesRule caps the entity list at Max, keeping declaration order.
// Relations left dangling by the cut are cleaned up by the consistency rule
// that runs after it.
type MaxEntitiesRule struct {
	Max int
}

func (r *MaxEntitiesRule) Name() string { return "max_entities_per_chunk" }

func (r *MaxEntitiesRule) Apply(doc Document) Outcome {
	out := Outcome{Valid: true}
	if r.Max <= 0 {
		return out
	}
	ents := entities(doc)
	if len(ents) <= r.Max {
		return out
	}

	kept := make([]any, 0, r.Max)
	for _, e := range ents[:r.Max] {
		kept = append(kept, e)
	}
	doc["entities"] = kept

	dropped := len(ents) - r.Max
	out.Warnings = append(out.Warnings,
		fmt.Sprintf("entity count %d exceeds cap %d, dropped %d", len(ents), r.Max, dropped))
	out.Corrections = append(out.Corrections, Correction{
		Rule:        r.Name(),
		Path:        fmt.Sprintf("entities[%d:]", r.Max),
		Op:          OpTruncate,
		Old:         len(ents),
		New:         r.Max,
		Description: fmt.Sprintf("truncated entity list to first %d of %d", r.Max, len(ents)),
	})
	return out
}

// RequireEvidenceRule drops entities that carry no evidence span. Runs
// before deduplication so unsupported entities never become canonical.
type RequireEvidenceRule struct{}

func (r *RequireEvidenceRule) Name() string { return "require_evidence" }

func (r *RequireEvidenceRule) Apply(doc Document) Outcome {
	out := Outcome{Valid: true}
	ents := entities(doc)
	kept := make([]any, 0, len(ents))
	for i, e := range ents {
		if evidence, _ := e["evidence"].(string); evidence != "" {
			kept = append(kept, e)
			continue
		}
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("entity %q has no evidence span", entityName(e)))
		out.Corrections = append(out.Corrections, Correction{
			Rule:        r.Name(),
			Path:        fmt.Sprintf("entities[%d]", i),
			Op:          OpRemove,
			Old:         e,
			Description: fmt.Sprintf("removed entity %q lacking evidence", entityName(e)),
		})
	}
	if len(kept) < len(ents) {
		doc["entities"] = kept
	}
	return out
}
