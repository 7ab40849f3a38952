package validate

import "fmt"

// ConsistencyRule removes relations whose endpoints do not resolve to a
// surviving entity. A dangling relation cannot be corrected safely, so each
// removal is an error, not a warning. Must run after deduplication so it
// sees the final identifier set.
type ConsistencyRule struct{}

func (r *ConsistencyRule) Name() string { return "relation_consistency" }

func (r *ConsistencyRule) Apply(doc Document) Outcome {
	out := Outcome{Valid: true}
	rels := relations(doc)
	if len(rels) == 0 {
		return out
	}

	ids := make(map[string]struct{})
	for _, e := range entities(doc) {
		if id := entityID(e); id != "" {
			ids[id] = struct{}{}
		}
	}

	kept := make([]any, 0, len(rels))
	for i, rel := range rels {
		source, _ := rel["source"].(string)
		target, _ := rel["target"].(string)
		var missing []string
		if _, ok := ids[source]; !ok {
			missing = append(missing, source)
		}
		if _, ok := ids[target]; !ok {
			missing = append(missing, target)
		}
		if len(missing) == 0 {
			kept = append(kept, rel)
			continue
		}
		out.Valid = false
		out.Errors = append(out.Errors,
			fmt.Sprintf("relation %d references missing %s", i, describeMissing(missing)))
		out.Corrections = append(out.Corrections, Correction{
			Rule:        r.Name(),
			Path:        fmt.Sprintf("relations[%d]", i),
			Op:          OpRemove,
			Old:         rel,
			Description: fmt.Sprintf("removed relation with dangling %s", describeMissing(missing)),
		})
	}
	if len(kept) < len(rels) {
		doc["relations"] = kept
	}
	return out
}

func describeMissing(ids []string) string {
	if len(ids) == 1 {
		return fmt.Sprintf("entity %q", ids[0])
	}
	return fmt.Sprintf("entities %q and %q", ids[0], ids[1])
}
