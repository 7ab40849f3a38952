package validate

import "fmt"

// DefaultSimilarityThreshold merges entity names scoring at or above it.
const DefaultSimilarityThreshold = 0.8

// RuleFactory builds a rule from a template option value.
type RuleFactory func(value any) (Rule, error)

// optionRules is the closed registry of rules selectable from a template's
// config block. New rules register here at compile time; names are never
// resolved dynamically.
var optionRules = map[string]RuleFactory{
	"max_entities_per_chunk": func(value any) (Rule, error) {
		max, ok := asInt(value)
		if !ok || max <= 0 {
			return nil, fmt.Errorf("max_entities_per_chunk wants a positive integer, got %v", value)
		}
		return &MaxEntitiesRule{Max: max}, nil
	},
	"require_evidence": func(value any) (Rule, error) {
		enabled, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("require_evidence wants a boolean, got %v", value)
		}
		if !enabled {
			return nil, nil
		}
		return &RequireEvidenceRule{}, nil
	},
}

// BuildRules assembles the rule pipeline for one template: option rules from
// the config block around the always-on dedup and consistency rules.
// Evidence filtering runs first, the entity cap after dedup, and
// consistency last since it depends on the final identifier set.
func BuildRules(threshold float64, options map[string]any) ([]Rule, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	var pre, post []Rule
	for name, value := range options {
		factory, ok := optionRules[name]
		if !ok {
			return nil, fmt.Errorf("unknown rule option %q", name)
		}
		rule, err := factory(value)
		if err != nil {
			return nil, err
		}
		if rule == nil {
			continue
		}
		if _, ok := rule.(*RequireEvidenceRule); ok {
			pre = append(pre, rule)
		} else {
			post = append(post, rule)
		}
	}

	rules := make([]Rule, 0, len(pre)+len(post)+2)
	rules = append(rules, pre...)
	rules = append(rules, &DedupeRule{Threshold: threshold})
	rules = append(rules, post...)
	rules = append(rules, &ConsistencyRule{})
	return rules, nil
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case uint64:
		return int(v), true
	}
	return 0, false
}
