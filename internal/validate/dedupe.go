package validate

import (
	"fmt"
	"strings"
)

// DedupeRule merges entities whose names score at or above Threshold. The
// earliest entity in declaration order is canonical and keeps its
// identifier; references to merged identifiers anywhere else in the payload
// are rewritten to the canonical one.
type DedupeRule struct {
	Threshold float64
}

func (r *DedupeRule) Name() string { return "entity_dedup" }

func (r *DedupeRule) Apply(doc Document) Outcome {
	out := Outcome{Valid: true}
	ents := entities(doc)
	if len(ents) < 2 {
		return out
	}

	// canonical[j] = index of the earliest entity j merges into.
	canonical := make(map[int]int)
	for i := 0; i < len(ents); i++ {
		if _, merged := canonical[i]; merged {
			continue
		}
		for j := i + 1; j < len(ents); j++ {
			if _, merged := canonical[j]; merged {
				continue
			}
			if Similarity(entityName(ents[i]), entityName(ents[j])) >= r.Threshold {
				canonical[j] = i
			}
		}
	}
	if len(canonical) == 0 {
		return out
	}

	rewrites := make(map[string]string, len(canonical))
	survivors := make([]any, 0, len(ents)-len(canonical))
	for i, e := range ents {
		ci, merged := canonical[i]
		if !merged {
			survivors = append(survivors, e)
			continue
		}
		keep := ents[ci]
		if from, to := entityID(e), entityID(keep); from != "" && from != to {
			rewrites[from] = to
		}
		out.Corrections = append(out.Corrections, Correction{
			Rule: r.Name(),
			Path: fmt.Sprintf("entities[%d]", i),
			Op:   OpMerge,
			Old:  e,
			New:  entityID(keep),
			Description: fmt.Sprintf("merged duplicate entity %q into %q",
				entityName(e), entityName(keep)),
		})
	}
	doc["entities"] = survivors

	for key, value := range doc {
		if key == "entities" {
			continue
		}
		doc[key] = rewriteRefs(value, key, rewrites, r.Name(), &out)
	}
	return out
}

// rewriteRefs walks node replacing string values that name a merged
// identifier, recording one follow-on correction per rewrite.
func rewriteRefs(node any, path string, rewrites map[string]string, rule string, out *Outcome) any {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			n[k] = rewriteRefs(v, path+"."+k, rewrites, rule, out)
		}
		return n
	case []any:
		for i, v := range n {
			n[i] = rewriteRefs(v, fmt.Sprintf("%s[%d]", path, i), rewrites, rule, out)
		}
		return n
	case string:
		to, ok := rewrites[n]
		if !ok {
			return n
		}
		out.Corrections = append(out.Corrections, Correction{
			Rule:        rule,
			Path:        path,
			Op:          OpRewrite,
			Old:         n,
			New:         to,
			Description: fmt.Sprintf("rewrote reference %q to canonical %q", n, to),
		})
		return to
	default:
		return node
	}
}

// Similarity scores two entity names in [0, 1]. It is the max of a
// normalized Levenshtein ratio and a word-token overlap coefficient, so
// both near-identical spellings ("Jon Smith"/"John Smith") and
// subset names ("Apple"/"Apple Inc.") score high. Deterministic, no
// embeddings.
func Similarity(a, b string) float64 {
	a, b = normalizeName(a), normalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	lev := levenshteinRatio(a, b)
	if ov := tokenOverlap(a, b); ov > lev {
		return ov
	}
	return lev
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// tokenOverlap is |A ∩ B| / min(|A|, |B|) over whitespace-split tokens.
func tokenOverlap(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range tb {
		if _, ok := set[t]; ok {
			shared++
			delete(set, t)
		}
	}
	return float64(shared) / float64(min(len(ta), len(tb)))
}
