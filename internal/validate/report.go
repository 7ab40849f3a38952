package validate

// Correction operations, recorded in the audit trail.
const (
	OpMerge    = "merge"
	OpRewrite  = "rewrite"
	OpRemove   = "remove"
	OpTruncate = "truncate"
)

// Correction describes one mutation a rule applied to the payload.
type Correction struct {
	Rule        string `json:"rule"`
	Path        string `json:"path"`
	Op          string `json:"op"`
	Old         any    `json:"old,omitempty"`
	New         any    `json:"new,omitempty"`
	Description string `json:"description"`
}

// Outcome is the result of one rule evaluation.
type Outcome struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	Corrections []Correction
}

// Report accumulates schema and rule results for one payload. It is built
// fresh per Validate call and never mutated after return.
type Report struct {
	SchemaValid bool         `json:"schema_valid"`
	RulesValid  bool         `json:"rules_valid"`
	Errors      []string     `json:"errors,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
	Corrections []Correction `json:"corrections,omitempty"`
}

func (r *Report) absorb(out Outcome) {
	if !out.Valid {
		r.RulesValid = false
	}
	r.Errors = append(r.Errors, out.Errors...)
	r.Warnings = append(r.Warnings, out.Warnings...)
	r.Corrections = append(r.Corrections, out.Corrections...)
}
