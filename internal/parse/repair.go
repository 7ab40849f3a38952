package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// repairFn rewrites a broken candidate span. It returns the rewritten span,
// an optional warning describing dropped content, and whether it changed
// anything. Heuristics must be conservative: closing and trimming is
// allowed, inventing structure that the model never emitted is not.
type repairFn func(span string, st scanState) (string, string, bool)

// repairSequence is the fixed, ordered set of repair heuristics.
var repairSequence = []repairFn{
	stripTrailingCommas,
	closeUnterminatedString,
	appendOuterCloser,
	dropIncompleteTrailing,
}

// repair applies the heuristic sequence to span, retrying a strict parse
// after every change. The attempt budget is fixed; spending it without a
// valid parse is an unrecoverable failure.
func repair(span string, st scanState) (*Result, error) {
	cur := span
	attempts := 0
	var warnings []string

	for _, fix := range repairSequence {
		next, warning, changed := fix(cur, st)
		if !changed {
			continue
		}
		attempts++
		if attempts > maxRepairAttempts {
			break
		}
		cur = next
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if json.Valid([]byte(cur)) {
			return &Result{Payload: json.RawMessage(cur), Warnings: warnings, Repaired: true}, nil
		}
		st = scan(cur)
	}

	return nil, &Failure{
		Reason: ReasonUnrecoverable,
		Detail: fmt.Sprintf("still invalid after %d repair attempts", attempts),
	}
}

// stripTrailingCommas removes commas that directly precede a closing
// bracket, the most common syntax slip in generated JSON.
func stripTrailingCommas(span string, _ scanState) (string, string, bool) {
	var b strings.Builder
	b.Grow(len(span))
	inString := false
	escaped := false
	changed := false

	for i := 0; i < len(span); i++ {
		c := span[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inString = true
			b.WriteByte(c)
		case ',':
			j := i + 1
			for j < len(span) && isJSONSpace(span[j]) {
				j++
			}
			if j < len(span) && (span[j] == '}' || span[j] == ']') {
				changed = true
				continue // drop the comma
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), "", changed
}

// closeUnterminatedString terminates a string the response was cut off
// inside, dropping a dangling escape first so the added quote survives.
func closeUnterminatedString(span string, st scanState) (string, string, bool) {
	if !st.inString {
		return span, "", false
	}
	s := span
	for strings.HasSuffix(s, "\\") {
		s = s[:len(s)-1]
	}
	return s + `"`, "", true
}

// appendOuterCloser closes the outermost container when it is the only
// thing left open. Deeper nesting is left alone: synthesizing closers for a
// value that was cut mid-structure fabricates records the model never
// finished, which the drop heuristic handles instead.
func appendOuterCloser(span string, st scanState) (string, string, bool) {
	if st.inString || len(st.openers) != 1 {
		return span, "", false
	}
	return span + string(closerFor(st.openers[0])), "", true
}

// dropIncompleteTrailing truncates the outermost container after its last
// complete element and closes it, discarding a partially emitted trailing
// element. The dropped suffix is reported as a warning so callers can
// surface the loss.
func dropIncompleteTrailing(span string, st scanState) (string, string, bool) {
	if st.inString || len(st.openers) == 0 || len(st.elementEnds) == 0 {
		return span, "", false
	}
	end := st.elementEnds[len(st.elementEnds)-1]
	if end >= len(span) {
		return span, "", false
	}
	dropped := strings.TrimSpace(span[end:])

	cut := strings.TrimRight(span[:end], " \t\r\n,")
	for _, opener := range reverseOpeners(scan(cut).openers) {
		cut += string(closerFor(opener))
	}

	warning := fmt.Sprintf("dropped incomplete trailing element: %s", preview(dropped, 80))
	return cut, warning, true
}

func closerFor(opener byte) byte {
	if opener == '{' {
		return '}'
	}
	return ']'
}

func reverseOpeners(openers []byte) []byte {
	out := make([]byte, len(openers))
	for i, o := range openers {
		out[len(openers)-1-i] = o
	}
	return out
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
