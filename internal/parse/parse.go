// Package parse recovers a structured JSON payload from free-form model
// output. Responses are routinely wrapped in prose or markdown, truncated
// mid-stream, or carry small syntax defects; the parser isolates the
// payload, tries a strict decode, and then applies a fixed sequence of
// conservative repairs before giving up.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxRepairAttempts bounds the repair loop. Each heuristic that changes the
// candidate text consumes one attempt.
const maxRepairAttempts = 4

// ReasonUnrecoverable is the failure reason once the repair budget is spent.
const ReasonUnrecoverable = "unrecoverable"

// Failure describes an unparseable response.
type Failure struct {
	Reason string
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("parse failed: %s", f.Reason)
	}
	return fmt.Sprintf("parse failed: %s: %s", f.Reason, f.Detail)
}

// Result is a successfully recovered payload. Warnings record content the
// repair pass had to drop, so callers can surface them.
type Result struct {
	Payload  json.RawMessage
	Warnings []string
	Repaired bool
}

// Extract locates the first JSON value in raw, parses it strictly, and on
// failure runs the bounded repair sequence. A success never silently drops
// top-level content: anything removed by the drop-incomplete-trailing
// heuristic is reported in Warnings.
func Extract(raw string) (*Result, error) {
	span, st, ok := locate(raw)
	if !ok {
		return nil, &Failure{Reason: ReasonUnrecoverable, Detail: "no JSON object or array found"}
	}

	if json.Valid([]byte(span)) {
		return &Result{Payload: json.RawMessage(span)}, nil
	}

	return repair(span, st)
}

// scanState captures where a depth-tracking scan of a candidate span ended.
type scanState struct {
	openers  []byte // unclosed container openers, outermost first
	inString bool
	// elementEnds[i] is the offset just past the i-th complete top-level
	// element (object member or array item) of the outermost container.
	elementEnds []int
}

// locate finds the first '{' or '[' outside any string literal and scans to
// its matching close, tolerating escaped quotes. When the value never
// closes (truncated output) the span runs to the end of raw and the scan
// state records what remained open.
func locate(raw string) (string, scanState, bool) {
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			start = i
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", scanState{}, false
	}

	span := raw[start:]
	st := scan(span)
	if len(st.openers) == 0 && !st.inString {
		// Fully closed value; trim anything after the matching close.
		if end := matchingClose(span); end > 0 {
			span = span[:end]
			st = scan(span)
		}
	}
	return span, st, true
}

// matchingClose returns the offset just past the close of the first value
// in span, or -1 if it never closes.
func matchingClose(span string) int {
	depth := 0
	inString := false
	escaped := false
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
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// scan walks span tracking container nesting, string state, and the end
// offsets of complete top-level elements.
func scan(span string) scanState {
	st := scanState{}
	escaped := false
	for i := 0; i < len(span); i++ {
		c := span[i]
		if st.inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				st.inString = false
				st.markElementEnd(i + 1)
			}
			continue
		}
		switch c {
		case '"':
			st.inString = true
		case '{':
			st.openers = append(st.openers, '{')
		case '[':
			st.openers = append(st.openers, '[')
		case '}', ']':
			if len(st.openers) > 0 {
				st.openers = st.openers[:len(st.openers)-1]
			}
			if len(st.openers) == 1 {
				st.elementEnds = append(st.elementEnds, i+1)
			}
		case ':':
			// The preceding depth-1 string was an object key, not a value.
			if len(st.openers) == 1 && len(st.elementEnds) > 0 {
				st.elementEnds = st.elementEnds[:len(st.elementEnds)-1]
			}
		default:
			if len(st.openers) == 1 && !strings.ContainsRune(" \t\r\n,:", rune(c)) {
				// A primitive at depth 1: extend the last element end as
				// the literal grows (numbers, true/false/null).
				st.markElementEnd(i + 1)
			}
		}
	}
	return st
}

// markElementEnd records offset as a depth-1 element boundary, merging with
// a directly preceding boundary so multi-character literals collapse to one.
func (st *scanState) markElementEnd(offset int) {
	if len(st.openers) != 1 {
		return
	}
	if n := len(st.elementEnds); n > 0 && st.elementEnds[n-1] == offset-1 {
		st.elementEnds[n-1] = offset
		return
	}
	st.elementEnds = append(st.elementEnds, offset)
}
