package segment

import (
	"unicode"
)

// EstimateTokens approximates the token count of a text span without a
// model-specific tokenizer. Each CJK character counts as one token, each
// run of non-CJK letters/digits counts as one token, and each punctuation
// character counts as one token. Whitespace is free.
func EstimateTokens(text string) int {
	tokens := 0
	inWord := false

	for _, r := range text {
		switch {
		case isCJK(r):
			tokens++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				tokens++
				inWord = true
			}
		case unicode.IsSpace(r):
			inWord = false
		default:
			// Punctuation and symbols count individually.
			tokens++
			inWord = false
		}
	}

	return tokens
}

// isCJK reports whether r falls in the CJK Unified Ideographs block.
func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}
