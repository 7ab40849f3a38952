package segment

import (
	"fmt"
	"strings"
)

// UnitKind classifies an atomic unit of source text.
type UnitKind string

const (
	UnitSentence UnitKind = "sentence"
	UnitTableRow UnitKind = "table_row"
)

// Unit is the smallest fragment the segmenter will never split across
// chunks. Table rows carry their table identity so continuation chunks can
// repeat the header row.
type Unit struct {
	Text    string
	Kind    UnitKind
	TableID string // non-empty for table rows
	Header  bool   // first row of its table
	Tokens  int
}

// UnitSource yields an ordered sequence of units with enough metadata for
// the segmenter's atomic-unit boundaries. Document loaders (PDF, DOCX, ...)
// live outside this module; they only need to satisfy this interface.
type UnitSource interface {
	Units() ([]Unit, error)
}

// TextSource derives units from plain text: sentences for prose lines, one
// atomic row unit per table line. A table line is any line whose cells are
// joined with " | "; consecutive table lines form one table and the first
// row is its header.
type TextSource struct {
	Text string
}

// Units parses the source text into ordered units.
func (s TextSource) Units() ([]Unit, error) {
	var units []Unit
	tableSeq := 0
	currentTable := ""

	for _, line := range strings.Split(s.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			currentTable = ""
			continue
		}

		if strings.Contains(line, " | ") {
			if currentTable == "" {
				tableSeq++
				currentTable = fmt.Sprintf("table-%d", tableSeq)
			}
			header := len(units) == 0 || units[len(units)-1].TableID != currentTable
			units = append(units, Unit{
				Text:    line,
				Kind:    UnitTableRow,
				TableID: currentTable,
				Header:  header,
				Tokens:  EstimateTokens(line),
			})
			continue
		}

		currentTable = ""
		for _, sentence := range SplitSentences(line) {
			units = append(units, Unit{
				Text:   sentence,
				Kind:   UnitSentence,
				Tokens: EstimateTokens(sentence),
			})
		}
	}

	return units, nil
}

// sentenceEnders terminate a sentence in both Latin and CJK text.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// SplitSentences splits a paragraph into sentence units, keeping the
// terminating punctuation with its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	for _, r := range text {
		b.WriteRune(r)
		if sentenceEnders[r] {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
