package segment

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrConfig marks an invalid segmenter configuration. Configuration errors
// are raised at construction time, never per document.
var ErrConfig = errors.New("invalid segmenter configuration")

// Config bounds chunk sizes in estimated tokens.
type Config struct {
	MaxTokens     int
	OverlapTokens int
}

// Chunk is a token-bounded span of source units. The first LeadUnits units
// are repeated context (overlap from the previous chunk plus a repeated
// table header); stripping them from every chunk but the first reconstructs
// the original unit sequence.
type Chunk struct {
	Index     int
	Text      string
	Tokens    int
	Units     []Unit
	LeadUnits int
	Oversized bool // a single atomic unit exceeded MaxTokens
}

// Segmenter splits unit sequences into token-bounded chunks with overlap.
// It never splits an atomic unit: a unit that alone exceeds the budget is
// emitted as its own oversized chunk rather than being corrupted.
type Segmenter struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a segmenter, failing fast on invalid configuration.
func New(cfg Config, logger *slog.Logger) (*Segmenter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be positive, got %d", ErrConfig, cfg.MaxTokens)
	}
	if cfg.OverlapTokens < 0 {
		return nil, fmt.Errorf("%w: overlap_tokens must not be negative, got %d", ErrConfig, cfg.OverlapTokens)
	}
	if cfg.OverlapTokens >= cfg.MaxTokens {
		return nil, fmt.Errorf("%w: overlap_tokens (%d) must be less than max_tokens (%d)",
			ErrConfig, cfg.OverlapTokens, cfg.MaxTokens)
	}
	return &Segmenter{cfg: cfg, logger: logger.With("component", "segmenter")}, nil
}

// Segment accumulates units into chunks. When the next unit would exceed
// MaxTokens the current chunk is closed and the next one starts with the
// trailing OverlapTokens worth of whole units from it. Table continuation
// chunks additionally repeat the table's header row so each chunk stays
// self-describing.
func (s *Segmenter) Segment(units []Unit) []Chunk {
	var chunks []Chunk

	headers := make(map[string]Unit)
	var cur []Unit
	lead := 0
	curTokens := 0

	flush := func(oversized bool) {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      joinUnits(cur),
			Tokens:    curTokens,
			Units:     cur,
			LeadUnits: lead,
			Oversized: oversized,
		})
		cur = nil
		lead = 0
		curTokens = 0
	}

	// open starts a fresh chunk seeded with overlap from the previous one
	// and, when the upcoming unit continues a table, that table's header.
	// The lead shrinks (oldest units first) if it would push the chunk past
	// the budget once next is added.
	open := func(next Unit) {
		leadUnits := s.overlapTail(chunks)
		if next.Kind == UnitTableRow && !next.Header {
			if header, ok := headers[next.TableID]; ok && !containsUnit(leadUnits, header) {
				leadUnits = append(leadUnits, header)
			}
		}
		leadTokens := 0
		for _, u := range leadUnits {
			leadTokens += u.Tokens
		}
		for len(leadUnits) > 0 && leadTokens+next.Tokens > s.cfg.MaxTokens {
			leadTokens -= leadUnits[0].Tokens
			leadUnits = leadUnits[1:]
		}

		cur = append(cur, leadUnits...)
		lead = len(leadUnits)
		curTokens = leadTokens
	}

	for _, u := range units {
		if u.Tokens == 0 {
			u.Tokens = EstimateTokens(u.Text)
		}
		if u.Kind == UnitTableRow && u.Header {
			headers[u.TableID] = u
		}

		// An atomic unit larger than the whole budget becomes its own chunk.
		if u.Tokens > s.cfg.MaxTokens {
			flush(false)
			open(u)
			cur = append(cur, u)
			curTokens += u.Tokens
			s.logger.Warn("atomic unit exceeds chunk budget",
				"unit_tokens", u.Tokens, "max_tokens", s.cfg.MaxTokens)
			flush(true)
			continue
		}

		if len(cur) > lead && curTokens+u.Tokens > s.cfg.MaxTokens {
			flush(false)
			open(u)
		}
		cur = append(cur, u)
		curTokens += u.Tokens
	}
	flush(false)

	return chunks
}

// overlapTail picks the trailing whole units of the last chunk that fit in
// the overlap budget, newest first from the end.
func (s *Segmenter) overlapTail(chunks []Chunk) []Unit {
	if s.cfg.OverlapTokens == 0 || len(chunks) == 0 {
		return nil
	}
	prev := chunks[len(chunks)-1].Units

	total := 0
	start := len(prev)
	for i := len(prev) - 1; i >= 0; i-- {
		if total+prev[i].Tokens > s.cfg.OverlapTokens {
			break
		}
		total += prev[i].Tokens
		start = i
	}

	if start == len(prev) {
		return nil
	}
	tail := make([]Unit, len(prev)-start)
	copy(tail, prev[start:])
	return tail
}

func joinUnits(units []Unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.Text
	}
	return strings.Join(parts, "\n")
}

func containsUnit(units []Unit, u Unit) bool {
	for _, c := range units {
		if c.Text == u.Text && c.TableID == u.TableID {
			return true
		}
	}
	return false
}
