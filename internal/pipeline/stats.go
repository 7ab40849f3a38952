package pipeline

import (
	"sync"
	"sync/atomic"
)

// Stats aggregates counters across all workers of a run. Counter updates
// are atomic; the failure map takes a mutex because keys arrive dynamically.
type Stats struct {
	requests  atomic.Int64
	successes atomic.Int64
	tokens    atomic.Int64

	mu       sync.Mutex
	failures map[string]int64
}

// StatsSnapshot is a point-in-time copy safe to read without locks.
type StatsSnapshot struct {
	Requests  int64            `json:"requests"`
	Successes int64            `json:"successes"`
	Tokens    int64            `json:"tokens"`
	Failures  map[string]int64 `json:"failures,omitempty"`
}

func NewStats() *Stats {
	return &Stats{failures: make(map[string]int64)}
}

// RecordRequest counts one completion request issued, retries included.
func (s *Stats) RecordRequest() {
	s.requests.Add(1)
}

// RecordSuccess counts one chunk completed.
func (s *Stats) RecordSuccess() {
	s.successes.Add(1)
}

// RecordFailure counts one terminal chunk failure by error code.
func (s *Stats) RecordFailure(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[code]++
}

// RecordTokens adds provider-reported token usage without marking success.
func (s *Stats) RecordTokens(tokens int) {
	s.tokens.Add(int64(tokens))
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	failures := make(map[string]int64, len(s.failures))
	for k, v := range s.failures {
		failures[k] = v
	}
	s.mu.Unlock()

	return StatsSnapshot{
		Requests:  s.requests.Load(),
		Successes: s.successes.Load(),
		Tokens:    s.tokens.Load(),
		Failures:  failures,
	}
}
