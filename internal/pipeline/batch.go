package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/siftkit/sift/internal/segment"
)

// ProcessBatch fans inputs out over the worker pool and returns one outcome
// per input, indexed by submission order regardless of completion order.
// Cancellation is cooperative: chunks already in flight finish, chunks not
// yet started come back with code "cancelled".
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []ChunkInput) []*Outcome {
	results := make([]*Outcome, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	workers := p.cfg.Workers
	if workers > len(inputs) {
		workers = len(inputs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = p.cancelled(inputs[idx], ctx.Err())
					continue
				}
				results[idx] = p.ProcessChunk(ctx, inputs[idx])
			}
		}()
	}

	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// ProcessDocument segments text and processes the chunks as a batch.
// Results are in chunk order.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentName, text string) ([]*Outcome, error) {
	units, err := segment.TextSource{Text: text}.Units()
	if err != nil {
		return nil, fmt.Errorf("segmenting %s: %w", documentName, err)
	}
	chunks := p.segmenter.Segment(units)

	inputs := make([]ChunkInput, len(chunks))
	for i, chunk := range chunks {
		inputs[i] = ChunkInput{Document: documentName, Index: chunk.Index, Text: chunk.Text}
	}
	return p.ProcessBatch(ctx, inputs), nil
}

func (p *Pipeline) cancelled(in ChunkInput, cause error) *Outcome {
	out := &Outcome{
		Document: in.Document,
		Index:    in.Index,
		Info: Info{
			State:        StatePending,
			ErrorCode:    CodeCancelled,
			ErrorMessage: cause.Error(),
		},
	}
	p.stats.RecordFailure(CodeCancelled)
	return out
}
