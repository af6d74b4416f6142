package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
)

// BatchProcessor embeds large text collections by splitting them into
// batches and processing the batches on a bounded worker pool.
type BatchProcessor struct {
	client     Client
	batchSize  int
	maxWorkers int
}

// NewBatchProcessor creates a batch processor over the given client.
func NewBatchProcessor(client Client, batchSize, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// ProcessAll embeds all texts, preserving input order. Empty texts
// produce a nil vector at their position instead of an error.
func (p *BatchProcessor) ProcessAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// Separate empty texts so the API never sees them.
	filtered := make([]string, 0, len(texts))
	emptyIndex := make(map[int]bool)
	for i, text := range texts {
		if text == "" {
			emptyIndex[i] = true
			continue
		}
		filtered = append(filtered, text)
	}

	if len(filtered) == 0 {
		return make([][]float32, len(texts)), nil
	}

	batches := splitIntoBatches(filtered, p.batchSize)

	wp := workerpool.New(p.maxWorkers)
	var mu sync.Mutex
	var firstErr error
	batchVectors := make([][][]float32, len(batches))

	for i, batch := range batches {
		i, batch := i, batch
		wp.Submit(func() {
			select {
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			default:
			}

			vectors, err := p.client.EmbedBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("batch %d: %w", i, err)
				}
				return
			}
			batchVectors[i] = vectors
		})
	}

	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}

	var flat [][]float32
	for _, vectors := range batchVectors {
		flat = append(flat, vectors...)
	}

	if len(emptyIndex) == 0 {
		return flat, nil
	}

	results := make([][]float32, len(texts))
	next := 0
	for i := range texts {
		if emptyIndex[i] {
			continue
		}
		if next < len(flat) {
			results[i] = flat[next]
			next++
		}
	}
	return results, nil
}

// splitIntoBatches chunks texts into slices of at most batchSize.
func splitIntoBatches(texts []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 1
	}

	batches := make([][]string, 0, (len(texts)+batchSize-1)/batchSize)
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
