package vectordb

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// MemoryRepository is a map-backed vector store for development and
// tests. Entries are kept fully in memory with a document-to-entry index
// for cheap per-document deletion.
type MemoryRepository struct {
	mu           sync.RWMutex
	dimension    int
	distType     DistanceType
	entries      map[string]Entry
	docToEntries map[string][]string
}

// NewMemoryRepository creates an in-memory vector store.
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine
	}

	return &MemoryRepository{
		dimension:    config.Dimension,
		distType:     distType,
		entries:      make(map[string]Entry),
		docToEntries: make(map[string][]string),
	}, nil
}

// Add indexes a single entry.
func (r *MemoryRepository) Add(entry Entry) error {
	if entry.ID == "" {
		return ErrInvalidID
	}
	if err := ValidateVector(entry.Vector, r.dimension); err != nil {
		return err
	}

	prepareEntry(&entry, r.distType)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.ID] = entry
	r.docToEntries[entry.DocumentID] = append(r.docToEntries[entry.DocumentID], entry.ID)
	return nil
}

// AddBatch indexes a batch under a single lock.
func (r *MemoryRepository) AddBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			return ErrInvalidID
		}
		if err := ValidateVector(entry.Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for segment %s: %w", entry.ID, err)
		}
		prepareEntry(entry, r.distType)

		r.entries[entry.ID] = *entry
		r.docToEntries[entry.DocumentID] = append(r.docToEntries[entry.DocumentID], entry.ID)
	}
	return nil
}

// prepareEntry applies the insertion invariants: timestamps, sanitized
// flat metadata, and normalization for the cosine metric.
func prepareEntry(entry *Entry, distType DistanceType) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.Metadata = SanitizeMetadata(entry.Metadata)
	if distType == Cosine {
		entry.Vector = normalizeVector(entry.Vector)
	}
}

// Get fetches one entry.
func (r *MemoryRepository) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	if !exists {
		return Entry{}, ErrSegmentNotFound
	}
	return entry, nil
}

// Delete removes one entry.
func (r *MemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return ErrSegmentNotFound
	}

	delete(r.entries, id)

	if ids, ok := r.docToEntries[entry.DocumentID]; ok {
		kept := make([]string, 0, len(ids)-1)
		for _, entryID := range ids {
			if entryID != id {
				kept = append(kept, entryID)
			}
		}
		if len(kept) == 0 {
			delete(r.docToEntries, entry.DocumentID)
		} else {
			r.docToEntries[entry.DocumentID] = kept
		}
	}
	return nil
}

// DeleteByDocumentID removes all entries of a document. Deleting an
// unknown document is a no-op, matching re-ingestion semantics.
func (r *MemoryRepository) DeleteByDocumentID(documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, exists := r.docToEntries[documentID]
	if !exists {
		return nil
	}

	for _, id := range ids {
		delete(r.entries, id)
	}
	delete(r.docToEntries, documentID)
	return nil
}

// Search runs a similarity search, computing distances over the filtered
// entry set in parallel when it is large enough to pay off.
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.filterEntries(filter)
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	workers := runtime.NumCPU()
	if len(candidates) < 100 || workers <= 1 {
		return r.scoreSerial(vector, candidates, filter)
	}
	return r.scoreParallel(vector, candidates, filter, workers)
}

// filterEntries applies the document and metadata filters. Caller holds
// the read lock.
func (r *MemoryRepository) filterEntries(filter SearchFilter) []Entry {
	var candidates []Entry

	if len(filter.DocumentIDs) > 0 {
		for _, docID := range filter.DocumentIDs {
			for _, entryID := range r.docToEntries[docID] {
				entry, exists := r.entries[entryID]
				if exists && matchMetadata(entry.Metadata, filter.Metadata) {
					candidates = append(candidates, entry)
				}
			}
		}
		return candidates
	}

	candidates = make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		if matchMetadata(entry.Metadata, filter.Metadata) {
			candidates = append(candidates, entry)
		}
	}
	return candidates
}

// scoreSerial computes distances on the calling goroutine.
func (r *MemoryRepository) scoreSerial(vector []float32, candidates []Entry, filter SearchFilter) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(candidates))

	for _, entry := range candidates {
		dist, err := ComputeDistance(vector, entry.Vector, r.distType)
		if err != nil {
			return nil, fmt.Errorf("error computing distance: %w", err)
		}

		score := DistanceToScore(dist, r.distType)
		if score >= filter.MinScore {
			results = append(results, SearchResult{Entry: entry, Score: score, Distance: dist})
		}
	}

	SortSearchResults(results)
	return capResults(results, filter.MaxResults), nil
}

// scoreParallel shards the candidate set across workers.
func (r *MemoryRepository) scoreParallel(vector []float32, candidates []Entry, filter SearchFilter, workers int) ([]SearchResult, error) {
	perWorker := (len(candidates) + workers - 1) / workers

	resultsChan := make(chan []SearchResult, workers)
	errChan := make(chan error, workers)
	active := 0

	for i := 0; i < workers; i++ {
		start := i * perWorker
		end := start + perWorker
		if end > len(candidates) {
			end = len(candidates)
		}
		if start >= end {
			continue
		}
		active++

		go func(shard []Entry) {
			partial := make([]SearchResult, 0, len(shard))
			for _, entry := range shard {
				dist, err := ComputeDistance(vector, entry.Vector, r.distType)
				if err != nil {
					errChan <- fmt.Errorf("error computing distance: %w", err)
					return
				}
				score := DistanceToScore(dist, r.distType)
				if score >= filter.MinScore {
					partial = append(partial, SearchResult{Entry: entry, Score: score, Distance: dist})
				}
			}
			resultsChan <- partial
		}(candidates[start:end])
	}

	var results []SearchResult
	for i := 0; i < active; i++ {
		select {
		case err := <-errChan:
			return nil, err
		case partial := <-resultsChan:
			results = append(results, partial...)
		}
	}

	SortSearchResults(results)
	return capResults(results, filter.MaxResults), nil
}

// capResults truncates to the configured maximum.
func capResults(results []SearchResult, max int) []SearchResult {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}

// Count returns the number of indexed entries.
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries), nil
}

// Close is a no-op for the in-memory store.
func (r *MemoryRepository) Close() error {
	return nil
}

// GetDimension returns the vector dimension.
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
