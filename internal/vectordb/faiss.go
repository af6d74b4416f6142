//go:build cgo

package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository is a Faiss-backed vector store. The flat index holds
// the vectors; entries and the ID-to-position mapping are kept alongside
// and persisted as a JSON sidecar next to the index file.
type FaissRepository struct {
	mu             sync.RWMutex
	index          faiss.Index
	entries        map[string]Entry
	docToEntries   map[string][]string
	idToPosition   map[string]int
	indexPath      string
	metaPath       string
	dimension      int
	distanceType   DistanceType
	saveOnClose    bool
	autoSave       bool
	autoSaveCount  int
	operationCount int
}

// NewFaissRepository creates or loads a Faiss vector store.
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	if config.Path != "" && !config.InMemory {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	indexPath := config.Path
	metaPath := ""
	if indexPath != "" {
		metaPath = indexPath + ".meta.json"
	}

	repo := &FaissRepository{
		entries:       make(map[string]Entry),
		docToEntries:  make(map[string][]string),
		idToPosition:  make(map[string]int),
		indexPath:     indexPath,
		metaPath:      metaPath,
		dimension:     config.Dimension,
		distanceType:  distType,
		saveOnClose:   true,
		autoSave:      true,
		autoSaveCount: 100,
	}

	var index faiss.Index
	var err error

	if indexPath != "" && !config.InMemory && fileExists(indexPath) {
		index, err = faiss.ReadIndex(indexPath, 0)
		if err != nil {
			if config.CreateIfNotExists {
				index, err = createFaissIndex(config.Dimension, distType)
				if err != nil {
					return nil, fmt.Errorf("failed to create Faiss index: %v", err)
				}
			} else {
				return nil, fmt.Errorf("failed to read index file: %v", err)
			}
		} else {
			if err := repo.loadMetadata(metaPath); err != nil {
				return nil, fmt.Errorf("failed to load segment metadata: %v", err)
			}
		}
	} else {
		index, err = createFaissIndex(config.Dimension, distType)
		if err != nil {
			return nil, fmt.Errorf("failed to create Faiss index: %v", err)
		}
	}

	repo.index = index
	return repo, nil
}

// createFaissIndex builds a flat index for the metric.
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	case Euclidean:
		metric = faiss.MetricL2
	default:
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// Add indexes a single entry.
func (r *FaissRepository) Add(entry Entry) error {
	if entry.ID == "" {
		return ErrInvalidID
	}
	if err := ValidateVector(entry.Vector, r.dimension); err != nil {
		return err
	}
	prepareEntry(&entry, r.distanceType)

	r.mu.Lock()
	defer r.mu.Unlock()

	nextPos := int(r.index.Ntotal())
	if err := r.index.Add(entry.Vector); err != nil {
		return fmt.Errorf("failed to add vector to index: %v", err)
	}

	r.entries[entry.ID] = entry
	r.idToPosition[entry.ID] = nextPos
	r.docToEntries[entry.DocumentID] = append(r.docToEntries[entry.DocumentID], entry.ID)
	r.operationCount++

	if r.autoSave && r.operationCount >= r.autoSaveCount {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("auto-save failed: %v", err)
		}
		r.operationCount = 0
	}
	return nil
}

// AddBatch indexes a batch of entries.
func (r *FaissRepository) AddBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if entries[i].ID == "" {
			return ErrInvalidID
		}
		if err := ValidateVector(entries[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for segment %s: %v", entries[i].ID, err)
		}
		prepareEntry(&entries[i], r.distanceType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	startPos := int(r.index.Ntotal())
	for _, entry := range entries {
		if err := r.index.Add(entry.Vector); err != nil {
			return fmt.Errorf("failed to add vector to index: %v", err)
		}
	}

	for i, entry := range entries {
		r.entries[entry.ID] = entry
		r.idToPosition[entry.ID] = startPos + i
		r.docToEntries[entry.DocumentID] = append(r.docToEntries[entry.DocumentID], entry.ID)
	}
	r.operationCount += len(entries)

	if r.autoSave && r.operationCount >= r.autoSaveCount {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("auto-save failed: %v", err)
		}
		r.operationCount = 0
	}
	return nil
}

// Get fetches one entry.
func (r *FaissRepository) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	if !exists {
		return Entry{}, ErrSegmentNotFound
	}
	return entry, nil
}

// Delete removes one entry from the bookkeeping maps. The vector stays
// in the flat index but becomes unreachable; the index is rebuilt
// compact on the next full re-ingestion.
func (r *FaissRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return ErrSegmentNotFound
	}
	delete(r.entries, id)
	delete(r.idToPosition, id)

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
	r.operationCount++
	return nil
}

// DeleteByDocumentID removes every entry of a document.
func (r *FaissRepository) DeleteByDocumentID(documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, exists := r.docToEntries[documentID]
	if !exists {
		return nil
	}
	for _, id := range ids {
		delete(r.entries, id)
		delete(r.idToPosition, id)
	}
	delete(r.docToEntries, documentID)
	r.operationCount += len(ids)
	return nil
}

// Search queries the Faiss index and applies the filter to the hits.
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distanceType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return []SearchResult{}, nil
	}

	k := filter.MaxResults
	if k <= 0 {
		k = 10
	}
	// Overfetch so post-filtering still fills k results.
	queryLimit := k * 2
	total := int(r.index.Ntotal())
	if queryLimit > total {
		queryLimit = total
	}
	if queryLimit == 0 {
		return []SearchResult{}, nil
	}

	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %v", err)
	}

	positionToID := make(map[int]string, len(r.idToPosition))
	for id, pos := range r.idToPosition {
		positionToID[pos] = id
	}

	var results []SearchResult
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 {
			continue
		}
		id, ok := positionToID[int(idx)]
		if !ok {
			continue
		}
		entry, exists := r.entries[id]
		if !exists {
			continue
		}
		if len(filter.DocumentIDs) > 0 && !containsString(filter.DocumentIDs, entry.DocumentID) {
			continue
		}
		if !matchMetadata(entry.Metadata, filter.Metadata) {
			continue
		}

		dist := distances[i]
		score := DistanceToScore(dist, r.distanceType)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{Entry: entry, Score: score, Distance: dist})
		if len(results) >= k {
			break
		}
	}

	SortSearchResults(results)
	return results, nil
}

// containsString reports membership in a small slice.
func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// Count returns the number of reachable entries.
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries), nil
}

// Close persists the index when configured to.
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveOnClose && r.indexPath != "" {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("failed to save index on close: %v", err)
		}
	}
	return nil
}

// GetDimension returns the vector dimension.
func (r *FaissRepository) GetDimension() int {
	return r.dimension
}

// saveIndex writes the index file and its metadata sidecar.
func (r *FaissRepository) saveIndex() error {
	if r.indexPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index to file: %v", err)
	}
	return r.saveMetadata()
}

// faissSidecar is the persisted bookkeeping for a Faiss index.
type faissSidecar struct {
	Entries        map[string]Entry    `json:"entries"`
	DocToEntries   map[string][]string `json:"doc_to_entries"`
	IDToPosition   map[string]int      `json:"id_to_position"`
	OperationCount int                 `json:"operation_count"`
}

// saveMetadata writes the sidecar file.
func (r *FaissRepository) saveMetadata() error {
	if r.metaPath == "" {
		return nil
	}
	sidecar := faissSidecar{
		Entries:        r.entries,
		DocToEntries:   r.docToEntries,
		IDToPosition:   r.idToPosition,
		OperationCount: r.operationCount,
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %v", err)
	}
	return nil
}

// loadMetadata reads the sidecar file, if present.
func (r *FaissRepository) loadMetadata(path string) error {
	if path == "" || !fileExists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %v", err)
	}
	var sidecar faissSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %v", err)
	}
	r.entries = sidecar.Entries
	r.docToEntries = sidecar.DocToEntries
	r.idToPosition = sidecar.IDToPosition
	r.operationCount = sidecar.OperationCount
	return nil
}

// fileExists checks for a file on disk.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
