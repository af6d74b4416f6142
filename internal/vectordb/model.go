// Package vectordb persists embedded legal segments and serves
// similarity search. It is the indexing boundary of the ingestion
// pipeline: every entry's metadata is a flat scalar mapping, enforced at
// insertion, because no backend here can store nested values.
package vectordb

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid segment ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Entry is one indexed segment: its text, its embedding and the
// flattened structural metadata that travels with it.
type Entry struct {
	ID         string                 // unique segment ID
	DocumentID string                 // owning document ID
	Source     string                 // document display name
	Position   int                    // segment order within the document
	Text       string                 // segment text
	Vector     []float32              // embedding
	CreatedAt  time.Time              // index time
	Metadata   map[string]interface{} // flat scalar metadata
}

// DistanceType selects the vector distance metric.
type DistanceType string

const (
	// Cosine cosine distance
	Cosine DistanceType = "cosine"
	// DotProduct inner product
	DotProduct DistanceType = "dot"
	// Euclidean L2 distance
	Euclidean DistanceType = "l2"
)

// SearchResult is one similarity hit.
type SearchResult struct {
	Entry    Entry
	Score    float32 // similarity score in [0,1]
	Distance float32 // raw distance for the configured metric
}

// SearchFilter narrows a similarity search.
type SearchFilter struct {
	DocumentIDs []string               // restrict to these documents
	Metadata    map[string]interface{} // exact-match metadata constraints
	MinScore    float32                // drop results below this score
	MaxResults  int                    // cap on returned results
}

// DefaultSearchFilter returns the default search settings.
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository is the vector store interface used by the services.
type Repository interface {
	// Add indexes a single entry.
	Add(entry Entry) error

	// AddBatch indexes a batch of entries.
	AddBatch(entries []Entry) error

	// Get fetches one entry by ID.
	Get(id string) (Entry, error)

	// Delete removes one entry.
	Delete(id string) error

	// DeleteByDocumentID removes every entry of a document.
	DeleteByDocumentID(documentID string) error

	// Search runs a similarity search over the index.
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count returns the number of indexed entries.
	Count() (int, error)

	// GetDimension returns the vector dimension.
	GetDimension() int

	// Close releases backend resources.
	Close() error
}

// Config selects and configures a vector store backend.
type Config struct {
	Type              string       // backend: "memory", "faiss"
	Path              string       // index file path, when persistent
	Dimension         int          // vector dimension
	DistanceType      DistanceType // distance metric
	CreateIfNotExists bool         // create the index when missing
	InMemory          bool         // skip persistence entirely
}

// Factory builds a Repository from a Config.
type Factory func(config Config) (Repository, error)

// RepositoryRegistry maps backend names to factories.
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository registers a backend factory.
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository creates the backend named in the config, defaulting to
// the in-memory implementation for unknown names.
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		factory = NewMemoryRepository
	}
	return factory(config)
}
