// Package rerank reorders retrieved segments using their structural
// metadata, biasing relevance toward authoritative, specific and recent
// legal content. It is a pure post-processing stage over whatever
// candidate set the vector store similarity search returns: membership
// is never changed, only order and the transient adjusted score.
package rerank

import (
	"sort"
	"strconv"

	"github.com/lexbr/legal-qa-system/internal/models"
)

// Candidate is one retrieved segment together with its similarity score
// from the vector store. AdjustedScore is recomputed on every rerank and
// never persisted.
type Candidate struct {
	ID            string
	Text          string
	Metadata      models.SegmentMetadata
	Score         float32 // similarity score from the store, 0 when absent
	AdjustedScore float32 // score plus metadata bonuses
}

// Config holds the heuristic bonus weights.
type Config struct {
	ImportanceBonus float32 // added when importance == "alta"
	ArticleBonus    float32 // added for whole-article segments
	RecencyBonus    float32 // added when doc_year > RecencyCutoffYear
	RecencyCutoff   int     // exclusive year threshold for the recency bonus
}

// DefaultConfig returns the standard bonus weights.
func DefaultConfig() Config {
	return Config{
		ImportanceBonus: 0.2,
		ArticleBonus:    0.1,
		RecencyBonus:    0.1,
		RecencyCutoff:   2018,
	}
}

// highImportance is the curated importance level that earns a bonus.
const highImportance = "alta"

// Reranker computes adjusted scores and produces a total order. It is
// stateless across queries and safe for concurrent use.
type Reranker struct {
	config Config
}

// Option customizes a Reranker.
type Option func(*Config)

// WithConfig replaces the whole bonus configuration.
func WithConfig(config Config) Option {
	return func(c *Config) {
		*c = config
	}
}

// WithRecencyCutoff changes the year above which segments earn the
// recency bonus.
func WithRecencyCutoff(year int) Option {
	return func(c *Config) {
		c.RecencyCutoff = year
	}
}

// New creates a Reranker with the default weights, adjusted by opts.
func New(opts ...Option) *Reranker {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Reranker{config: cfg}
}

// Rerank returns the candidates in descending adjusted-score order. The
// sort is stable, so candidates with equal adjusted scores keep their
// incoming relative order. The input slice is not modified.
func (r *Reranker) Rerank(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].AdjustedScore = ranked[i].Score + r.bonus(ranked[i].Metadata)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AdjustedScore > ranked[j].AdjustedScore
	})
	return ranked
}

// bonus accumulates the metadata bonuses for one segment.
func (r *Reranker) bonus(meta models.SegmentMetadata) float32 {
	var bonus float32

	if meta.Importance == highImportance {
		bonus += r.config.ImportanceBonus
	}
	if meta.ContentType == models.ContentTypeArticle {
		bonus += r.config.ArticleBonus
	}
	// A doc_year that does not parse as an integer simply earns no
	// recency bonus; it is never an error.
	if meta.DocYear != "" {
		if year, err := strconv.Atoi(meta.DocYear); err == nil && year > r.config.RecencyCutoff {
			bonus += r.config.RecencyBonus
		}
	}
	return bonus
}
