package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexbr/legal-qa-system/internal/models"
)

// TestRerankBonuses checks each heuristic bonus in isolation.
func TestRerankBonuses(t *testing.T) {
	r := New()

	t.Run("importance bonus", func(t *testing.T) {
		ranked := r.Rerank([]Candidate{
			{ID: "a", Score: 0.5, Metadata: models.SegmentMetadata{Importance: "alta"}},
		})
		assert.InDelta(t, 0.7, ranked[0].AdjustedScore, 1e-6)
	})

	t.Run("article bonus", func(t *testing.T) {
		ranked := r.Rerank([]Candidate{
			{ID: "a", Score: 0.5, Metadata: models.SegmentMetadata{ContentType: models.ContentTypeArticle}},
		})
		assert.InDelta(t, 0.6, ranked[0].AdjustedScore, 1e-6)
	})

	t.Run("article part earns no article bonus", func(t *testing.T) {
		ranked := r.Rerank([]Candidate{
			{ID: "a", Score: 0.5, Metadata: models.SegmentMetadata{ContentType: models.ContentTypeArticlePart}},
		})
		assert.InDelta(t, 0.5, ranked[0].AdjustedScore, 1e-6)
	})

	t.Run("recency bonus above cutoff only", func(t *testing.T) {
		cases := []struct {
			year string
			want float32
		}{
			{"2019", 0.6},
			{"2024", 0.6},
			{"2018", 0.5}, // cutoff is exclusive
			{"1990", 0.5},
			{"", 0.5},
			{"mcmxc", 0.5}, // unparsable year contributes nothing
		}
		for _, tc := range cases {
			ranked := r.Rerank([]Candidate{
				{Score: 0.5, Metadata: models.SegmentMetadata{DocYear: tc.year}},
			})
			assert.InDelta(t, tc.want, ranked[0].AdjustedScore, 1e-6, "year %q", tc.year)
		}
	})

	t.Run("bonuses accumulate", func(t *testing.T) {
		ranked := r.Rerank([]Candidate{
			{Score: 0.4, Metadata: models.SegmentMetadata{
				Importance:  "alta",
				ContentType: models.ContentTypeArticle,
				DocYear:     "2019",
			}},
		})
		assert.InDelta(t, 0.8, ranked[0].AdjustedScore, 1e-6)
	})

	t.Run("absent score counts as zero", func(t *testing.T) {
		ranked := r.Rerank([]Candidate{
			{Metadata: models.SegmentMetadata{ContentType: models.ContentTypeArticle}},
		})
		assert.InDelta(t, 0.1, ranked[0].AdjustedScore, 1e-6)
	})
}

// TestRerankOrdering checks reordering, stability and membership.
func TestRerankOrdering(t *testing.T) {
	r := New()

	t.Run("metadata outranks raw similarity", func(t *testing.T) {
		ranked := r.Rerank([]Candidate{
			{ID: "chunk", Score: 0.5, Metadata: models.SegmentMetadata{ContentType: models.ContentTypeChunk}},
			{ID: "article", Score: 0.4, Metadata: models.SegmentMetadata{
				ContentType: models.ContentTypeArticle,
				Importance:  "alta",
			}},
		})
		require.Len(t, ranked, 2)
		assert.Equal(t, "article", ranked[0].ID)
		assert.InDelta(t, 0.7, ranked[0].AdjustedScore, 1e-6)
		assert.Equal(t, "chunk", ranked[1].ID)
		assert.InDelta(t, 0.5, ranked[1].AdjustedScore, 1e-6)
	})

	t.Run("stable among equal scores", func(t *testing.T) {
		in := []Candidate{
			{ID: "first", Score: 0.5},
			{ID: "second", Score: 0.5},
			{ID: "third", Score: 0.5},
		}
		ranked := r.Rerank(in)
		require.Len(t, ranked, 3)
		assert.Equal(t, "first", ranked[0].ID)
		assert.Equal(t, "second", ranked[1].ID)
		assert.Equal(t, "third", ranked[2].ID)
	})

	t.Run("membership and size preserved", func(t *testing.T) {
		in := []Candidate{
			{ID: "a", Score: 0.1},
			{ID: "b", Score: 0.9, Metadata: models.SegmentMetadata{Importance: "alta"}},
			{ID: "c", Score: 0.3, Metadata: models.SegmentMetadata{DocYear: "2022"}},
		}
		ranked := r.Rerank(in)
		require.Len(t, ranked, len(in))

		seen := make(map[string]bool)
		for _, c := range ranked {
			seen[c.ID] = true
		}
		for _, c := range in {
			assert.True(t, seen[c.ID], "candidate %s lost by rerank", c.ID)
		}
	})

	t.Run("input slice untouched", func(t *testing.T) {
		in := []Candidate{
			{ID: "low", Score: 0.1, Metadata: models.SegmentMetadata{Importance: "alta"}},
			{ID: "high", Score: 0.9},
		}
		_ = r.Rerank(in)
		assert.Equal(t, "low", in[0].ID)
		assert.Zero(t, in[0].AdjustedScore)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, r.Rerank(nil))
	})
}

// TestRerankOptions checks configurable weights.
func TestRerankOptions(t *testing.T) {
	t.Run("custom recency cutoff", func(t *testing.T) {
		r := New(WithRecencyCutoff(1989))
		ranked := r.Rerank([]Candidate{
			{Score: 0.5, Metadata: models.SegmentMetadata{DocYear: "1990"}},
		})
		assert.InDelta(t, 0.6, ranked[0].AdjustedScore, 1e-6)
	})

	t.Run("custom weights", func(t *testing.T) {
		r := New(WithConfig(Config{
			ImportanceBonus: 1.0,
			ArticleBonus:    0,
			RecencyBonus:    0,
			RecencyCutoff:   2018,
		}))
		ranked := r.Rerank([]Candidate{
			{ID: "plain", Score: 0.9},
			{ID: "alta", Score: 0.1, Metadata: models.SegmentMetadata{Importance: "alta"}},
		})
		assert.Equal(t, "alta", ranked[0].ID)
	})
}
