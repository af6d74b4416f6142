package document

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexbr/legal-qa-system/internal/models"
)

func testDocMeta() models.SegmentMetadata {
	return models.SegmentMetadata{
		Source:  "Lei nº 8.078/1990",
		DocType: models.DocTypeLei,
		DocYear: "1990",
	}
}

// TestSplitArticles covers the structural segmentation path.
func TestSplitArticles(t *testing.T) {
	splitter := NewLegalSplitter(DefaultLegalSplitterConfig())

	t.Run("two simple articles", func(t *testing.T) {
		segments := splitter.Split("Art. 1. Primeiro. Art. 2. Segundo.", testDocMeta())
		require.Len(t, segments, 2)

		assert.Equal(t, "Artigo 1: Primeiro.", segments[0].Text)
		assert.Equal(t, "1", segments[0].Metadata.ArticleNumber)
		assert.Equal(t, models.ContentTypeArticle, segments[0].Metadata.ContentType)

		assert.Equal(t, "Artigo 2: Segundo.", segments[1].Text)
		assert.Equal(t, "2", segments[1].Metadata.ArticleNumber)
	})

	t.Run("single article document", func(t *testing.T) {
		segments := splitter.Split("Art. 5º Todos são iguais perante a lei.", testDocMeta())
		require.Len(t, segments, 1)
		assert.Equal(t, "5º", segments[0].Metadata.ArticleNumber)
		assert.Equal(t, "Artigo 5º: Todos são iguais perante a lei.", segments[0].Text)
	})

	t.Run("letter suffixed article number", func(t *testing.T) {
		segments := splitter.Split("Art. 28A O disposto aplica-se também aos consórcios.", testDocMeta())
		require.Len(t, segments, 1)
		assert.Equal(t, "28A", segments[0].Metadata.ArticleNumber)
	})

	t.Run("document metadata copied per segment", func(t *testing.T) {
		meta := testDocMeta()
		segments := splitter.Split("Art. 1. Um. Art. 2. Dois.", meta)
		require.Len(t, segments, 2)
		for _, seg := range segments {
			assert.Equal(t, meta.Source, seg.Metadata.Source)
			assert.Equal(t, meta.DocType, seg.Metadata.DocType)
		}
		// Mutating one segment's metadata must not leak anywhere.
		segments[0].Metadata.ArticleNumber = "999"
		assert.Equal(t, "2", segments[1].Metadata.ArticleNumber)
		assert.Empty(t, meta.ArticleNumber)
	})

	t.Run("body spanning newlines", func(t *testing.T) {
		text := "Art. 4º A Política Nacional das Relações de Consumo\ntem por objetivo o atendimento\ndas necessidades dos consumidores. Art. 5º Para a execução da Política Nacional."
		segments := splitter.Split(text, testDocMeta())
		require.Len(t, segments, 2)
		assert.NotContains(t, segments[0].Text, "\n")
		assert.Contains(t, segments[0].Text, "necessidades dos consumidores.")
	})

	t.Run("empty body still emits prefixed segment", func(t *testing.T) {
		segments := splitter.Split("Art. 1. Art. 2. Conteúdo real.", testDocMeta())
		require.Len(t, segments, 2)
		assert.Equal(t, "Artigo 1:", segments[0].Text)
		assert.Equal(t, "Artigo 2: Conteúdo real.", segments[1].Text)
	})

	t.Run("positions follow source order", func(t *testing.T) {
		segments := splitter.Split("Art. 3. Três. Art. 1. Um. Art. 2. Dois.", testDocMeta())
		require.Len(t, segments, 3)
		assert.Equal(t, []string{"3", "1", "2"}, []string{
			segments[0].Metadata.ArticleNumber,
			segments[1].Metadata.ArticleNumber,
			segments[2].Metadata.ArticleNumber,
		})
		for i, seg := range segments {
			assert.Equal(t, i, seg.Position)
		}
	})
}

// TestSplitOversizedArticle covers windowed subdivision of long articles.
func TestSplitOversizedArticle(t *testing.T) {
	splitter := NewLegalSplitter(LegalSplitterConfig{ChunkSize: 120, ChunkOverlap: 30})

	var body strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&body, "O fornecedor responde pelo vício número %d do produto. ", i)
	}
	text := "Art. 18. " + body.String()

	segments := splitter.Split(text, testDocMeta())
	require.Greater(t, len(segments), 1, "long article must be subdivided")

	for i, seg := range segments {
		assert.LessOrEqual(t, len(seg.Text), 120, "window %d exceeds max size", i)
		assert.Equal(t, models.ContentTypeArticlePart, seg.Metadata.ContentType)
		assert.Equal(t, "18", seg.Metadata.ArticleNumber)
		assert.Equal(t, i+1, seg.Metadata.Part)
		assert.Equal(t, len(segments), seg.Metadata.TotalParts)
		assert.NotEmpty(t, seg.Text)
	}

	// First window keeps the article prefix.
	assert.True(t, strings.HasPrefix(segments[0].Text, "Artigo 18:"))
}

// TestSplitFallback covers generic windowing when no article exists.
func TestSplitFallback(t *testing.T) {
	t.Run("short text yields one chunk", func(t *testing.T) {
		splitter := NewLegalSplitter(DefaultLegalSplitterConfig())
		segments := splitter.Split("Nota técnica sobre atendimento ao consumidor.", testDocMeta())
		require.Len(t, segments, 1)
		assert.Equal(t, models.ContentTypeChunk, segments[0].Metadata.ContentType)
		assert.Equal(t, 0, segments[0].Metadata.ChunkIndex)
		assert.Equal(t, 1, segments[0].Metadata.TotalChunks)
	})

	t.Run("chunk indices are contiguous", func(t *testing.T) {
		splitter := NewLegalSplitter(LegalSplitterConfig{ChunkSize: 80, ChunkOverlap: 20})
		text := strings.Repeat("Considerações gerais sobre a política de consumo. ", 30)
		segments := splitter.Split(text, testDocMeta())
		require.Greater(t, len(segments), 1)

		for i, seg := range segments {
			assert.Equal(t, models.ContentTypeChunk, seg.Metadata.ContentType)
			assert.Equal(t, i, seg.Metadata.ChunkIndex)
			assert.Equal(t, len(segments), seg.Metadata.TotalChunks)
			assert.LessOrEqual(t, len(seg.Text), 80)
			assert.NotEmpty(t, seg.Text)
		}
	})

	t.Run("whitespace only document yields nothing", func(t *testing.T) {
		splitter := NewLegalSplitter(DefaultLegalSplitterConfig())
		assert.Empty(t, splitter.Split("   \n\t  ", testDocMeta()))
		assert.Empty(t, splitter.Split("", testDocMeta()))
	})
}

// TestWindowBoundaries checks boundary preference and overlap behavior.
func TestWindowBoundaries(t *testing.T) {
	splitter := NewLegalSplitter(LegalSplitterConfig{ChunkSize: 100, ChunkOverlap: 20})

	t.Run("prefers sentence boundary", func(t *testing.T) {
		text := strings.Repeat("Frase curta de teste número um. ", 10)
		windows := splitter.splitWindows(strings.TrimSpace(text))
		require.Greater(t, len(windows), 1)
		// Every non-final window should end at a sentence boundary.
		for _, w := range windows[:len(windows)-1] {
			assert.True(t, strings.HasSuffix(w, "."), "window %q should end on a sentence", w)
		}
	})

	t.Run("falls back to word boundary", func(t *testing.T) {
		text := strings.Repeat("palavra ", 40)
		windows := splitter.splitWindows(strings.TrimSpace(text))
		require.Greater(t, len(windows), 1)
		for _, w := range windows {
			assert.LessOrEqual(t, len(w), 100)
			assert.False(t, strings.HasPrefix(w, " "))
			assert.False(t, strings.HasSuffix(w, " "))
		}
	})

	t.Run("hard cut when no boundary exists", func(t *testing.T) {
		text := strings.Repeat("x", 250)
		windows := splitter.splitWindows(text)
		require.Greater(t, len(windows), 1)
		total := 0
		for _, w := range windows {
			assert.LessOrEqual(t, len(w), 100)
			total += len(w)
		}
		// Hard-cut windows share exactly the configured overlap.
		assert.Equal(t, "x", string(windows[0][0]))
		assert.GreaterOrEqual(t, total, 250, "overlap must duplicate characters")
	})

	t.Run("hard cut respects rune boundaries", func(t *testing.T) {
		text := strings.Repeat("ç", 150)
		windows := splitter.splitWindows(text)
		for _, w := range windows {
			assert.True(t, strings.HasPrefix(w, "ç"))
			assert.Equal(t, 0, len(w)%2, "ç is two bytes; windows must not tear runes")
		}
	})
}
