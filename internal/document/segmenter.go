package document

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lexbr/legal-qa-system/internal/models"
)

// articleHeaderPattern recognizes the header of a Brazilian legal article:
// the literal "Art" (case-sensitive), an optional dot, the article number
// with an optional ordinal or letter suffix ("1º", "28-A"), and at least
// one separator character. The article body is everything from the end of
// the header up to the next header or the end of input; Go's RE2 has no
// lookahead, so bodies are sliced between consecutive header matches.
var articleHeaderPattern = regexp.MustCompile(`Art\.?\s*(\d+[º°]?[A-Z]?)[.\s\-]+`)

// windowSeparators lists cut points for oversized text, in preference
// order: paragraph break, sentence end, word boundary. A hard character
// cut is the last resort when none occurs inside the window.
var windowSeparators = []string{"\n\n", ". ", " "}

// LegalSplitterConfig configures the legal text segmenter.
type LegalSplitterConfig struct {
	ChunkSize    int // maximum segment size in bytes
	ChunkOverlap int // bytes shared between consecutive windows
}

// DefaultLegalSplitterConfig returns the default segmenter configuration.
func DefaultLegalSplitterConfig() LegalSplitterConfig {
	return LegalSplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// LegalSplitter segments Brazilian legal text along its article
// structure, falling back to generic overlapping windows when a document
// has no recognizable articles.
type LegalSplitter struct {
	config LegalSplitterConfig
}

// NewLegalSplitter creates a segmenter with the given configuration.
// Non-positive sizes fall back to the defaults; an overlap equal to or
// larger than the chunk size is clamped so windows always advance.
func NewLegalSplitter(config LegalSplitterConfig) *LegalSplitter {
	def := DefaultLegalSplitterConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = def.ChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = def.ChunkOverlap
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 2
	}
	return &LegalSplitter{config: config}
}

// article is one detected "Art. N" provision with its raw body.
type article struct {
	number string
	body   string
}

// segmentation is the outcome of boundary detection: either a list of
// structural articles or the fallback windows over the whole text. The
// two paths never mix for one document.
type segmentation struct {
	articles []article
	fallback []string
}

// Split segments a document body into retrievable units. The document
// metadata record is copied into every segment so segment-level fields
// can be set without touching the document-level record. Segments whose
// text normalizes to empty are dropped, never emitted blank.
func (s *LegalSplitter) Split(text string, docMeta models.SegmentMetadata) []models.Segment {
	outcome := s.detect(text)

	if len(outcome.articles) > 0 {
		return s.segmentArticles(outcome.articles, docMeta)
	}
	return s.segmentFallback(outcome.fallback, docMeta)
}

// detect runs structural boundary detection over the text. When no
// article header matches anywhere, the whole normalized text is windowed
// generically.
func (s *LegalSplitter) detect(text string) segmentation {
	headers := articleHeaderPattern.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return segmentation{fallback: s.splitWindows(Normalize(text))}
	}

	articles := make([]article, 0, len(headers))
	for i, h := range headers {
		// h[2]:h[3] is the captured number, h[1] the end of the header.
		bodyEnd := len(text)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1][0]
		}
		articles = append(articles, article{
			number: strings.TrimSpace(text[h[2]:h[3]]),
			body:   text[h[1]:bodyEnd],
		})
	}
	return segmentation{articles: articles}
}

// segmentArticles renders one segment per article, subdividing any
// article whose rendered text exceeds the chunk size.
func (s *LegalSplitter) segmentArticles(articles []article, docMeta models.SegmentMetadata) []models.Segment {
	var segments []models.Segment

	for _, art := range articles {
		body := Normalize(art.body)
		text := strings.TrimSpace(fmt.Sprintf("Artigo %s: %s", art.number, body))
		if text == "" {
			continue
		}

		meta := docMeta.Clone()
		meta.ArticleNumber = art.number
		meta.ContentType = models.ContentTypeArticle

		if len(text) <= s.config.ChunkSize {
			segments = append(segments, models.Segment{Text: text, Metadata: meta})
			continue
		}

		// Oversized article: each window becomes its own segment.
		windows := s.splitWindows(text)
		for i, w := range windows {
			partMeta := meta.Clone()
			partMeta.ContentType = models.ContentTypeArticlePart
			partMeta.Part = i + 1
			partMeta.TotalParts = len(windows)
			segments = append(segments, models.Segment{Text: w, Metadata: partMeta})
		}
	}

	for i := range segments {
		segments[i].Position = i
	}
	return segments
}

// segmentFallback renders generic windows for a document without article
// structure. chunk_index values form a contiguous 0-based sequence.
func (s *LegalSplitter) segmentFallback(windows []string, docMeta models.SegmentMetadata) []models.Segment {
	var segments []models.Segment

	for _, w := range windows {
		meta := docMeta.Clone()
		meta.ContentType = models.ContentTypeChunk
		meta.ChunkIndex = len(segments)
		segments = append(segments, models.Segment{Text: w, Metadata: meta, Position: len(segments)})
	}
	for i := range segments {
		segments[i].Metadata.TotalChunks = len(segments)
	}
	return segments
}

// splitWindows cuts text into windows of at most ChunkSize bytes with
// ChunkOverlap bytes shared between consecutive windows. Each cut prefers
// the last paragraph break inside the window, then the last sentence end,
// then the last word boundary, falling back to a hard cut only when the
// window contains none of these. Empty windows are discarded.
func (s *LegalSplitter) splitWindows(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.config.ChunkSize {
		return []string{text}
	}

	var windows []string
	start := 0
	for start < len(text) {
		end := start + s.config.ChunkSize
		if end >= len(text) {
			if w := strings.TrimSpace(text[start:]); w != "" {
				windows = append(windows, w)
			}
			break
		}

		cut := s.findCut(text, start, end)
		if w := strings.TrimSpace(text[start:cut]); w != "" {
			windows = append(windows, w)
		}

		next := cut - s.config.ChunkOverlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return windows
}

// findCut picks the cut position for a window spanning [start, end).
// Separators are tried in preference order; within one separator class
// the cut lands after its last occurrence in the window so windows stay
// as large as the boundary allows.
func (s *LegalSplitter) findCut(text string, start, end int) int {
	window := text[start:end]

	for _, sep := range windowSeparators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}

	// Hard cut: back up to a rune start so multi-byte characters are
	// never torn in half.
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		end = start + s.config.ChunkSize
	}
	return end
}
