package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DocType classifies a Brazilian legal document by its normative category.
type DocType string

const (
	// DocTypeLei ordinary statutes ("Lei")
	DocTypeLei DocType = "lei"
	// DocTypeDecreto executive decrees ("Decreto")
	DocTypeDecreto DocType = "decreto"
	// DocTypeResolucao agency resolutions ("Resolução")
	DocTypeResolucao DocType = "resolucao"
	// DocTypeCodigo consolidated codes ("Código")
	DocTypeCodigo DocType = "codigo"
	// DocTypeUnknown anything the extractor could not classify
	DocTypeUnknown DocType = "unknown"
)

// ContentType describes how a segment was carved out of its document.
type ContentType string

const (
	// ContentTypeArticle a whole numbered article ("Art. N")
	ContentTypeArticle ContentType = "article"
	// ContentTypeArticlePart one window of an oversized article
	ContentTypeArticlePart ContentType = "article_part"
	// ContentTypeChunk a generic window when no article structure was found
	ContentTypeChunk ContentType = "chunk"
)

// SegmentMetadata carries the structural facts attached to every segment.
// It is a closed struct rather than an open map so that consumers never
// need to re-validate its shape. The zero value of an optional string
// field means "absent"; Flatten omits absent fields entirely instead of
// emitting empty placeholders.
type SegmentMetadata struct {
	// Document-level fields, produced by the metadata extractor.
	Source          string  // document display name
	DocType         DocType // lei|decreto|resolucao|codigo|unknown
	DocNumber       string  // e.g. "8.078", optional
	DocYear         string  // 4-digit year, optional
	PublicationDate string  // DD/MM/YYYY, optional

	// Curated fields supplied by operators at ingestion time.
	Importance  string // "alta" boosts ranking
	Category    string
	Hierarchy   string
	Scope       string
	Description string

	// Segment-level fields, produced by the segmenter.
	ArticleNumber string      // captured article number, articles only
	ContentType   ContentType // article|article_part|chunk
	Part          int         // 1-based part index, article_part only
	TotalParts    int         // window count, article_part only
	ChunkIndex    int         // 0-based window index, chunk only
	TotalChunks   int         // window count, chunk only
}

// Clone returns an independent copy so per-segment fields can diverge
// without mutating the document-level record.
func (m SegmentMetadata) Clone() SegmentMetadata {
	return m
}

// Flatten converts the metadata into the scalar-only map required by the
// vector store boundary. Absent optional fields are omitted, never set to
// empty placeholders. All values are string, int, float64 or bool.
func (m SegmentMetadata) Flatten() map[string]interface{} {
	out := make(map[string]interface{})

	putString := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}

	putString("source", m.Source)
	if m.DocType != "" {
		out["doc_type"] = string(m.DocType)
	}
	putString("doc_number", m.DocNumber)
	putString("doc_year", m.DocYear)
	putString("publication_date", m.PublicationDate)
	putString("importance", m.Importance)
	putString("category", m.Category)
	putString("hierarchy", m.Hierarchy)
	putString("scope", m.Scope)
	putString("description", m.Description)
	putString("article_number", m.ArticleNumber)
	if m.ContentType != "" {
		out["content_type"] = string(m.ContentType)
	}
	if m.TotalParts > 0 {
		out["part"] = m.Part
		out["total_parts"] = m.TotalParts
	}
	if m.TotalChunks > 0 {
		out["chunk_index"] = m.ChunkIndex
		out["total_chunks"] = m.TotalChunks
	}

	return out
}

// FlattenValue coerces an arbitrary metadata value into a scalar the
// vector store can persist. Lists are joined with ", "; anything else
// that is not already a scalar is stringified.
func FlattenValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MetadataFromMap rebuilds a SegmentMetadata from the flat map returned
// by the vector store at query time. Unknown keys are ignored; numeric
// fields accept both string and numeric encodings because stores differ
// in how they round-trip scalars.
func MetadataFromMap(data map[string]interface{}) SegmentMetadata {
	var m SegmentMetadata

	m.Source = stringField(data, "source")
	m.DocType = DocType(stringField(data, "doc_type"))
	m.DocNumber = stringField(data, "doc_number")
	m.DocYear = stringField(data, "doc_year")
	m.PublicationDate = stringField(data, "publication_date")
	m.Importance = stringField(data, "importance")
	m.Category = stringField(data, "category")
	m.Hierarchy = stringField(data, "hierarchy")
	m.Scope = stringField(data, "scope")
	m.Description = stringField(data, "description")
	m.ArticleNumber = stringField(data, "article_number")
	m.ContentType = ContentType(stringField(data, "content_type"))
	m.Part = intField(data, "part")
	m.TotalParts = intField(data, "total_parts")
	m.ChunkIndex = intField(data, "chunk_index")
	m.TotalChunks = intField(data, "total_chunks")

	return m
}

// stringField reads a string-valued key, tolerating missing keys.
func stringField(data map[string]interface{}, key string) string {
	if raw, ok := data[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}

// intField reads an int-valued key, tolerating the numeric types JSON
// decoding and the stores produce.
func intField(data map[string]interface{}, key string) int {
	raw, ok := data[key]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// Segment is one retrievable unit of legal text. Segments are created by
// the segmenter during ingestion and never mutated afterwards; replacing
// a document means re-ingesting and replacing its segments.
type Segment struct {
	ID         string          // unique segment ID
	DocumentID string          // owning document ID
	Position   int             // order within the source document
	Text       string          // non-empty rendered text
	Metadata   SegmentMetadata // structural metadata copy
}
