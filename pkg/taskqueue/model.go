package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType identifies a stage of the ingestion pipeline.
type TaskType string

const (
	// TaskDocumentParse extracts plain text from an uploaded file.
	TaskDocumentParse TaskType = "document_parse"
	// TaskSegment normalizes and splits extracted text into legal segments.
	TaskSegment TaskType = "document_segment"
	// TaskVectorize embeds segments and stores them in the vector index.
	TaskVectorize TaskType = "vectorize"
	// TaskProcessComplete runs the whole pipeline for one document.
	TaskProcessComplete TaskType = "process_complete"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	// StatusPending waiting to be picked up
	StatusPending TaskStatus = "pending"
	// StatusProcessing currently being handled by a worker
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted finished successfully
	StatusCompleted TaskStatus = "completed"
	// StatusFailed finished with an error
	StatusFailed TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the queue-side record of one unit of work.
type Task struct {
	ID          string          `json:"id"`           // unique task identifier
	Type        TaskType        `json:"type"`         // pipeline stage
	DocumentID  string          `json:"document_id"`  // owning document
	Status      TaskStatus      `json:"status"`       // lifecycle state
	Payload     json.RawMessage `json:"payload"`      // stage-specific input
	Result      json.RawMessage `json:"result"`       // stage-specific output
	Error       string          `json:"error"`        // error message on failure
	CreatedAt   time.Time       `json:"created_at"`   // enqueue time
	UpdatedAt   time.Time       `json:"updated_at"`   // last status change
	StartedAt   *time.Time      `json:"started_at"`   // processing start time
	CompletedAt *time.Time      `json:"completed_at"` // terminal state time
	Attempts    int             `json:"attempts"`     // delivery attempts so far
	MaxRetries  int             `json:"max_retries"`  // retry budget
}

// DocumentParsePayload is the input for a parse task.
type DocumentParsePayload struct {
	FilePath string            `json:"file_path"` // storage path of the raw file
	FileName string            `json:"file_name"` // original file name
	FileType string            `json:"file_type"` // pdf, md, txt or html
	Metadata map[string]string `json:"metadata"`  // caller-supplied document metadata
}

// DocumentParseResult is the output of a parse task.
type DocumentParseResult struct {
	Content string            `json:"content"` // extracted plain text
	Title   string            `json:"title"`   // document title when detected
	Meta    map[string]string `json:"meta"`    // metadata extracted from the file
	Pages   int               `json:"pages"`   // page count when applicable
	Chars   int               `json:"chars"`   // extracted character count
}

// SegmentPayload is the input for a segmentation task. The legal fields
// let the segmenter attach structural metadata without re-parsing the file.
type SegmentPayload struct {
	DocumentID     string `json:"document_id"`      // owning document
	Content        string `json:"content"`          // extracted text to split
	DocType        string `json:"doc_type"`         // lei, decreto, resolucao...
	DocNumber      string `json:"doc_number"`       // law number when known
	DocYear        int    `json:"doc_year"`         // publication year when known
	MaxSegmentSize int    `json:"max_segment_size"` // oversize subdivision limit
	Overlap        int    `json:"overlap"`          // subdivision overlap in characters
}

// SegmentInfo is one segment produced by the segmenter, in document order.
type SegmentInfo struct {
	Text          string `json:"text"`           // segment text
	Position      int    `json:"position"`       // order within the document
	ContentType   string `json:"content_type"`   // article, paragraph, chunk...
	ArticleNumber string `json:"article_number"` // article label when the segment is an article
}

// SegmentResult is the output of a segmentation task.
type SegmentResult struct {
	DocumentID   string        `json:"document_id"`   // owning document
	Segments     []SegmentInfo `json:"segments"`      // ordered segments
	SegmentCount int           `json:"segment_count"` // len(Segments)
}

// VectorizePayload is the input for a vectorization task.
type VectorizePayload struct {
	DocumentID string        `json:"document_id"` // owning document
	Segments   []SegmentInfo `json:"segments"`    // segments to embed
	Model      string        `json:"model"`       // embedding model name
}

// VectorInfo pairs a segment position with its embedding.
type VectorInfo struct {
	Position int       `json:"position"` // segment position
	Vector   []float32 `json:"vector"`   // embedding vector
}

// VectorizeResult is the output of a vectorization task.
type VectorizeResult struct {
	DocumentID  string       `json:"document_id"`  // owning document
	Vectors     []VectorInfo `json:"vectors"`      // embeddings in segment order
	VectorCount int          `json:"vector_count"` // len(Vectors)
	Model       string       `json:"model"`        // model actually used
	Dimension   int          `json:"dimension"`    // embedding dimension
}

// ProcessCompletePayload is the input for a full-pipeline task.
type ProcessCompletePayload struct {
	DocumentID     string            `json:"document_id"`      // owning document
	FilePath       string            `json:"file_path"`        // storage path of the raw file
	FileName       string            `json:"file_name"`        // original file name
	FileType       string            `json:"file_type"`        // pdf, md, txt or html
	MaxSegmentSize int               `json:"max_segment_size"` // oversize subdivision limit
	Overlap        int               `json:"overlap"`          // subdivision overlap in characters
	Model          string            `json:"model"`            // embedding model name
	Metadata       map[string]string `json:"metadata"`         // caller-supplied document metadata
}

// ProcessCompleteResult summarizes a full-pipeline run.
type ProcessCompleteResult struct {
	DocumentID    string `json:"document_id"`    // owning document
	SegmentCount  int    `json:"segment_count"`  // segments produced
	VectorCount   int    `json:"vector_count"`   // vectors stored
	Dimension     int    `json:"dimension"`      // embedding dimension
	ParseStatus   string `json:"parse_status"`   // per-stage outcome
	SegmentStatus string `json:"segment_status"` // per-stage outcome
	VectorStatus  string `json:"vector_status"`  // per-stage outcome
}

// TaskCallback carries a finished stage back to the callback processor.
type TaskCallback struct {
	TaskID     string          `json:"task_id"`     // task identifier
	DocumentID string          `json:"document_id"` // owning document
	Status     TaskStatus      `json:"status"`      // resulting status
	Type       TaskType        `json:"type"`        // pipeline stage
	Result     json.RawMessage `json:"result"`      // stage output
	Error      string          `json:"error"`       // error message on failure
	Timestamp  time.Time       `json:"timestamp"`   // completion time
}
