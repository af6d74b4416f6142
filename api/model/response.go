package model

import (
	"github.com/lexbr/legal-qa-system/internal/llm"
	"github.com/lexbr/legal-qa-system/internal/models"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    int         `json:"code"`               // 0 on success
	Message string      `json:"message"`            // human readable status
	Data    interface{} `json:"data,omitempty"`     // endpoint payload
	TraceID string      `json:"trace_id,omitempty"` // request trace ID
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentUploadResponse acknowledges an accepted upload.
type DocumentUploadResponse struct {
	FileID   string `json:"file_id"`
	FileName string `json:"filename"`
	Status   string `json:"status"`
}

// DocumentStatusResponse reports the pipeline state of one document.
type DocumentStatusResponse struct {
	FileID    string `json:"file_id"`
	Status    string `json:"status"`
	Stage     string `json:"stage,omitempty"`
	Progress  int    `json:"progress"`
	FileName  string `json:"filename"`
	Error     string `json:"error,omitempty"`
	Segments  int    `json:"segments,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DocumentInfo is one row of the document listing.
type DocumentInfo struct {
	FileID          string `json:"file_id"`
	FileName        string `json:"filename"`
	Status          string `json:"status"`
	DocType         string `json:"doc_type,omitempty"`
	DocNumber       string `json:"doc_number,omitempty"`
	DocYear         string `json:"doc_year,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
	Importance      string `json:"importance,omitempty"`
	Tags            string `json:"tags,omitempty"`
	Segments        int    `json:"segments"`
	UploadedAt      string `json:"uploaded_at"`
}

// DocumentListResponse is a page of documents.
type DocumentListResponse struct {
	Total     int64          `json:"total"`
	Page      int            `json:"page"`
	PageSize  int            `json:"page_size"`
	Documents []DocumentInfo `json:"documents"`
}

// DocumentDeleteResponse acknowledges a deletion.
type DocumentDeleteResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"file_id"`
}

// SegmentInfo is one stored segment of a document.
type SegmentInfo struct {
	SegmentID string `json:"segment_id"`
	Position  int    `json:"position"`
	Text      string `json:"text"`
	Metadata  string `json:"metadata,omitempty"` // flattened metadata as JSON
}

// DocumentSegmentsResponse lists a document's segments in order.
type DocumentSegmentsResponse struct {
	FileID   string        `json:"file_id"`
	Total    int           `json:"total"`
	Segments []SegmentInfo `json:"segments"`
}

// QASourceInfo is one passage the answer was grounded on.
type QASourceInfo struct {
	SegmentID string                 `json:"segment_id"`
	FileID    string                 `json:"file_id"`
	FileName  string                 `json:"filename"`
	Text      string                 `json:"text"`
	Score     float64                `json:"score"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// QAResponse carries the generated answer and its sources.
type QAResponse struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []QASourceInfo `json:"sources"`
}

// ConvertSources maps service source references to API source info.
func ConvertSources(refs []llm.SourceReference) []QASourceInfo {
	if len(refs) == 0 {
		return []QASourceInfo{}
	}

	sources := make([]QASourceInfo, len(refs))
	for i, ref := range refs {
		sources[i] = QASourceInfo{
			SegmentID: ref.ID,
			FileID:    ref.FileID,
			FileName:  ref.FileName,
			Text:      ref.Content,
			Score:     ref.Score,
			Metadata:  ref.Metadata,
		}
	}
	return sources
}

// ConvertDocumentInfo maps a document record to a listing row.
func ConvertDocumentInfo(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		FileID:          doc.ID,
		FileName:        doc.FileName,
		Status:          string(doc.Status),
		DocType:         string(doc.DocType),
		DocNumber:       doc.DocNumber,
		DocYear:         doc.DocYear,
		PublicationDate: doc.PublicationDate,
		Importance:      doc.Importance,
		Tags:            doc.Tags,
		Segments:        doc.SegmentCount,
		UploadedAt:      doc.UploadedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
