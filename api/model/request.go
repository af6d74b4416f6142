// Package model defines the request and response shapes of the HTTP API.
package model

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("importancia", validImportance)
	}
}

// validImportance accepts the curated importance levels.
func validImportance(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "alta", "media", "média", "baixa":
		return true
	}
	return false
}

// PaginationRequest carries the common paging parameters.
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 1-based page number
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // records per page
}

// GetPage returns the page number, defaulting to 1.
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize returns the page size, defaulting to 10 and capped at 100.
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DocumentUploadRequest is a multipart upload of one legal document with
// optional curated classification.
type DocumentUploadRequest struct {
	File        *multipart.FileHeader `form:"file" binding:"required"`
	Tags        string                `form:"tags" binding:"omitempty"`         // comma separated
	Importance  string                `form:"importance" binding:"importancia"` // alta, media, baixa
	Category    string                `form:"category" binding:"omitempty"`     // e.g. "direito do consumidor"
	Hierarchy   string                `form:"hierarchy" binding:"omitempty"`    // e.g. "lei ordinária"
	Scope       string                `form:"scope" binding:"omitempty"`        // federal, estadual, municipal
	Description string                `form:"description" binding:"omitempty"`  // free-text summary
}

// TagList splits the comma separated tags, dropping empty entries.
func (r *DocumentUploadRequest) TagList() []string {
	if r.Tags == "" {
		return nil
	}

	parts := strings.Split(r.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// DocumentIDRequest binds a document ID path parameter.
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"`
}

// DocumentListRequest filters and paginates the document listing.
type DocumentListRequest struct {
	PaginationRequest
	Status    string     `form:"status" binding:"omitempty"`
	DocType   string     `form:"doc_type" binding:"omitempty"`
	Tags      string     `form:"tags" binding:"omitempty"`
	StartTime *time.Time `form:"start_time" binding:"omitempty"`
	EndTime   *time.Time `form:"end_time" binding:"omitempty"`
}

// DocumentTagsRequest replaces a document's tag list.
type DocumentTagsRequest struct {
	Tags string `json:"tags" binding:"required"` // comma separated
}

// QARequest is one question over the corpus. DocumentID restricts the
// search to a single document; Metadata restricts it by exact-match
// metadata fields. When both are present DocumentID wins.
type QARequest struct {
	Question   string                 `json:"question" binding:"required"`
	DocumentID string                 `json:"document_id" binding:"omitempty"`
	Metadata   map[string]interface{} `json:"metadata" binding:"omitempty"`
}
