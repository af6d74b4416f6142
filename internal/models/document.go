package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	// DocStatusUploaded stored, waiting for processing
	DocStatusUploaded DocumentStatus = "uploaded"
	// DocStatusProcessing pipeline is running
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted segments indexed
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed pipeline aborted with an error
	DocStatusFailed DocumentStatus = "failed"
)

// ProcessStage identifies the pipeline step a document is currently in.
type ProcessStage string

const (
	// StageParsing text extraction from the raw file
	StageParsing ProcessStage = "parsing"
	// StageSegmenting structural segmentation
	StageSegmenting ProcessStage = "segmenting"
	// StageVectorizing embedding and indexing
	StageVectorizing ProcessStage = "vectorizing"
	// StageCompleted done
	StageCompleted ProcessStage = "completed"
)

// Document is the persisted record for an ingested legal document.
// The text body itself is not stored here; only the file reference,
// processing state and the extracted structural metadata.
type Document struct {
	ID           string         `gorm:"primaryKey"`
	FileName     string         `gorm:"not null"` // display name, also the metadata inference key
	FileType     string         `gorm:"not null"`
	FilePath     string         `gorm:"not null"`
	FileSize     int64          `gorm:"not null"`
	Status       DocumentStatus `gorm:"not null;index"`
	UploadedAt   time.Time      `gorm:"not null;index"`
	ProcessedAt  *time.Time     `gorm:"index"`
	UpdatedAt    time.Time      `gorm:"not null;index"`
	Progress     int            `gorm:"not null;default:0"` // 0-100
	Error        string         `gorm:"type:text"`
	SegmentCount int            `gorm:"not null;default:0"`

	// Extracted structural metadata, denormalized for listing and filtering.
	DocType         DocType `gorm:"size:20;index"`
	DocNumber       string `gorm:"size:30"`
	DocYear         string `gorm:"size:4;index"`
	PublicationDate string `gorm:"size:10"`
	Importance      string `gorm:"size:20"`

	Tags          string         `gorm:"type:varchar(255)"` // comma separated
	Metadata      datatypes.JSON `gorm:"type:json"`         // full flattened metadata record
	CurrentStage  ProcessStage   `gorm:"size:20"`
	CurrentTaskID string         `gorm:"size:50;index"`
	RetryCount    int            `gorm:"default:0"`
}

// BeforeCreate fills in timestamps on insert.
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate refreshes the update timestamp.
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName pins the table name.
func (Document) TableName() string {
	return "documents"
}

// DocumentSegment mirrors an indexed segment in the relational store so
// segments can be listed and audited without querying the vector index.
type DocumentSegment struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	DocumentID string         `gorm:"not null;index"`
	SegmentID  string         `gorm:"not null;uniqueIndex"`
	Position   int            `gorm:"not null"`
	Text       string         `gorm:"type:text;not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
	Metadata   datatypes.JSON `gorm:"type:json"` // flattened segment metadata
	TaskID     string         `gorm:"size:50;index"`
	VectorID   string         `gorm:"size:50"` // ID in the vector index
}

// BeforeCreate fills in timestamps on insert.
func (ds *DocumentSegment) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the update timestamp.
func (ds *DocumentSegment) BeforeUpdate(tx *gorm.DB) (err error) {
	ds.UpdatedAt = time.Now()
	return nil
}

// TableName pins the table name.
func (DocumentSegment) TableName() string {
	return "document_segments"
}

// DocumentTask links a document to an asynchronous processing task.
type DocumentTask struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	DocumentID string         `gorm:"not null;index"`
	TaskID     string         `gorm:"not null;uniqueIndex"`
	TaskType   string         `gorm:"not null;size:50"`
	Status     string         `gorm:"not null;size:20"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
	StartedAt  *time.Time     `gorm:""`
	EndedAt    *time.Time     `gorm:""`
	Error      string         `gorm:"type:text"`
	Result     datatypes.JSON `gorm:"type:json"`
	Retries    int            `gorm:"default:0"`
	Progress   int            `gorm:"default:0"`
}

// BeforeCreate fills in timestamps on insert.
func (dt *DocumentTask) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	dt.CreatedAt = now
	dt.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the update timestamp.
func (dt *DocumentTask) BeforeUpdate(tx *gorm.DB) (err error) {
	dt.UpdatedAt = time.Now()
	return nil
}

// TableName pins the table name.
func (DocumentTask) TableName() string {
	return "document_tasks"
}
