// Package repository persists document and segment records.
package repository

import (
	"context"

	"github.com/lexbr/legal-qa-system/internal/models"
	"github.com/lexbr/legal-qa-system/pkg/taskqueue"
)

// DocumentRepository stores document metadata and segment records.
type DocumentRepository interface {
	// Create inserts a document record.
	Create(doc *models.Document) error

	// Update saves a document record.
	Update(doc *models.Document) error

	// GetByID returns the document with the given ID.
	GetByID(id string) (*models.Document, error)

	// List returns documents with pagination and filtering.
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete removes a document and its segments.
	Delete(id string) error

	// UpdateStatus sets the processing status and optional error.
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateProgress sets the processing progress (0-100).
	UpdateProgress(id string, progress int) error

	// SaveSegment inserts one segment record.
	SaveSegment(segment *models.DocumentSegment) error

	// SaveSegments inserts segment records in batches.
	SaveSegments(segments []*models.DocumentSegment) error

	// GetSegments returns a document's segments ordered by position.
	GetSegments(docID string) ([]*models.DocumentSegment, error)

	// CountSegments returns the number of segments for a document.
	CountSegments(docID string) (int, error)

	// DeleteSegments removes all segments of a document.
	DeleteSegments(docID string) error

	// CreateTask enqueues a processing task for the document.
	// Requires a repository constructed with a task queue.
	CreateTask(ctx context.Context, taskType taskqueue.TaskType, documentID string, payload interface{}) (string, error)

	// UpdateTaskStatus updates a task and mirrors terminal states onto
	// the owning document.
	UpdateTaskStatus(ctx context.Context, taskID string, status taskqueue.TaskStatus, result interface{}, errorMsg string) error

	// GetDocumentTasks returns all tasks of a document.
	GetDocumentTasks(ctx context.Context, documentID string) ([]*taskqueue.Task, error)

	// GetTaskByID returns one task.
	GetTaskByID(ctx context.Context, taskID string) (*taskqueue.Task, error)

	// DeleteTask removes a task record.
	DeleteTask(ctx context.Context, taskID string) error
}
