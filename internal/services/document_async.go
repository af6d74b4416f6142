package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexbr/legal-qa-system/internal/database"
	"github.com/lexbr/legal-qa-system/internal/repository"
	"github.com/lexbr/legal-qa-system/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// AsyncDocumentOptions tunes a queued pipeline run.
type AsyncDocumentOptions struct {
	MaxSegmentSize int               // oversize subdivision limit
	Overlap        int               // subdivision overlap in characters
	Model          string            // embedding model name
	Metadata       map[string]string // extra document metadata
	Priority       string            // queue priority
}

// DefaultAsyncOptions returns the standard queued-run options.
func DefaultAsyncOptions() *AsyncDocumentOptions {
	return &AsyncDocumentOptions{
		MaxSegmentSize: 1000,
		Overlap:        200,
		Model:          "default",
		Priority:       "default",
		Metadata:       make(map[string]string),
	}
}

// AsyncOption mutates AsyncDocumentOptions.
type AsyncOption func(*AsyncDocumentOptions)

// WithMaxSegmentSize sets the oversize subdivision limit.
func WithMaxSegmentSize(size int) AsyncOption {
	return func(o *AsyncDocumentOptions) {
		o.MaxSegmentSize = size
	}
}

// WithOverlap sets the subdivision overlap.
func WithOverlap(overlap int) AsyncOption {
	return func(o *AsyncDocumentOptions) {
		o.Overlap = overlap
	}
}

// WithEmbeddingModel sets the embedding model name.
func WithEmbeddingModel(model string) AsyncOption {
	return func(o *AsyncDocumentOptions) {
		o.Model = model
	}
}

// WithMetadata sets extra document metadata.
func WithMetadata(metadata map[string]string) AsyncOption {
	return func(o *AsyncDocumentOptions) {
		o.Metadata = metadata
	}
}

// WithPriority sets the queue priority.
func WithPriority(priority string) AsyncOption {
	return func(o *AsyncDocumentOptions) {
		o.Priority = priority
	}
}

// EnableAsyncProcessing switches the service to queue-backed processing
// and registers its task handlers.
func (s *DocumentService) EnableAsyncProcessing(queue taskqueue.Queue) {
	s.asyncEnabled = true
	s.taskQueue = queue

	if s.statusManager == nil {
		s.logger.Warn("Status manager not set, creating default one")
		if s.repo == nil {
			s.repo = repository.NewDocumentRepository()
		}
		s.statusManager = NewDocumentStatusManager(s.repo, s.logger)
	}

	s.repo = repository.NewDocumentRepositoryWithQueue(database.DB, queue)

	s.registerTaskHandlers()

	s.logger.Info("Async document processing enabled")
}

// DisableAsyncProcessing switches back to inline processing.
func (s *DocumentService) DisableAsyncProcessing() {
	s.asyncEnabled = false
	s.logger.Info("Async document processing disabled")
}

// enqueueProcessing creates a full-pipeline task for the document and
// returns without waiting for it.
func (s *DocumentService) enqueueProcessing(ctx context.Context, fileID string, filePath string) error {
	s.logger.WithFields(logrus.Fields{
		"file_id":   fileID,
		"file_path": filePath,
	}).Info("Enqueuing document for async processing")

	if err := s.statusManager.MarkAsProcessing(ctx, fileID); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as processing")
	}

	fileName := filepath.Base(filePath)
	payload := taskqueue.ProcessCompletePayload{
		DocumentID:     fileID,
		FilePath:       filePath,
		FileName:       fileName,
		FileType:       strings.TrimPrefix(filepath.Ext(fileName), "."),
		MaxSegmentSize: 1000,
		Overlap:        200,
		Metadata: map[string]string{
			"source": "api",
		},
	}

	taskID, err := s.repo.CreateTask(ctx, taskqueue.TaskProcessComplete, fileID, payload)
	if err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to create processing task: %v", err))
		return fmt.Errorf("failed to create processing task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file_id": fileID,
		"task_id": taskID,
	}).Info("Document processing task created")

	return nil
}

// ProcessDocumentAsync enqueues a pipeline run with explicit options.
func (s *DocumentService) ProcessDocumentAsync(ctx context.Context, fileID string, filePath string, opts ...AsyncOption) error {
	if !s.asyncEnabled || s.taskQueue == nil {
		return fmt.Errorf("async processing not enabled or task queue not configured")
	}

	options := DefaultAsyncOptions()
	for _, opt := range opts {
		opt(options)
	}

	if err := s.statusManager.MarkAsProcessing(ctx, fileID); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as processing")
		return fmt.Errorf("failed to update document status: %w", err)
	}

	fileName := filepath.Base(filePath)
	payload := taskqueue.ProcessCompletePayload{
		DocumentID:     fileID,
		FilePath:       filePath,
		FileName:       fileName,
		FileType:       strings.TrimPrefix(filepath.Ext(fileName), "."),
		MaxSegmentSize: options.MaxSegmentSize,
		Overlap:        options.Overlap,
		Model:          options.Model,
		Metadata:       options.Metadata,
	}

	taskID, err := s.repo.CreateTask(ctx, taskqueue.TaskProcessComplete, fileID, payload)
	if err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to create processing task: %v", err))
		return fmt.Errorf("failed to create processing task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file_id": fileID,
		"task_id": taskID,
	}).Info("Document processing task created")

	return nil
}

// registerTaskHandlers wires this service's callbacks into the shared
// processor so stage results update document state.
func (s *DocumentService) registerTaskHandlers() {
	if s.taskQueue == nil {
		s.logger.Warn("Task queue not available, cannot register handlers")
		return
	}

	processor := taskqueue.GetSharedCallbackProcessor(s.taskQueue, s.logger)

	processor.RegisterHandler(taskqueue.TaskDocumentParse, s.handleDocumentParseResult)
	processor.RegisterHandler(taskqueue.TaskSegment, s.handleSegmentResult)
	processor.RegisterHandler(taskqueue.TaskVectorize, s.handleVectorizeResult)
	processor.RegisterHandler(taskqueue.TaskProcessComplete, s.handleProcessCompleteResult)

	s.logger.Info("Registered document task handlers")
}

// handleDocumentParseResult moves the progress bar after text extraction.
func (s *DocumentService) handleDocumentParseResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": task.DocumentID,
	}).Info("Handling document parse result")

	var parseResult taskqueue.DocumentParseResult
	if err := json.Unmarshal(result, &parseResult); err != nil {
		return fmt.Errorf("failed to unmarshal document parse result: %w", err)
	}

	if parseResult.Content == "" {
		err := fmt.Errorf("empty document content")
		_ = s.statusManager.MarkAsFailed(ctx, task.DocumentID, err.Error())
		return err
	}

	if err := s.statusManager.UpdateProgress(ctx, task.DocumentID, 30); err != nil {
		s.logger.WithError(err).Warn("Failed to update document progress")
	}

	return nil
}

// handleSegmentResult moves the progress bar after segmentation.
func (s *DocumentService) handleSegmentResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": task.DocumentID,
	}).Info("Handling segmentation result")

	var segmentResult taskqueue.SegmentResult
	if err := json.Unmarshal(result, &segmentResult); err != nil {
		return fmt.Errorf("failed to unmarshal segmentation result: %w", err)
	}

	if err := s.statusManager.UpdateProgress(ctx, task.DocumentID, 60); err != nil {
		s.logger.WithError(err).Warn("Failed to update document progress")
	}

	return nil
}

// handleVectorizeResult completes the document once its vectors landed.
func (s *DocumentService) handleVectorizeResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": task.DocumentID,
	}).Info("Handling vectorize result")

	var vectorizeResult taskqueue.VectorizeResult
	if err := json.Unmarshal(result, &vectorizeResult); err != nil {
		return fmt.Errorf("failed to unmarshal vectorize result: %w", err)
	}

	if err := s.statusManager.MarkAsCompleted(ctx, task.DocumentID, vectorizeResult.VectorCount); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as completed")
		return err
	}

	return nil
}

// handleProcessCompleteResult finalizes a full-pipeline run.
func (s *DocumentService) handleProcessCompleteResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": task.DocumentID,
	}).Info("Handling process complete result")

	var completeResult taskqueue.ProcessCompleteResult
	if err := json.Unmarshal(result, &completeResult); err != nil {
		return fmt.Errorf("failed to unmarshal process complete result: %w", err)
	}

	if completeResult.ParseStatus == "failed" || completeResult.SegmentStatus == "failed" {
		errMsg := fmt.Sprintf("pipeline failed (parse=%s, segment=%s)",
			completeResult.ParseStatus, completeResult.SegmentStatus)
		if err := s.statusManager.MarkAsFailed(ctx, task.DocumentID, errMsg); err != nil {
			s.logger.WithError(err).Error("Failed to mark document as failed")
		}
		return fmt.Errorf("document processing failed: %s", errMsg)
	}

	if err := s.statusManager.MarkAsCompleted(ctx, task.DocumentID, completeResult.SegmentCount); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as completed")
		return err
	}

	if completeResult.VectorStatus == "failed" {
		s.logger.WithField("document_id", task.DocumentID).Warn(
			"Document completed but vectorization failed, search coverage is partial")
	}

	s.logger.WithFields(logrus.Fields{
		"document_id":   task.DocumentID,
		"segment_count": completeResult.SegmentCount,
		"vector_count":  completeResult.VectorCount,
	}).Info("Document processing completed")

	return nil
}

// WaitForTaskResult blocks until the task finishes and returns it.
func (s *DocumentService) WaitForTaskResult(ctx context.Context, taskID string, timeout time.Duration) (*taskqueue.Task, error) {
	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled or task queue not configured")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	task, err := s.taskQueue.WaitForTask(ctx, taskID, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for task: %w", err)
	}

	if task.Status == taskqueue.StatusFailed {
		return task, fmt.Errorf("task failed: %s", task.Error)
	}

	return task, nil
}

// GetDocumentTasks returns the queue tasks belonging to a document.
func (s *DocumentService) GetDocumentTasks(ctx context.Context, documentID string) ([]*taskqueue.Task, error) {
	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled or task queue not configured")
	}

	return s.taskQueue.GetTasksByDocument(ctx, documentID)
}

// PipelineWorkerHandler executes full-pipeline tasks inside a queue
// worker. It runs the same inline pipeline ProcessDocument uses, so the
// worker and the API share one implementation.
type PipelineWorkerHandler struct {
	service *DocumentService
}

// NewPipelineWorkerHandler creates the worker-side pipeline handler.
func NewPipelineWorkerHandler(service *DocumentService) *PipelineWorkerHandler {
	return &PipelineWorkerHandler{service: service}
}

// GetTaskTypes reports the task types this handler accepts.
func (h *PipelineWorkerHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskProcessComplete}
}

// ProcessTask runs the pipeline for one queued document.
func (h *PipelineWorkerHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.ProcessCompletePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal pipeline payload: %w", err)
	}

	if err := h.service.Init(); err != nil {
		return err
	}

	if err := h.service.processDocumentSync(ctx, task.DocumentID, payload.FilePath); err != nil {
		return err
	}

	segmentCount, err := h.service.repo.CountSegments(task.DocumentID)
	if err != nil {
		segmentCount = 0
	}

	result := taskqueue.ProcessCompleteResult{
		DocumentID:    task.DocumentID,
		SegmentCount:  segmentCount,
		VectorCount:   segmentCount,
		ParseStatus:   "completed",
		SegmentStatus: "completed",
		VectorStatus:  "completed",
	}

	if err := h.service.taskQueue.UpdateTaskStatus(ctx, task.ID, taskqueue.StatusCompleted, result, ""); err != nil {
		h.service.logger.WithError(err).Warn("Failed to record pipeline result")
	}

	return nil
}
