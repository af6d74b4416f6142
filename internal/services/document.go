package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lexbr/legal-qa-system/internal/document"
	"github.com/lexbr/legal-qa-system/internal/embedding"
	"github.com/lexbr/legal-qa-system/internal/models"
	"github.com/lexbr/legal-qa-system/internal/repository"
	"github.com/lexbr/legal-qa-system/internal/vectordb"
	"github.com/lexbr/legal-qa-system/pkg/storage"
	"github.com/lexbr/legal-qa-system/pkg/taskqueue"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DocumentService drives the ingestion pipeline: raw file to normalized
// text, text to legal segments, segments to indexed vectors.
type DocumentService struct {
	storage       storage.Storage
	splitter      *document.LegalSplitter
	embedder      embedding.Client
	vectorDB      vectordb.Repository
	repo          repository.DocumentRepository
	statusManager *DocumentStatusManager
	taskQueue     taskqueue.Queue
	asyncEnabled  bool
	batchSize     int
	maxWorkers    int
	timeout       time.Duration
	logger        *logrus.Logger
}

// CuratedMetadata carries operator-supplied classification for a
// document, attached at upload time and copied onto every segment.
type CuratedMetadata struct {
	Importance  string   `json:"importance,omitempty"`
	Category    string   `json:"category,omitempty"`
	Hierarchy   string   `json:"hierarchy,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// DocumentOption configures a DocumentService.
type DocumentOption func(*DocumentService)

// NewDocumentService creates a document service. The splitter is shared
// across documents; each document is segmented sequentially.
func NewDocumentService(
	store storage.Storage,
	splitter *document.LegalSplitter,
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage:      store,
		splitter:     splitter,
		embedder:     embedder,
		vectorDB:     vectorDB,
		batchSize:    16,
		maxWorkers:   4,
		timeout:      time.Minute * 5,
		logger:       logrus.New(),
		asyncEnabled: false,
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithBatchSize sets the embedding batch size.
func WithBatchSize(size int) DocumentOption {
	return func(s *DocumentService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithMaxWorkers caps the concurrent embedding workers for batch ingest.
func WithMaxWorkers(workers int) DocumentOption {
	return func(s *DocumentService) {
		if workers > 0 {
			s.maxWorkers = workers
		}
	}
}

// WithTimeout sets the per-document processing timeout.
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		s.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDocumentRepository sets the document repository.
func WithDocumentRepository(repo repository.DocumentRepository) DocumentOption {
	return func(s *DocumentService) {
		s.repo = repo
	}
}

// WithStatusManager sets the status manager.
func WithStatusManager(manager *DocumentStatusManager) DocumentOption {
	return func(s *DocumentService) {
		s.statusManager = manager
	}
}

// WithTaskQueue sets the task queue and enables async processing.
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing toggles queue-backed processing.
func WithAsyncProcessing(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// Init fills in the default repository and status manager when the
// caller did not provide them.
func (s *DocumentService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewDocumentRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewDocumentStatusManager(s.repo, s.logger)
	}

	return nil
}

// UploadDocument stores the raw file, creates the document record and
// attaches the curated metadata. Processing is a separate step.
func (s *DocumentService) UploadDocument(ctx context.Context, reader io.Reader, fileName string, curated *CuratedMetadata) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	if fileName == "" {
		return nil, errors.New("fileName cannot be empty")
	}

	info, err := s.storage.Save(reader, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	if err := s.statusManager.MarkAsUploaded(ctx, info.ID, fileName, info.Path, info.Size); err != nil {
		// roll the orphaned file back
		if delErr := s.storage.Delete(info.ID); delErr != nil {
			s.logger.WithError(delErr).Warn("Failed to remove file after record creation failure")
		}
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	doc, err := s.statusManager.GetDocument(ctx, info.ID)
	if err != nil {
		return nil, err
	}

	if curated != nil {
		if err := s.applyCuratedMetadata(doc, curated); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":  doc.ID,
		"filename": fileName,
		"size":     info.Size,
	}).Info("Document uploaded")

	return doc, nil
}

// applyCuratedMetadata persists the curated block on the document record.
func (s *DocumentService) applyCuratedMetadata(doc *models.Document, curated *CuratedMetadata) error {
	doc.Importance = curated.Importance
	if len(curated.Tags) > 0 {
		doc.Tags = joinTags(curated.Tags)
	}

	raw, err := json.Marshal(curated)
	if err != nil {
		return fmt.Errorf("failed to marshal curated metadata: %w", err)
	}
	doc.Metadata = datatypes.JSON(raw)

	return s.repo.Update(doc)
}

// ProcessDocument runs the ingestion pipeline for a stored document,
// either inline or through the task queue.
func (s *DocumentService) ProcessDocument(ctx context.Context, fileID string, filePath string) error {
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":   fileID,
		"file_path": filePath,
	}).Info("Starting document processing")

	if fileID == "" {
		return errors.New("fileID cannot be empty")
	}
	if filePath == "" {
		return errors.New("filePath cannot be empty")
	}

	if s.asyncEnabled && s.taskQueue != nil {
		return s.enqueueProcessing(ctx, fileID, filePath)
	}

	return s.processDocumentSync(ctx, fileID, filePath)
}

// processDocumentSync runs the whole pipeline in the calling goroutine.
func (s *DocumentService) processDocumentSync(ctx context.Context, fileID string, filePath string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.statusManager.MarkAsProcessing(ctx, fileID); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as processing")
	}

	doc, err := s.statusManager.GetDocument(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := s.statusManager.SetStage(ctx, fileID, models.StageParsing); err != nil {
		s.logger.WithError(err).Warn("Failed to set parsing stage")
	}

	content, err := s.parseDocument(fileID, filePath)
	if err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to parse document: %v", err))
		return fmt.Errorf("failed to parse document: %w", err)
	}

	normalized := document.Normalize(content)
	if normalized == "" {
		s.failDocument(ctx, fileID, "document is empty after normalization")
		return errors.New("document is empty after normalization")
	}

	meta := document.ExtractDocumentInfo(doc.FileName, normalized)
	s.mergeCuratedMetadata(&meta, doc)

	if err := s.recordExtractedMetadata(doc, meta); err != nil {
		s.logger.WithError(err).Warn("Failed to record extracted metadata")
	}

	if err := s.statusManager.SetStage(ctx, fileID, models.StageSegmenting); err != nil {
		s.logger.WithError(err).Warn("Failed to set segmenting stage")
	}

	segments := s.splitter.Split(normalized, meta)

	if err := s.statusManager.UpdateProgress(ctx, fileID, 20); err != nil {
		s.logger.WithError(err).Warn("Failed to update document progress")
	}

	if err := s.statusManager.SetStage(ctx, fileID, models.StageVectorizing); err != nil {
		s.logger.WithError(err).Warn("Failed to set vectorizing stage")
	}

	if err := s.processBatches(ctx, fileID, doc.FileName, segments); err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to index segments: %v", err))
		return fmt.Errorf("failed to index segments: %w", err)
	}

	if err := s.statusManager.MarkAsCompleted(ctx, fileID, len(segments)); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as completed")
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":       fileID,
		"segment_count": len(segments),
		"doc_type":      meta.DocType,
		"doc_number":    meta.DocNumber,
	}).Info("Document processing completed")

	return nil
}

// parseDocument pulls the raw file from storage and extracts its text.
func (s *DocumentService) parseDocument(fileID string, filePath string) (string, error) {
	s.logger.WithField("file_path", filePath).Debug("Parsing document")

	reader, err := s.storage.Get(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	parser, err := document.ParserFactory(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create parser: %w", err)
	}

	content, err := parser.ParseReader(reader, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to parse document: %w", err)
	}

	return content, nil
}

// mergeCuratedMetadata overlays the curated block stored on the document
// record onto the extracted metadata.
func (s *DocumentService) mergeCuratedMetadata(meta *models.SegmentMetadata, doc *models.Document) {
	if len(doc.Metadata) == 0 {
		if doc.Importance != "" {
			meta.Importance = doc.Importance
		}
		return
	}

	var curated CuratedMetadata
	if err := json.Unmarshal(doc.Metadata, &curated); err != nil {
		s.logger.WithError(err).Warn("Ignoring malformed curated metadata")
		return
	}

	if curated.Importance != "" {
		meta.Importance = curated.Importance
	}
	if curated.Category != "" {
		meta.Category = curated.Category
	}
	if curated.Hierarchy != "" {
		meta.Hierarchy = curated.Hierarchy
	}
	if curated.Scope != "" {
		meta.Scope = curated.Scope
	}
	if curated.Description != "" {
		meta.Description = curated.Description
	}
}

// recordExtractedMetadata denormalizes the extracted fields onto the
// document record so listings can filter on them.
func (s *DocumentService) recordExtractedMetadata(doc *models.Document, meta models.SegmentMetadata) error {
	doc.DocType = meta.DocType
	doc.DocNumber = meta.DocNumber
	doc.DocYear = meta.DocYear
	doc.PublicationDate = meta.PublicationDate
	if meta.Importance != "" {
		doc.Importance = meta.Importance
	}
	return s.repo.Update(doc)
}

// processBatches embeds and indexes the segments in batches, moving the
// progress bar from 20 to 90 as batches land.
func (s *DocumentService) processBatches(ctx context.Context, fileID string, fileName string, segments []models.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	totalBatches := (len(segments) + s.batchSize - 1) / s.batchSize
	processedBatches := 0

	for i := 0; i < len(segments); i += s.batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := i + s.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[i:end]

		texts := make([]string, len(batch))
		for j, segment := range batch {
			texts[j] = segment.Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}

		entries := make([]vectordb.Entry, len(batch))
		dbSegments := make([]*models.DocumentSegment, len(batch))

		for j := range batch {
			segmentID := fmt.Sprintf("%s_%d", fileID, batch[j].Position)

			entries[j] = vectordb.Entry{
				ID:         segmentID,
				DocumentID: fileID,
				Source:     fileName,
				Position:   batch[j].Position,
				Text:       batch[j].Text,
				Vector:     vectors[j],
				CreatedAt:  time.Now(),
				Metadata:   batch[j].Metadata.Flatten(),
			}

			metaJSON, err := json.Marshal(batch[j].Metadata.Flatten())
			if err != nil {
				return fmt.Errorf("failed to marshal segment metadata: %w", err)
			}

			dbSegments[j] = &models.DocumentSegment{
				DocumentID: fileID,
				SegmentID:  segmentID,
				Position:   batch[j].Position,
				Text:       batch[j].Text,
				Metadata:   datatypes.JSON(metaJSON),
				VectorID:   segmentID,
			}
		}

		if err := s.vectorDB.AddBatch(entries); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}

		if err := s.repo.SaveSegments(dbSegments); err != nil {
			s.logger.WithError(err).Error("Failed to save segment records")
		}

		processedBatches++
		progress := 20 + int(float64(processedBatches)/float64(totalBatches)*70)
		if err := s.statusManager.UpdateProgress(ctx, fileID, progress); err != nil {
			s.logger.WithError(err).Warn("Failed to update document progress")
		}
	}

	return nil
}

// IngestAll processes a set of stored documents over a bounded worker
// pool. Failures are collected, not fatal to the other documents.
func (s *DocumentService) IngestAll(ctx context.Context, fileIDs []string) map[string]error {
	if err := s.Init(); err != nil {
		failures := make(map[string]error, len(fileIDs))
		for _, id := range fileIDs {
			failures[id] = err
		}
		return failures
	}

	type outcome struct {
		fileID string
		err    error
	}

	sem := make(chan struct{}, s.maxWorkers)
	results := make(chan outcome, len(fileIDs))

	for _, fileID := range fileIDs {
		sem <- struct{}{}
		go func(id string) {
			defer func() { <-sem }()

			doc, err := s.statusManager.GetDocument(ctx, id)
			if err != nil {
				results <- outcome{fileID: id, err: err}
				return
			}
			results <- outcome{fileID: id, err: s.processDocumentSync(ctx, id, doc.FilePath)}
		}(fileID)
	}

	failures := make(map[string]error)
	for range fileIDs {
		res := <-results
		if res.err != nil {
			failures[res.fileID] = res.err
		}
	}

	return failures
}

// DeleteDocument removes a document's vectors, raw file, record and
// outstanding tasks.
func (s *DocumentService) DeleteDocument(ctx context.Context, fileID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithField("file_id", fileID).Info("Deleting document")

	if err := s.vectorDB.DeleteByDocumentID(fileID); err != nil {
		s.logger.WithError(err).Error("Failed to delete document vectors")
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	if err := s.storage.Delete(fileID); err != nil {
		// file may already be gone
		s.logger.WithError(err).Warn("Failed to delete file from storage")
	}

	if err := s.statusManager.DeleteDocument(ctx, fileID); err != nil {
		s.logger.WithError(err).Error("Failed to delete document record")
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	if s.taskQueue != nil {
		tasks, err := s.repo.GetDocumentTasks(ctx, fileID)
		if err == nil && len(tasks) > 0 {
			for _, task := range tasks {
				if err := s.repo.DeleteTask(ctx, task.ID); err != nil {
					s.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to delete document task")
				}
			}
		}
	}

	s.logger.WithField("file_id", fileID).Info("Document deleted")
	return nil
}

// GetDocumentInfo assembles the client-facing view of a document,
// including its latest task when async processing is on.
func (s *DocumentService) GetDocumentInfo(ctx context.Context, fileID string) (map[string]interface{}, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	doc, err := s.statusManager.GetDocument(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	info := map[string]interface{}{
		"file_id":    doc.ID,
		"filename":   doc.FileName,
		"status":     doc.Status,
		"created_at": doc.UploadedAt.Format(time.RFC3339),
		"updated_at": doc.UpdatedAt.Format(time.RFC3339),
		"size":       doc.FileSize,
		"progress":   doc.Progress,
	}

	if doc.CurrentStage != "" {
		info["stage"] = string(doc.CurrentStage)
	}
	if doc.DocType != "" {
		info["doc_type"] = doc.DocType
	}
	if doc.DocNumber != "" {
		info["doc_number"] = doc.DocNumber
	}
	if doc.DocYear != "" {
		info["doc_year"] = doc.DocYear
	}
	if doc.PublicationDate != "" {
		info["publication_date"] = doc.PublicationDate
	}
	if doc.Importance != "" {
		info["importance"] = doc.Importance
	}
	if doc.SegmentCount > 0 {
		info["segment_count"] = doc.SegmentCount
	}
	if doc.Error != "" {
		info["error"] = doc.Error
	}
	if doc.ProcessedAt != nil {
		info["processed_at"] = doc.ProcessedAt.Format(time.RFC3339)
	}
	if doc.Tags != "" {
		info["tags"] = doc.Tags
	}

	if s.asyncEnabled && s.taskQueue != nil {
		tasks, err := s.repo.GetDocumentTasks(ctx, fileID)
		if err == nil && len(tasks) > 0 {
			latestTask := tasks[0]
			for _, task := range tasks {
				if task.UpdatedAt.After(latestTask.UpdatedAt) {
					latestTask = task
				}
			}

			info["task_id"] = latestTask.ID
			info["task_status"] = latestTask.Status
			info["task_created_at"] = latestTask.CreatedAt.Format(time.RFC3339)
			info["task_updated_at"] = latestTask.UpdatedAt.Format(time.RFC3339)

			if latestTask.StartedAt != nil {
				info["task_started_at"] = latestTask.StartedAt.Format(time.RFC3339)
			}
			if latestTask.CompletedAt != nil {
				info["task_completed_at"] = latestTask.CompletedAt.Format(time.RFC3339)
			}
			if latestTask.Error != "" {
				info["task_error"] = latestTask.Error
			}
		}
	}

	return info, nil
}

// GetDocumentStatus returns the document's processing status.
func (s *DocumentService) GetDocumentStatus(ctx context.Context, fileID string) (models.DocumentStatus, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	return s.statusManager.GetStatus(ctx, fileID)
}

// WaitForDocumentProcessing blocks until the document's pipeline run
// reaches a terminal state.
func (s *DocumentService) WaitForDocumentProcessing(ctx context.Context, fileID string, timeout time.Duration) error {
	if err := s.Init(); err != nil {
		return err
	}

	if !s.asyncEnabled || s.taskQueue == nil {
		status, err := s.statusManager.GetStatus(ctx, fileID)
		if err != nil {
			return err
		}
		if status == models.DocStatusFailed {
			return errors.New("document processing failed")
		}
		if status != models.DocStatusCompleted {
			return errors.New("document not processed")
		}
		return nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tasks, err := s.repo.GetDocumentTasks(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get document tasks: %w", err)
	}

	if len(tasks) == 0 {
		return fmt.Errorf("no processing tasks found for document %s", fileID)
	}

	var latestTask *taskqueue.Task
	for _, task := range tasks {
		if task.Type == taskqueue.TaskProcessComplete {
			if latestTask == nil || task.CreatedAt.After(latestTask.CreatedAt) {
				latestTask = task
			}
		}
	}

	if latestTask == nil {
		return fmt.Errorf("no pipeline task found for document %s", fileID)
	}

	if _, err := s.taskQueue.WaitForTask(ctx, latestTask.ID, timeout); err != nil {
		return fmt.Errorf("failed to wait for document processing: %w", err)
	}

	status, err := s.statusManager.GetStatus(ctx, fileID)
	if err != nil {
		return err
	}

	if status == models.DocStatusFailed {
		return errors.New("document processing failed")
	}
	if status != models.DocStatusCompleted {
		return errors.New("document processing incomplete")
	}

	return nil
}

// CountDocumentSegments returns a document's segment count.
func (s *DocumentService) CountDocumentSegments(ctx context.Context, fileID string) (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}

	return s.repo.CountSegments(fileID)
}

// GetDocumentSegments returns a document's segments in order.
func (s *DocumentService) GetDocumentSegments(ctx context.Context, fileID string) ([]*models.DocumentSegment, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	return s.repo.GetSegments(fileID)
}

// ListDocuments returns documents with pagination and filtering.
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	if err := s.Init(); err != nil {
		return nil, 0, err
	}

	return s.statusManager.ListDocuments(ctx, offset, limit, filters)
}

// UpdateDocumentTags replaces a document's tag list.
func (s *DocumentService) UpdateDocumentTags(ctx context.Context, fileID string, tags string) error {
	if err := s.Init(); err != nil {
		return err
	}

	doc, err := s.statusManager.GetDocument(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	doc.Tags = tags
	return s.repo.Update(doc)
}

// failDocument marks the document failed, logging any secondary error.
func (s *DocumentService) failDocument(ctx context.Context, fileID string, errorMsg string) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark document as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, fileID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"file_id": fileID,
			"error":   err,
		}).Error("Failed to mark document as failed")
	}
}

// GetStatusManager exposes the status manager.
func (s *DocumentService) GetStatusManager() *DocumentStatusManager {
	return s.statusManager
}

// GetTaskQueue exposes the task queue.
func (s *DocumentService) GetTaskQueue() taskqueue.Queue {
	return s.taskQueue
}

// joinTags renders the tag list in the comma format the record stores.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}
