package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TaskCallbackHandler consumes the result of a finished pipeline stage.
type TaskCallbackHandler func(ctx context.Context, task *Task, result json.RawMessage) error

// CallbackProcessor routes stage results to their registered handlers
// and keeps the task records up to date.
type CallbackProcessor struct {
	queue     Queue
	handlers  map[TaskType]TaskCallbackHandler
	defaultFn TaskCallbackHandler
	logger    *logrus.Logger
}

// NewCallbackProcessor creates a callback processor bound to a queue.
func NewCallbackProcessor(queue Queue, logger *logrus.Logger) *CallbackProcessor {
	if logger == nil {
		logger = logrus.New()
	}

	return &CallbackProcessor{
		queue:    queue,
		handlers: make(map[TaskType]TaskCallbackHandler),
		logger:   logger,
	}
}

// RegisterHandler binds a handler to a task type.
func (p *CallbackProcessor) RegisterHandler(taskType TaskType, handler TaskCallbackHandler) {
	p.handlers[taskType] = handler
	p.logger.Infof("Registered handler for task type: %s", taskType)
}

// SetDefaultHandler sets the handler used when no type-specific one exists.
func (p *CallbackProcessor) SetDefaultHandler(handler TaskCallbackHandler) {
	p.defaultFn = handler
}

// ProcessCallback decodes a callback, records the stage outcome and
// dispatches the result to the matching handler.
func (p *CallbackProcessor) ProcessCallback(ctx context.Context, callbackData []byte) error {
	var callback TaskCallback
	if err := json.Unmarshal(callbackData, &callback); err != nil {
		return fmt.Errorf("failed to unmarshal callback data: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"task_id":     callback.TaskID,
		"document_id": callback.DocumentID,
		"status":      callback.Status,
		"type":        callback.Type,
	}).Info("Processing task callback")

	task, err := p.queue.GetTask(ctx, callback.TaskID)
	if err != nil {
		p.logger.WithError(err).Errorf("Failed to get task: %s", callback.TaskID)
		return fmt.Errorf("failed to get task: %w", err)
	}

	err = p.queue.UpdateTaskStatus(ctx, callback.TaskID, callback.Status, callback.Result, callback.Error)
	if err != nil {
		p.logger.WithError(err).Errorf("Failed to update task status: %s", callback.TaskID)
		return fmt.Errorf("failed to update task status: %w", err)
	}

	// waiters can tolerate a missed notification, they also poll
	if err := p.queue.NotifyTaskUpdate(ctx, callback.TaskID); err != nil {
		p.logger.WithError(err).Warnf("Failed to notify task update: %s", callback.TaskID)
	}

	// failed stages never chain to the next one
	if callback.Status == StatusFailed {
		p.logger.WithFields(logrus.Fields{
			"task_id": callback.TaskID,
			"error":   callback.Error,
		}).Error("Task failed")
		return nil
	}

	handler, exists := p.handlers[callback.Type]
	if !exists {
		handler = p.defaultFn
	}

	if handler == nil {
		p.logger.WithField("type", callback.Type).Debug("No handler for task type")
		return nil
	}

	p.logger.Debugf("Calling handler for task: %s (type: %s)", task.ID, task.Type)
	return handler(ctx, task, callback.Result)
}

// CallbackRequest is the HTTP form of a stage callback.
type CallbackRequest struct {
	TaskID     string          `json:"task_id"`
	DocumentID string          `json:"document_id"`
	Status     TaskStatus      `json:"status"`
	Type       TaskType        `json:"type"`
	Result     json.RawMessage `json:"result"`
	Error      string          `json:"error"`
	Timestamp  string          `json:"timestamp"`
}

// CallbackResponse acknowledges a stage callback.
type CallbackResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	TaskID    string `json:"task_id"`
	Timestamp string `json:"timestamp"`
}

// HandleCallback processes an HTTP callback request.
func (p *CallbackProcessor) HandleCallback(ctx context.Context, req *CallbackRequest) (*CallbackResponse, error) {
	p.logger.WithFields(logrus.Fields{
		"task_id":     req.TaskID,
		"document_id": req.DocumentID,
		"status":      req.Status,
		"type":        req.Type,
	}).Info("Received callback request")

	timestamp := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"timestamp": req.Timestamp,
				"error":     err,
			}).Warn("Failed to parse timestamp, using current time")
		} else {
			timestamp = parsed
		}
	}

	callback := &TaskCallback{
		TaskID:     req.TaskID,
		DocumentID: req.DocumentID,
		Status:     req.Status,
		Type:       req.Type,
		Result:     req.Result,
		Error:      req.Error,
		Timestamp:  timestamp,
	}

	callbackData, err := json.Marshal(callback)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal callback data")
		return &CallbackResponse{
			Success:   false,
			Message:   fmt.Sprintf("failed to marshal callback: %v", err),
			TaskID:    req.TaskID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, err
	}

	if err := p.ProcessCallback(ctx, callbackData); err != nil {
		p.logger.WithError(err).Error("Failed to process callback")
		return &CallbackResponse{
			Success:   false,
			Message:   err.Error(),
			TaskID:    req.TaskID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, err
	}

	return &CallbackResponse{
		Success:   true,
		Message:   "Task callback processed successfully",
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// DefaultDocumentParseHandler enqueues a segmentation task once text
// extraction finishes.
func DefaultDocumentParseHandler(ctx context.Context, queue Queue, logger *logrus.Logger) TaskCallbackHandler {
	return func(ctx context.Context, task *Task, result json.RawMessage) error {
		var parseResult DocumentParseResult
		if err := json.Unmarshal(result, &parseResult); err != nil {
			logger.WithError(err).Error("Failed to unmarshal document parse result")
			return fmt.Errorf("failed to unmarshal document parse result: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"task_id":     task.ID,
			"document_id": task.DocumentID,
			"title":       parseResult.Title,
			"chars":       parseResult.Chars,
		}).Info("Document parse completed")

		if parseResult.Content == "" {
			logger.Warn("Empty document content, skipping segmentation task")
			return nil
		}

		segmentPayload := SegmentPayload{
			DocumentID: task.DocumentID,
			Content:    parseResult.Content,
			DocType:    parseResult.Meta["doc_type"],
			DocNumber:  parseResult.Meta["doc_number"],
		}

		taskID, err := queue.Enqueue(ctx, TaskSegment, task.DocumentID, segmentPayload)
		if err != nil {
			logger.WithError(err).Error("Failed to enqueue segmentation task")
			return fmt.Errorf("failed to enqueue segmentation task: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"document_id":     task.DocumentID,
			"segment_task_id": taskID,
		}).Info("Created segmentation task")

		return nil
	}
}

// DefaultSegmentHandler enqueues a vectorization task once segmentation
// finishes.
func DefaultSegmentHandler(ctx context.Context, queue Queue, logger *logrus.Logger) TaskCallbackHandler {
	return func(ctx context.Context, task *Task, result json.RawMessage) error {
		var segmentResult SegmentResult
		if err := json.Unmarshal(result, &segmentResult); err != nil {
			logger.WithError(err).Error("Failed to unmarshal segmentation result")
			return fmt.Errorf("failed to unmarshal segmentation result: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"task_id":       task.ID,
			"document_id":   task.DocumentID,
			"segment_count": segmentResult.SegmentCount,
		}).Info("Segmentation completed")

		if len(segmentResult.Segments) == 0 {
			logger.Warn("No segments produced, skipping vectorization")
			return nil
		}

		vectorizePayload := VectorizePayload{
			DocumentID: task.DocumentID,
			Segments:   segmentResult.Segments,
		}

		taskID, err := queue.Enqueue(ctx, TaskVectorize, task.DocumentID, vectorizePayload)
		if err != nil {
			logger.WithError(err).Error("Failed to enqueue vectorization task")
			return fmt.Errorf("failed to enqueue vectorization task: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"document_id":       task.DocumentID,
			"vectorize_task_id": taskID,
			"segment_count":     len(segmentResult.Segments),
		}).Info("Created vectorization task")

		return nil
	}
}

// DefaultVectorizeHandler logs the final pipeline stage. Index writes are
// registered by the service layer, which owns the vector repository.
func DefaultVectorizeHandler(ctx context.Context, queue Queue, logger *logrus.Logger) TaskCallbackHandler {
	return func(ctx context.Context, task *Task, result json.RawMessage) error {
		var vectorizeResult VectorizeResult
		if err := json.Unmarshal(result, &vectorizeResult); err != nil {
			logger.WithError(err).Error("Failed to unmarshal vectorization result")
			return fmt.Errorf("failed to unmarshal vectorization result: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"task_id":      task.ID,
			"document_id":  task.DocumentID,
			"vector_count": vectorizeResult.VectorCount,
			"model":        vectorizeResult.Model,
			"dimension":    vectorizeResult.Dimension,
		}).Info("Vectorization completed")

		return nil
	}
}

// DefaultProcessCompleteHandler logs the summary of a full-pipeline run.
func DefaultProcessCompleteHandler(ctx context.Context, queue Queue, logger *logrus.Logger) TaskCallbackHandler {
	return func(ctx context.Context, task *Task, result json.RawMessage) error {
		var completeResult ProcessCompleteResult
		if err := json.Unmarshal(result, &completeResult); err != nil {
			logger.WithError(err).Error("Failed to unmarshal process complete result")
			return fmt.Errorf("failed to unmarshal process complete result: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"task_id":        task.ID,
			"document_id":    task.DocumentID,
			"segment_count":  completeResult.SegmentCount,
			"vector_count":   completeResult.VectorCount,
			"parse_status":   completeResult.ParseStatus,
			"segment_status": completeResult.SegmentStatus,
			"vector_status":  completeResult.VectorStatus,
		}).Info("Document processing completed")

		return nil
	}
}

// RegisterDefaultHandlers wires the stage-chaining handlers for every
// pipeline task type.
func (p *CallbackProcessor) RegisterDefaultHandlers(queue Queue) {
	p.RegisterHandler(TaskDocumentParse, DefaultDocumentParseHandler(context.Background(), queue, p.logger))
	p.RegisterHandler(TaskSegment, DefaultSegmentHandler(context.Background(), queue, p.logger))
	p.RegisterHandler(TaskVectorize, DefaultVectorizeHandler(context.Background(), queue, p.logger))
	p.RegisterHandler(TaskProcessComplete, DefaultProcessCompleteHandler(context.Background(), queue, p.logger))

	p.logger.Info("Registered default task handlers")
}

// GetRegisteredHandlerTypes reports which task types have handlers.
func (p *CallbackProcessor) GetRegisteredHandlerTypes() map[TaskType]bool {
	result := make(map[TaskType]bool)
	for handlerType := range p.handlers {
		result[handlerType] = true
	}
	return result
}
