// Package taskqueue provides the asynchronous ingestion pipeline. Tasks are
// enqueued through asynq, their state lives in redis, and workers move each
// document through parse, segmentation and vectorization stages.
package taskqueue

import (
	"context"
	"encoding/json"
	"time"
)

// Queue enqueues tasks and tracks their state and results.
type Queue interface {
	// Enqueue adds a task to the queue and returns its ID.
	Enqueue(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error)

	// EnqueueAt schedules a task for a specific time.
	EnqueueAt(ctx context.Context, taskType TaskType, documentID string, payload interface{}, processAt time.Time) (string, error)

	// EnqueueIn schedules a task after a delay.
	EnqueueIn(ctx context.Context, taskType TaskType, documentID string, payload interface{}, delay time.Duration) (string, error)

	// GetTask returns the task record for an ID.
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// GetTasksByDocument returns every task belonging to a document.
	GetTasksByDocument(ctx context.Context, documentID string) ([]*Task, error)

	// WaitForTask blocks until the task reaches a terminal state.
	// A timeout of 0 waits until the context is done.
	WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error)

	// DeleteTask removes a task record.
	DeleteTask(ctx context.Context, taskID string) error

	// UpdateTaskStatus updates a task's status, result and error message.
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error

	// NotifyTaskUpdate publishes a status-change notification for waiters.
	NotifyTaskUpdate(ctx context.Context, taskID string) error

	// Close releases queue connections.
	Close() error
}

// Handler executes one pipeline stage.
type Handler interface {
	// ProcessTask performs the work for a task.
	ProcessTask(ctx context.Context, task *Task) error

	// GetTaskTypes returns the task types this handler accepts.
	GetTaskTypes() []TaskType
}

// Worker runs registered handlers against the queue.
type Worker interface {
	// RegisterHandler binds a handler to a task type.
	RegisterHandler(taskType TaskType, handler Handler)

	// Start begins consuming tasks in the background.
	Start() error

	// Stop shuts the worker down.
	Stop()
}

// Config holds queue connection and scheduling settings.
type Config struct {
	RedisAddr     string         // redis address
	RedisPassword string         // redis password
	RedisDB       int            // redis database number
	Concurrency   int            // concurrent workers
	RetryLimit    int            // max delivery attempts
	RetryDelay    time.Duration  // delay between retries
	Queues        map[string]int // queue name to priority weight
}

// DefaultConfig returns the standard queue configuration.
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 10,
		RetryLimit:  3,
		RetryDelay:  time.Minute,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}
}

// TaskInfo is the client-facing view of a task.
type TaskInfo struct {
	ID          string     `json:"id"`
	Type        TaskType   `json:"type"`
	DocumentID  string     `json:"document_id"`
	Status      TaskStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Progress    float64    `json:"progress"`
}

// Factory creates a Queue implementation from a Config.
type Factory func(cfg *Config) (Queue, error)

// NewTaskInfo builds the client-facing view of a task.
func NewTaskInfo(task *Task) *TaskInfo {
	return &TaskInfo{
		ID:          task.ID,
		Type:        task.Type,
		DocumentID:  task.DocumentID,
		Status:      task.Status,
		Error:       task.Error,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
		Progress:    getTaskProgress(task),
	}
}

// getTaskProgress maps a task status to a coarse progress percentage.
func getTaskProgress(task *Task) float64 {
	switch task.Status {
	case StatusPending:
		return 0.0
	case StatusProcessing:
		return 50.0
	case StatusCompleted:
		return 100.0
	case StatusFailed:
		return 50.0
	default:
		return 0.0
	}
}

// ErrTaskNotFound indicates the task ID has no record.
var ErrTaskNotFound = TaskError("task not found")

// ErrTaskTimeout indicates WaitForTask gave up before a terminal state.
var ErrTaskTimeout = TaskError("task timed out")

// ErrInvalidPayload indicates the payload could not be decoded.
var ErrInvalidPayload = TaskError("invalid task payload")

// TaskError is a sentinel queue error.
type TaskError string

func (e TaskError) Error() string {
	return string(e)
}

// MarshalPayload serializes a task payload to JSON.
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload deserializes a task payload.
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
