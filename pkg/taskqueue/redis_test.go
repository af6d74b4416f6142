package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest starts a miniredis instance and returns its address
// together with a cleanup function.
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

func newTestQueue(t *testing.T, redisAddr string) Queue {
	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	return queue
}

func TestNewRedisQueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	assert.NotNil(t, queue)
	assert.NoError(t, queue.Close())
}

func TestNewRedisQueue_ConnectionFailure(t *testing.T) {
	cfg := &Config{
		RedisAddr: "localhost:1", // nothing listens here
	}

	queue, err := NewRedisQueue(cfg)
	assert.Error(t, err)
	assert.Nil(t, queue)
}

func TestRedisQueue_Enqueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	payload := &DocumentParsePayload{
		FilePath: "/data/uploads/cdc.pdf",
		FileName: "cdc.pdf",
		FileType: "pdf",
		Metadata: map[string]string{"doc_type": "lei", "doc_number": "8.078"},
	}

	taskID, err := queue.Enqueue(ctx, TaskDocumentParse, "doc-123", payload)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskDocumentParse, task.Type)
	assert.Equal(t, "doc-123", task.DocumentID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 2, task.MaxRetries)

	var decoded DocumentParsePayload
	require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
	assert.Equal(t, "cdc.pdf", decoded.FileName)
	assert.Equal(t, "lei", decoded.Metadata["doc_type"])
}

func TestRedisQueue_EnqueueIn(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.EnqueueIn(ctx, TaskVectorize, "doc-456", nil, time.Minute)
	assert.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskVectorize, task.Type)
	assert.Equal(t, StatusPending, task.Status)
}

func TestRedisQueue_GetTask_NotFound(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	task, err := queue.GetTask(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Nil(t, task)
}

func TestRedisQueue_GetTasksByDocument(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	documentID := "doc-789"

	id1, err := queue.Enqueue(ctx, TaskDocumentParse, documentID, nil)
	require.NoError(t, err)
	id2, err := queue.Enqueue(ctx, TaskSegment, documentID, nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskDocumentParse, "other-doc", nil)
	require.NoError(t, err)

	tasks, err := queue.GetTasksByDocument(ctx, documentID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	ids := map[string]bool{}
	for _, task := range tasks {
		ids[task.ID] = true
		assert.Equal(t, documentID, task.DocumentID)
	}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])

	// unknown document yields an empty slice
	tasks, err = queue.GetTasksByDocument(ctx, "unknown-doc")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskSegment, "doc-1", nil)
	require.NoError(t, err)

	err = queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	require.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	result := &SegmentResult{
		DocumentID:   "doc-1",
		Segments:     []SegmentInfo{{Text: "Art. 1. Primeiro.", Position: 0, ContentType: "article", ArticleNumber: "1"}},
		SegmentCount: 1,
	}
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
	require.NoError(t, err)

	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)

	var decoded SegmentResult
	require.NoError(t, UnmarshalPayload(task.Result, &decoded))
	assert.Equal(t, 1, decoded.SegmentCount)
	assert.Equal(t, "article", decoded.Segments[0].ContentType)
}

func TestRedisQueue_UpdateTaskStatus_Failed(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskDocumentParse, "doc-1", nil)
	require.NoError(t, err)

	err = queue.UpdateTaskStatus(ctx, taskID, StatusFailed, nil, "corrupt pdf")
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "corrupt pdf", task.Error)
	require.NotNil(t, task.CompletedAt)
}

func TestRedisQueue_DeleteTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	documentID := "doc-del"
	taskID, err := queue.Enqueue(ctx, TaskDocumentParse, documentID, nil)
	require.NoError(t, err)

	err = queue.DeleteTask(ctx, taskID)
	require.NoError(t, err)

	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err := queue.GetTasksByDocument(ctx, documentID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// deleting twice reports not found
	err = queue.DeleteTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRedisQueue_WaitForTask_AlreadyDone(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskVectorize, "doc-1", nil)
	require.NoError(t, err)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, ""))

	task, err := queue.WaitForTask(ctx, taskID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestRedisQueue_WaitForTask_Timeout(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskVectorize, "doc-1", nil)
	require.NoError(t, err)

	// the task never completes, the wait must time out
	start := time.Now()
	task, err := queue.WaitForTask(ctx, taskID, 1500*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.Nil(t, task)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestRedisQueue_WaitForTask_CompletesWhileWaiting(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskSegment, "doc-1", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, "")
		_ = queue.NotifyTaskUpdate(ctx, taskID)
	}()

	task, err := queue.WaitForTask(ctx, taskID, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestNewQueue_Factory(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{RedisAddr: redisAddr}

	queue, err := NewQueue("redis", cfg)
	require.NoError(t, err)
	assert.NotNil(t, queue)
	queue.Close()

	_, err = NewQueue("unknown", cfg)
	assert.Error(t, err)
}

func TestNewTaskInfo_Progress(t *testing.T) {
	now := time.Now()
	task := &Task{
		ID:         "task-1",
		Type:       TaskDocumentParse,
		DocumentID: "doc-1",
		Status:     StatusPending,
		CreatedAt:  now,
	}

	info := NewTaskInfo(task)
	assert.Equal(t, 0.0, info.Progress)

	task.Status = StatusProcessing
	assert.Equal(t, 50.0, NewTaskInfo(task).Progress)

	task.Status = StatusCompleted
	assert.Equal(t, 100.0, NewTaskInfo(task).Progress)

	task.Status = StatusFailed
	assert.Equal(t, 50.0, NewTaskInfo(task).Progress)
}

func TestMarshalPayload(t *testing.T) {
	data, err := MarshalPayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	data, err = MarshalPayload(&VectorizePayload{DocumentID: "doc-1", Model: "text-embedding-ada-002"})
	require.NoError(t, err)

	var decoded VectorizePayload
	require.NoError(t, UnmarshalPayload(data, &decoded))
	assert.Equal(t, "doc-1", decoded.DocumentID)

	// empty input leaves the target untouched
	var untouched VectorizePayload
	require.NoError(t, UnmarshalPayload(nil, &untouched))
	assert.Empty(t, untouched.DocumentID)
}
