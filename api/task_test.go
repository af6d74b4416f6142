package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lexbr/legal-qa-system/api/handler"
	"github.com/lexbr/legal-qa-system/pkg/taskqueue"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The callback processor is a process-wide singleton bound to the first
// queue it sees, so every task test shares one queue instance.
var (
	taskQueueOnce  sync.Once
	sharedQueue    taskqueue.Queue
	sharedQueueErr error
)

func taskTestQueue(t *testing.T) taskqueue.Queue {
	t.Helper()

	taskQueueOnce.Do(func() {
		mr, err := miniredis.Run()
		if err != nil {
			sharedQueueErr = err
			return
		}

		sharedQueue, sharedQueueErr = taskqueue.NewRedisQueue(&taskqueue.Config{
			RedisAddr:   mr.Addr(),
			Concurrency: 2,
			RetryLimit:  2,
			RetryDelay:  time.Second,
		})
	})
	require.NoError(t, sharedQueueErr)
	return sharedQueue
}

func setupTaskRouter(t *testing.T) (*gin.Engine, taskqueue.Queue) {
	t.Helper()

	env := setupTestEnv(t)
	queue := taskTestQueue(t)

	taskHandler := handler.NewTaskHandler(queue)

	router := SetupRouter(
		handler.NewDocumentHandler(env.DocumentService),
		handler.NewQAHandler(env.QAService),
		taskHandler,
	)
	return router, queue
}

func TestHandleCallback_InvalidBody(t *testing.T) {
	router, _ := setupTaskRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/callback", bytes.NewBufferString("{broken"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCallback_EmptyTaskID(t *testing.T) {
	router, _ := setupTaskRouter(t)

	body, err := json.Marshal(taskqueue.CallbackRequest{
		DocumentID: "doc-1",
		Status:     taskqueue.StatusCompleted,
		Type:       taskqueue.TaskVectorize,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ID da tarefa")
}

func TestHandleCallback_UnknownTask(t *testing.T) {
	router, _ := setupTaskRouter(t)

	body, err := json.Marshal(taskqueue.CallbackRequest{
		TaskID:     "task-inexistente",
		DocumentID: "doc-1",
		Status:     taskqueue.StatusCompleted,
		Type:       taskqueue.TaskVectorize,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleCallback_CompletesTask(t *testing.T) {
	router, queue := setupTaskRouter(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, taskqueue.TaskVectorize, "doc-cb-1", nil)
	require.NoError(t, err)

	result := json.RawMessage(`{"document_id":"doc-cb-1","vector_count":7,"status":"completed"}`)
	body, err := json.Marshal(taskqueue.CallbackRequest{
		TaskID:     taskID,
		DocumentID: "doc-cb-1",
		Status:     taskqueue.StatusCompleted,
		Type:       taskqueue.TaskVectorize,
		Result:     result,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int                        `json:"code"`
		Data taskqueue.CallbackResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)
	assert.Equal(t, taskID, resp.Data.TaskID)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.StatusCompleted, task.Status)
}

func TestGetTaskStatus(t *testing.T) {
	router, queue := setupTaskRouter(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, taskqueue.TaskDocumentParse, "doc-status-1", nil)
	require.NoError(t, err)
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, taskqueue.StatusFailed, nil, "arquivo corrompido"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/"+taskID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, taskID, resp.Data["id"])
	assert.Equal(t, string(taskqueue.TaskDocumentParse), resp.Data["type"])
	assert.Equal(t, string(taskqueue.StatusFailed), resp.Data["status"])
	assert.Equal(t, "arquivo corrompido", resp.Data["error"])
}

func TestGetTaskStatus_NotFound(t *testing.T) {
	router, _ := setupTaskRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/nao-existe", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "tarefa não encontrada")
}

func TestGetDocumentTasks(t *testing.T) {
	router, queue := setupTaskRouter(t)
	ctx := context.Background()

	docID := "doc-tasks-1"
	_, err := queue.Enqueue(ctx, taskqueue.TaskDocumentParse, docID, nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, taskqueue.TaskSegment, docID, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents/"+docID+"/tasks", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int `json:"code"`
		Data struct {
			DocumentID string                   `json:"document_id"`
			Tasks      []map[string]interface{} `json:"tasks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, docID, resp.Data.DocumentID)
	assert.Len(t, resp.Data.Tasks, 2)
}
