package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexbr/legal-qa-system/api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDocument_UnsupportedType(t *testing.T) {
	env := setupTestEnv(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "planilha.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a legal text"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tipo de arquivo não suportado")
}

func TestUploadDocument_MissingFile(t *testing.T) {
	env := setupTestEnv(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("tags", "cdc"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDocumentStatus(t *testing.T) {
	env := setupTestEnv(t)

	fileID := uploadFile(t, env, "Lei nº 8.078.txt", cdcSample, nil)
	waitForProcessing(t, env, fileID)

	w := doJSON(t, env, http.MethodGet, "/api/documents/"+fileID+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int                          `json:"code"`
		Data model.DocumentStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, fileID, resp.Data.FileID)
	assert.Equal(t, "completed", resp.Data.Status)
	assert.Equal(t, 100, resp.Data.Progress)
	assert.Equal(t, "Lei nº 8.078.txt", resp.Data.FileName)
	assert.Greater(t, resp.Data.Segments, 0)
	assert.Empty(t, resp.Data.Error)
}

func TestGetDocumentStatus_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	w := doJSON(t, env, http.MethodGet, "/api/documents/nao-existe/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "documento não encontrado")
}

func TestListDocuments(t *testing.T) {
	env := setupTestEnv(t)

	leiID := uploadFile(t, env, "Lei nº 8.078.txt", cdcSample, map[string]string{"tags": "cdc"})
	decretoID := uploadFile(t, env, "Decreto nº 7.962.txt", cdcSample, nil)
	waitForProcessing(t, env, leiID)
	waitForProcessing(t, env, decretoID)

	t.Run("all documents", func(t *testing.T) {
		w := doJSON(t, env, http.MethodGet, "/api/documents", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Code int                        `json:"code"`
			Data model.DocumentListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, int64(2), resp.Data.Total)
		assert.Len(t, resp.Data.Documents, 2)
	})

	t.Run("filter by doc_type", func(t *testing.T) {
		w := doJSON(t, env, http.MethodGet, "/api/documents?doc_type=decreto", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data model.DocumentListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		require.Equal(t, int64(1), resp.Data.Total)
		assert.Equal(t, decretoID, resp.Data.Documents[0].FileID)
		assert.Equal(t, "decreto", resp.Data.Documents[0].DocType)
	})

	t.Run("filter by tags", func(t *testing.T) {
		w := doJSON(t, env, http.MethodGet, "/api/documents?tags=cdc", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data model.DocumentListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		require.Equal(t, int64(1), resp.Data.Total)
		assert.Equal(t, leiID, resp.Data.Documents[0].FileID)
	})

	t.Run("pagination", func(t *testing.T) {
		w := doJSON(t, env, http.MethodGet, "/api/documents?page=1&page_size=1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data model.DocumentListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, int64(2), resp.Data.Total)
		assert.Len(t, resp.Data.Documents, 1)
		assert.Equal(t, 1, resp.Data.PageSize)
	})
}

func TestGetDocumentSegments(t *testing.T) {
	env := setupTestEnv(t)

	fileID := uploadFile(t, env, "Lei nº 8.078.txt", cdcSample, nil)
	waitForProcessing(t, env, fileID)

	w := doJSON(t, env, http.MethodGet, "/api/documents/"+fileID+"/segments", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int                            `json:"code"`
		Data model.DocumentSegmentsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, fileID, resp.Data.FileID)
	require.Greater(t, resp.Data.Total, 0)
	require.Len(t, resp.Data.Segments, resp.Data.Total)

	first := resp.Data.Segments[0]
	assert.Equal(t, fmt.Sprintf("%s_0", fileID), first.SegmentID)
	assert.Equal(t, 0, first.Position)
	assert.NotEmpty(t, first.Text)
}

func TestUpdateDocumentTags(t *testing.T) {
	env := setupTestEnv(t)

	fileID := uploadFile(t, env, "Lei nº 8.078.txt", cdcSample, nil)
	waitForProcessing(t, env, fileID)

	w := doJSON(t, env, http.MethodPut, "/api/documents/"+fileID+"/tags", model.DocumentTagsRequest{
		Tags: "cdc,consumidor,revisado",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "revisado")

	// the list endpoint reflects the new tags
	list := doJSON(t, env, http.MethodGet, "/api/documents?tags=revisado", nil)
	require.Equal(t, http.StatusOK, list.Code)

	var resp struct {
		Data model.DocumentListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Data.Total)
	assert.Equal(t, fileID, resp.Data.Documents[0].FileID)
}

func TestUpdateDocumentTags_InvalidBody(t *testing.T) {
	env := setupTestEnv(t)

	fileID := uploadFile(t, env, "Lei nº 8.078.txt", cdcSample, nil)
	waitForProcessing(t, env, fileID)

	req := httptest.NewRequest(http.MethodPut, "/api/documents/"+fileID+"/tags", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	env := setupTestEnv(t)

	fileID := uploadFile(t, env, "Lei nº 8.078.txt", cdcSample, nil)
	waitForProcessing(t, env, fileID)

	count, err := env.VectorDB.Count()
	require.NoError(t, err)
	require.Greater(t, count, 0)

	w := doJSON(t, env, http.MethodDelete, "/api/documents/"+fileID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data model.DocumentDeleteResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)
	assert.Equal(t, fileID, resp.Data.FileID)

	count, err = env.VectorDB.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	status := doJSON(t, env, http.MethodGet, "/api/documents/"+fileID+"/status", nil)
	assert.Equal(t, http.StatusNotFound, status.Code)
}
