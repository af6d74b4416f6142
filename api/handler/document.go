// Package handler implements the HTTP endpoints of the API.
package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexbr/legal-qa-system/api/middleware"
	"github.com/lexbr/legal-qa-system/api/model"
	"github.com/lexbr/legal-qa-system/internal/models"
	"github.com/lexbr/legal-qa-system/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler serves the document management endpoints.
type DocumentHandler struct {
	documentService *services.DocumentService
	logger          *logrus.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// UploadDocument receives a legal document with optional curated
// classification and kicks off its processing.
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithField("error", err.Error()).Warn("Invalid document upload request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"parâmetros de requisição inválidos",
		))
		return
	}

	if req.File == nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"nenhum arquivo enviado",
		))
		return
	}

	filename := req.File.Filename
	if !isValidFileType(filepath.Ext(filename)) {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"tipo de arquivo não suportado, apenas .pdf, .md, .markdown e .txt",
		))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"não foi possível abrir o arquivo enviado",
		))
		return
	}
	defer file.Close()

	curated := curatedFromRequest(&req)
	doc, err := h.documentService.UploadDocument(c.Request.Context(), file, filename, curated)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to store uploaded document")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"falha ao salvar o documento",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"file_id":  doc.ID,
		"filename": doc.FileName,
		"size":     doc.FileSize,
	}).Info("Document uploaded")

	go func() {
		ctx := context.Background()
		if err := h.documentService.ProcessDocument(ctx, doc.ID, doc.FilePath); err != nil {
			h.logger.WithFields(logrus.Fields{
				"error":   err.Error(),
				"file_id": doc.ID,
			}).Error("Failed to process document")
		}
	}()

	resp := model.DocumentUploadResponse{
		FileID:   doc.ID,
		FileName: doc.FileName,
		Status:   "processing",
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetDocumentStatus reports the pipeline state of one document.
// GET /api/documents/:id/status
func (h *DocumentHandler) GetDocumentStatus(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "ID de documento inválido"))
		return
	}

	docInfo, err := h.documentService.GetDocumentInfo(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"file_id": req.ID,
		}).Warn("Failed to get document info")

		c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "documento não encontrado"))
		return
	}

	segments, err := h.documentService.CountDocumentSegments(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"file_id": req.ID,
		}).Warn("Failed to count document segments")
	}

	resp := model.DocumentStatusResponse{
		FileID:    req.ID,
		Status:    statusString(docInfo["status"]),
		FileName:  stringValue(docInfo["filename"]),
		Segments:  segments,
		CreatedAt: stringValue(docInfo["created_at"]),
		UpdatedAt: stringValue(docInfo["updated_at"]),
	}

	if p, ok := docInfo["progress"].(int); ok {
		resp.Progress = p
	}
	if stage, ok := docInfo["stage"]; ok {
		resp.Stage = stringValue(stage)
	}
	if errMsg, ok := docInfo["error"]; ok {
		resp.Error = stringValue(errMsg)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListDocuments returns a filtered page of documents.
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "parâmetros de consulta inválidos"))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.DocType != "" {
		filters["doc_type"] = req.DocType
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), offset, pageSize, filters)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"falha ao listar documentos",
		))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.ConvertDocumentInfo(doc)
	}

	resp := model.DocumentListResponse{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Documents: infos,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetDocumentSegments lists a document's stored segments in order.
// GET /api/documents/:id/segments
func (h *DocumentHandler) GetDocumentSegments(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "ID de documento inválido"))
		return
	}

	segments, err := h.documentService.GetDocumentSegments(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"file_id": req.ID,
		}).Error("Failed to get document segments")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"falha ao obter os segmentos do documento",
		))
		return
	}

	infos := make([]model.SegmentInfo, len(segments))
	for i, seg := range segments {
		infos[i] = model.SegmentInfo{
			SegmentID: seg.SegmentID,
			Position:  seg.Position,
			Text:      seg.Text,
			Metadata:  string(seg.Metadata),
		}
	}

	resp := model.DocumentSegmentsResponse{
		FileID:   req.ID,
		Total:    len(infos),
		Segments: infos,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// UpdateDocumentTags replaces a document's tag list.
// PUT /api/documents/:id/tags
func (h *DocumentHandler) UpdateDocumentTags(c *gin.Context) {
	var uriReq model.DocumentIDRequest
	if err := c.ShouldBindUri(&uriReq); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "ID de documento inválido"))
		return
	}

	var req model.DocumentTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "parâmetros de requisição inválidos"))
		return
	}

	if err := h.documentService.UpdateDocumentTags(c.Request.Context(), uriReq.ID, req.Tags); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"file_id": uriReq.ID,
		}).Error("Failed to update document tags")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"falha ao atualizar as tags do documento",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"file_id": uriReq.ID,
		"tags":    req.Tags,
	}))
}

// DeleteDocument removes a document, its segments and its vectors.
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "ID de documento inválido"))
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), req.ID); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"file_id": req.ID,
		}).Error("Failed to delete document")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"falha ao excluir o documento",
		))
		return
	}

	h.logger.WithField("file_id", req.ID).Info("Document deleted")

	resp := model.DocumentDeleteResponse{
		Success: true,
		FileID:  req.ID,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// curatedFromRequest builds the curated metadata block, or nil when the
// request carries none.
func curatedFromRequest(req *model.DocumentUploadRequest) *services.CuratedMetadata {
	tags := req.TagList()
	if req.Importance == "" && req.Category == "" && req.Hierarchy == "" &&
		req.Scope == "" && req.Description == "" && len(tags) == 0 {
		return nil
	}

	return &services.CuratedMetadata{
		Importance:  req.Importance,
		Category:    req.Category,
		Hierarchy:   req.Hierarchy,
		Scope:       req.Scope,
		Description: req.Description,
		Tags:        tags,
	}
}

// isValidFileType reports whether the extension has a parser.
func isValidFileType(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".md", ".markdown", ".txt":
		return true
	default:
		return false
	}
}

// stringValue coerces an info map value to string.
func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// statusString renders the status field of the info map, which may be a
// typed string.
func statusString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case models.DocumentStatus:
		return string(s)
	default:
		return ""
	}
}
