package handler

import (
	"net/http"

	"github.com/lexbr/legal-qa-system/api/middleware"
	"github.com/lexbr/legal-qa-system/api/model"
	"github.com/lexbr/legal-qa-system/internal/llm"
	"github.com/lexbr/legal-qa-system/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QAHandler serves the question answering endpoint.
type QAHandler struct {
	qaService *services.QAService
	logger    *logrus.Logger
}

// NewQAHandler creates a QA handler.
func NewQAHandler(qaService *services.QAService) *QAHandler {
	return &QAHandler{
		qaService: qaService,
		logger:    middleware.GetLogger(),
	}
}

// AnswerQuestion answers a legal question, optionally scoped to one
// document or to a metadata filter.
// POST /api/qa
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithField("error", err.Error()).Warn("Invalid question request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"parâmetros de requisição inválidos",
		))
		return
	}

	if req.Question == "" {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"a pergunta não pode estar vazia",
		))
		return
	}

	ctx := c.Request.Context()

	var (
		answer  string
		sources []llm.SourceReference
		err     error
	)

	switch {
	case req.DocumentID != "":
		h.logger.WithFields(logrus.Fields{
			"question":    req.Question,
			"document_id": req.DocumentID,
		}).Info("Question scoped to document")

		answer, sources, err = h.qaService.AnswerWithDocument(ctx, req.Question, req.DocumentID)

	case len(req.Metadata) > 0:
		h.logger.WithFields(logrus.Fields{
			"question": req.Question,
			"metadata": req.Metadata,
		}).Info("Question with metadata filter")

		answer, sources, err = h.qaService.AnswerWithMetadata(ctx, req.Question, req.Metadata)

	default:
		h.logger.WithField("question", req.Question).Info("General question")

		answer, sources, err = h.qaService.Answer(ctx, req.Question)
	}

	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"question": req.Question,
		}).Error("Failed to answer question")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"erro ao processar a pergunta",
		))
		return
	}

	resp := model.QAResponse{
		Question: req.Question,
		Answer:   answer,
		Sources:  model.ConvertSources(sources),
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
