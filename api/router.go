// Package api wires the HTTP routes of the legal QA service.
package api

import (
	"github.com/lexbr/legal-qa-system/api/handler"
	"github.com/lexbr/legal-qa-system/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine with all endpoints and middleware.
// The task handler is optional; it is nil when async processing is off.
func SetupRouter(
	docHandler *handler.DocumentHandler,
	qaHandler *handler.QAHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetTraceID())

	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestLogger())
	}

	api := router.Group("/api")
	{
		docGroup := api.Group("/documents")
		{
			docGroup.POST("", docHandler.UploadDocument)
			docGroup.GET("", docHandler.ListDocuments)
			docGroup.GET("/:id/status", docHandler.GetDocumentStatus)
			docGroup.GET("/:id/segments", docHandler.GetDocumentSegments)
			docGroup.PUT("/:id/tags", docHandler.UpdateDocumentTags)
			docGroup.DELETE("/:id", docHandler.DeleteDocument)

			if taskHandler != nil {
				docGroup.GET("/:id/tasks", taskHandler.GetDocumentTasks)
			}
		}

		api.POST("/qa", qaHandler.AnswerQuestion)

		if taskHandler != nil {
			taskGroup := api.Group("/tasks")
			{
				taskGroup.POST("/callback", taskHandler.HandleCallback)
				taskGroup.GET("/:id", taskHandler.GetTaskStatus)
			}
		}

		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors allows cross-origin requests when the API serves a browser
// frontend from another origin.
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
