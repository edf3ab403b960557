package handler

import (
	"net/http"
	"runtime/debug"

	"graphgate-go/internal/controller"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RouteRegistrar mounts additional routes, such as the MCP endpoint.
type RouteRegistrar interface {
	SetupHTTPRoutes(router *gin.Engine)
}

func SetupRouter(graphController *controller.GraphController, mcpServer RouteRegistrar, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(CustomRecoveryMiddleware(logger))
	router.Use(CorrelationIDMiddleware())
	router.Use(LoggerMiddleware(logger))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", graphController.ConnectionStatus)
		v1.POST("/cypher", graphController.ExecuteCypher)
		v1.POST("/transactions", graphController.RunTransactions)

		// Node endpoints; the path label is the node label
		v1.GET("/nodes", graphController.GetNodes)
		v1.GET("/nodes/:label", graphController.GetNodes)
		v1.POST("/nodes/:label", graphController.PostNode)
		v1.PUT("/nodes/:label", graphController.PutNode)
		v1.DELETE("/nodes/:label", graphController.DeleteNode)

		// Query history endpoints
		v1.GET("/history", graphController.GetHistoryStats)
		v1.GET("/history/:correlationID", graphController.GetHistory)

		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "healthy",
			})
		})
	}

	if mcpServer != nil {
		mcpServer.SetupHTTPRoutes(router)
	}

	return router
}

// CorrelationIDMiddleware takes the correlation id from the request header or
// generates one, stores it on the context and echoes it in the response.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(controller.CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(controller.CorrelationIDKey, id)
		c.Header(controller.CorrelationIDHeader, id)
		c.Next()
	}
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.String("correlation_id", c.GetString(controller.CorrelationIDKey)),
		)
		c.Next()
	}
}

func CustomRecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
