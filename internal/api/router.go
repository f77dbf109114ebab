package api

import (
	"github.com/gin-gonic/gin"

	"minerva/internal/api/handler"
	"minerva/internal/api/middleware"
	"minerva/internal/metrics"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	batchHandler *handler.BatchHandler,
	resultHandler *handler.ResultHandler,
	healthHandler *handler.HealthHandler,
	mode string,
) *gin.Engine {
	switch mode {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	r.GET("/health", healthHandler.Ready)
	r.GET("/health/live", healthHandler.Live)
	r.GET("/health/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/batches", batchHandler.CreateBatch)
		v1.GET("/batches", batchHandler.ListBatches)
		v1.GET("/batches/:id", batchHandler.GetBatch)

		v1.POST("/batches/:id/results", resultHandler.SubmitResult)
		v1.PATCH("/batches/:id/results/:agent_type", resultHandler.CorrectResult)
		v1.PUT("/batches/:id/backtest/analysis", resultHandler.PutBacktestAnalysis)
	}

	return r
}
