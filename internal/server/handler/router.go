package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradepilot/internal/server/middleware"
)

type Handlers struct {
	Users     *UserHandler
	Pipelines *PipelineHandler
	// Webhook is optional.
	Webhook *WebhookHandler
}

func NewRouter(h Handlers, jwt *middleware.JWT, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(logger))

	r.POST("/login", h.Users.UserLogin)
	r.POST("/register", h.Users.Register)
	if h.Webhook != nil {
		r.POST("/webhook/pipelines/:id/trigger", h.Webhook.Trigger)
	}

	auth := r.Group("/", jwt.JWTAuthMiddleware(h.Users.users))
	auth.POST("/pipelines", h.Pipelines.CreatePipeline)
	auth.GET("/pipelines", h.Pipelines.ListPipelines)
	auth.GET("/pipelines/:id", h.Pipelines.GetPipeline)
	auth.POST("/pipelines/:id/pause", h.Pipelines.PausePipeline)
	auth.POST("/pipelines/:id/resume", h.Pipelines.ResumePipeline)
	auth.POST("/pipelines/:id/trigger", h.Pipelines.TriggerPipeline)
	auth.DELETE("/pipelines/:id", h.Pipelines.DeletePipeline)
	auth.GET("/pipelines/:id/history", h.Pipelines.ListExecutionHistory)
	auth.GET("/pipelines/:id/plans", h.Pipelines.ListPlans)
	return r
}
