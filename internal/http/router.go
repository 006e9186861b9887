package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/lms-progress/internal/http/handlers"
	httpMW "github.com/yungbote/lms-progress/internal/http/middleware"
	"github.com/yungbote/lms-progress/internal/observability"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
	Log         *logger.Logger
	Metrics     *observability.Metrics

	MigrationHandler *httpH.MigrationHandler
	ActionHandler    *httpH.ActionHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	service := cfg.ServiceName
	if service == "" {
		service = "lms-progress"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Migration
		if cfg.MigrationHandler != nil {
			api.POST("/migration/run", cfg.MigrationHandler.Run)
			api.GET("/migration/status", cfg.MigrationHandler.Status)
			api.POST("/migration/clear", cfg.MigrationHandler.Clear)
			api.POST("/migration/verify", cfg.MigrationHandler.StartVerification)
			api.GET("/migration/verify", cfg.MigrationHandler.Verification)
		}

		// Scheduled actions
		if cfg.ActionHandler != nil {
			api.GET("/actions", cfg.ActionHandler.List)
			api.GET("/actions/:id/logs", cfg.ActionHandler.Logs)
		}
	}

	return r
}
