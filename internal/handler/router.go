package handler

import (
	"payengine/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(provider SnapshotProvider, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))

	h := NewHandler(provider)

	api := r.Group("/api/v1")
	{
		api.GET("/accounts", h.ListAccounts)
		api.GET("/accounts/:client", h.GetAccount)
		api.GET("/stats", h.GetStats)
	}

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, response.CodeNotFound, "接口不存在")
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
