package handler

import (
	"coldvault-go/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter 创建路由引擎并注册所有 API。
func NewRouter(log *zap.SugaredLogger, archives *ArchiveHandler, conns *ConnectionHandler, maint *MaintenanceHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery())

	apiV1 := r.Group("/api/v1")
	{
		a := apiV1.Group("/archives")
		{
			a.POST("", archives.Create)
			a.GET("", archives.List)
			a.GET("/:id", archives.Get)
			a.DELETE("/:id", archives.Delete)
			a.POST("/:id/cache", archives.RequestCache)
			a.GET("/:id/release", archives.CanRelease)
			a.POST("/:id/release", archives.Release)
		}

		c := apiV1.Group("/connections")
		{
			c.POST("", conns.Create)
			c.GET("", conns.List)
			c.POST("/:id/validate", conns.Validate)
			c.POST("/:id/activate", conns.Activate)
			c.POST("/:id/deactivate", conns.Deactivate)
			c.DELETE("/:id", conns.Delete)
		}

		m := apiV1.Group("/maintenance")
		{
			m.POST("/dispatch", maint.Dispatch)
			m.POST("/reconcile", maint.Reconcile)
			m.POST("/assemble", maint.Assemble)
			m.POST("/sync-local", maint.SyncLocal)
		}
	}
	return r
}
