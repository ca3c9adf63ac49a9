package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/dsnworks/config"
	"github.com/weiwangfds/dsnworks/internal/handler"
	"github.com/weiwangfds/dsnworks/internal/metrics"
	"github.com/weiwangfds/dsnworks/internal/middleware"
	workservice "github.com/weiwangfds/dsnworks/internal/service/work"
	"gorm.io/gorm"
)

// Router 路由配置
type Router struct {
	engine *gin.Engine
}

// NewRouter 创建路由实例，所有协作方由调用方构造后注入
func NewRouter(cfg *config.Config, db *gorm.DB, workService workservice.WorkService, verifier *middleware.TokenVerifier) *Router {
	engine := gin.New()

	workHandler := handler.NewWorkHandler(workService, cfg.Upload.MaxFileSize)
	dashboardHandler := handler.NewDashboardHandler(workService)
	uploadHandler := handler.NewUploadHandler(workService, cfg.Upload.MaxFileSize)

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(nil))
	engine.Use(middleware.AccessLog())
	engine.Use(middleware.Lang())
	if cfg.Metrics.Enabled {
		engine.Use(middleware.Metrics())
	}

	origins := cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language", middleware.TraceIDKey},
		ExposeHeaders:    []string{"Content-Length", middleware.TraceIDKey},
		AllowCredentials: !allowsAll(origins),
		MaxAge:           12 * time.Hour,
	}))

	// 健康检查
	engine.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, metrics.Handler())
	}

	auth := middleware.Auth(verifier)

	catalog := engine.Group("/catalog")
	{
		catalog.GET("/modules", handler.ListModules)
		catalog.GET("/teachers", handler.ListTeachers)
	}

	engine.POST("/uploads", auth, uploadHandler.UploadFile)

	works := engine.Group("/works")
	{
		works.GET("", workHandler.ListWorks)
		works.GET("/:id", workHandler.GetWork)
		works.POST("/:id/view", workHandler.IncrementView)
		works.POST("/:id/download", workHandler.DownloadWork)

		works.POST("", auth, workHandler.CreateWork)
		works.PUT("/:id", auth, workHandler.UpdateWork)
		works.DELETE("/:id", auth, workHandler.DeleteWork)
	}

	dashboard := engine.Group("/dashboard", auth)
	{
		dashboard.GET("", dashboardHandler.GetDashboard)
		dashboard.GET("/works/:id", dashboardHandler.GetOwnedWork)
	}

	return &Router{
		engine: engine,
	}
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// 允许任意来源时不能同时携带凭证
func allowsAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
