package api

import (
	"github.com/gin-gonic/gin"

	"github.com/rev2018/placement-tracker/internal/api/middleware"
	"github.com/rev2018/placement-tracker/internal/auth"
)

// Handlers 汇总需要注册的处理器。
type Handlers struct {
	Auth         *AuthHandler
	Applications *ApplicationHandler
	Resumes      *ResumeHandler
}

// RegisterRoutes 注册 /v1 路由。
func RegisterRoutes(router *gin.Engine, authService *auth.AuthService, h Handlers) {
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/refresh", h.Auth.Refresh)
			authGroup.POST("/logout", h.Auth.Logout)
		}

		v1.GET("/statuses", h.Applications.Statuses)

		appGroup := v1.Group("/applications")
		appGroup.Use(authMiddleware)
		{
			appGroup.GET("", h.Applications.Dashboard)
			appGroup.POST("", h.Applications.Create)
			appGroup.GET("/export", h.Applications.Export)
			appGroup.GET("/:id", h.Applications.Get)
			appGroup.PUT("/:id", h.Applications.Update)
			appGroup.DELETE("/:id", h.Applications.Delete)
		}

		if h.Resumes != nil {
			resumeGroup := v1.Group("/resumes")
			resumeGroup.Use(authMiddleware)
			{
				resumeGroup.GET("", h.Resumes.List)
				resumeGroup.POST("/upload", h.Resumes.Upload)
				resumeGroup.GET("/view", h.Resumes.View)
				resumeGroup.DELETE("", h.Resumes.Delete)
			}
		}
	}
}
