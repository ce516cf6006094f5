package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rvlgh/ragserve/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Files     *FileHandler
	AI        *AIHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", middleware.RateLimit(time.Second), deps.Auth.Register)
	api.POST("/auth/login", middleware.RateLimit(time.Second), deps.Auth.Login)
	api.POST("/auth/logout", deps.Auth.Logout)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/documents", deps.Documents.Create)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.PUT("/documents/:id", deps.Documents.Update)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.POST("/files/upload", deps.Files.Upload)

	authGroup.GET("/search", deps.AI.Search)
	authGroup.POST("/chat", deps.AI.Chat)
}
