package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/garuda/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(validator *service.Validator) *gin.Engine {
	router := gin.Default()

	// Create handlers
	handlers := NewAuthHandlers(validator)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/validate", handlers.Validate)
		auth.POST("/decode", handlers.Decode)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(validator))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
