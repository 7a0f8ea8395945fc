package api

import (
	"net/http"
	"strings"

	"github.com/zqily/pcplanner/internal/update"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, st StoreInterface, rs RefreshService, images ImagePather, updates *update.Checker, corsOrigins string) {
	r.Use(corsMiddleware(corsOrigins))

	handlers := NewHandlers(st, rs, images, updates)

	v1 := r.Group("/api")
	{
		// Health check (handle both GET and HEAD)
		v1.GET("/health", handlers.HealthCheck)
		v1.HEAD("/health", handlers.HealthCheck)

		// Profiles
		v1.GET("/profiles", handlers.GetProfiles)
		v1.POST("/profiles", handlers.CreateProfile)
		v1.PUT("/profiles/:id", handlers.RenameProfile)
		v1.DELETE("/profiles/:id", handlers.DeleteProfile)
		v1.POST("/profiles/:id/activate", handlers.ActivateProfile)
		v1.GET("/profiles/:id/items", handlers.GetProfileItems)

		// Items
		v1.POST("/items", handlers.CreateItem)
		v1.PUT("/items/:id", handlers.UpdateItem)
		v1.DELETE("/items/:id", handlers.DeleteItem)
		v1.GET("/items/:id/history", handlers.GetItemHistory)
		v1.POST("/items/:id/reset-history", handlers.ResetItemHistory)
		v1.GET("/items/:id/image", handlers.GetItemImage)

		// Refresh pipeline
		v1.POST("/refresh", handlers.TriggerRefresh)
		v1.POST("/refresh/cancel", handlers.CancelRefresh)
		v1.GET("/refresh/status", handlers.GetRefreshStatus)

		// Release check
		v1.GET("/update-check", handlers.CheckUpdate)
	}
}

// corsMiddleware allows the configured frontend origins
func corsMiddleware(origins string) gin.HandlerFunc {
	allowed := strings.Split(origins, ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for _, a := range allowed {
			if a == origin || a == "*" {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
				break
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
