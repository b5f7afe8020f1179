package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go_stocksync/controllers"
	"go_stocksync/services/sync"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, orchestrator *sync.Orchestrator, store sync.Store) {
	syncController := controllers.NewSyncController(orchestrator, store)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		syncGroup := api.Group("/sync")
		{
			syncGroup.GET("/status", syncController.GetSyncStatus)
			syncGroup.GET("/errors", syncController.GetSyncErrors)
			syncGroup.POST("/:dataType", syncController.TriggerSync)
		}
	}
}
