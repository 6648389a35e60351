package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/todo-api/internal/auth"
	"github.com/yukikurage/todo-api/internal/middleware"
	"github.com/yukikurage/todo-api/internal/services"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	AuthService  *services.AuthService
	TaskService  *services.TaskService
	StatsService *services.StatsService
	Verifier     auth.TokenVerifier
}

// RegisterRoutes mounts /health and the /api routes on r.
func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	authHandler := NewAuthHandler(deps.AuthService)
	taskHandler := NewTaskHandler(deps.TaskService, deps.StatsService)
	requireAuth := middleware.RequireAuth(deps.Verifier)
	requireTask := middleware.RequireTaskAccess(deps.TaskService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Todo API is running",
		})
	})

	api := r.Group("/api")
	{
		// Account routes; registration is public
		accounts := api.Group("/accounts")
		{
			accounts.POST("", authHandler.Register)
			accounts.GET("/me", requireAuth, authHandler.GetCurrentUser)
			accounts.DELETE("/me", requireAuth, authHandler.DeleteCurrentUser)
		}

		// Token routes (public)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/stats", taskHandler.GetStats)
			tasks.PATCH("/reorder", taskHandler.ReorderTasks)
			tasks.POST("/generate", taskHandler.GenerateTasks)
			tasks.GET("/:id", requireTask, taskHandler.GetTask)
			tasks.PATCH("/:id", requireTask, taskHandler.UpdateTask)
			tasks.PUT("/:id", requireTask, taskHandler.ReplaceTask)
			tasks.DELETE("/:id", requireTask, taskHandler.DeleteTask)
		}
	}
}
