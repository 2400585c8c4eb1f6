package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/inboxd/inboxd/api/handlers"
	"github.com/inboxd/inboxd/api/middleware"
	"github.com/inboxd/inboxd/internal/tracing"
	"github.com/inboxd/inboxd/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	accountsHandler := handlers.NewAccountsHandler(s.Repositories, s.SyncEngine)
	messagesHandler := handlers.NewMessagesHandler(s.Repositories, s.SyncEngine)
	draftsHandler := handlers.NewDraftsHandler(s.Repositories, s.SyncEngine)

	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-INBOXD-API-KEY",
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		accounts := api.Group("/accounts")
		{
			accounts.POST("", accountsHandler.Create)
			accounts.GET("", accountsHandler.List)
			accounts.GET("/:id", accountsHandler.Get)
			accounts.DELETE("/:id", accountsHandler.Delete)

			accounts.POST("/:id/connect", accountsHandler.Connect)
			accounts.POST("/:id/disconnect", accountsHandler.Disconnect)
			accounts.POST("/:id/sync", accountsHandler.SyncNow)
			accounts.GET("/:id/sync", accountsHandler.SyncStatus)
			accounts.GET("/:id/events", handlers.StreamEvents(s.Dispatcher))

			accounts.GET("/:id/messages", messagesHandler.List)
			accounts.GET("/:id/messages/:messageId", messagesHandler.Get)
			accounts.POST("/:id/messages/read", messagesHandler.MarkRead)
			accounts.POST("/:id/messages/delete", messagesHandler.Delete)
			accounts.POST("/:id/messages/archive", messagesHandler.Archive)

			accounts.GET("/:id/threads", messagesHandler.ListThreads)
			accounts.GET("/:id/threads/:threadId", messagesHandler.GetThread)
			accounts.GET("/:id/labels", messagesHandler.ListLabels)
			accounts.GET("/:id/search", messagesHandler.Search)

			accounts.POST("/:id/drafts", draftsHandler.Create)
			accounts.GET("/:id/drafts", draftsHandler.List)
			accounts.DELETE("/:id/drafts/:draftId", draftsHandler.Delete)
			accounts.POST("/:id/drafts/:draftId/send", draftsHandler.Send)
		}

		api.POST("/classify", handlers.Classify)
	}
}
