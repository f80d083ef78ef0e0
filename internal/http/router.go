// README: HTTP router registration (gin).
package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"courio/internal/http/handlers"
	"courio/internal/http/middleware"
	"courio/internal/modules/dispatch"
	"courio/internal/modules/order"
)

func NewRouter(orderService *order.Service, webhook *dispatch.Webhook, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	orderHandler := handlers.NewOrderHandler(orderService)
	api := r.Group("/api")
	{
		api.POST("/orders", orderHandler.Create)
		api.GET("/orders", orderHandler.List)
		api.GET("/orders/active", orderHandler.Active)
		api.GET("/orders/stats", orderHandler.Stats)
		api.GET("/orders/search", orderHandler.Search)
		api.GET("/orders/:id", orderHandler.Get)
		api.PATCH("/orders/:id", orderHandler.Update)
		api.DELETE("/orders/:id", orderHandler.Delete)
		api.POST("/orders/:id/status", orderHandler.UpdateStatus)
		api.POST("/orders/:id/assign", orderHandler.AssignDriver)
		api.POST("/orders/:id/cancel", orderHandler.Cancel)
	}

	webhookHandler := handlers.NewWebhookHandler(webhook)
	r.POST("/api/webhooks/dispatch", webhookHandler.Receive)

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	return r
}
