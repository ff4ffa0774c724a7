package http

import (
	"github.com/gin-gonic/gin"

	"github.com/davicafu/pujalab/internal/notification/infra/websocket"
)

// RegisterNotificationRoutes expone el websocket en GET /notifications.
func RegisterNotificationRoutes(r *gin.Engine, hub *websocket.Hub) {
	r.GET("/notifications", func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request)
	})
}
