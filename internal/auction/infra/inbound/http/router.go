package http

import "github.com/gin-gonic/gin"

func RegisterAuctionRoutes(r *gin.Engine, handler *AuctionHandler) {
	auctions := r.Group("/api/auctions")
	{
		auctions.POST("", handler.CreateAuction)
		auctions.GET("", handler.ListUpdated)
		auctions.GET("/:id", handler.GetAuction)
		auctions.PUT("/:id", handler.UpdateAuction)
	}

	// Consulta de sincronización para las proyecciones.
	r.GET("/items", handler.ListUpdated)
}
