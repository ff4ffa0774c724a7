package http

import "github.com/gin-gonic/gin"

func RegisterBidRoutes(r *gin.Engine, handler *BidHandler) {
	bids := r.Group("/api/bids")
	{
		bids.POST("", handler.PlaceBid)
		bids.GET("/:auctionId", handler.BidsForAuction)
	}
}
