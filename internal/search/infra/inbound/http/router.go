package http

import "github.com/gin-gonic/gin"

func RegisterSearchRoutes(r *gin.Engine, handler *SearchHandler) {
	r.GET("/api/search", handler.SearchItems)
}
