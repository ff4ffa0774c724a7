package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/search/application"
	"github.com/davicafu/pujalab/internal/search/domain"
	"github.com/davicafu/pujalab/pkg/utils"
)

type SearchHandler struct {
	projector *application.Projector
	log       *zap.Logger
}

func NewSearchHandler(projector *application.Projector, log *zap.Logger) *SearchHandler {
	return &SearchHandler{projector: projector, log: log}
}

// SearchItems endpoint GET /api/search
func (h *SearchHandler) SearchItems(c *gin.Context) {
	pageNumber, err := intQuery(c, "pageNumber")
	if err != nil {
		utils.SendBadRequest(c, "invalid pageNumber")
		return
	}
	pageSize, err := intQuery(c, "pageSize")
	if err != nil {
		utils.SendBadRequest(c, "invalid pageSize")
		return
	}

	result, err := h.projector.Search(c.Request.Context(), domain.SearchParams{
		SearchTerm: c.Query("searchTerm"),
		OrderBy:    c.Query("orderBy"),
		FilterBy:   c.Query("filterBy"),
		Seller:     c.Query("seller"),
		Winner:     c.Query("winner"),
		PageNumber: pageNumber,
		PageSize:   pageSize,
	})
	if err != nil {
		h.log.Error("Search failed", zap.Error(err))
		utils.SendInternalServerError(c, "search failed")
		return
	}
	utils.SendSuccess(c, http.StatusOK, result)
}

// intQuery devuelve 0 si el parámetro no viene.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
