package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	yieldsDefaultLimit = 50
	yieldsMaxLimit     = 200
	yieldsMinTVLUSD    = 1_000_000
)

// GetYields godoc
// @Summary      Top yield opportunities
// @Description  Returns the current catalog of pools ranked by APY
// @Tags         yields
// @Produce      json
// @Param        limit  query  int  false  "Number of pools (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/yields [get]
func (h *Handler) GetYields(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-yields")
	defer span.End()

	limit := yieldsDefaultLimit
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 || n > yieldsMaxLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	pools := h.catalog.FetchTopYields(ctx, yieldsMinTVLUSD, limit)
	c.JSON(http.StatusOK, gin.H{"yields": pools, "count": len(pools)})
}
