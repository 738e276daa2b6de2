package handler

import (
	"net/http"

	"yieldpilot/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RiskTolerance is a pointer so an explicit 0 (most conservative) is
// distinguishable from an absent field.
type generateRequest struct {
	RiskTolerance *int `json:"risk_tolerance"`
}

type executeRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type batchExecuteRequest struct {
	RecommendationIDs []string `json:"recommendation_ids"`
	WalletAddress     string   `json:"wallet_address"`
}

// ListRecommendations godoc
// @Summary      List pending rebalance recommendations
// @Description  Returns the caller's pending recommendations, best net gain first
// @Tags         recommendations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/recommendations [get]
func (h *Handler) ListRecommendations(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-recommendations")
	defer span.End()

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if err := h.entitlement.CheckView(ctx, user); err != nil {
		denyEntitlement(c, err)
		return
	}

	recs, err := h.recommendation.ListPending(ctx, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// GenerateRecommendations godoc
// @Summary      Generate a fresh recommendation set
// @Description  Replaces the caller's pending recommendations with newly computed ones
// @Tags         recommendations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body  generateRequest  false  "Risk tolerance 1-100"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]string
// @Router       /api/recommendations/generate [post]
func (h *Handler) GenerateRecommendations(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.generate-recommendations")
	defer span.End()

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if err := h.entitlement.CheckView(ctx, user); err != nil {
		denyEntitlement(c, err)
		return
	}

	var req generateRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	tolerance := -1
	if req.RiskTolerance != nil {
		tolerance = *req.RiskTolerance
	}
	span.SetAttributes(attribute.Int("risk_tolerance", tolerance))

	recs, err := h.recommendation.Generate(ctx, user.ID, tolerance)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// ExecuteRecommendation godoc
// @Summary      Execute one recommendation via the swap gateway
// @Tags         recommendations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string          true  "Recommendation ID"
// @Param        request  body  executeRequest  true  "Settlement wallet address"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Router       /api/recommendations/{id}/execute [post]
func (h *Handler) ExecuteRecommendation(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.execute-recommendation")
	defer span.End()

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if err := h.entitlement.CheckExecute(ctx, user); err != nil {
		denyEntitlement(c, err)
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WalletAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet_address is required"})
		return
	}

	result := h.rebalance.Execute(ctx, c.Param("id"), req.WalletAddress)
	c.JSON(executeStatusCode(result), result)
}

// SimulateRecommendation godoc
// @Summary      Simulate a recommendation without executing it
// @Tags         recommendations
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Recommendation ID"
// @Success      200  {object}  domain.RebalanceSimulation
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/recommendations/{id}/simulate [post]
func (h *Handler) SimulateRecommendation(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.simulate-recommendation")
	defer span.End()

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if err := h.entitlement.CheckView(ctx, user); err != nil {
		denyEntitlement(c, err)
		return
	}

	sim, err := h.rebalance.Simulate(ctx, c.Param("id"))
	if err != nil {
		if err == domain.ErrRecommendationNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sim)
}

// BatchExecuteRecommendations godoc
// @Summary      Execute several recommendations sequentially
// @Tags         recommendations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body  batchExecuteRequest  true  "Recommendation IDs and settlement wallet"
// @Success      200  {object}  domain.BatchExecuteResult
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/recommendations/batch-execute [post]
func (h *Handler) BatchExecuteRecommendations(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.batch-execute-recommendations")
	defer span.End()

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if err := h.entitlement.CheckBatchExecute(ctx, user); err != nil {
		denyEntitlement(c, err)
		return
	}

	var req batchExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.RecommendationIDs) == 0 || req.WalletAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recommendation_ids and wallet_address are required"})
		return
	}
	span.SetAttributes(attribute.Int("batch_size", len(req.RecommendationIDs)))

	result := h.rebalance.BatchExecute(ctx, req.RecommendationIDs, req.WalletAddress)
	c.JSON(http.StatusOK, result)
}

func executeStatusCode(result domain.ExecuteResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case domain.ExecuteErrNotFound:
		return http.StatusNotFound
	case domain.ExecuteErrAlreadyDone:
		return http.StatusConflict
	case domain.ExecuteErrManualRequired:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
