package handler

import (
	"context"

	"yieldpilot/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// IdentityResolver maps an opaque bearer token to a user record. The identity
// provider itself is external; the API only consumes resolved identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*domain.User, error)
}

type RecommendationService interface {
	Generate(ctx context.Context, userID string, riskTolerance int) ([]domain.Recommendation, error)
	ListPending(ctx context.Context, userID string) ([]domain.Recommendation, error)
}

type RebalanceService interface {
	Execute(ctx context.Context, recID, settleAddress string) domain.ExecuteResult
	BatchExecute(ctx context.Context, recIDs []string, settleAddress string) domain.BatchExecuteResult
	Simulate(ctx context.Context, recID string) (*domain.RebalanceSimulation, error)
}

type EntitlementService interface {
	CheckView(ctx context.Context, user domain.User) error
	CheckExecute(ctx context.Context, user domain.User) error
	CheckBatchExecute(ctx context.Context, user domain.User) error
}

type YieldCatalog interface {
	FetchTopYields(ctx context.Context, minTvlUSD float64, limit int) []domain.YieldOpportunity
}

type Handler struct {
	tracer         trace.Tracer
	identity       IdentityResolver
	recommendation RecommendationService
	rebalance      RebalanceService
	entitlement    EntitlementService
	catalog        YieldCatalog
}

func New(
	tracer trace.Tracer,
	identity IdentityResolver,
	recommendation RecommendationService,
	rebalance RebalanceService,
	entitlement EntitlementService,
	catalog YieldCatalog,
) *Handler {
	return &Handler{
		tracer:         tracer,
		identity:       identity,
		recommendation: recommendation,
		rebalance:      rebalance,
		entitlement:    entitlement,
		catalog:        catalog,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/yields", h.GetYields)

	authed := r.Group("/api", h.RequireAuth())
	authed.GET("/recommendations", h.ListRecommendations)
	authed.POST("/recommendations/generate", h.GenerateRecommendations)
	authed.POST("/recommendations/:id/execute", h.ExecuteRecommendation)
	authed.POST("/recommendations/:id/simulate", h.SimulateRecommendation)
	authed.POST("/recommendations/batch-execute", h.BatchExecuteRecommendations)
}

// Health godoc
// @Summary      Service health check
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
