package mcp

import (
	"context"

	"yieldpilot/internal/domain"
)

// YieldReader exposes the yield catalog.
type YieldReader interface {
	FetchTopYields(ctx context.Context, minTvlUSD float64, limit int) []domain.YieldOpportunity
}

// RecommendationReadWriter exposes list/generate operations on the
// recommendation pipeline.
type RecommendationReadWriter interface {
	ListPending(ctx context.Context, userID string) ([]domain.Recommendation, error)
	Generate(ctx context.Context, userID string, riskTolerance int) ([]domain.Recommendation, error)
}

// RebalanceSimulator exposes the advisory cost/gain estimate.
type RebalanceSimulator interface {
	Simulate(ctx context.Context, recID string) (*domain.RebalanceSimulation, error)
}
