package service

import (
	"context"
	"fmt"
	"log"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRiskTolerance = 50
	catalogFetchLimit    = 50
	catalogMinTVLUSD     = 1_000_000
)

type RecommendationRepository interface {
	InsertPending(ctx context.Context, recs []domain.Recommendation) ([]domain.Recommendation, error)
	ListPending(ctx context.Context, userID string) ([]domain.Recommendation, error)
	DeletePending(ctx context.Context, userID string) (int64, error)
}

type PositionRepository interface {
	GetPositions(ctx context.Context, userID string) ([]domain.Position, error)
}

type YieldCatalog interface {
	FetchTopYields(ctx context.Context, minTvlUSD float64, limit int) []domain.YieldOpportunity
}

type RecommendationEngine interface {
	Generate(ctx context.Context, userID string, riskTolerance int, positions []domain.Position, catalog []domain.YieldOpportunity) []domain.Recommendation
}

type RecommendationService struct {
	tracer       trace.Tracer
	recRepo      RecommendationRepository
	positionRepo PositionRepository
	catalog      YieldCatalog
	engine       RecommendationEngine
	minTVLUSD    float64
	catalogLimit int
}

func NewRecommendationService(
	tracer trace.Tracer,
	recRepo RecommendationRepository,
	positionRepo PositionRepository,
	catalog YieldCatalog,
	engine RecommendationEngine,
	minTVLUSD float64,
	catalogLimit int,
) *RecommendationService {
	if minTVLUSD <= 0 {
		minTVLUSD = catalogMinTVLUSD
	}
	if catalogLimit <= 0 {
		catalogLimit = catalogFetchLimit
	}
	return &RecommendationService{
		tracer:       tracer,
		recRepo:      recRepo,
		positionRepo: positionRepo,
		catalog:      catalog,
		engine:       engine,
		minTVLUSD:    minTVLUSD,
		catalogLimit: catalogLimit,
	}
}

// Generate replaces the user's pending recommendation set with a freshly
// computed one. Non-pending records are untouched.
func (s *RecommendationService) Generate(ctx context.Context, userID string, riskTolerance int) ([]domain.Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation-service.generate")
	defer span.End()

	// 0 is a valid, maximally conservative tolerance. Only values outside
	// the 0-100 range (including the absent-field sentinel -1) default.
	if riskTolerance < 0 || riskTolerance > 100 {
		riskTolerance = defaultRiskTolerance
	}

	positions, err := s.positionRepo.GetPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	// An empty catalog is "no data right now", not a failure. The engine
	// produces zero drafts and the caller sees an empty set.
	catalog := s.catalog.FetchTopYields(ctx, s.minTVLUSD, s.catalogLimit)

	drafts := s.engine.Generate(ctx, userID, riskTolerance, positions, catalog)

	deleted, err := s.recRepo.DeletePending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("clear pending recommendations: %w", err)
	}
	if deleted > 0 {
		log.Printf("recommendation service: replaced %d pending recommendations for user %s", deleted, userID)
	}

	if len(drafts) == 0 {
		return []domain.Recommendation{}, nil
	}
	return s.recRepo.InsertPending(ctx, drafts)
}

// ListPending returns the user's open recommendations, best net gain first.
func (s *RecommendationService) ListPending(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation-service.list-pending")
	defer span.End()

	return s.recRepo.ListPending(ctx, userID)
}
