package mcp

import (
	"fmt"
	"strings"

	"yieldpilot/internal/domain"
)

const (
	defaultYieldLimit    = 20
	maxYieldLimit        = 100
	defaultRiskTolerance = 50
)

type yieldsTopInput struct {
	Limit     int     `json:"limit,omitempty" jsonschema:"number of pools to return, max 100"`
	MinTVLUSD float64 `json:"min_tvl_usd,omitempty" jsonschema:"minimum pool TVL in USD, default 1000000"`
}

type yieldsTopOutput struct {
	Yields []domain.YieldOpportunity `json:"yields"`
}

type recommendationsListInput struct {
	UserID string `json:"user_id" jsonschema:"user whose pending recommendations to list"`
}

type recommendationsListOutput struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
}

type recommendationsGenerateInput struct {
	UserID        string `json:"user_id" jsonschema:"user to generate recommendations for"`
	RiskTolerance int    `json:"risk_tolerance,omitempty" jsonschema:"risk tolerance 1-100, default 50"`
}

type recommendationsGenerateOutput struct {
	GeneratedCount  int                     `json:"generated_count"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

type rebalanceSimulateInput struct {
	RecommendationID string `json:"recommendation_id" jsonschema:"recommendation to simulate"`
}

type rebalanceSimulateOutput struct {
	Simulation *domain.RebalanceSimulation `json:"simulation"`
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}
	return userID, nil
}

func normalizeYieldLimit(limit int) int {
	if limit <= 0 {
		return defaultYieldLimit
	}
	if limit > maxYieldLimit {
		return maxYieldLimit
	}
	return limit
}

func normalizeRiskTolerance(tolerance int) (int, error) {
	if tolerance == 0 {
		return defaultRiskTolerance, nil
	}
	if tolerance < 1 || tolerance > 100 {
		return 0, fmt.Errorf("risk_tolerance must be between 1 and 100")
	}
	return tolerance, nil
}
