package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, yields YieldReader, recs RecommendationReadWriter, rebalance RebalanceSimulator) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "yields_top",
		Description: "Get the current yield catalog: top pools ranked by APY",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in yieldsTopInput) (*mcp.CallToolResult, yieldsTopOutput, error) {
		if yields == nil {
			return nil, yieldsTopOutput{}, fmt.Errorf("yield catalog unavailable")
		}
		minTVL := in.MinTVLUSD
		if minTVL <= 0 {
			minTVL = 1_000_000
		}
		result := yields.FetchTopYields(ctx, minTVL, normalizeYieldLimit(in.Limit))
		return nil, yieldsTopOutput{Yields: result}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recommendations_list",
		Description: "List a user's pending rebalance recommendations, best net gain first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in recommendationsListInput) (*mcp.CallToolResult, recommendationsListOutput, error) {
		if recs == nil {
			return nil, recommendationsListOutput{}, fmt.Errorf("recommendation service unavailable")
		}
		userID, err := normalizeUserID(in.UserID)
		if err != nil {
			return nil, recommendationsListOutput{}, err
		}
		result, err := recs.ListPending(ctx, userID)
		if err != nil {
			return nil, recommendationsListOutput{}, err
		}
		return nil, recommendationsListOutput{Recommendations: result}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recommendations_generate",
		Description: "Generate and persist a fresh rebalance recommendation set for a user",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in recommendationsGenerateInput) (*mcp.CallToolResult, recommendationsGenerateOutput, error) {
		if recs == nil {
			return nil, recommendationsGenerateOutput{}, fmt.Errorf("recommendation service unavailable")
		}
		userID, err := normalizeUserID(in.UserID)
		if err != nil {
			return nil, recommendationsGenerateOutput{}, err
		}
		tolerance, err := normalizeRiskTolerance(in.RiskTolerance)
		if err != nil {
			return nil, recommendationsGenerateOutput{}, err
		}
		result, err := recs.Generate(ctx, userID, tolerance)
		if err != nil {
			return nil, recommendationsGenerateOutput{}, err
		}
		return nil, recommendationsGenerateOutput{GeneratedCount: len(result), Recommendations: result}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rebalance_simulate",
		Description: "Estimate costs, gains, and breakeven for one recommendation without executing it",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in rebalanceSimulateInput) (*mcp.CallToolResult, rebalanceSimulateOutput, error) {
		if rebalance == nil {
			return nil, rebalanceSimulateOutput{}, fmt.Errorf("rebalance service unavailable")
		}
		recID := strings.TrimSpace(in.RecommendationID)
		if recID == "" {
			return nil, rebalanceSimulateOutput{}, fmt.Errorf("recommendation_id is required")
		}
		sim, err := rebalance.Simulate(ctx, recID)
		if err != nil {
			return nil, rebalanceSimulateOutput{}, err
		}
		return nil, rebalanceSimulateOutput{Simulation: sim}, nil
	})
}
