package engine

import (
	"fmt"
	"strings"

	"yieldpilot/internal/domain"
)

const systemPrompt = `You are a DeFi yield strategist. You analyze a user's positions against current pool yields and propose rebalances. Only return valid JSON, no prose and no markdown.`

func buildPrompt(riskTolerance int, minImprovement float64, positions []domain.Position, catalog []domain.YieldOpportunity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Risk tolerance: %d/100.\n\n", riskTolerance)

	if len(positions) == 0 {
		b.WriteString("Current positions: none.\n")
	} else {
		b.WriteString("Current positions:\n")
		for _, p := range positions {
			fmt.Fprintf(&b, "- %s in %s: $%s @ %.2f%% APY (pool %s)\n", p.AssetSymbol, p.Protocol, p.Balance, p.APY, p.PoolID)
		}
	}

	b.WriteString("\nTop yield opportunities:\n")
	limit := len(catalog)
	if limit > promptCatalogSize {
		limit = promptCatalogSize
	}
	for _, opp := range catalog[:limit] {
		fmt.Fprintf(&b, "- pool %s: %s on %s (%s), %.2f%% APY, $%.0f TVL, IL risk %s\n",
			opp.PoolID, opp.AssetSymbol, opp.Project, opp.Chain, opp.APYTotal, opp.TVLUSD, opp.ILRisk)
	}

	fmt.Fprintf(&b, `
Rules:
- Recommend at most %d rebalances.
- Only recommend a move when the APY improvement exceeds %.1f percentage points.
- For a user with no positions, suggest stablecoin entries with amount "1000" and improvement over %.1f points.
- risk_score is an integer from 1 (safest) to 10 and must respect the user's tolerance.
- net_gain is the estimated extra USD per year: amount * apy_difference / 100.

Respond with exactly this JSON shape:
{"recommendations": [{"from_pool_id": null, "from_protocol": null, "to_pool_id": "", "to_protocol": "", "asset": "", "amount": "", "current_apy": null, "target_apy": 0, "net_gain": 0, "risk_score": 1, "reason": ""}]}
`, maxRecommendations, minImprovement, minImprovement/2)

	return b.String()
}
