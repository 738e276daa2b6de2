package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	maxRecommendations = 5
	lowTVLThresholdUSD = 10_000_000
	promptCatalogSize  = 20
	seedAmount         = "1000"
)

// stablecoinSeeds are the symbols that qualify a pool for the new-deposit
// seed offered to users with no open positions.
var stablecoinSeeds = []string{"USDC", "USDT", "DAI"}

// ChatCompleter abstracts the LLM call so the engine can be tested without a
// live model and disabled entirely when no API key is configured.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Engine struct {
	completer         ChatCompleter
	minAPYImprovement float64
	tracer            trace.Tracer
	now               func() time.Time
}

// NewEngine builds an engine. completer may be nil, in which case only the
// deterministic path runs.
func NewEngine(completer ChatCompleter, minAPYImprovement float64, tracer trace.Tracer, now func() time.Time) *Engine {
	if minAPYImprovement <= 0 {
		minAPYImprovement = 2.0
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{completer: completer, minAPYImprovement: minAPYImprovement, tracer: tracer, now: now}
}

// Generate produces up to 5 draft recommendations for the user. The LLM path
// is advisory: any completion error or validation failure falls back to the
// deterministic ranker, so generation never fails outright.
func (e *Engine) Generate(ctx context.Context, userID string, riskTolerance int, positions []domain.Position, catalog []domain.YieldOpportunity) []domain.Recommendation {
	ctx, span := e.tracer.Start(ctx, "engine.generate")
	defer span.End()

	if e.completer != nil {
		recs, err := e.generateWithModel(ctx, userID, riskTolerance, positions, catalog)
		if err == nil {
			return recs
		}
		log.Printf("engine: model path failed, using deterministic fallback: %v", err)
	}

	return e.generateDeterministic(userID, riskTolerance, positions, catalog)
}

type modelResponse struct {
	Recommendations []modelRecommendation `json:"recommendations"`
}

type modelRecommendation struct {
	FromPoolID   *string  `json:"from_pool_id"`
	FromProtocol *string  `json:"from_protocol"`
	ToPoolID     string   `json:"to_pool_id"`
	ToProtocol   string   `json:"to_protocol"`
	Asset        string   `json:"asset"`
	Amount       string   `json:"amount"`
	CurrentAPY   *float64 `json:"current_apy"`
	TargetAPY    float64  `json:"target_apy"`
	NetGain      float64  `json:"net_gain"`
	RiskScore    int      `json:"risk_score"`
	Reason       string   `json:"reason"`
}

func (e *Engine) generateWithModel(ctx context.Context, userID string, riskTolerance int, positions []domain.Position, catalog []domain.YieldOpportunity) ([]domain.Recommendation, error) {
	raw, err := e.completer.Complete(ctx, systemPrompt, buildPrompt(riskTolerance, e.minAPYImprovement, positions, catalog))
	if err != nil {
		return nil, err
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse completion: %w", err)
	}
	if len(resp.Recommendations) == 0 {
		return nil, fmt.Errorf("completion carried no recommendations")
	}

	now := e.now().UTC()
	out := make([]domain.Recommendation, 0, maxRecommendations)
	for _, mr := range resp.Recommendations {
		if err := validateModelRecommendation(mr); err != nil {
			return nil, err
		}
		out = append(out, domain.Recommendation{
			UserID:       userID,
			FromPoolID:   mr.FromPoolID,
			FromProtocol: mr.FromProtocol,
			ToPoolID:     mr.ToPoolID,
			ToProtocol:   mr.ToProtocol,
			AssetSymbol:  mr.Asset,
			Amount:       mr.Amount,
			CurrentAPY:   mr.CurrentAPY,
			TargetAPY:    mr.TargetAPY,
			NetGainUSD:   mr.NetGain,
			RiskScore:    mr.RiskScore,
			Reason:       mr.Reason,
			Status:       domain.StatusPending,
			CreatedAt:    now,
		})
		if len(out) == maxRecommendations {
			break
		}
	}
	return out, nil
}

func validateModelRecommendation(mr modelRecommendation) error {
	if mr.ToPoolID == "" || mr.ToProtocol == "" || mr.Asset == "" || mr.Amount == "" {
		return fmt.Errorf("completion recommendation missing required fields")
	}
	if mr.RiskScore < 1 || mr.RiskScore > 10 {
		return fmt.Errorf("completion risk score %d out of range", mr.RiskScore)
	}
	if mr.TargetAPY <= 0 {
		return fmt.Errorf("completion target apy %.2f not positive", mr.TargetAPY)
	}
	return nil
}

// generateDeterministic ranks the catalog against the user's positions with
// fixed rules. It is the behavior users see when no model is configured.
func (e *Engine) generateDeterministic(userID string, riskTolerance int, positions []domain.Position, catalog []domain.YieldOpportunity) []domain.Recommendation {
	maxRisk := maxRiskFor(riskTolerance)
	now := e.now().UTC()

	if len(positions) == 0 {
		opp := firstStablecoinMatch(catalog, maxRisk)
		if opp == nil {
			return nil
		}
		risk := 2
		if opp.ILRisk == domain.ILRiskYes {
			risk = 5
		}
		return []domain.Recommendation{{
			UserID:      userID,
			ToPoolID:    opp.PoolID,
			ToProtocol:  opp.Project,
			AssetSymbol: opp.AssetSymbol,
			Amount:      seedAmount,
			TargetAPY:   opp.APYTotal,
			NetGainUSD:  1000 * opp.APYTotal / 100,
			RiskScore:   risk,
			Reason:      fmt.Sprintf("No active positions. %s on %s offers %.2f%% APY as a starting deployment.", opp.AssetSymbol, opp.Project, opp.APYTotal),
			Status:      domain.StatusPending,
			CreatedAt:   now,
		}}
	}

	var out []domain.Recommendation
	seen := map[string]bool{}

	for _, pos := range positions {
		opp := firstMatch(catalog, pos.AssetSymbol, pos.APY+e.minAPYImprovement, maxRisk)
		if opp == nil || opp.PoolID == pos.PoolID || seen[opp.PoolID+"|"+pos.AssetSymbol] {
			continue
		}
		seen[opp.PoolID+"|"+pos.AssetSymbol] = true

		balance := domain.ParseAmount(pos.Balance)
		risk := 3
		if opp.ILRisk == domain.ILRiskYes {
			risk = 6
		}
		currentAPY := pos.APY
		fromPool := pos.PoolID
		fromProtocol := pos.Protocol
		out = append(out, domain.Recommendation{
			UserID:       userID,
			FromPoolID:   &fromPool,
			FromProtocol: &fromProtocol,
			ToPoolID:     opp.PoolID,
			ToProtocol:   opp.Project,
			AssetSymbol:  pos.AssetSymbol,
			Amount:       pos.Balance,
			CurrentAPY:   &currentAPY,
			TargetAPY:    opp.APYTotal,
			NetGainUSD:   balance * (opp.APYTotal - pos.APY) / 100,
			RiskScore:    risk,
			Reason:       fmt.Sprintf("Move %s from %s (%.2f%% APY) to %s (%.2f%% APY) for an extra %.2f points.", pos.AssetSymbol, pos.Protocol, pos.APY, opp.Project, opp.APYTotal, opp.APYTotal-pos.APY),
			Status:       domain.StatusPending,
			CreatedAt:    now,
		})
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}

// maxRiskFor maps the 0..100 tolerance slider onto the 1..10 risk scale.
func maxRiskFor(tolerance int) int {
	switch {
	case tolerance > 70:
		return 10
	case tolerance > 40:
		return 6
	default:
		return 3
	}
}

// firstMatch finds the highest-APY catalog entry for the asset that clears
// both the APY floor and the caller's risk ceiling. The catalog arrives sorted
// by APY descending, so the first hit wins.
func firstMatch(catalog []domain.YieldOpportunity, asset string, minAPY float64, maxRisk int) *domain.YieldOpportunity {
	upper := strings.ToUpper(asset)
	for i := range catalog {
		opp := &catalog[i]
		if !strings.Contains(strings.ToUpper(opp.AssetSymbol), upper) {
			continue
		}
		if opp.APYTotal <= minAPY {
			continue
		}
		if candidateRisk(opp) > maxRisk {
			continue
		}
		return opp
	}
	return nil
}

// firstStablecoinMatch finds the best catalog entry holding a stablecoin under
// the risk ceiling. The seed path applies no APY floor; the improvement
// threshold only gates moves out of existing positions.
func firstStablecoinMatch(catalog []domain.YieldOpportunity, maxRisk int) *domain.YieldOpportunity {
	for i := range catalog {
		opp := &catalog[i]
		if candidateRisk(opp) > maxRisk {
			continue
		}
		symbol := strings.ToUpper(opp.AssetSymbol)
		for _, stable := range stablecoinSeeds {
			if strings.Contains(symbol, stable) {
				return opp
			}
		}
	}
	return nil
}

// candidateRisk scores an opportunity for filtering only. The recommendation
// keeps a separate, coarser score surfaced to the user.
func candidateRisk(opp *domain.YieldOpportunity) int {
	risk := 0
	if opp.ILRisk == domain.ILRiskYes {
		risk += 4
	}
	if opp.TVLUSD < lowTVLThresholdUSD {
		risk += 3
	}
	return risk
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
