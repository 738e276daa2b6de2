package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a user's current deployment of capital in a yield protocol.
// Positions are refreshed by an external wallet scanner and are read-only here.
type Position struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	WalletRef   string  `json:"wallet_ref"`
	Protocol    string  `json:"protocol"`
	PoolID      string  `json:"pool_id"`
	AssetSymbol string  `json:"asset"`
	Balance     string  `json:"balance"`
	APY         float64 `json:"apy"`
	TVLUSD      float64 `json:"tvl_usd"`
}

// YieldOpportunity is one entry of the external yield catalog. Fetched fresh
// per generation, never persisted verbatim.
type YieldOpportunity struct {
	PoolID      string  `json:"pool"`
	Chain       string  `json:"chain"`
	Project     string  `json:"project"`
	AssetSymbol string  `json:"symbol"`
	TVLUSD      float64 `json:"tvlUsd"`
	APYTotal    float64 `json:"apy"`
	APYBase     float64 `json:"apyBase"`
	APYReward   float64 `json:"apyReward"`
	ILRisk      string  `json:"ilRisk"`
	Exposure    string  `json:"exposure"`
}

const (
	ILRiskYes     = "yes"
	ILRiskNo      = "no"
	ILRiskUnknown = "unknown"
)

type RecommendationStatus string

const (
	StatusPending        RecommendationStatus = "pending"
	StatusExecuted       RecommendationStatus = "executed"
	StatusManualRequired RecommendationStatus = "manual_required"
	StatusRejected       RecommendationStatus = "rejected"
	StatusCompleted      RecommendationStatus = "completed"
)

var statusTransitions = map[RecommendationStatus][]RecommendationStatus{
	StatusPending:  {StatusExecuted, StatusManualRequired, StatusRejected},
	StatusExecuted: {StatusCompleted},
}

func (s RecommendationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusManualRequired, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
// manual_required, rejected, and completed are terminal.
func (s RecommendationStatus) CanTransitionTo(next RecommendationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Recommendation is the central entity of the rebalancing pipeline. A
// non-pending recommendation is immutable except for the status, executed_at,
// and shift_id fields written by the executor.
type Recommendation struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	FromPoolID   *string              `json:"from_pool_id"`
	FromProtocol *string              `json:"from_protocol"`
	ToPoolID     string               `json:"to_pool_id"`
	ToProtocol   string               `json:"to_protocol"`
	AssetSymbol  string               `json:"asset"`
	Amount       string               `json:"amount"`
	CurrentAPY   *float64             `json:"current_apy"`
	TargetAPY    float64              `json:"target_apy"`
	NetGainUSD   float64              `json:"net_gain"`
	RiskScore    int                  `json:"risk_score"`
	Reason       string               `json:"reason"`
	Status       RecommendationStatus `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
	ExecutedAt   *time.Time           `json:"executed_at,omitempty"`
	ShiftID      string               `json:"shift_id,omitempty"`
}

// RebalanceHistoryEntry is the append-only audit record of one execution.
// MonthBucket is the first day of the execution month (YYYY-MM-01) and drives
// the starter-tier monthly quota.
type RebalanceHistoryEntry struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RecommendationID string    `json:"recommendation_id"`
	ShiftID          string    `json:"shift_id"`
	FromProtocol     *string   `json:"from_protocol"`
	ToProtocol       string    `json:"to_protocol"`
	AssetSymbol      string    `json:"asset"`
	Amount           string    `json:"amount"`
	Status           string    `json:"status"`
	MonthBucket      string    `json:"month_bucket"`
	CreatedAt        time.Time `json:"created_at"`
}

// ParseAmount converts an amount string to a float for estimate math. Amounts
// travel as strings end to end to preserve exact decimal values; malformed
// input reads as zero.
func ParseAmount(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ShiftQuote is a time-bounded, rate-locked exchange offer from the swap
// gateway.
type ShiftQuote struct {
	ID            string `json:"id"`
	DepositCoin   string `json:"depositCoin"`
	SettleCoin    string `json:"settleCoin"`
	DepositAmount string `json:"depositAmount"`
	SettleAmount  string `json:"settleAmount"`
	Rate          string `json:"rate"`
	ExpiresAt     string `json:"expiresAt"`
}

// ShiftOrder is the gateway's view of an exchange transaction. The pipeline
// stores only its ID (as shift_id); everything else is fetched on demand.
type ShiftOrder struct {
	ID             string `json:"id"`
	DepositAddress string `json:"depositAddress"`
	DepositCoin    string `json:"depositCoin"`
	SettleCoin     string `json:"settleCoin"`
	DepositAmount  string `json:"depositAmount"`
	SettleAmount   string `json:"settleAmount"`
	SettleAddress  string `json:"settleAddress"`
	Status         string `json:"status"`
}

// ShiftStatusSettled is the gateway status that marks final settlement.
const ShiftStatusSettled = "settled"

type SubscriptionTier string

const (
	TierFree          SubscriptionTier = "free"
	TierStarter       SubscriptionTier = "starter"
	TierProfessional  SubscriptionTier = "professional"
	TierInstitutional SubscriptionTier = "institutional"
)

var tierRank = map[SubscriptionTier]int{
	TierFree:          0,
	TierStarter:       1,
	TierProfessional:  2,
	TierInstitutional: 3,
}

func (t SubscriptionTier) IsValid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t sits at or above min in the tier hierarchy.
// Unknown tiers rank as free.
func (t SubscriptionTier) AtLeast(min SubscriptionTier) bool {
	return tierRank[t] >= tierRank[min]
}

// User is the resolved caller identity: the external identity provider maps an
// opaque token to this record.
type User struct {
	ID            string           `json:"id"`
	Email         string           `json:"email,omitempty"`
	Tier          SubscriptionTier `json:"subscription_tier"`
	WalletAddress string           `json:"wallet_address,omitempty"`
}

// Upstream failures and manual-required outcomes are surfaced as result kinds
// rather than errors, so gated operations always return a structured result.
var (
	ErrRecommendationNotFound = fmt.Errorf("recommendation not found")
	ErrAlreadyProcessed       = fmt.Errorf("recommendation already processed")
)

// EntitlementError reports a failed tier or quota gate with enough detail for
// a client to render an upgrade prompt.
type EntitlementError struct {
	RequiredTier SubscriptionTier
	CurrentTier  SubscriptionTier
	Used         int
	Limit        int
}

func (e *EntitlementError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("monthly rebalance limit reached: used %d of %d", e.Used, e.Limit)
	}
	return fmt.Sprintf("requires %s plan, current plan is %s", e.RequiredTier, e.CurrentTier)
}

type ExecuteErrorKind string

const (
	ExecuteErrNone           ExecuteErrorKind = ""
	ExecuteErrNotFound       ExecuteErrorKind = "not_found"
	ExecuteErrAlreadyDone    ExecuteErrorKind = "already_processed"
	ExecuteErrManualRequired ExecuteErrorKind = "manual_required"
	ExecuteErrUpstream       ExecuteErrorKind = "upstream_unavailable"
)

// ExecuteResult is the structured outcome of one execution attempt.
type ExecuteResult struct {
	RecommendationID string           `json:"id"`
	Success          bool             `json:"success"`
	Order            *ShiftOrder      `json:"order,omitempty"`
	ErrorKind        ExecuteErrorKind `json:"error_kind,omitempty"`
	Message          string           `json:"error,omitempty"`
}

// BatchExecuteResult aggregates per-ID outcomes of a sequential batch run.
type BatchExecuteResult struct {
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Results    []ExecuteResult `json:"results"`
}

// RebalanceSimulation is the advisory cost/gain estimate for one
// recommendation. BreakevenDays is -1 when the move never pays back.
type RebalanceSimulation struct {
	EstimatedCostUSD    float64 `json:"estimated_cost"`
	EstimatedAnnualGain float64 `json:"estimated_gain_annual"`
	EstimatedDailyGain  float64 `json:"estimated_gain_daily"`
	BreakevenDays       int     `json:"breakeven_days"`
}
