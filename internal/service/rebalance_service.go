package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultGasCostUSD    = 50
	defaultBatchDelay    = time.Second
	defaultBreakevenDays = 30
)

type RebalanceRecommendationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Recommendation, error)
	MarkExecuted(ctx context.Context, id string, executedAt time.Time, shiftID string) (bool, error)
	MarkManualRequired(ctx context.Context, id string) (bool, error)
	CompleteByShiftID(ctx context.Context, shiftID string) error
}

type RebalanceHistoryRepository interface {
	Insert(ctx context.Context, entry domain.RebalanceHistoryEntry) (*domain.RebalanceHistoryEntry, error)
	UpdateStatusByShiftID(ctx context.Context, shiftID, status string) error
}

type SwapGateway interface {
	GetQuote(ctx context.Context, fromAsset, toAsset, amount string) *domain.ShiftQuote
	CreateOrder(ctx context.Context, quoteID, settleAddress string) *domain.ShiftOrder
	GetOrderStatus(ctx context.Context, orderID string) *domain.ShiftOrder
}

// RebalanceService drives recommendation execution through the swap gateway
// and keeps the audit history in sync with gateway order status.
type RebalanceService struct {
	tracer      trace.Tracer
	recRepo     RebalanceRecommendationRepository
	historyRepo RebalanceHistoryRepository
	gateway     SwapGateway
	gasCostUSD  float64
	batchDelay  time.Duration
	now         func() time.Time
	sleep       func(time.Duration)
}

func NewRebalanceService(
	tracer trace.Tracer,
	recRepo RebalanceRecommendationRepository,
	historyRepo RebalanceHistoryRepository,
	gateway SwapGateway,
	gasCostUSD float64,
	batchDelay time.Duration,
	now func() time.Time,
) *RebalanceService {
	if gasCostUSD <= 0 {
		gasCostUSD = defaultGasCostUSD
	}
	if batchDelay <= 0 {
		batchDelay = defaultBatchDelay
	}
	if now == nil {
		now = time.Now
	}
	return &RebalanceService{
		tracer:      tracer,
		recRepo:     recRepo,
		historyRepo: historyRepo,
		gateway:     gateway,
		gasCostUSD:  gasCostUSD,
		batchDelay:  batchDelay,
		now:         now,
		sleep:       time.Sleep,
	}
}

// Execute attempts one rebalance. Failures come back as structured results,
// not errors: the pipeline distinguishes caller mistakes (not found, already
// processed) from upstream unavailability and manual-required moves.
func (s *RebalanceService) Execute(ctx context.Context, recID, settleAddress string) domain.ExecuteResult {
	ctx, span := s.tracer.Start(ctx, "rebalance-service.execute")
	defer span.End()

	rec, err := s.recRepo.GetByID(ctx, recID)
	if err != nil {
		if errors.Is(err, domain.ErrRecommendationNotFound) {
			return failure(recID, domain.ExecuteErrNotFound, "recommendation not found")
		}
		return failure(recID, domain.ExecuteErrUpstream, err.Error())
	}
	if rec.Status != domain.StatusPending {
		return failure(recID, domain.ExecuteErrAlreadyDone, "recommendation already processed")
	}

	// A same-asset move between protocols has no swap leg. The gateway cannot
	// help; the user withdraws and re-deposits on their own.
	if rec.FromProtocol != nil && *rec.FromProtocol != "" {
		if ok, err := s.recRepo.MarkManualRequired(ctx, recID); err != nil || !ok {
			log.Printf("rebalance: mark manual_required for %s: ok=%t err=%v", recID, ok, err)
		}
		return failure(recID, domain.ExecuteErrManualRequired,
			"manual rebalancing required: same asset, different protocol; withdraw and re-deposit manually")
	}

	quote := s.gateway.GetQuote(ctx, rec.AssetSymbol, rec.AssetSymbol, rec.Amount)
	if quote == nil {
		return failure(recID, domain.ExecuteErrUpstream, "failed to get swap quote")
	}
	order := s.gateway.CreateOrder(ctx, quote.ID, settleAddress)
	if order == nil {
		return failure(recID, domain.ExecuteErrUpstream, "failed to create swap order")
	}

	executedAt := s.now().UTC()
	ok, err := s.recRepo.MarkExecuted(ctx, recID, executedAt, order.ID)
	if err != nil {
		return failure(recID, domain.ExecuteErrUpstream, fmt.Sprintf("record execution: %v", err))
	}
	if !ok {
		// Lost the race after the order was already placed. The order stands;
		// the monitor will still track it through the history entry below.
		log.Printf("rebalance: recommendation %s transitioned concurrently, order %s already placed", recID, order.ID)
		return failure(recID, domain.ExecuteErrAlreadyDone, "recommendation already processed")
	}

	if _, err := s.historyRepo.Insert(ctx, domain.RebalanceHistoryEntry{
		UserID:           rec.UserID,
		RecommendationID: recID,
		ShiftID:          order.ID,
		FromProtocol:     rec.FromProtocol,
		ToProtocol:       rec.ToProtocol,
		AssetSymbol:      rec.AssetSymbol,
		Amount:           rec.Amount,
		Status:           "pending",
		MonthBucket:      MonthBucket(executedAt),
	}); err != nil {
		log.Printf("rebalance: history insert for %s: %v", recID, err)
	}

	return domain.ExecuteResult{RecommendationID: recID, Success: true, Order: order}
}

// BatchExecute runs each recommendation in order with a fixed delay between
// gateway calls. One failure never aborts the rest of the batch.
func (s *RebalanceService) BatchExecute(ctx context.Context, recIDs []string, settleAddress string) domain.BatchExecuteResult {
	ctx, span := s.tracer.Start(ctx, "rebalance-service.batch-execute")
	defer span.End()

	out := domain.BatchExecuteResult{Results: make([]domain.ExecuteResult, 0, len(recIDs))}
	for i, id := range recIDs {
		result := s.Execute(ctx, id, settleAddress)
		out.Results = append(out.Results, result)
		if result.Success {
			out.Successful++
		} else {
			out.Failed++
		}
		if i < len(recIDs)-1 {
			s.sleep(s.batchDelay)
		}
	}
	return out
}

// MonitorShiftOrder refreshes one in-flight order: the gateway status lands
// lower-cased on the history row, and settlement completes the recommendation.
// Returns the refreshed status.
func (s *RebalanceService) MonitorShiftOrder(ctx context.Context, shiftID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "rebalance-service.monitor-shift-order")
	defer span.End()

	order := s.gateway.GetOrderStatus(ctx, shiftID)
	if order == nil {
		return "", fmt.Errorf("get status for shift %s", shiftID)
	}

	status := strings.ToLower(order.Status)
	if err := s.historyRepo.UpdateStatusByShiftID(ctx, shiftID, status); err != nil {
		return "", fmt.Errorf("update history for shift %s: %w", shiftID, err)
	}
	if status == domain.ShiftStatusSettled {
		if err := s.recRepo.CompleteByShiftID(ctx, shiftID); err != nil {
			return status, fmt.Errorf("complete recommendation for shift %s: %w", shiftID, err)
		}
	}
	return status, nil
}

// Simulate estimates costs and gains for a recommendation without touching
// the gateway.
func (s *RebalanceService) Simulate(ctx context.Context, recID string) (*domain.RebalanceSimulation, error) {
	ctx, span := s.tracer.Start(ctx, "rebalance-service.simulate")
	defer span.End()

	rec, err := s.recRepo.GetByID(ctx, recID)
	if err != nil {
		return nil, err
	}

	amount := domain.ParseAmount(rec.Amount)
	currentAPY := 0.0
	if rec.CurrentAPY != nil {
		currentAPY = *rec.CurrentAPY
	}

	annualGain := amount * (rec.TargetAPY - currentAPY) / 100
	dailyGain := annualGain / 365

	breakevenDays := -1
	if dailyGain > 0 {
		breakevenDays = int(math.Ceil(s.gasCostUSD / dailyGain))
	}

	return &domain.RebalanceSimulation{
		EstimatedCostUSD:    s.gasCostUSD,
		EstimatedAnnualGain: annualGain,
		EstimatedDailyGain:  dailyGain,
		BreakevenDays:       breakevenDays,
	}, nil
}

// IsRebalanceWorthwhile is the pure ROI check: the move must break even within
// minDays and the annual gain must exceed twice the cost.
func IsRebalanceWorthwhile(amount, apyDifference, estimatedCost float64, minDaysToBreakeven int) bool {
	if estimatedCost <= 0 {
		estimatedCost = defaultGasCostUSD
	}
	if minDaysToBreakeven <= 0 {
		minDaysToBreakeven = defaultBreakevenDays
	}

	annualGain := amount * apyDifference / 100
	dailyGain := annualGain / 365
	if dailyGain <= 0 {
		return false
	}
	daysToBreakeven := estimatedCost / dailyGain

	return daysToBreakeven <= float64(minDaysToBreakeven) && annualGain > estimatedCost*2
}

func failure(recID string, kind domain.ExecuteErrorKind, msg string) domain.ExecuteResult {
	return domain.ExecuteResult{RecommendationID: recID, ErrorKind: kind, Message: msg}
}
