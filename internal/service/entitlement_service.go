package service

import (
	"context"
	"fmt"
	"time"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultStarterMonthlyLimit = 4

type EntitlementHistoryRepository interface {
	CountForMonth(ctx context.Context, userID, monthBucket string) (int, error)
}

// EntitlementService gates recommendation operations on subscription tier and
// the starter-tier monthly execution quota.
type EntitlementService struct {
	tracer       trace.Tracer
	historyRepo  EntitlementHistoryRepository
	starterLimit int
	now          func() time.Time
}

func NewEntitlementService(tracer trace.Tracer, historyRepo EntitlementHistoryRepository, starterLimit int, now func() time.Time) *EntitlementService {
	if starterLimit <= 0 {
		starterLimit = defaultStarterMonthlyLimit
	}
	if now == nil {
		now = time.Now
	}
	return &EntitlementService{tracer: tracer, historyRepo: historyRepo, starterLimit: starterLimit, now: now}
}

// MonthBucket returns the canonical first-of-month key used for quota counts.
func MonthBucket(t time.Time) string {
	return t.UTC().Format("2006-01") + "-01"
}

// CheckView gates recommendation listing and generation. Starter and above.
func (s *EntitlementService) CheckView(ctx context.Context, user domain.User) error {
	_, span := s.tracer.Start(ctx, "entitlement.check-view")
	defer span.End()

	if !user.Tier.AtLeast(domain.TierStarter) {
		return &domain.EntitlementError{RequiredTier: domain.TierStarter, CurrentTier: user.Tier}
	}
	return nil
}

// CheckExecute gates a single execution. Free never executes; starter is
// limited per calendar month by the history count; professional and above are
// unlimited.
func (s *EntitlementService) CheckExecute(ctx context.Context, user domain.User) error {
	ctx, span := s.tracer.Start(ctx, "entitlement.check-execute")
	defer span.End()

	if !user.Tier.AtLeast(domain.TierStarter) {
		return &domain.EntitlementError{RequiredTier: domain.TierStarter, CurrentTier: user.Tier}
	}
	if user.Tier.AtLeast(domain.TierProfessional) {
		return nil
	}

	used, err := s.historyRepo.CountForMonth(ctx, user.ID, MonthBucket(s.now()))
	if err != nil {
		return fmt.Errorf("count monthly executions: %w", err)
	}
	if used >= s.starterLimit {
		return &domain.EntitlementError{
			RequiredTier: domain.TierProfessional,
			CurrentTier:  user.Tier,
			Used:         used,
			Limit:        s.starterLimit,
		}
	}
	return nil
}

// CheckBatchExecute gates batch execution. Professional and above.
func (s *EntitlementService) CheckBatchExecute(ctx context.Context, user domain.User) error {
	_, span := s.tracer.Start(ctx, "entitlement.check-batch-execute")
	defer span.End()

	if !user.Tier.AtLeast(domain.TierProfessional) {
		return &domain.EntitlementError{RequiredTier: domain.TierProfessional, CurrentTier: user.Tier}
	}
	return nil
}
