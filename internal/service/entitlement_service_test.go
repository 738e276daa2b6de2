package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type stubHistoryCounter struct {
	count int
	err   error
	calls int
}

func (s *stubHistoryCounter) CountForMonth(ctx context.Context, userID, monthBucket string) (int, error) {
	s.calls++
	return s.count, s.err
}

func augustNow() time.Time { return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC) }

func newEntitlement(counter *stubHistoryCounter) *EntitlementService {
	return NewEntitlementService(trace.NewNoopTracerProvider().Tracer("test"), counter, 4, augustNow)
}

func TestMonthBucket(t *testing.T) {
	if got := MonthBucket(augustNow()); got != "2026-08-01" {
		t.Fatalf("expected 2026-08-01, got %s", got)
	}
}

func TestCheckViewRequiresStarter(t *testing.T) {
	svc := newEntitlement(&stubHistoryCounter{})

	err := svc.CheckView(context.Background(), domain.User{ID: "u", Tier: domain.TierFree})
	var entErr *domain.EntitlementError
	if !errors.As(err, &entErr) {
		t.Fatalf("expected EntitlementError, got %v", err)
	}
	if entErr.RequiredTier != domain.TierStarter || entErr.CurrentTier != domain.TierFree {
		t.Fatalf("unexpected denial: %+v", entErr)
	}

	if err := svc.CheckView(context.Background(), domain.User{ID: "u", Tier: domain.TierStarter}); err != nil {
		t.Fatalf("expected starter to pass, got %v", err)
	}
}

func TestCheckExecuteFreeNeverExecutes(t *testing.T) {
	counter := &stubHistoryCounter{}
	svc := newEntitlement(counter)

	err := svc.CheckExecute(context.Background(), domain.User{ID: "u", Tier: domain.TierFree})
	var entErr *domain.EntitlementError
	if !errors.As(err, &entErr) {
		t.Fatalf("expected EntitlementError, got %v", err)
	}
	if counter.calls != 0 {
		t.Fatal("free tier must be denied before any quota lookup")
	}
}

func TestCheckExecuteStarterQuota(t *testing.T) {
	counter := &stubHistoryCounter{count: 3}
	svc := newEntitlement(counter)
	user := domain.User{ID: "u", Tier: domain.TierStarter}

	if err := svc.CheckExecute(context.Background(), user); err != nil {
		t.Fatalf("expected 3 of 4 used to pass, got %v", err)
	}

	counter.count = 4
	err := svc.CheckExecute(context.Background(), user)
	var entErr *domain.EntitlementError
	if !errors.As(err, &entErr) {
		t.Fatalf("expected EntitlementError, got %v", err)
	}
	if entErr.Used != 4 || entErr.Limit != 4 || entErr.RequiredTier != domain.TierProfessional {
		t.Fatalf("unexpected denial: %+v", entErr)
	}
}

func TestCheckExecuteProfessionalUnlimited(t *testing.T) {
	counter := &stubHistoryCounter{count: 1000}
	svc := newEntitlement(counter)

	if err := svc.CheckExecute(context.Background(), domain.User{ID: "u", Tier: domain.TierProfessional}); err != nil {
		t.Fatalf("expected professional to pass, got %v", err)
	}
	if counter.calls != 0 {
		t.Fatal("professional tier should skip the quota lookup")
	}
}

func TestCheckBatchExecuteRequiresProfessional(t *testing.T) {
	svc := newEntitlement(&stubHistoryCounter{})

	if err := svc.CheckBatchExecute(context.Background(), domain.User{ID: "u", Tier: domain.TierStarter}); err == nil {
		t.Fatal("expected starter batch to be denied")
	}
	if err := svc.CheckBatchExecute(context.Background(), domain.User{ID: "u", Tier: domain.TierInstitutional}); err != nil {
		t.Fatalf("expected institutional batch to pass, got %v", err)
	}
}
