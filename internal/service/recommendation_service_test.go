package service

import (
	"context"
	"testing"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type stubRecStore struct {
	pending      []domain.Recommendation
	inserted     []domain.Recommendation
	deleteCalls  int
	insertCalls  int
	callSequence []string
}

func (s *stubRecStore) InsertPending(ctx context.Context, recs []domain.Recommendation) ([]domain.Recommendation, error) {
	s.insertCalls++
	s.callSequence = append(s.callSequence, "insert")
	s.inserted = recs
	return recs, nil
}

func (s *stubRecStore) ListPending(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	return s.pending, nil
}

func (s *stubRecStore) DeletePending(ctx context.Context, userID string) (int64, error) {
	s.deleteCalls++
	s.callSequence = append(s.callSequence, "delete")
	return 1, nil
}

type stubPositionStore struct {
	positions []domain.Position
}

func (s *stubPositionStore) GetPositions(ctx context.Context, userID string) ([]domain.Position, error) {
	return s.positions, nil
}

type stubCatalog struct {
	pools []domain.YieldOpportunity
}

func (s *stubCatalog) FetchTopYields(ctx context.Context, minTvlUSD float64, limit int) []domain.YieldOpportunity {
	return s.pools
}

type stubEngine struct {
	drafts []domain.Recommendation
	gotTol int
}

func (s *stubEngine) Generate(ctx context.Context, userID string, riskTolerance int, positions []domain.Position, catalog []domain.YieldOpportunity) []domain.Recommendation {
	s.gotTol = riskTolerance
	return s.drafts
}

func newRecService(store *stubRecStore, catalog *stubCatalog, engine *stubEngine) *RecommendationService {
	return NewRecommendationService(
		trace.NewNoopTracerProvider().Tracer("test"),
		store, &stubPositionStore{}, catalog, engine,
		0, 0,
	)
}

func TestGenerateReplacesPendingSet(t *testing.T) {
	store := &stubRecStore{}
	engine := &stubEngine{drafts: []domain.Recommendation{{ToPoolID: "pool-a", AssetSymbol: "USDC"}}}
	catalog := &stubCatalog{pools: []domain.YieldOpportunity{{PoolID: "pool-a", APYTotal: 9.5}}}
	svc := newRecService(store, catalog, engine)

	recs, err := svc.Generate(context.Background(), "user-1", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if store.deleteCalls != 1 || store.insertCalls != 1 {
		t.Fatalf("expected delete then insert, got %d/%d", store.deleteCalls, store.insertCalls)
	}
	if len(store.callSequence) != 2 || store.callSequence[0] != "delete" {
		t.Fatalf("expected pending set cleared before insert, got %v", store.callSequence)
	}
	if engine.gotTol != 60 {
		t.Fatalf("expected tolerance 60 passed through, got %d", engine.gotTol)
	}
}

func TestGenerateDefaultsOutOfRangeTolerance(t *testing.T) {
	engine := &stubEngine{}
	catalog := &stubCatalog{pools: []domain.YieldOpportunity{{PoolID: "pool-a"}}}
	svc := newRecService(&stubRecStore{}, catalog, engine)

	for _, tolerance := range []int{-1, 250} {
		if _, err := svc.Generate(context.Background(), "user-1", tolerance); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if engine.gotTol != defaultRiskTolerance {
			t.Fatalf("expected tolerance %d coerced to default, got %d", tolerance, engine.gotTol)
		}
	}
}

func TestGenerateKeepsZeroTolerance(t *testing.T) {
	engine := &stubEngine{}
	catalog := &stubCatalog{pools: []domain.YieldOpportunity{{PoolID: "pool-a"}}}
	svc := newRecService(&stubRecStore{}, catalog, engine)

	if _, err := svc.Generate(context.Background(), "user-1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.gotTol != 0 {
		t.Fatalf("expected explicit 0 tolerance preserved, got %d", engine.gotTol)
	}
}

func TestGenerateEmptyCatalogDegradesGracefully(t *testing.T) {
	store := &stubRecStore{}
	svc := newRecService(store, &stubCatalog{}, &stubEngine{})

	recs, err := svc.Generate(context.Background(), "user-1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", recs)
	}
	if store.deleteCalls != 1 || store.insertCalls != 0 {
		t.Fatalf("expected stale pending cleared and nothing inserted, got %d/%d", store.deleteCalls, store.insertCalls)
	}
}

func TestGenerateEmptyDraftsSkipsInsert(t *testing.T) {
	store := &stubRecStore{}
	catalog := &stubCatalog{pools: []domain.YieldOpportunity{{PoolID: "pool-a"}}}
	svc := newRecService(store, catalog, &stubEngine{})

	recs, err := svc.Generate(context.Background(), "user-1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", recs)
	}
	if store.insertCalls != 0 {
		t.Fatal("expected no insert for an empty draft set")
	}
	if store.deleteCalls != 1 {
		t.Fatal("expected stale pending set still cleared")
	}
}

func TestListPendingDelegates(t *testing.T) {
	store := &stubRecStore{pending: []domain.Recommendation{{ID: "rec-1"}}}
	svc := newRecService(store, &stubCatalog{}, &stubEngine{})

	recs, err := svc.ListPending(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "rec-1" {
		t.Fatalf("unexpected result: %+v", recs)
	}
}
