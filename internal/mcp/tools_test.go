package mcp

import (
	"context"
	"testing"
	"time"

	"yieldpilot/internal/domain"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubYieldReader struct {
	pools    []domain.YieldOpportunity
	gotLimit int
}

func (s *stubYieldReader) FetchTopYields(ctx context.Context, minTvlUSD float64, limit int) []domain.YieldOpportunity {
	s.gotLimit = limit
	return append([]domain.YieldOpportunity(nil), s.pools...)
}

type stubRecService struct {
	pending   []domain.Recommendation
	generated []domain.Recommendation

	lastUserID    string
	lastTolerance int
}

func (s *stubRecService) ListPending(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	s.lastUserID = userID
	return append([]domain.Recommendation(nil), s.pending...), nil
}

func (s *stubRecService) Generate(ctx context.Context, userID string, riskTolerance int) ([]domain.Recommendation, error) {
	s.lastUserID = userID
	s.lastTolerance = riskTolerance
	return append([]domain.Recommendation(nil), s.generated...), nil
}

type stubSimulator struct {
	sim *domain.RebalanceSimulation
}

func (s *stubSimulator) Simulate(ctx context.Context, recID string) (*domain.RebalanceSimulation, error) {
	return s.sim, nil
}

func testServer() (*sdkmcp.Server, *stubYieldReader, *stubRecService) {
	yields := &stubYieldReader{pools: []domain.YieldOpportunity{
		{PoolID: "pool-a", Project: "aave-v3", AssetSymbol: "USDC", APYTotal: 9.5, TVLUSD: 5e8},
	}}
	recs := &stubRecService{
		pending: []domain.Recommendation{{ID: "rec-1", ToPoolID: "pool-a", Status: domain.StatusPending}},
		generated: []domain.Recommendation{
			{ID: "rec-2", ToPoolID: "pool-b", Status: domain.StatusPending},
		},
	}
	sim := &stubSimulator{sim: &domain.RebalanceSimulation{EstimatedCostUSD: 50, BreakevenDays: 29}}

	srv := NewServer(nil, yields, recs, sim, ServerConfig{RequestTimeout: time.Second})
	return srv, yields, recs
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func TestToolsListAndInvoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, yields, recs := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	tools, err := session.ListTools(ctx, &sdkmcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools failed: %v", err)
	}
	if len(tools.Tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tools.Tools))
	}

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "yields_top", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("yields tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	if yields.gotLimit != defaultYieldLimit {
		t.Fatalf("expected default limit, got %d", yields.gotLimit)
	}

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "recommendations_generate",
		Arguments: map[string]any{"user_id": "user-1", "risk_tolerance": 60},
	})
	if err != nil {
		t.Fatalf("generate tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected generate tool error: %+v", res.Content)
	}
	if recs.lastUserID != "user-1" || recs.lastTolerance != 60 {
		t.Fatalf("unexpected generate call: user=%s tolerance=%d", recs.lastUserID, recs.lastTolerance)
	}
}

func TestToolsValidationFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _, _ := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "recommendations_list",
		Arguments: map[string]any{"user_id": "   "},
	})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool-level validation error")
	}

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "recommendations_generate",
		Arguments: map[string]any{"user_id": "user-1", "risk_tolerance": 250},
	})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tolerance validation error")
	}
}
