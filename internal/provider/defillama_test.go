package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yieldpilot/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

func catalogPayload() poolsResponse {
	return poolsResponse{Data: []domain.YieldOpportunity{
		{PoolID: "low-tvl", Project: "tiny", AssetSymbol: "USDC", TVLUSD: 500_000, APYTotal: 40},
		{PoolID: "bad-apy", Project: "broken", AssetSymbol: "USDC", TVLUSD: 5_000_000, APYTotal: 1200},
		{PoolID: "zero-apy", Project: "flat", AssetSymbol: "DAI", TVLUSD: 5_000_000, APYTotal: 0},
		{PoolID: "no-symbol", Project: "anon", AssetSymbol: "", TVLUSD: 5_000_000, APYTotal: 7},
		{PoolID: "mid", Project: "aave-v3", AssetSymbol: "USDC", TVLUSD: 20_000_000, APYTotal: 5.5},
		{PoolID: "top", Project: "curve", AssetSymbol: "USDT", TVLUSD: 8_000_000, APYTotal: 12.3, ILRisk: domain.ILRiskNo},
	}}
}

func TestFetchTopYieldsFiltersAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(catalogPayload())
	}))
	defer srv.Close()

	client := NewYieldCatalogClient(trace.NewNoopTracerProvider().Tracer("test"), srv.URL, nil, time.Minute)
	got := client.FetchTopYields(context.Background(), 1_000_000, 50)

	if len(got) != 2 {
		t.Fatalf("expected 2 pools after filtering, got %d", len(got))
	}
	if got[0].PoolID != "top" || got[1].PoolID != "mid" {
		t.Fatalf("expected APY-descending order, got %s then %s", got[0].PoolID, got[1].PoolID)
	}
}

func TestFetchTopYieldsTruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(catalogPayload())
	}))
	defer srv.Close()

	client := NewYieldCatalogClient(trace.NewNoopTracerProvider().Tracer("test"), srv.URL, nil, time.Minute)
	got := client.FetchTopYields(context.Background(), 1_000_000, 1)

	if len(got) != 1 || got[0].PoolID != "top" {
		t.Fatalf("expected only the top pool, got %+v", got)
	}
}

func TestFetchTopYieldsReturnsEmptyOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewYieldCatalogClient(trace.NewNoopTracerProvider().Tracer("test"), srv.URL, nil, time.Minute)
	if got := client.FetchTopYields(context.Background(), 1_000_000, 50); len(got) != 0 {
		t.Fatalf("expected empty result on failure, got %d", len(got))
	}
}

func TestFetchTopYieldsReturnsEmptyOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewYieldCatalogClient(trace.NewNoopTracerProvider().Tracer("test"), srv.URL, nil, time.Minute)
	if got := client.FetchTopYields(context.Background(), 1_000_000, 50); len(got) != 0 {
		t.Fatalf("expected empty result on malformed body, got %d", len(got))
	}
}

func TestFetchTopYieldsServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(catalogPayload())
	}))
	defer srv.Close()

	client := NewYieldCatalogClient(trace.NewNoopTracerProvider().Tracer("test"), srv.URL, redisClient, time.Minute)

	first := client.FetchTopYields(context.Background(), 1_000_000, 50)
	second := client.FetchTopYields(context.Background(), 1_000_000, 50)

	if calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
	if len(first) != len(second) || second[0].PoolID != first[0].PoolID {
		t.Fatalf("cached result mismatch: %+v vs %+v", first, second)
	}
}
