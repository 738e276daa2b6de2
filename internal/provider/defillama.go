package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"yieldpilot/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const defaultYieldCacheTTL = 5 * time.Minute

// YieldCatalogClient reads the public DefiLlama yield catalog. Lookups are
// best-effort: any upstream or cache failure degrades to an empty result so
// the recommendation engine can fall back to "no data available".
type YieldCatalogClient struct {
	tracer     trace.Tracer
	httpClient *http.Client
	baseURL    string
	redis      *redis.Client
	cacheTTL   time.Duration
}

func NewYieldCatalogClient(tracer trace.Tracer, baseURL string, redisClient *redis.Client, cacheTTL time.Duration) *YieldCatalogClient {
	if cacheTTL <= 0 {
		cacheTTL = defaultYieldCacheTTL
	}
	return &YieldCatalogClient{
		tracer:     tracer,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		redis:      redisClient,
		cacheTTL:   cacheTTL,
	}
}

type poolsResponse struct {
	Data []domain.YieldOpportunity `json:"data"`
}

// FetchTopYields returns catalog entries with tvl >= minTvlUSD and a sane APY,
// sorted by total APY descending and truncated to limit. Never errors: an
// unavailable catalog yields an empty slice.
func (c *YieldCatalogClient) FetchTopYields(ctx context.Context, minTvlUSD float64, limit int) []domain.YieldOpportunity {
	_, span := c.tracer.Start(ctx, "yield-catalog.fetch-top-yields")
	defer span.End()

	cacheKey := fmt.Sprintf("yields:top:%.0f:%d", minTvlUSD, limit)
	if cached := c.readCache(ctx, cacheKey); cached != nil {
		return cached
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools", nil)
	if err != nil {
		log.Printf("yield catalog: build request: %v", err)
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("yield catalog: fetch pools: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("yield catalog: unexpected status %d", resp.StatusCode)
		return nil
	}

	var payload poolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Printf("yield catalog: decode pools: %v", err)
		return nil
	}

	filtered := filterAndRank(payload.Data, minTvlUSD, limit)
	c.writeCache(ctx, cacheKey, filtered)
	return filtered
}

// filterAndRank drops entries below the TVL floor, with non-positive APY,
// with an APY at or above 1000% (data-error guard), or missing symbol/project.
func filterAndRank(pools []domain.YieldOpportunity, minTvlUSD float64, limit int) []domain.YieldOpportunity {
	out := make([]domain.YieldOpportunity, 0, limit)
	for _, p := range pools {
		if p.TVLUSD < minTvlUSD {
			continue
		}
		if p.APYTotal <= 0 || p.APYTotal >= 1000 {
			continue
		}
		if p.AssetSymbol == "" || p.Project == "" {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].APYTotal > out[j].APYTotal
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c *YieldCatalogClient) readCache(ctx context.Context, key string) []domain.YieldOpportunity {
	if c.redis == nil {
		return nil
	}
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var cached []domain.YieldOpportunity
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return cached
}

func (c *YieldCatalogClient) writeCache(ctx context.Context, key string, pools []domain.YieldOpportunity) {
	if c.redis == nil || len(pools) == 0 {
		return
	}
	raw, err := json.Marshal(pools)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
		log.Printf("yield catalog: cache write: %v", err)
	}
}
