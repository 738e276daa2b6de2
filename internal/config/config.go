package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	DefiLlamaBaseURL string
	YieldCacheSecs   int
	YieldMinTVLUSD   float64
	YieldLimit       int

	SideShiftBaseURL     string
	SideShiftAPIKey      string
	SideShiftAffiliateID string

	MinAPYImprovement     float64
	RebalanceGasCostUSD   float64
	RebalanceBatchDelayMS int
	StarterMonthlyLimit   int
	ShiftMonitorPollSecs  int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		TelegramBotToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		MCPAuthToken:         os.Getenv("MCP_AUTH_TOKEN"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		SideShiftAPIKey:      os.Getenv("SIDESHIFT_API_KEY"),
		SideShiftAffiliateID: os.Getenv("SIDESHIFT_AFFILIATE_ID"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, AI recommendations disabled (rule-based fallback only)")
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 5
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	cfg.OpenAIBaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))

	cfg.DefiLlamaBaseURL = strings.TrimSpace(os.Getenv("DEFILLAMA_BASE_URL"))
	if cfg.DefiLlamaBaseURL == "" {
		cfg.DefiLlamaBaseURL = "https://yields.llama.fi"
	}

	cfg.YieldCacheSecs = 300
	if v := strings.TrimSpace(os.Getenv("YIELD_CACHE_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.YieldCacheSecs = n
		}
	}

	cfg.YieldMinTVLUSD = 1_000_000
	if v := strings.TrimSpace(os.Getenv("YIELD_MIN_TVL_USD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			cfg.YieldMinTVLUSD = n
		}
	}

	cfg.YieldLimit = 50
	if v := strings.TrimSpace(os.Getenv("YIELD_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.YieldLimit = n
		}
	}

	cfg.SideShiftBaseURL = strings.TrimSpace(os.Getenv("SIDESHIFT_BASE_URL"))
	if cfg.SideShiftBaseURL == "" {
		cfg.SideShiftBaseURL = "https://sideshift.ai/api/v2"
	}

	// Minimum APY improvement (percentage points) for the rule-based
	// generator. Business policy, not a universal constant.
	cfg.MinAPYImprovement = 2.0
	if v := strings.TrimSpace(os.Getenv("MIN_APY_IMPROVEMENT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.MinAPYImprovement = n
		}
	}

	// Placeholder gas estimate for withdraw + swap + deposit, in USD.
	cfg.RebalanceGasCostUSD = 50
	if v := strings.TrimSpace(os.Getenv("REBALANCE_GAS_COST_USD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.RebalanceGasCostUSD = n
		}
	}

	// Inter-call delay for batch execution, to stay under gateway rate limits.
	cfg.RebalanceBatchDelayMS = 1000
	if v := strings.TrimSpace(os.Getenv("REBALANCE_BATCH_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RebalanceBatchDelayMS = n
		}
	}

	cfg.StarterMonthlyLimit = 4
	if v := strings.TrimSpace(os.Getenv("STARTER_MONTHLY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StarterMonthlyLimit = n
		}
	}

	cfg.ShiftMonitorPollSecs = 120
	if v := strings.TrimSpace(os.Getenv("SHIFT_MONITOR_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ShiftMonitorPollSecs = n
		}
	}

	return cfg
}
