package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// Credentials supplies the gateway secret and affiliate id per request,
// instead of mutating shared client state.
type Credentials struct {
	APIKey      string
	AffiliateID string
}

type CredentialsProvider func() Credentials

// SwapGatewayClient is a thin client for the SideShift instant-exchange API.
// All three operations return nil on any upstream failure; callers must treat
// nil as "could not complete this step".
type SwapGatewayClient struct {
	tracer     trace.Tracer
	httpClient *http.Client
	baseURL    string
	creds      CredentialsProvider
}

func NewSwapGatewayClient(tracer trace.Tracer, baseURL string, creds CredentialsProvider) *SwapGatewayClient {
	if creds == nil {
		creds = func() Credentials { return Credentials{} }
	}
	return &SwapGatewayClient{
		tracer:     tracer,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		creds:      creds,
	}
}

// gatewayCoinID maps asset symbols to SideShift coin identifiers. Best-effort:
// unmapped symbols fall back to the lower-cased symbol, which is not
// guaranteed to be a valid gateway coin.
var gatewayCoinID = map[string]string{
	"ETH":   "eth",
	"WETH":  "eth",
	"BTC":   "btc",
	"WBTC":  "btc",
	"USDC":  "usdcarbitrum", // Arbitrum variant for lower fees
	"USDT":  "usdttrc20",
	"DAI":   "dai",
	"MATIC": "matic",
	"AVAX":  "avax",
	"SOL":   "sol",
	"ATOM":  "atom",
	"DOT":   "dot",
	"LINK":  "link",
	"UNI":   "uni",
	"AAVE":  "aave",
	"CRV":   "crv",
}

func CoinID(asset string) string {
	if id, ok := gatewayCoinID[strings.ToUpper(strings.TrimSpace(asset))]; ok {
		return id
	}
	return strings.ToLower(strings.TrimSpace(asset))
}

func (c *SwapGatewayClient) GetQuote(ctx context.Context, fromAsset, toAsset, amount string) *domain.ShiftQuote {
	_, span := c.tracer.Start(ctx, "swap-gateway.get-quote")
	defer span.End()

	creds := c.creds()
	body := map[string]string{
		"depositCoin":   CoinID(fromAsset),
		"settleCoin":    CoinID(toAsset),
		"depositAmount": amount,
		"affiliateId":   creds.AffiliateID,
	}

	var quote domain.ShiftQuote
	if err := c.postJSON(ctx, "/quotes", body, &quote); err != nil {
		log.Printf("swap gateway: get quote %s->%s: %v", fromAsset, toAsset, err)
		return nil
	}
	return &quote
}

func (c *SwapGatewayClient) CreateOrder(ctx context.Context, quoteID, settleAddress string) *domain.ShiftOrder {
	_, span := c.tracer.Start(ctx, "swap-gateway.create-order")
	defer span.End()

	creds := c.creds()
	body := map[string]string{
		"quoteId":       quoteID,
		"settleAddress": settleAddress,
		"affiliateId":   creds.AffiliateID,
	}

	var order domain.ShiftOrder
	if err := c.postJSON(ctx, "/shifts/fixed", body, &order); err != nil {
		log.Printf("swap gateway: create order for quote %s: %v", quoteID, err)
		return nil
	}
	return &order
}

func (c *SwapGatewayClient) GetOrderStatus(ctx context.Context, orderID string) *domain.ShiftOrder {
	_, span := c.tracer.Start(ctx, "swap-gateway.get-order-status")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/shifts/"+orderID, nil)
	if err != nil {
		log.Printf("swap gateway: build status request for %s: %v", orderID, err)
		return nil
	}
	c.setHeaders(req)

	var order domain.ShiftOrder
	if err := c.do(req, &order); err != nil {
		log.Printf("swap gateway: get status for %s: %v", orderID, err)
		return nil
	}
	return &order
}

func (c *SwapGatewayClient) postJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *SwapGatewayClient) setHeaders(req *http.Request) {
	if key := c.creds().APIKey; key != "" {
		req.Header.Set("x-sideshift-secret", key)
	}
}

func (c *SwapGatewayClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
