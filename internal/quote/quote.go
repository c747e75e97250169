package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stock-trader/internal/config"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the provider does not know the symbol.
var ErrNotFound = errors.New("quote: symbol not found")

// Quote is the provider's answer for one ticker symbol.
type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}

// Quoter resolves a ticker symbol to its current name and price.
// Implementations must return ErrNotFound for unknown symbols.
type Quoter interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// Client talks to an IEX-style quote endpoint:
// GET {base}/quote/{symbol}?token={key} -> {symbol, companyName, latestPrice}
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.QuoteConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type quoteResp struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"companyName"`
	LatestPrice decimal.Decimal `json:"latestPrice"`
}

func (c *Client) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNotFound
	}

	u := fmt.Sprintf("%s/quote/%s?token=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	// providers answer 404 for unknown tickers
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote provider status %d", resp.StatusCode)
	}

	var body quoteResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse quote response: %w", err)
	}
	if body.Symbol == "" || body.LatestPrice.IsZero() {
		return nil, ErrNotFound
	}

	return &Quote{
		Symbol: strings.ToUpper(body.Symbol),
		Name:   body.CompanyName,
		Price:  body.LatestPrice,
	}, nil
}
