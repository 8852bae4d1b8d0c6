package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// PriceFeed returns the spot price of the native coin in USD
type PriceFeed interface {
	Price(ctx context.Context) (decimal.Decimal, error)
}

// HTTPFeed reads a CoinGecko-style simple price endpoint:
// GET <url>?ids=<coin>&vs_currencies=usd -> {"<coin>":{"usd":1234.5}}
type HTTPFeed struct {
	client *http.Client
	url    string
	coinId string
}

func NewHTTPFeed(feedURL, coinId string, timeout time.Duration) (*HTTPFeed, error) {
	if feedURL == "" {
		return nil, fmt.Errorf("price feed URL cannot be empty")
	}
	if coinId == "" {
		return nil, fmt.Errorf("price feed coin id cannot be empty")
	}
	client, err := createFeedHttpClient(timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create price feed client: %w", err)
	}
	return &HTTPFeed{client: client, url: feedURL, coinId: coinId}, nil
}

func createFeedHttpClient(timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: timeout,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (f *HTTPFeed) Price(ctx context.Context) (decimal.Decimal, error) {
	u, err := url.Parse(f.url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price feed URL: %w", err)
	}
	q := u.Query()
	q.Set("ids", f.coinId)
	q.Set("vs_currencies", "usd")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Debug("Failed to close price response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("price feed returned %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}
	price, ok := payload[f.coinId]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("price feed response has no usd price for %s", f.coinId)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("price feed returned non-positive price %s", price)
	}
	return price, nil
}
