package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type frankfurterResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// FrankfurterProvider reads daily reference rates from a Frankfurter
// compatible API.
type FrankfurterProvider struct {
	baseURL string
	client  *http.Client
}

func NewFrankfurterProvider(baseURL string, timeout time.Duration) *FrankfurterProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FrankfurterProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *FrankfurterProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("from", from)
	params.Set("to", to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/latest?"+params.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch %s/%s rate: %w", from, to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return decimal.Zero, fmt.Errorf("unsupported currency pair %s/%s: status %d: %s", from, to, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out frankfurterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("decode %s/%s rate: %w", from, to, err)
	}
	rate, ok := out.Rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("unsupported currency pair %s/%s", from, to)
	}
	return rate, nil
}

func (p *FrankfurterProvider) Close() {
	p.client.CloseIdleConnections()
}
