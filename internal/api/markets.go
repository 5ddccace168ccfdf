package api

import (
	"context"
	"fmt"
	"net/http"
)

// Coin is one market row.
type Coin struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	PercentChange1H   float64 `json:"percent_change_1h"`
	PercentChange24H  float64 `json:"percent_change_24h"`
	PercentChange7D   float64 `json:"percent_change_7d"`
	MarketCap         float64 `json:"market_cap"`
	Volume24H         float64 `json:"volume_24h"`
	CirculatingSupply float64 `json:"circulating_supply"`
}

// CoinPage is one page of market rows.
type CoinPage struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Total int    `json:"total"`
	Data  []Coin `json:"data"`
}

// MarketsClient reads public market data. The listing and detail endpoints
// are unauthenticated, but routing them through the executor keeps a single
// transport with shared timeouts and logging.
type MarketsClient struct {
	doer Doer
}

// NewMarketsClient constructs a MarketsClient.
func NewMarketsClient(doer Doer) *MarketsClient {
	return &MarketsClient{doer: doer}
}

type searchParams struct {
	Query string `url:"q"`
}

// List fetches one page of market rows.
func (client *MarketsClient) List(ctx context.Context, params PageParams) (CoinPage, error) {
	var page CoinPage
	err := client.doer.DoJSON(ctx, http.MethodGet, withQuery("/", params), nil, &page)
	return page, err
}

// Get fetches the detail record for one coin.
func (client *MarketsClient) Get(ctx context.Context, coinID int64) (Coin, error) {
	var coin Coin
	err := client.doer.DoJSON(ctx, http.MethodGet, fmt.Sprintf("/coin/%d", coinID), nil, &coin)
	return coin, err
}

// Search finds coins matching the query text.
func (client *MarketsClient) Search(ctx context.Context, queryText string) ([]Coin, error) {
	var result struct {
		Data []Coin `json:"data"`
	}
	err := client.doer.DoJSON(ctx, http.MethodGet, withQuery("/search", searchParams{Query: queryText}), nil, &result)
	return result.Data, err
}
