package api

import (
	"context"
	"fmt"
	"net/http"
)

// WatchlistClient manages the signed-in user's coin watchlist. Credential
// attachment and silent refresh happen inside the executor.
type WatchlistClient struct {
	doer Doer
}

// NewWatchlistClient constructs a WatchlistClient.
func NewWatchlistClient(doer Doer) *WatchlistClient {
	return &WatchlistClient{doer: doer}
}

type watchlistAddPayload struct {
	CoinID int64 `json:"coin_id"`
}

// List fetches the watchlist with market data for each entry.
func (client *WatchlistClient) List(ctx context.Context, params PageParams) (CoinPage, error) {
	var page CoinPage
	err := client.doer.DoJSON(ctx, http.MethodGet, withQuery("/user/watchlist", params), nil, &page)
	return page, err
}

// Add puts a coin on the watchlist.
func (client *WatchlistClient) Add(ctx context.Context, coinID int64) error {
	return client.doer.DoJSON(ctx, http.MethodPost, "/user/watchlist", watchlistAddPayload{CoinID: coinID}, nil)
}

// Remove takes a coin off the watchlist.
func (client *WatchlistClient) Remove(ctx context.Context, coinID int64) error {
	return client.doer.DoJSON(ctx, http.MethodDelete, fmt.Sprintf("/user/watchlist/%d", coinID), nil, nil)
}
