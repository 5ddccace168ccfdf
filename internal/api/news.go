package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Tip is one news/tips entry.
type Tip struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

// TipPage is one page of tips with pagination metadata.
type TipPage struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	TotalItems int   `json:"total_items"`
	Limit      int   `json:"limit"`
	Data       []Tip `json:"data"`
}

// NewsClient reads the public news feed.
type NewsClient struct {
	doer Doer
}

// NewNewsClient constructs a NewsClient.
func NewNewsClient(doer Doer) *NewsClient {
	return &NewsClient{doer: doer}
}

// List fetches one page of active tips.
func (client *NewsClient) List(ctx context.Context, params PageParams) (TipPage, error) {
	var page TipPage
	err := client.doer.DoJSON(ctx, http.MethodGet, withQuery("/tips", params), nil, &page)
	return page, err
}

// Get fetches a single tip by ID.
func (client *NewsClient) Get(ctx context.Context, tipID int64) (Tip, error) {
	var tip Tip
	err := client.doer.DoJSON(ctx, http.MethodGet, fmt.Sprintf("/tips/%d", tipID), nil, &tip)
	return tip, err
}
