package api

import (
	"context"
	"fmt"
	"net/http"
)

// TipDraft carries the editable fields of a tip.
type TipDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	IsActive    bool   `json:"is_active"`
}

// AdminClient manages the news feed content. Every endpoint requires the
// admin role; the server enforces it, the route gate spares the round trip.
type AdminClient struct {
	doer Doer
}

// NewAdminClient constructs an AdminClient.
func NewAdminClient(doer Doer) *AdminClient {
	return &AdminClient{doer: doer}
}

// ListTips fetches one page of tips including inactive ones.
func (client *AdminClient) ListTips(ctx context.Context, params PageParams) (TipPage, error) {
	var page TipPage
	err := client.doer.DoJSON(ctx, http.MethodGet, withQuery("/admin/tips", params), nil, &page)
	return page, err
}

// CreateTip publishes a new tip and returns the stored record.
func (client *AdminClient) CreateTip(ctx context.Context, draft TipDraft) (Tip, error) {
	var created Tip
	err := client.doer.DoJSON(ctx, http.MethodPost, "/admin/create_tip", draft, &created)
	return created, err
}

// EditTip updates an existing tip.
func (client *AdminClient) EditTip(ctx context.Context, tipID int64, draft TipDraft) (Tip, error) {
	var updated Tip
	err := client.doer.DoJSON(ctx, http.MethodPut, fmt.Sprintf("/admin/edit_tip/%d", tipID), draft, &updated)
	return updated, err
}

// DeleteTip removes a tip.
func (client *AdminClient) DeleteTip(ctx context.Context, tipID int64) error {
	return client.doer.DoJSON(ctx, http.MethodDelete, fmt.Sprintf("/admin/delete_tip/%d", tipID), nil, nil)
}
