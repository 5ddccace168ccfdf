package api

import (
	"context"

	"github.com/google/go-querystring/query"
)

// Doer issues one authenticated JSON call. Satisfied by the auth client's
// executor; the API clients stay token-unaware.
type Doer interface {
	DoJSON(ctx context.Context, method string, path string, payload any, out any) error
}

// PageParams select one page of a listing endpoint.
type PageParams struct {
	Page  int `url:"page"`
	Limit int `url:"limit"`
}

// DefaultPageParams mirrors the server defaults.
func DefaultPageParams() PageParams {
	return PageParams{Page: 1, Limit: 20}
}

func withQuery(path string, params any) string {
	values, err := query.Values(params)
	if err != nil || len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}
