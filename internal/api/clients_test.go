package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/mpekarov/coinwatch/internal/api"
	"github.com/mpekarov/coinwatch/internal/authclient"
	"github.com/mpekarov/coinwatch/internal/stubapi"
)

type clientHarness struct {
	serverURL string
	store     *authclient.MemoryCredentialStore
	executor  *authclient.Executor
	gateway   *authclient.HTTPAuthGateway
}

func newClientHarness(t *testing.T, seedRole string) *clientHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stub, stubErr := stubapi.NewServer(stubapi.ServerOptions{Logger: zaptest.NewLogger(t)})
	if stubErr != nil {
		t.Fatalf("building stub server failed: %v", stubErr)
	}
	if _, seedErr := stub.Users().Seed("Test User", "user@example.com", "password123", seedRole); seedErr != nil {
		t.Fatalf("seeding user failed: %v", seedErr)
	}

	testServer := httptest.NewServer(stub.Router(false, nil))
	t.Cleanup(testServer.Close)

	store := authclient.NewMemoryCredentialStore()
	gateway := authclient.NewHTTPAuthGateway(testServer.URL, testServer.Client())
	executor := authclient.NewExecutor(authclient.ExecutorConfig{
		BaseURL:     testServer.URL,
		HTTPClient:  testServer.Client(),
		Credentials: store,
		Gateway:     gateway,
		AccessTTL:   time.Hour,
		Logger:      zaptest.NewLogger(t),
	})
	return &clientHarness{serverURL: testServer.URL, store: store, executor: executor, gateway: gateway}
}

func (harness *clientHarness) login(t *testing.T) {
	t.Helper()
	result, loginErr := harness.gateway.Login(context.Background(), "user@example.com", "password123")
	if loginErr != nil {
		t.Fatalf("login failed: %v", loginErr)
	}
	if saveErr := harness.store.Save(authclient.CredentialPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}); saveErr != nil {
		t.Fatalf("storing credentials failed: %v", saveErr)
	}
}

func TestMarketsClientAgainstStub(t *testing.T) {
	t.Parallel()
	harness := newClientHarness(t, stubapi.RoleMember)
	markets := api.NewMarketsClient(harness.executor)

	page, listErr := markets.List(context.Background(), api.PageParams{Page: 1, Limit: 10})
	if listErr != nil {
		t.Fatalf("list failed: %v", listErr)
	}
	if len(page.Data) != 10 {
		t.Fatalf("expected 10 coins, got %d", len(page.Data))
	}
	if page.Total <= 0 {
		t.Fatalf("expected a positive total, got %d", page.Total)
	}

	first := page.Data[0]
	coin, getErr := markets.Get(context.Background(), first.ID)
	if getErr != nil {
		t.Fatalf("get failed: %v", getErr)
	}
	if coin.Symbol != first.Symbol {
		t.Fatalf("detail symbol mismatch: %q vs %q", coin.Symbol, first.Symbol)
	}

	matches, searchErr := markets.Search(context.Background(), first.Name)
	if searchErr != nil {
		t.Fatalf("search failed: %v", searchErr)
	}
	if len(matches) == 0 {
		t.Fatalf("expected a search match for %q", first.Name)
	}

	var serverErr *authclient.ServerError
	if _, missingErr := markets.Get(context.Background(), 999999); !errors.As(missingErr, &serverErr) {
		t.Fatalf("expected ServerError for a missing coin, got %v", missingErr)
	}
	if serverErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", serverErr.StatusCode)
	}
}

func TestNewsClientAgainstStub(t *testing.T) {
	t.Parallel()
	harness := newClientHarness(t, stubapi.RoleMember)
	news := api.NewNewsClient(harness.executor)

	page, listErr := news.List(context.Background(), api.DefaultPageParams())
	if listErr != nil {
		t.Fatalf("list failed: %v", listErr)
	}
	if len(page.Data) == 0 {
		t.Fatalf("expected seeded tips")
	}
	for _, tip := range page.Data {
		if !tip.IsActive {
			t.Fatalf("public feed must only contain active tips: %+v", tip)
		}
	}

	tip, getErr := news.Get(context.Background(), page.Data[0].ID)
	if getErr != nil {
		t.Fatalf("get failed: %v", getErr)
	}
	if tip.Title != page.Data[0].Title {
		t.Fatalf("tip title mismatch: %q vs %q", tip.Title, page.Data[0].Title)
	}
}

func TestWatchlistClientLifecycle(t *testing.T) {
	t.Parallel()
	harness := newClientHarness(t, stubapi.RoleMember)
	harness.login(t)
	watchlist := api.NewWatchlistClient(harness.executor)
	markets := api.NewMarketsClient(harness.executor)

	coins, listErr := markets.List(context.Background(), api.PageParams{Page: 1, Limit: 2})
	if listErr != nil {
		t.Fatalf("market list failed: %v", listErr)
	}
	target := coins.Data[0]

	if addErr := watchlist.Add(context.Background(), target.ID); addErr != nil {
		t.Fatalf("add failed: %v", addErr)
	}
	if addAgainErr := watchlist.Add(context.Background(), target.ID); addAgainErr == nil {
		t.Fatalf("adding the same coin twice must fail")
	}

	page, watchErr := watchlist.List(context.Background(), api.DefaultPageParams())
	if watchErr != nil {
		t.Fatalf("watchlist list failed: %v", watchErr)
	}
	if len(page.Data) != 1 || page.Data[0].ID != target.ID {
		t.Fatalf("unexpected watchlist contents: %+v", page.Data)
	}

	if removeErr := watchlist.Remove(context.Background(), target.ID); removeErr != nil {
		t.Fatalf("remove failed: %v", removeErr)
	}
	emptied, emptiedErr := watchlist.List(context.Background(), api.DefaultPageParams())
	if emptiedErr != nil {
		t.Fatalf("watchlist list after remove failed: %v", emptiedErr)
	}
	if len(emptied.Data) != 0 {
		t.Fatalf("expected empty watchlist, got %+v", emptied.Data)
	}
}

func TestWatchlistSilentlyRenewsRevokedAccessToken(t *testing.T) {
	t.Parallel()
	harness := newClientHarness(t, stubapi.RoleMember)
	harness.login(t)

	// Corrupt only the access token; the stored refresh token must renew it
	// without the caller noticing.
	pair, _ := harness.store.Load()
	pair.AccessToken = "garbage-access-token"
	_ = harness.store.Save(pair)

	watchlist := api.NewWatchlistClient(harness.executor)
	if _, listErr := watchlist.List(context.Background(), api.DefaultPageParams()); listErr != nil {
		t.Fatalf("expected silent renewal, got: %v", listErr)
	}

	renewed, ok := harness.store.Load()
	if !ok || renewed.AccessToken == "garbage-access-token" || renewed.AccessToken == "" {
		t.Fatalf("expected a renewed access token in the store")
	}
	if renewed.RefreshToken != pair.RefreshToken {
		t.Fatalf("refresh token must survive renewal")
	}
}

func TestAdminClientTipLifecycle(t *testing.T) {
	t.Parallel()
	harness := newClientHarness(t, stubapi.RoleAdmin)
	harness.login(t)
	admin := api.NewAdminClient(harness.executor)

	created, createErr := admin.CreateTip(context.Background(), api.TipDraft{
		Title:       "Watch the halving cycle",
		Description: "Supply issuance halves roughly every four years.",
		Category:    "education",
		IsActive:    false,
	})
	if createErr != nil {
		t.Fatalf("create failed: %v", createErr)
	}
	if created.ID == 0 {
		t.Fatalf("expected an assigned tip id")
	}

	var validationErr *authclient.ValidationError
	if _, badErr := admin.CreateTip(context.Background(), api.TipDraft{Title: "No body"}); !errors.As(badErr, &validationErr) {
		t.Fatalf("expected ValidationError for a missing description, got %v", badErr)
	}

	updated, editErr := admin.EditTip(context.Background(), created.ID, api.TipDraft{
		Title:       "Watch the halving cycle",
		Description: "Supply issuance halves roughly every four years.",
		Category:    "education",
		IsActive:    true,
	})
	if editErr != nil {
		t.Fatalf("edit failed: %v", editErr)
	}
	if !updated.IsActive {
		t.Fatalf("expected the tip to be published after edit")
	}

	page, listErr := admin.ListTips(context.Background(), api.DefaultPageParams())
	if listErr != nil {
		t.Fatalf("admin list failed: %v", listErr)
	}
	found := false
	for _, tip := range page.Data {
		if tip.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("created tip missing from the admin listing")
	}

	if deleteErr := admin.DeleteTip(context.Background(), created.ID); deleteErr != nil {
		t.Fatalf("delete failed: %v", deleteErr)
	}
	if deleteAgainErr := admin.DeleteTip(context.Background(), created.ID); deleteAgainErr == nil {
		t.Fatalf("deleting a removed tip must fail")
	}
}

func TestMemberCannotReachAdminEndpoints(t *testing.T) {
	t.Parallel()
	harness := newClientHarness(t, stubapi.RoleMember)
	harness.login(t)
	admin := api.NewAdminClient(harness.executor)

	_, listErr := admin.ListTips(context.Background(), api.DefaultPageParams())
	var serverErr *authclient.ServerError
	if !errors.As(listErr, &serverErr) {
		t.Fatalf("expected ServerError, got %T: %v", listErr, listErr)
	}
	if serverErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a member in the admin area, got %d", serverErr.StatusCode)
	}
}
