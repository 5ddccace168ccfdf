package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpekarov/coinwatch/internal/api"
	"github.com/mpekarov/coinwatch/internal/authclient"
	"github.com/mpekarov/coinwatch/internal/cache"
	"github.com/mpekarov/coinwatch/pkg/routegate"
)

var (
	errSignInRequired  = errors.New("gate.sign_in_required")
	errAlreadySignedIn = errors.New("gate.already_signed_in")
	errRoleNotAllowed  = errors.New("gate.role_not_allowed")
	errSessionUnstable = errors.New("gate.session_unresolved")
)

// app holds the wired client stack for one command invocation.
type app struct {
	config    appConfig
	logger    *zap.Logger
	manager   *authclient.Manager
	executor  *authclient.Executor
	cache     *cache.Store
	markets   *api.MarketsClient
	news      *api.NewsClient
	watchlist *api.WatchlistClient
	admin     *api.AdminClient
}

func buildApp(ctx context.Context, config appConfig) (*app, error) {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return nil, loggerErr
	}

	credentialStore := authclient.NewFileCredentialStore(config.CredentialsPath, logger)
	httpClient := &http.Client{Timeout: config.HTTPTimeout}
	gateway := authclient.NewHTTPAuthGateway(config.APIBaseURL, httpClient)
	metrics := authclient.NewCounterMetrics()

	executor := authclient.NewExecutor(authclient.ExecutorConfig{
		BaseURL:     config.APIBaseURL,
		HTTPClient:  httpClient,
		Credentials: credentialStore,
		Gateway:     gateway,
		AccessTTL:   config.AccessTTL,
		Logger:      logger,
		Metrics:     metrics,
	})

	var cacheStore *cache.Store
	if config.CacheURL != "" {
		openedStore, cacheErr := cache.Open(ctx, config.CacheURL)
		if cacheErr != nil {
			logger.Warn("local cache unavailable", zap.Error(cacheErr))
		} else {
			cacheStore = openedStore
		}
	}

	managerConfig := authclient.ManagerConfig{
		Credentials: credentialStore,
		Gateway:     gateway,
		Executor:    executor,
		AccessTTL:   config.AccessTTL,
		RefreshTTL:  config.RefreshTTL,
		Logger:      logger,
		Metrics:     metrics,
	}
	if cacheStore != nil {
		managerConfig.IdentityCache = cacheStore
	}
	manager := authclient.NewManager(managerConfig)

	return &app{
		config:    config,
		logger:    logger,
		manager:   manager,
		executor:  executor,
		cache:     cacheStore,
		markets:   api.NewMarketsClient(executor),
		news:      api.NewNewsClient(executor),
		watchlist: api.NewWatchlistClient(executor),
		admin:     api.NewAdminClient(executor),
	}, nil
}

func (application *app) close() {
	_ = application.logger.Sync()
}

func buildAppFrom(command *cobra.Command) (*app, error) {
	config, configErr := appConfigFrom(command)
	if configErr != nil {
		return nil, configErr
	}
	return buildApp(command.Context(), config)
}

// resolveGate bootstraps the session and evaluates the route requirement. It
// returns the resolved session when the command may proceed.
func (application *app) resolveGate(ctx context.Context, requirement routegate.Requirement) (authclient.Session, error) {
	session := application.manager.Bootstrap(ctx)
	decision := routegate.Decide(gateStatus(session.Status), gateIdentity(session.Identity), requirement)

	switch decision.Action {
	case routegate.ActionAllow:
		return session, nil
	case routegate.ActionDefer:
		return authclient.Session{}, fmt.Errorf("%w: session did not resolve", errSessionUnstable)
	case routegate.ActionRedirect:
		if decision.Target == routegate.LoginRoute {
			return authclient.Session{}, fmt.Errorf("%w: run `coinwatch login` first", errSignInRequired)
		}
		if session.Identity != nil && requirement == routegate.Public() {
			return authclient.Session{}, fmt.Errorf("%w: signed in as %s; run `coinwatch logout` first", errAlreadySignedIn, session.Identity.Email)
		}
		return authclient.Session{}, fmt.Errorf("%w: your account's area is %s", errRoleNotAllowed, decision.Target)
	default:
		return authclient.Session{}, fmt.Errorf("%w: unknown gate action", errSessionUnstable)
	}
}

func gateStatus(status authclient.Status) routegate.Status {
	switch status {
	case authclient.StatusLoading:
		return routegate.StatusLoading
	case authclient.StatusReady:
		return routegate.StatusReady
	default:
		return routegate.StatusUninitialized
	}
}

func gateIdentity(user *authclient.User) *routegate.Identity {
	if user == nil {
		return nil
	}
	return &routegate.Identity{Role: routegate.Role(user.Role)}
}
