package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpekarov/coinwatch/internal/stubapi"
	"github.com/mpekarov/coinwatch/internal/stubpg"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func newStubCommand() *cobra.Command {
	stubCmd := &cobra.Command{
		Use:   "stub",
		Short: "Run the in-process API double for local development",
		RunE:  runStubServer,
	}
	stubCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	stubCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access tokens (empty uses the built-in dev key)")
	stubCmd.Flags().String("database_url", "", "Postgres URL for refresh tokens; empty keeps them in memory")
	stubCmd.Flags().Bool("enable_cors", false, "Enable CORS for browser clients")
	stubCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")
	stubCmd.Flags().String("seed_admin_email", "admin@coinwatch.local", "Seeded administrator email")
	stubCmd.Flags().String("seed_admin_password", "admin-password", "Seeded administrator password")
	return stubCmd
}

func runStubServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	listenAddr, _ := command.Flags().GetString("listen_addr")
	signingKey, _ := command.Flags().GetString("jwt_signing_key")
	databaseURL, _ := command.Flags().GetString("database_url")
	enableCORS, _ := command.Flags().GetBool("enable_cors")
	corsAllowedOrigins, _ := command.Flags().GetStringSlice("cors_allowed_origins")
	seedAdminEmail, _ := command.Flags().GetString("seed_admin_email")
	seedAdminPassword, _ := command.Flags().GetString("seed_admin_password")

	config := stubapi.DefaultConfig()
	if signingKey != "" {
		config.SigningKey = []byte(signingKey)
	}

	var refreshStore stubapi.RefreshTokenStore
	if databaseURL != "" {
		pool, poolErr := stubpg.BuildPool(command.Context(), databaseURL)
		if poolErr != nil {
			return poolErr
		}
		defer pool.Close()
		if schemaErr := stubpg.EnsureSchema(command.Context(), pool); schemaErr != nil {
			return schemaErr
		}
		refreshStore = stubpg.NewPostgresRefreshTokenStore(pool)
		logger.Info("using persistent refresh token store")
	}

	server, serverErr := stubapi.NewServer(stubapi.ServerOptions{
		Config:        config,
		RefreshTokens: refreshStore,
		Logger:        logger,
	})
	if serverErr != nil {
		return serverErr
	}

	if _, seedErr := server.Users().Seed("Administrator", seedAdminEmail, seedAdminPassword, stubapi.RoleAdmin); seedErr != nil {
		return fmt.Errorf("stub.seed_admin: %w", seedErr)
	}

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Router(enableCORS, corsAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := httpServer.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}
