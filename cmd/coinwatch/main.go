package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "coinwatch",
		Short:             "Crypto market and news client with silent session renewal",
		PersistentPreRunE: prepareAppConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().String("api_base_url", "http://localhost:8080", "Base URL of the coinwatch API")
	rootCmd.PersistentFlags().Duration("http_timeout", 15*time.Second, "HTTP request timeout")
	rootCmd.PersistentFlags().String("credentials_path", defaultCredentialsPath(), "Path of the stored credential file")
	rootCmd.PersistentFlags().String("cache_url", defaultCacheURL(), "Local cache URL (sqlite:// or postgres://; empty disables caching)")
	rootCmd.PersistentFlags().Duration("access_ttl", 24*time.Hour, "Fallback access token lifetime when the token carries no expiry")
	rootCmd.PersistentFlags().Duration("refresh_ttl", 7*24*time.Hour, "Fallback refresh token lifetime when the token carries no expiry")
	rootCmd.PersistentFlags().Duration("cache_max_age", time.Hour, "Maximum age of cached market and news snapshots")

	_ = viper.BindPFlag("api_base_url", rootCmd.PersistentFlags().Lookup("api_base_url"))
	_ = viper.BindPFlag("http_timeout", rootCmd.PersistentFlags().Lookup("http_timeout"))
	_ = viper.BindPFlag("credentials_path", rootCmd.PersistentFlags().Lookup("credentials_path"))
	_ = viper.BindPFlag("cache_url", rootCmd.PersistentFlags().Lookup("cache_url"))
	_ = viper.BindPFlag("access_ttl", rootCmd.PersistentFlags().Lookup("access_ttl"))
	_ = viper.BindPFlag("refresh_ttl", rootCmd.PersistentFlags().Lookup("refresh_ttl"))
	_ = viper.BindPFlag("cache_max_age", rootCmd.PersistentFlags().Lookup("cache_max_age"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newLoginCommand(),
		newRegisterCommand(),
		newLogoutCommand(),
		newWhoamiCommand(),
		newMarketsCommand(),
		newCoinCommand(),
		newSearchCommand(),
		newNewsCommand(),
		newWatchlistCommand(),
		newAdminCommand(),
		newStubCommand(),
	)

	return rootCmd
}

const (
	configCodeMissingAPIBaseURL  = "config.missing_api_base_url"
	configCodeInvalidHTTPTimeout = "config.invalid_http_timeout"
	configCodeInvalidAccessTTL   = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL  = "config.invalid_refresh_ttl"
	configCodeUninitializedApp   = "config.uninitialized_app_config"
)

type contextKey string

const appConfigContextKey contextKey = "appConfig"

type appConfig struct {
	APIBaseURL      string
	HTTPTimeout     time.Duration
	CredentialsPath string
	CacheURL        string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	CacheMaxAge     time.Duration
}

func prepareAppConfig(command *cobra.Command, arguments []string) error {
	config, loadErr := loadAppConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, appConfigContextKey, config))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func loadAppConfig() (appConfig, error) {
	apiBaseURL := strings.TrimRight(viper.GetString("api_base_url"), "/")
	if apiBaseURL == "" {
		return appConfig{}, configError(configCodeMissingAPIBaseURL, "api_base_url must be provided")
	}

	httpTimeout := viper.GetDuration("http_timeout")
	if httpTimeout <= 0 {
		return appConfig{}, configError(configCodeInvalidHTTPTimeout, "http_timeout must be greater than zero")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return appConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return appConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return appConfig{
		APIBaseURL:      apiBaseURL,
		HTTPTimeout:     httpTimeout,
		CredentialsPath: viper.GetString("credentials_path"),
		CacheURL:        viper.GetString("cache_url"),
		AccessTTL:       accessTTL,
		RefreshTTL:      refreshTTL,
		CacheMaxAge:     viper.GetDuration("cache_max_age"),
	}, nil
}

func appConfigFrom(command *cobra.Command) (appConfig, error) {
	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(appConfigContextKey)
	}
	config, ok := contextValue.(appConfig)
	if !ok {
		return appConfig{}, configError(configCodeUninitializedApp, "app configuration not prepared; PersistentPreRunE must execute before RunE")
	}
	return config, nil
}

func defaultCredentialsPath() string {
	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return filepath.Join(".", ".coinwatch", "credentials.json")
	}
	return filepath.Join(homeDir, ".coinwatch", "credentials.json")
}

func defaultCacheURL() string {
	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return "sqlite://" + filepath.Join(".", ".coinwatch", "cache.db")
	}
	return "sqlite://" + filepath.Join(homeDir, ".coinwatch", "cache.db")
}
