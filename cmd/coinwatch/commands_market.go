package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpekarov/coinwatch/internal/api"
	"github.com/mpekarov/coinwatch/internal/authclient"
)

func newMarketsCommand() *cobra.Command {
	marketsCmd := &cobra.Command{
		Use:   "markets",
		Short: "List coins by market capitalization",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if offline, _ := command.Flags().GetBool("offline"); offline {
				if application.cache == nil {
					return errors.New("cli.cache_disabled: offline listing needs a cache_url")
				}
				cachedCoins, ok := application.cache.LoadCoins(application.config.CacheMaxAge)
				if !ok {
					return errors.New("cli.cache_miss: no fresh market snapshot; run markets online first")
				}
				printCoins(command.OutOrStdout(), cachedCoins)
				return nil
			}

			params := pageParamsFrom(command)
			page, listErr := application.markets.List(command.Context(), params)
			if listErr != nil {
				var networkErr *authclient.NetworkError
				if errors.As(listErr, &networkErr) && application.cache != nil {
					if cachedCoins, ok := application.cache.LoadCoins(application.config.CacheMaxAge); ok {
						fmt.Fprintln(command.ErrOrStderr(), "network unreachable; showing cached snapshot")
						printCoins(command.OutOrStdout(), cachedCoins)
						return nil
					}
				}
				return listErr
			}
			if application.cache != nil && params.Page == 1 {
				if saveErr := application.cache.SaveCoins(page.Data); saveErr != nil {
					application.logger.Debug("market snapshot not cached", zap.Error(saveErr))
				}
			}
			printCoins(command.OutOrStdout(), page.Data)
			fmt.Fprintf(command.OutOrStdout(), "page %d of %d coins\n", page.Page, page.Total)
			return nil
		},
	}
	addPageFlags(marketsCmd)
	marketsCmd.Flags().Bool("offline", false, "Serve the cached snapshot without contacting the API")
	return marketsCmd
}

func newCoinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "coin <id>",
		Short: "Show one coin's market data",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			coinID, parseErr := strconv.ParseInt(arguments[0], 10, 64)
			if parseErr != nil {
				return fmt.Errorf("cli.invalid_coin_id: %q is not a numeric coin id", arguments[0])
			}
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			coin, getErr := application.markets.Get(command.Context(), coinID)
			if getErr != nil {
				return getErr
			}
			output := command.OutOrStdout()
			fmt.Fprintf(output, "%s (%s)\n", coin.Name, coin.Symbol)
			fmt.Fprintf(output, "price:              $%.2f\n", coin.Price)
			fmt.Fprintf(output, "change 1h/24h/7d:   %+.2f%% / %+.2f%% / %+.2f%%\n",
				coin.PercentChange1H, coin.PercentChange24H, coin.PercentChange7D)
			fmt.Fprintf(output, "market cap:         $%.0f\n", coin.MarketCap)
			fmt.Fprintf(output, "volume 24h:         $%.0f\n", coin.Volume24H)
			fmt.Fprintf(output, "circulating supply: %.0f\n", coin.CirculatingSupply)
			return nil
		},
	}
}

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search coins by name or symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			coins, searchErr := application.markets.Search(command.Context(), arguments[0])
			if searchErr != nil {
				return searchErr
			}
			if len(coins) == 0 {
				fmt.Fprintln(command.OutOrStdout(), "no coins matched")
				return nil
			}
			printCoins(command.OutOrStdout(), coins)
			return nil
		},
	}
}

func newNewsCommand() *cobra.Command {
	newsCmd := &cobra.Command{
		Use:   "news",
		Short: "List published market tips",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if tipID, _ := command.Flags().GetInt64("id"); tipID > 0 {
				tip, getErr := application.news.Get(command.Context(), tipID)
				if getErr != nil {
					return getErr
				}
				printTips(command.OutOrStdout(), []api.Tip{tip})
				return nil
			}

			if offline, _ := command.Flags().GetBool("offline"); offline {
				if application.cache == nil {
					return errors.New("cli.cache_disabled: offline listing needs a cache_url")
				}
				cachedTips, ok := application.cache.LoadTips(application.config.CacheMaxAge)
				if !ok {
					return errors.New("cli.cache_miss: no fresh news snapshot; run news online first")
				}
				printTips(command.OutOrStdout(), cachedTips)
				return nil
			}

			params := pageParamsFrom(command)
			page, listErr := application.news.List(command.Context(), params)
			if listErr != nil {
				var networkErr *authclient.NetworkError
				if errors.As(listErr, &networkErr) && application.cache != nil {
					if cachedTips, ok := application.cache.LoadTips(application.config.CacheMaxAge); ok {
						fmt.Fprintln(command.ErrOrStderr(), "network unreachable; showing cached snapshot")
						printTips(command.OutOrStdout(), cachedTips)
						return nil
					}
				}
				return listErr
			}
			if application.cache != nil && params.Page == 1 {
				if saveErr := application.cache.SaveTips(page.Data); saveErr != nil {
					application.logger.Debug("news snapshot not cached", zap.Error(saveErr))
				}
			}
			printTips(command.OutOrStdout(), page.Data)
			fmt.Fprintf(command.OutOrStdout(), "page %d of %d\n", page.Page, page.TotalPages)
			return nil
		},
	}
	addPageFlags(newsCmd)
	newsCmd.Flags().Int64("id", 0, "Show a single tip by id instead of the feed")
	newsCmd.Flags().Bool("offline", false, "Serve the cached snapshot without contacting the API")
	return newsCmd
}

func addPageFlags(command *cobra.Command) {
	command.Flags().Int("page", 1, "Page number")
	command.Flags().Int("limit", 20, "Items per page")
}

func pageParamsFrom(command *cobra.Command) api.PageParams {
	params := api.DefaultPageParams()
	if page, pageErr := command.Flags().GetInt("page"); pageErr == nil && page > 0 {
		params.Page = page
	}
	if limit, limitErr := command.Flags().GetInt("limit"); limitErr == nil && limit > 0 {
		params.Limit = limit
	}
	return params
}

func printCoins(output io.Writer, coins []api.Coin) {
	writer := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tSYMBOL\tPRICE\t24H")
	for _, coin := range coins {
		fmt.Fprintf(writer, "%d\t%s\t%s\t$%.2f\t%+.2f%%\n",
			coin.ID, coin.Name, coin.Symbol, coin.Price, coin.PercentChange24H)
	}
	_ = writer.Flush()
}

func printTips(output io.Writer, tips []api.Tip) {
	for _, tip := range tips {
		fmt.Fprintf(output, "[%d] %s (%s, %s)\n    %s\n",
			tip.ID, tip.Title, tip.Category, tip.CreatedAt.Format("2006-01-02"), tip.Description)
	}
}
