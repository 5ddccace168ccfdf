package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mpekarov/coinwatch/pkg/routegate"
)

func newWatchlistCommand() *cobra.Command {
	watchlistCmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Manage the personal coin watchlist",
	}
	watchlistCmd.AddCommand(newWatchlistListCommand(), newWatchlistAddCommand(), newWatchlistRemoveCommand())
	return watchlistCmd
}

func newWatchlistListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show watched coins",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if _, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedRole(routegate.RoleMember)); gateErr != nil {
				return gateErr
			}

			page, listErr := application.watchlist.List(command.Context(), pageParamsFrom(command))
			if listErr != nil {
				return listErr
			}
			if len(page.Data) == 0 {
				fmt.Fprintln(command.OutOrStdout(), "watchlist is empty")
				return nil
			}
			printCoins(command.OutOrStdout(), page.Data)
			return nil
		},
	}
	addPageFlags(listCmd)
	return listCmd
}

func newWatchlistAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <coin-id>",
		Short: "Add a coin to the watchlist",
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

			if _, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedRole(routegate.RoleMember)); gateErr != nil {
				return gateErr
			}
			if addErr := application.watchlist.Add(command.Context(), coinID); addErr != nil {
				return addErr
			}
			fmt.Fprintf(command.OutOrStdout(), "coin %d added to watchlist\n", coinID)
			return nil
		},
	}
}

func newWatchlistRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <coin-id>",
		Short: "Remove a coin from the watchlist",
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

			if _, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedRole(routegate.RoleMember)); gateErr != nil {
				return gateErr
			}
			if removeErr := application.watchlist.Remove(command.Context(), coinID); removeErr != nil {
				return removeErr
			}
			fmt.Fprintf(command.OutOrStdout(), "coin %d removed from watchlist\n", coinID)
			return nil
		},
	}
}
