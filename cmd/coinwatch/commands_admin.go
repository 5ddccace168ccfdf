package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mpekarov/coinwatch/internal/api"
	"github.com/mpekarov/coinwatch/pkg/routegate"
)

func newAdminCommand() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Content management for administrators",
	}
	tipsCmd := &cobra.Command{
		Use:   "tips",
		Short: "Manage market tips",
	}
	tipsCmd.AddCommand(
		newAdminTipsListCommand(),
		newAdminTipsAddCommand(),
		newAdminTipsEditCommand(),
		newAdminTipsDeleteCommand(),
	)
	adminCmd.AddCommand(tipsCmd)
	return adminCmd
}

func newAdminTipsListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all tips, drafts included",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if _, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedRole(routegate.RoleAdmin)); gateErr != nil {
				return gateErr
			}
			page, listErr := application.admin.ListTips(command.Context(), pageParamsFrom(command))
			if listErr != nil {
				return listErr
			}
			for _, tip := range page.Data {
				marker := "published"
				if !tip.IsActive {
					marker = "draft"
				}
				fmt.Fprintf(command.OutOrStdout(), "[%d] %s (%s, %s)\n", tip.ID, tip.Title, tip.Category, marker)
			}
			fmt.Fprintf(command.OutOrStdout(), "page %d of %d\n", page.Page, page.TotalPages)
			return nil
		},
	}
	addPageFlags(listCmd)
	return listCmd
}

func newAdminTipsAddCommand() *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a tip",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if _, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedRole(routegate.RoleAdmin)); gateErr != nil {
				return gateErr
			}
			tip, createErr := application.admin.CreateTip(command.Context(), tipDraftFrom(command))
			if createErr != nil {
				return createErr
			}
			fmt.Fprintf(command.OutOrStdout(), "tip %d created\n", tip.ID)
			return nil
		},
	}
	addTipDraftFlags(addCmd)
	return addCmd
}

func newAdminTipsEditCommand() *cobra.Command {
	editCmd := &cobra.Command{
		Use:   "edit <tip-id>",
		Short: "Update a tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			tipID, parseErr := strconv.ParseInt(arguments[0], 10, 64)
			if parseErr != nil {
				return fmt.Errorf("cli.invalid_tip_id: %q is not a numeric tip id", arguments[0])
			}
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if _, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedRole(routegate.RoleAdmin)); gateErr != nil {
				return gateErr
			}
			tip, editErr := application.admin.EditTip(command.Context(), tipID, tipDraftFrom(command))
			if editErr != nil {
				return editErr
			}
			fmt.Fprintf(command.OutOrStdout(), "tip %d updated\n", tip.ID)
			return nil
		},
	}
	addTipDraftFlags(editCmd)
	return editCmd
}

func newAdminTipsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tip-id>",
		Short: "Delete a tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			tipID, parseErr := strconv.ParseInt(arguments[0], 10, 64)
			if parseErr != nil {
				return fmt.Errorf("cli.invalid_tip_id: %q is not a numeric tip id", arguments[0])
			}
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if _, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedRole(routegate.RoleAdmin)); gateErr != nil {
				return gateErr
			}
			if deleteErr := application.admin.DeleteTip(command.Context(), tipID); deleteErr != nil {
				return deleteErr
			}
			fmt.Fprintf(command.OutOrStdout(), "tip %d deleted\n", tipID)
			return nil
		},
	}
}

func addTipDraftFlags(command *cobra.Command) {
	command.Flags().String("title", "", "Tip title")
	command.Flags().String("description", "", "Tip body text")
	command.Flags().String("category", "", "Tip category")
	command.Flags().String("image", "", "Image URL")
	command.Flags().Bool("active", true, "Publish immediately")
	_ = command.MarkFlagRequired("title")
	_ = command.MarkFlagRequired("description")
}

func tipDraftFrom(command *cobra.Command) api.TipDraft {
	title, _ := command.Flags().GetString("title")
	description, _ := command.Flags().GetString("description")
	category, _ := command.Flags().GetString("category")
	image, _ := command.Flags().GetString("image")
	active, _ := command.Flags().GetBool("active")
	return api.TipDraft{
		Title:       title,
		Description: description,
		Category:    category,
		Image:       image,
		IsActive:    active,
	}
}
