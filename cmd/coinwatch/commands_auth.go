package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpekarov/coinwatch/internal/authclient"
	"github.com/mpekarov/coinwatch/pkg/routegate"
)

func newLoginCommand() *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential pair",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if _, gateErr := application.resolveGate(command.Context(), routegate.Public()); gateErr != nil {
				return gateErr
			}

			email, _ := command.Flags().GetString("email")
			password, _ := command.Flags().GetString("password")

			session, loginErr := application.manager.Login(command.Context(), email, password)
			if loginErr != nil {
				return describeAuthError(command.ErrOrStderr(), loginErr)
			}
			fmt.Fprintf(command.OutOrStdout(), "signed in as %s (%s)\n", session.Identity.DisplayName, session.Identity.Role)
			return nil
		},
	}
	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
	return loginCmd
}

func newRegisterCommand() *cobra.Command {
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			if _, gateErr := application.resolveGate(command.Context(), routegate.Public()); gateErr != nil {
				return gateErr
			}

			name, _ := command.Flags().GetString("name")
			email, _ := command.Flags().GetString("email")
			password, _ := command.Flags().GetString("password")

			if registerErr := application.manager.Register(command.Context(), name, email, password); registerErr != nil {
				return describeAuthError(command.ErrOrStderr(), registerErr)
			}
			fmt.Fprintln(command.OutOrStdout(), "account created; run `coinwatch login` to sign in")
			return nil
		},
	}
	registerCmd.Flags().String("name", "", "Display name")
	registerCmd.Flags().String("email", "", "Account email")
	registerCmd.Flags().String("password", "", "Account password")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")
	return registerCmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			application.manager.Logout(command.Context())
			fmt.Fprintln(command.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(command *cobra.Command, arguments []string) error {
			application, buildErr := buildAppFrom(command)
			if buildErr != nil {
				return buildErr
			}
			defer application.close()

			session, gateErr := application.resolveGate(command.Context(), routegate.AuthenticatedAny())
			if gateErr != nil {
				return gateErr
			}
			identity := session.Identity
			fmt.Fprintf(command.OutOrStdout(), "id:    %s\nname:  %s\nemail: %s\nrole:  %s\n",
				identity.ID, identity.DisplayName, identity.Email, identity.Role)
			return nil
		},
	}
}

// describeAuthError rewrites auth failures into terse CLI messages while
// keeping the original error in the chain.
func describeAuthError(output io.Writer, authErr error) error {
	var validationErr *authclient.ValidationError
	if errors.As(authErr, &validationErr) {
		for field, messages := range validationErr.Fields {
			for _, message := range messages {
				if field == "server" {
					fmt.Fprintln(output, message)
					continue
				}
				fmt.Fprintf(output, "%s: %s\n", field, message)
			}
		}
		return errors.New("auth.rejected")
	}
	var networkErr *authclient.NetworkError
	if errors.As(authErr, &networkErr) {
		return fmt.Errorf("auth.network_unreachable: %w", authErr)
	}
	return authErr
}
