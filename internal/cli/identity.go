package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/lobbynet/internal/api/response"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Directory identity commands",
	}

	cmd.AddCommand(newIdentityAnonymousCmd())
	cmd.AddCommand(newIdentityRegisterCmd())
	cmd.AddCommand(newIdentityLoginCmd())
	cmd.AddCommand(newIdentityMeCmd())
	cmd.AddCommand(newIdentitySignOutCmd())

	return cmd
}

// adopt saves the token from a sign-in and prints the result
func adopt(result *response.AuthResponse) error {
	if err := cfg.SaveToken(result.SessionToken); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	out := NewOutput(cfg.Output)
	out.Print(*result)
	return nil
}

func newIdentityAnonymousCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "anonymous",
		Short: "Sign in anonymously with a display name",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.SignInAnonymously(cmd.Context(), name)
			if err != nil {
				return err
			}
			return adopt(result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newIdentityRegisterCmd() *cobra.Command {
	var name, user, pass string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Register(cmd.Context(), user, pass, name)
			if err != nil {
				return err
			}
			return adopt(result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newIdentityLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Login(cmd.Context(), user, pass)
			if err != nil {
				return err
			}
			return adopt(result)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newIdentityMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := client.Me(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(response.IdentityFromModel(&me))
			return nil
		},
	}
}

func newIdentitySignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Invalidate the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.SignOut(cmd.Context()); err != nil {
				return err
			}
			if err := cfg.SaveToken(""); err != nil {
				return fmt.Errorf("failed to clear token: %w", err)
			}

			NewOutput(cfg.Output).PrintMessage("Signed out")
			return nil
		},
	}
}
