package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/zmang24/si-opportunity-manager/internal/app"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

var validate = validator.New()

func newTokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Issue a bearer token for an active user",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if ttl <= 0 {
					ttl = a.Config.Auth.TokenTTLDuration()
				}
				token, err := a.Users.IssueToken(cmd.Context(), args[0], ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token.Token)
				fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", token.ExpiresAt)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default auth.tokenTTL)")
	return cmd
}

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var req domain.CreateUserRequest
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an active user",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Username = args[0]
			if err := validate.Struct(&req); err != nil {
				return app.UsageError("invalid user: %v", err)
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				user, err := a.Users.Create(cmd.Context(), &req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", user.Username, user.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&req.Email, "email", "", "Email address (required)")
	create.Flags().StringVar(&req.DisplayName, "name", "", "Display name (required)")
	create.Flags().StringVar(&req.Role, "role", string(domain.RoleUser), "Role: user, manager or admin")
	create.Flags().StringVar(&req.Team, "team", "", "Team")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users as JSON",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				users, err := a.Users.List(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(users)
			})
		},
	}

	cmd.AddCommand(create, list,
		setActiveCommand("activate", "Allow a user to authenticate again", true),
		setActiveCommand("deactivate", "Stop a user from authenticating; their tickets are kept", false),
	)
	return cmd
}

func setActiveCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Users.SetActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: active=%t\n", args[0], active)
				return nil
			})
		},
	}
}
