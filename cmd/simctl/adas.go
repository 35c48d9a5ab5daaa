package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zmang24/si-opportunity-manager/internal/app"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

func newAdasCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adas",
		Short: "Maintain ADAS system reference data",
	}

	var name, description string
	upsert := &cobra.Command{
		Use:   "upsert <code>",
		Short: "Create or rename an ADAS system",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(strings.TrimSpace(args[0]))
			if code == "" || strings.TrimSpace(name) == "" {
				return app.UsageError("code and --name are required")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				err := a.Vehicles.UpsertAdasSystem(cmd.Context(), &domain.AdasSystem{
					Code:        code,
					Name:        strings.TrimSpace(name),
					Description: strings.TrimSpace(description),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Upserted %s\n", code)
				return nil
			})
		},
	}
	upsert.Flags().StringVar(&name, "name", "", "Display name (required)")
	upsert.Flags().StringVar(&description, "description", "", "Description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List ADAS systems",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				systems, err := a.Vehicles.ListAdasSystems(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range systems {
					fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", s.Code, s.Name)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(upsert, list)
	return cmd
}
