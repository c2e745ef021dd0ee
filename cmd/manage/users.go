package main

import (
	"fmt"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/spf13/cobra"
)

func newCreateSuperuserCmd() *cobra.Command {
	var input services.RegisterInput
	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create the admin account unless its email is already registered",
		Long: `Creates a staff account. Flags default to the SUPERUSER_EMAIL,
SUPERUSER_USERNAME, SUPERUSER_FIRST_NAME, SUPERUSER_LAST_NAME and
SUPERUSER_PASSWORD environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migratedDB()
			if err != nil {
				return err
			}
			created, err := services.NewUserService(db).EnsureSuperuser(cmd.Context(), input)
			if err != nil {
				return err
			}

			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created\n", input.Email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s already exists\n", input.Email)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input.Email, "email", config.GetEnvWithDefault("SUPERUSER_EMAIL", ""), "email address")
	flags.StringVar(&input.Username, "username", config.GetEnvWithDefault("SUPERUSER_USERNAME", "admin"), "username")
	flags.StringVar(&input.FirstName, "first-name", config.GetEnvWithDefault("SUPERUSER_FIRST_NAME", "Admin"), "first name")
	flags.StringVar(&input.LastName, "last-name", config.GetEnvWithDefault("SUPERUSER_LAST_NAME", "Admin"), "last name")
	flags.StringVar(&input.Password, "password", config.GetEnvWithDefault("SUPERUSER_PASSWORD", ""), "password, at least 8 characters")
	return cmd
}
