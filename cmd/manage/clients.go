package main

import (
	"fmt"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/auth"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/spf13/cobra"
)

func newCreateClientCmd() *cobra.Command {
	var owner string
	var input services.ClientInput
	cmd := &cobra.Command{
		Use:   "create-client",
		Short: "Register an OAuth2 client acting on behalf of an existing user",
		Long: `Creates a client for the client_credentials grant. The secret is
printed once and cannot be recovered afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migratedDB()
			if err != nil {
				return err
			}

			user, err := services.NewUserService(db).GetUserByEmail(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("owner %s: %w", owner, err)
			}
			created, err := services.NewClientService(db).CreateClient(cmd.Context(), user.ID, input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Client ID: %s\n", created.Client.ID)
			fmt.Fprintf(out, "Client Secret: %s\n", created.Secret)
			fmt.Fprintf(out, "Owner: %s (role %s)\n", user.Email, user.Role)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&owner, "owner", "", "email of the user the client acts for")
	flags.StringVar(&input.Name, "name", "dev-client", "client name")
	flags.StringVar(&input.Domain, "domain", "", "client domain")
	flags.StringVar(&input.Scopes, "scopes", "", "space-separated scopes")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newPurgeTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired OAuth2 access tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migratedDB()
			if err != nil {
				return err
			}
			removed, err := auth.NewGormTokenStore(db).PurgeExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired tokens removed: %d\n", removed)
			return nil
		},
	}
}
