package main

import (
	"fmt"
	"time"

	"cargodesk-backend/internal/config"
	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/service"

	"github.com/spf13/cobra"
)

// NewTokenCommand mints a development access token signed with JWT_SECRET.
func NewTokenCommand(cfg *config.Config) *cobra.Command {
	var name, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Mint a development access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to mint tokens with ENV=production")
			}
			token, err := service.NewAuthService(cfg.JWTSecret).IssueAccessToken(model.Identity{
				UserID: args[0],
				Name:   name,
				Role:   model.Role(role),
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&role, "role", string(model.RoleCustomer), "customer, staff or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
