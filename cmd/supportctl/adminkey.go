package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// NewAdminKeyCommand prints a bcrypt hash suitable for ADMIN_KEY, so the
// plain key never has to sit in the server environment.
func NewAdminKeyCommand() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "admin-key <key>",
		Short: "Hash an admin key for the ADMIN_KEY variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args[0]) < 16 {
				return fmt.Errorf("admin key must be at least 16 characters")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
			if err != nil {
				return fmt.Errorf("hash admin key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
