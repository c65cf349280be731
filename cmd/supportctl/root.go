package main

import (
	"context"
	"fmt"

	"cargodesk-backend/internal/config"
	"cargodesk-backend/internal/database"
	"cargodesk-backend/internal/repository"
	"cargodesk-backend/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
}

// NewRootCommand creates the supportctl root command.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "supportctl",
		Short:         "Operate the support chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewStaffCommand(opts))
	cmd.AddCommand(NewTokenCommand(cfg))
	cmd.AddCommand(NewAdminKeyCommand())
	return cmd
}

func (o *RootOptions) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if o.DatabaseURL == "" || o.DatabaseURL == config.MemoryDatabaseURL {
		return nil, fmt.Errorf("supportctl needs a Postgres --database-url")
	}
	return database.NewPool(ctx, o.DatabaseURL)
}

func postgresSupport(pool *pgxpool.Pool) *service.Support {
	return service.NewSupport(service.Stores{
		Chats:         repository.NewChatRepository(pool),
		Messages:      repository.NewMessageRepository(pool),
		Notifications: repository.NewNotificationRepository(pool),
		Staff:         repository.NewStaffRepository(pool),
	}, nil, nil, service.SystemClock)
}
