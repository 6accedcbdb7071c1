// Command admin provisions cardkeeper admin accounts directly in the
// database. Admins log in through POST /admin/login.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/cardkeeper/internal/server"
	"github.com/dmitrijs2005/cardkeeper/internal/server/config"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
)

type globalFlags struct {
	configPath string
	dsn        string
	jsonOutput bool
}

func main() {
	if err := newRootCmd(openAccounts).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "cardkeeper-admin",
		Short:        "Manage cardkeeper admin accounts",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "server config file (JSON, YAML or TOML)")
	cmd.PersistentFlags().StringVarP(&flags.dsn, "dsn", "d", "", "PostgreSQL DSN, overrides the config file")
	cmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "print JSON output")

	cmd.AddCommand(newAddCmd(flags, open))
	cmd.AddCommand(newCountCmd(flags, open))
	return cmd
}

// admins is the part of the account service the commands need.
type admins interface {
	CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error)
	CountAdmins(ctx context.Context) (int64, error)
}

// opener connects to the database and returns the account service plus a
// close func.
type opener func(ctx context.Context, flags *globalFlags) (admins, func() error, error)

func openAccounts(ctx context.Context, flags *globalFlags) (admins, func() error, error) {
	cfg, err := config.LoadFile(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if flags.dsn != "" {
		cfg.DatabaseDSN = flags.dsn
	}

	db, rm, err := server.OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return services.NewAccountService(db, rm, cfg.SecretKey, cfg.AccessTokenValidityDuration), db.Close, nil
}

func withAdmins(ctx context.Context, flags *globalFlags, open opener, fn func(admins) error) (err error) {
	svc, closeFn, err := open(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); err == nil {
			err = cerr
		}
	}()
	return fn(svc)
}
