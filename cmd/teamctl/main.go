// Command teamctl runs schema migrations and one-off administration tasks
// against the team database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/config"
	"gottabike.org/internal/obs"
	"gottabike.org/internal/settings"
	"gottabike.org/internal/store/pg"
)

var (
	dsnFlag string
	timeout time.Duration

	cfg   *config.Config
	store *pg.Store

	rootCmd = &cobra.Command{
		Use:           "teamctl",
		Short:         "Administer the team database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			log, err := obs.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			obs.SetLogger(log)
			if dsnFlag != "" {
				cfg.DatabaseURL = dsnFlag
			}
			if cfg.DatabaseURL == "" {
				return errors.New("missing database url: set --dsn or GOTTABIKE_DATABASE_URL")
			}
			store, err = pg.Open(cfg.DatabaseURL, 2)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "PostgreSQL DSN (overrides GOTTABIKE_DATABASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Deadline for the whole command")
	rootCmd.AddCommand(migrateCmd, superuserCmd, permsCmd, settingsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		obs.Logger().Error("teamctl failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "teamctl:", err)
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func settingsService() (*settings.Service, error) {
	return settings.NewService(store, time.Now)
}

func accountService() (*auth.Service, error) {
	s, err := settingsService()
	if err != nil {
		return nil, err
	}
	return auth.NewService(store, s)
}
