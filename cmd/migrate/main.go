package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
	"github.com/hackgods/hospital-appointment-scheduling/internal/db"
	"github.com/hackgods/hospital-appointment-scheduling/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dsn    string
		logger zerolog.Logger
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the scheduling database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dsn = cfg.PostgresDSN
				logger = logging.New(cfg.LogLevel, cfg.Env)
			} else {
				logger = logging.Default()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "postgres DSN (defaults to POSTGRES_DSN)")

	withMigrator := func(fn func(m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, err := db.NewMigrator(dsn)
			if err != nil {
				logger.Error().Err(err).Msg("open migrator")
				return err
			}
			defer func() {
				if err := m.Close(); err != nil {
					logger.Warn().Err(err).Msg("close migrator")
				}
			}()
			if err := fn(m); err != nil {
				logger.Error().Err(err).Str("command", cmd.Name()).Msg("migration failed")
				return err
			}
			return nil
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m *db.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			logger.Info().Msg("schema up to date")
			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid steps %q: %w", args[0], err)
				}
				steps = n
			}
			return withMigrator(func(m *db.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				logger.Info().Int("steps", steps).Msg("rolled back")
				return nil
			})(cmd, args)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(func(m *db.Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				logger.Info().Int("version", version).Msg("version forced")
				return nil
			})(cmd, args)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m *db.Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "version=%d dirty=%t\n", v, dirty)
			return nil
		}),
	})

	return root
}
