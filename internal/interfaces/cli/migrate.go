package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/infrastructure/migration"
)

// resolveMigrationsPath finds the migrations directory, trying the working
// directory first and then the layout next to the executable
func resolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = migration.DefaultPath
		if _, err := os.Stat(path); err != nil {
			if execPath, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", migration.DefaultPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

func newMigrateCommand(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the database schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "Path to migrations directory (default: ./migrations)")

	// withMigrator opens a migrator for the duration of fn
	withMigrator := func(fn func(m *migration.Migrator) error) error {
		dir, err := resolveMigrationsPath(path)
		if err != nil {
			return err
		}
		a.logger.Info("Migration started", zap.String("migrations_path", dir))

		m, err := migration.NewFromConfig(&a.cfg.Database, dir, a.logger.Named("migration"))
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(*cobra.Command, []string) error {
			return withMigrator(func(m *migration.Migrator) error { return m.Up() })
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(*cobra.Command, []string) error {
			return withMigrator(func(m *migration.Migrator) error { return m.Down() })
		},
	}

	stepCmd := &cobra.Command{
		Use:   "step <n>",
		Short: "Apply n migrations (positive = up, negative = down)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return withMigrator(func(m *migration.Migrator) error { return m.Steps(n) })
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *migration.Migrator) error {
				status, err := m.Version()
				if err != nil {
					return err
				}
				return writeJSON(cmd, status)
			})
		},
	}

	forceCmd := &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long:  "Set the schema version without running migrations. Use it to clear a dirty state after a failed migration.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number %q", args[0])
			}
			return withMigrator(func(m *migration.Migrator) error { return m.Force(version) })
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new numbered migration file pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveMigrationsPath(path)
			if err != nil {
				return err
			}
			mf, err := migration.CreateMigration(dir, args[0])
			if err != nil {
				return err
			}
			a.logger.Info("Migration created",
				zap.Uint("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return writeJSON(cmd, mf)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List migrations found on disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveMigrationsPath(path)
			if err != nil {
				return err
			}
			migrations, err := migration.ListMigrations(dir)
			if err != nil {
				return err
			}
			return writeJSON(cmd, migrations)
		},
	}

	cmd.AddCommand(upCmd, downCmd, stepCmd, versionCmd, forceCmd, createCmd, listCmd)
	return cmd
}
