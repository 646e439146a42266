package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/infrastructure/logger"
	"github.com/erp/migrator/internal/infrastructure/persistence"
	"github.com/erp/migrator/internal/infrastructure/schema"
)

var migrationsDir string

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the entity store schema",
	Long: `Manage the schema of the postgres entity store.

Migrations are compiled into the binary; --path reads them from a directory
instead. A sqlite store has no versioned schema: "db up" creates its tables
and the other subcommands are not available.`,
}

var dbUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rt.cfg.Database.Driver == "sqlite" {
			return autoMigrateSQLite()
		}
		return withSchema(func(m *schema.Migrator) error { return m.Up() })
	},
}

var dbDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSchema(func(m *schema.Migrator) error { return m.Down() })
	},
}

var dbStepsCmd = &cobra.Command{
	Use:   "steps <n>",
	Short: "Apply n migrations (negative n rolls back)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return withSchema(func(m *schema.Migrator) error { return m.Steps(n) })
	},
}

var dbVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSchema(func(m *schema.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Println("No migrations applied")
				return nil
			}
			fmt.Printf("Version: %d", version)
			if dirty {
				fmt.Print(" (dirty, fix the failed migration then run: migrator db force <version>)")
			}
			fmt.Println()
			return nil
		})
	},
}

var dbForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return withSchema(func(m *schema.Migrator) error { return m.Force(version) })
	},
}

var dbCreateCmd = &cobra.Command{
	Use:   "create <name> [description]",
	Short: "Create an empty up/down migration pair",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrationsDir
		if dir == "" {
			dir = "internal/infrastructure/schema/migrations"
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}

		mf, err := schema.CreateMigration(dir, args[0], description)
		if err != nil {
			return err
		}
		rt.log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			names []string
			err   error
		)
		if migrationsDir != "" {
			names, err = schema.ListMigrations(os.DirFS(migrationsDir))
		} else {
			names, err = schema.EmbeddedMigrations()
		}
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No migrations found")
			return nil
		}
		fmt.Println(strings.Join(names, "\n"))
		return nil
	},
}

func init() {
	dbCmd.PersistentFlags().StringVar(&migrationsDir, "path", "", "Read migrations from this directory instead of the embedded set")
	dbCmd.AddCommand(dbUpCmd, dbDownCmd, dbStepsCmd, dbVersionCmd, dbForceCmd, dbCreateCmd, dbListCmd)
	rootCmd.AddCommand(dbCmd)
}

// withSchema opens a golang-migrate instance on the postgres store
func withSchema(fn func(m *schema.Migrator) error) error {
	if rt.cfg.Database.Driver == "sqlite" {
		return fmt.Errorf("schema versions are only tracked for postgres")
	}

	db, err := schema.Open(rt.cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := schema.New(db, migrationsDir, rt.log)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}

func autoMigrateSQLite() error {
	db, err := persistence.NewDatabase(&rt.cfg.Database, rt.log, logger.MapGormLogLevel(rt.cfg.Log.Level))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return err
	}
	rt.log.Info("SQLite entity tables are up to date", zap.String("path", rt.cfg.Database.Path))
	return nil
}
