package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/dripsheet/dripsheet/internal/config"
	"github.com/dripsheet/dripsheet/internal/database"
	"github.com/dripsheet/dripsheet/internal/logger"
)

var (
	configPath    string
	migrationsDir string
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Send journal schema migrations for dripsheet",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE:  runUp,
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the last migration",
	RunE:  runDown,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runStatus,
}

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new migration file pair",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "migrations directory")
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(createCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getMigrator() (*migrate.Migrate, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+filepath.ToSlash(migrationsDir),
		"postgres",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	log := logger.New("info", "console")
	log.Info().Str("dir", migrationsDir).Msg("running migrations...")

	m, err := getMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info().Msg("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	log := logger.New("info", "console")
	log.Info().Msg("rolling back last migration...")

	m, err := getMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	log.Info().Msg("rollback completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, err := getMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations have been applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\nDirty: %v\n", version, dirty)
	return nil
}

var migrationFile = regexp.MustCompile(`^(\d+)_.+\.(up|down)\.sql$`)

// nextVersion returns one past the highest version found in dir.
func nextVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	highest := 0
	for _, entry := range entries {
		m := migrationFile.FindStringSubmatch(entry.Name())
		if entry.IsDir() || m == nil {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v > highest {
			highest = v
		}
	}
	return highest + 1, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version, err := nextVersion(migrationsDir)
	if err != nil {
		return err
	}

	upFile := filepath.Join(migrationsDir, fmt.Sprintf("%06d_%s.up.sql", version, name))
	downFile := filepath.Join(migrationsDir, fmt.Sprintf("%06d_%s.down.sql", version, name))

	if err := os.WriteFile(upFile, []byte("-- Add migration SQL here\n"), 0o644); err != nil {
		return fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(downFile, []byte("-- Add rollback SQL here\n"), 0o644); err != nil {
		return fmt.Errorf("failed to create down migration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created migration files:\n  %s\n  %s\n", upFile, downFile)
	return nil
}
