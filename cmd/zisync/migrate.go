package main

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/zisync/zisync/internal/config"
)

//go:embed migrations/*.sql
var gooseMigrations embed.FS

// newMigrateCmd exposes the metastore schema through goose's Provider
// API, giving an operator a standalone up/down/status surface
// independent of the Store.Open startup path, which applies the same
// schema from internal/metastore's own embedded migrations on every
// process start.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or apply the metastore schema outside of normal startup",
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	return cmd
}

func openGooseProvider() (*sql.DB, *goose.Provider, error) {
	subFS, err := fs.Sub(gooseMigrations, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("creating migration sub-filesystem: %w", err)
	}

	dbPath := filepath.Join(config.DefaultDataDir(), "zisync.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating migration provider: %w", err)
	}
	return db, provider, nil
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "up",
		Short:       "Apply every pending migration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, provider, err := openGooseProvider()
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := provider.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			for _, r := range results {
				fmt.Printf("applied %s (%s)\n", r.Source.Path, r.Duration)
			}
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "down",
		Short:       "Roll back the most recently applied migration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, provider, err := openGooseProvider()
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := provider.Down(cmd.Context())
			if err != nil {
				return fmt.Errorf("rolling back migration: %w", err)
			}
			fmt.Printf("rolled back %s (%s)\n", result.Source.Path, result.Duration)
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show which migrations have been applied",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, provider, err := openGooseProvider()
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := provider.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("checking migration status: %w", err)
			}
			for _, s := range statuses {
				fmt.Printf("%-8s %s\n", s.State, s.Source.Path)
			}
			return nil
		},
	}
}
