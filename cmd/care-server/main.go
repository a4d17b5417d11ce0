package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/carehub/carehub/internal/config"
	"github.com/carehub/carehub/internal/domain/forms"
	"github.com/carehub/carehub/internal/platform/db"
	"github.com/carehub/carehub/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "care-server",
		Short: "Care management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(formsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Create the default tenant schema and apply migrations before serving")
	return cmd
}

// migrationFiles prefers dir when it exists and falls back to the
// migrations embedded in the binary.
func migrationFiles(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	return migrations.FS
}

func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			migrator := db.NewMigrator(pool, migrationFiles(dir))
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR, then embedded)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			statuses, err := db.NewMigrator(pool, migrationFiles(dir)).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR, then embedded)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			migrator := db.NewMigrator(pool, migrationFiles(cfg.MigrationsDir))
			if err := db.CreateTenantSchema(ctx, pool, name, migrator); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func formsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forms",
		Short: "Work with form templates offline",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a JSON or YAML form template",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			n, err := validateTemplate(data)
			if err != nil {
				return err
			}
			fmt.Printf("%s: valid, %d element(s)\n", file, n)
			return nil
		},
	}
	validateCmd.Flags().String("file", "", "Template file (.yaml, .yml or .json)")
	cmd.AddCommand(validateCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the sample form template as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			out, err := forms.SampleTemplate(uuid.NewString).YAML()
			if err != nil {
				return err
			}
			if file == "" || file == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(file, out, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote sample template to %s\n", file)
			return nil
		},
	}
	exportCmd.Flags().String("file", "", "Output file (default stdout)")
	cmd.AddCommand(exportCmd)

	return cmd
}

// validateTemplate parses and checks a template, returning the number of
// top-level elements.
func validateTemplate(data []byte) (int, error) {
	tmpl, err := forms.ParseTemplate(data)
	if err != nil {
		return 0, err
	}
	sc := tmpl.Schema()
	if errs := sc.Validate(); len(errs) > 0 {
		return 0, fmt.Errorf("invalid template: %w", errs)
	}
	return len(sc.Elements), nil
}

// resolveSigningKey decodes AUTH_SIGNING_KEY, which is hex encoded. An
// empty value disables HS256 validation.
func resolveSigningKey(envValue string) ([]byte, error) {
	if envValue == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(envValue)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_SIGNING_KEY hex value: %w", err)
	}
	if len(key) < 32 {
		return nil, errors.New("AUTH_SIGNING_KEY must be at least 32 bytes")
	}
	return key, nil
}
