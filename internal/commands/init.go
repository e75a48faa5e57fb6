package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/accounts"
	"github.com/cleared-dev/recon/internal/classify"
	"github.com/cleared-dev/recon/internal/config"
	"github.com/cleared-dev/recon/internal/storage/sqlite"
)

func newInitCommand() *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new recon workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, currency); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized recon workspace at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "MYR", "ledger currency (ISO 4217)")

	return cmd
}

func runInit(dir, currency string) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	dirs := []string{
		accounts.Dir,
		"data",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default()
	cfg.Engine.Currency = strings.ToUpper(currency)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Empty account directory: header only.
	svc, err := accounts.NewService(nil)
	if err != nil {
		return err
	}
	if err := svc.Save(dir); err != nil {
		return fmt.Errorf("writing account directory: %w", err)
	}

	reg := classify.NewRegistry([]classify.Supplier{}, []string{}, []string{})
	if err := reg.Save(filepath.Join(dir, cfg.Registry.Path)); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}

	gitignore := "data/\nimport/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	// Create the database so migrations fail here rather than on first import.
	store, err := sqlite.Open(filepath.Join(dir, cfg.Storage.DBPath))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	return store.Close()
}
