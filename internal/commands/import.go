package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/importer"
	"github.com/cleared-dev/recon/internal/logger"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/storage"
)

func newImportCommand(repoDir *string) *cobra.Command {
	var accountID, format, period string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import card statements for one account",
		Long: "Import card statement CSVs for one account. Without file arguments every\n" +
			"CSV in import/ is imported and moved to import/processed/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			dir, err := ws.accounts()
			if err != nil {
				return err
			}
			acct, ok := dir.Get(accountID)
			if !ok {
				return fmt.Errorf("unknown account %q; add it with `recon account add`", accountID)
			}

			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown statement format %q", format)
			}

			target := importer.Target{Account: acct}
			if period != "" {
				p, err := model.ParsePeriod(period)
				if err != nil {
					return err
				}
				target.Period = &p
			}

			ctx := ws.context(cmd.Context())
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				for _, path := range args {
					if err := importFile(ctx, out, ws.store, parser, target, path); err != nil {
						return err
					}
				}
				return nil
			}

			files, err := importer.Scan(ws.root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "No CSV files in import/")
				return nil
			}
			for _, f := range files {
				if err := importFile(ctx, out, ws.store, parser, target, f.Path); err != nil {
					return err
				}
				if err := importer.MarkProcessed(ws.root, f.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "card account ID (required)")
	cmd.Flags().StringVar(&format, "format", "card", "statement format (card, maybank)")
	cmd.Flags().StringVar(&period, "period", "", "statement month, YYYY-MM (default: month of the first transaction)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func importFile(ctx context.Context, out io.Writer, store storage.StatementWriter, parser importer.Parser, target importer.Target, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	st, err := target.Bind(parsed)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	txns, err := store.AddStatement(ctx, st)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("%s: statement for account %s %s was already imported", filepath.Base(path), st.AccountID, st.Key.Period)
	}
	if err != nil {
		return fmt.Errorf("%s: storing statement: %w", filepath.Base(path), err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("account", st.AccountID).
		Str("ledger", st.Key.String()).
		Int("transactions", len(txns)).
		Msg("statement imported")
	fmt.Fprintf(out, "Imported %d transaction(s) from %s into %s\n", len(txns), filepath.Base(path), st.Key)
	return nil
}
