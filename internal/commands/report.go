package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/report"
	"github.com/cleared-dev/recon/internal/storage"
)

func newReportCommand(repoDir *string) *cobra.Command {
	var lf ledgerFlags
	var format, query string
	var width int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the reconciliation report of the current ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := lf.key()
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			ws, err := openWorkspace(*repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := ws.context(cmd.Context())
			led, err := ws.store.CurrentLedger(ctx, key)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no ledger for %s; run `recon reconcile` first", key)
			}
			if err != nil {
				return err
			}
			res, err := ws.store.LatestResult(ctx, key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if query != "" {
				v, err := report.Query(led, res, query)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			if f == report.FormatMarkdown {
				return report.RenderMarkdown(out, led, res, width)
			}
			return report.Write(out, f, led, res)
		},
	}

	lf.register(cmd)
	names := make([]string, len(report.Formats))
	for i, f := range report.Formats {
		names[i] = string(f)
	}
	cmd.Flags().StringVar(&format, "format", string(report.FormatText), "output format ("+strings.Join(names, ", ")+")")
	cmd.Flags().StringVar(&query, "query", "", "JSONPath expression evaluated against the JSON report")
	cmd.Flags().IntVar(&width, "width", 100, "word-wrap width for markdown output")

	return cmd
}
