package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/id"
	"github.com/cleared-dev/recon/internal/journal"
	"github.com/cleared-dev/recon/internal/logger"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/reconcile"
	"github.com/cleared-dev/recon/internal/runlog"
)

func newReconcileCommand(repoDir *string) *cobra.Command {
	var lf ledgerFlags
	var through string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile and verify ledgers",
		Long: "Reconcile one customer's ledgers for a month or, with --through, a range of\n" +
			"months in calendar order. Without --bank every bank chain of the customer\n" +
			"is reconciled, chains in parallel.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := model.ParsePeriod(lf.period)
			if err != nil {
				return err
			}
			to := from
			if through != "" {
				if to, err = model.ParsePeriod(through); err != nil {
					return err
				}
			}

			ws, err := openWorkspace(*repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			runID := id.NewRunID()
			ctx := logger.WithContext(cmd.Context(), ws.log.With().Str("run_id", runID).Logger())

			svc, err := ws.service()
			if err != nil {
				return err
			}

			var outs []reconcile.Outcome
			if lf.bank != "" {
				outs, err = svc.ReconcileRange(ctx, lf.customer, lf.bank, from, to)
			} else {
				var keys []model.LedgerKey
				keys, err = ws.customerKeys(ctx, lf.customer, from, to)
				if err == nil {
					outs, err = svc.ReconcileMany(ctx, keys)
				}
			}

			// Record whatever completed, even when a later ledger failed to run.
			if logErr := recordRun(ws.root, runID, outs); logErr != nil {
				ws.log.Error().Err(logErr).Msg("writing run log")
			}
			exportJournals(ctx, ws.root, outs)
			if err != nil {
				return err
			}
			if len(outs) == 0 {
				return fmt.Errorf("no statements for %s between %s and %s", lf.customer, from, to)
			}

			failed := printOutcomes(cmd.OutOrStdout(), outs)
			if failed > 0 {
				return fmt.Errorf("%d of %d ledger(s) failed verification", failed, len(outs))
			}
			return nil
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&through, "through", "", "last month of the range, YYYY-MM")

	return cmd
}

// customerKeys lists every ledger of the customer's bank chains in the range
// that has statements.
func (w *workspace) customerKeys(ctx context.Context, customerID string, from, to model.Period) ([]model.LedgerKey, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}
	dir, err := w.accounts()
	if err != nil {
		return nil, err
	}
	chains := dir.Chains(customerID)
	if len(chains) == 0 {
		return nil, fmt.Errorf("customer %s has no card accounts", customerID)
	}

	var keys []model.LedgerKey
	for _, c := range chains {
		for p := from; !to.Before(p); p = p.Next() {
			key := model.LedgerKey{CustomerID: c.CustomerID, Bank: c.Bank, Period: p}
			has, err := w.store.HasPeriod(ctx, key)
			if err != nil {
				return nil, model.DependencyError("check statements", err)
			}
			if has {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func recordRun(root, runID string, outs []reconcile.Outcome) error {
	now := time.Now().UTC()
	var entries []runlog.Entry
	for _, o := range outs {
		if o.Saved {
			entries = append(entries, runlog.FromResult(runID, now, o.Ledger, o.Result))
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return runlog.Append(root, entries)
}

// exportJournals writes the classified journal of every recorded ledger.
func exportJournals(ctx context.Context, root string, outs []reconcile.Outcome) {
	log := logger.FromContext(ctx)
	svc := journal.NewService(root)
	for _, o := range outs {
		if !o.Saved {
			continue
		}
		entries, err := journal.FromTransactions(o.Transactions, o.Labels)
		if err == nil {
			err = svc.Export(o.Ledger, entries)
		}
		if err != nil {
			log.Error().Err(err).Str("ledger", o.Ledger.Key.String()).Msg("exporting journal")
		}
	}
}

func printOutcomes(w io.Writer, outs []reconcile.Outcome) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEDGER\tSTATUS\tISSUES\tREJECTED")
	failed := 0
	for _, o := range outs {
		status := string(o.Ledger.Status)
		if !o.Result.Passed {
			failed++
			if !o.Saved {
				status += " (not recorded)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", o.Ledger.Key, status, len(o.Result.Issues), len(o.Result.Rejected))
	}
	_ = tw.Flush()
	return failed
}
