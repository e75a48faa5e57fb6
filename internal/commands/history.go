package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/runlog"
)

func newHistoryCommand(repoDir *string) *cobra.Command {
	var lf ledgerFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every ledger version and run for one month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := lf.key()
			if err != nil {
				return err
			}

			ws, err := openWorkspace(*repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			hist, err := ws.store.LedgerHistory(ws.context(cmd.Context()), key)
			if err != nil {
				return err
			}
			entries, err := runlog.Read(ws.root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hist) == 0 {
				fmt.Fprintf(out, "No ledgers for %s\n", key)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tLEDGER ID\tSTATUS\tSUPERSEDED\tREGISTRY")
			for _, l := range hist {
				superseded := "-"
				if l.SupersededAt != nil {
					superseded = l.SupersededAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					l.CreatedAt.UTC().Format(time.RFC3339), l.ID, l.Status, superseded, l.RegistryVersion)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			runs := runlog.ForKey(entries, key)
			if len(runs) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tAT\tSTATUS\tISSUES")
			for _, e := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.RunID, e.Timestamp.UTC().Format(time.RFC3339), e.Status, e.Issues)
			}
			return tw.Flush()
		},
	}

	lf.register(cmd)
	return cmd
}
