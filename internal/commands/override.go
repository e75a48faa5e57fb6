package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/storage"
)

func newOverrideCommand(repoDir *string) *cobra.Command {
	var toOwner, toCounterparty bool
	var reason, actor string

	cmd := &cobra.Command{
		Use:   "override <transaction-id>",
		Short: "Correct the owner of one transaction",
		Long: "Record a manual ownership correction. The ledger of the transaction's\n" +
			"month is superseded and must be reconciled again, followed by any later\n" +
			"months of the same chain.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := model.OwnerHolder
			if toCounterparty {
				owner = model.OwnerCounterparty
			}
			if actor == "" {
				actor = os.Getenv("USER")
			}

			ws, err := openWorkspace(*repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			svc, err := ws.service()
			if err != nil {
				return err
			}
			err = svc.ApplyOverride(ws.context(cmd.Context()), args[0], owner, reason, actor)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("unknown transaction %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s now belongs to the %s; reconcile its month again\n", args[0], owner)
			return nil
		},
	}

	cmd.Flags().BoolVar(&toOwner, "owner", false, "assign to the card holder")
	cmd.Flags().BoolVar(&toCounterparty, "counterparty", false, "assign to the counterparty")
	cmd.Flags().StringVar(&reason, "reason", "", "why the classification is wrong (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "who made the correction (default $USER)")
	cmd.MarkFlagsOneRequired("owner", "counterparty")
	cmd.MarkFlagsMutuallyExclusive("owner", "counterparty")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}
