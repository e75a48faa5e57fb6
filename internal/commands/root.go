package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/buildinfo"
	"github.com/cleared-dev/recon/internal/model"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var repoDir string

	rootCmd := &cobra.Command{
		Use:     "recon",
		Short:   "Card statement reconciliation and ledger verification",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "workspace directory")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAccountCommand(&repoDir))
	rootCmd.AddCommand(newImportCommand(&repoDir))
	rootCmd.AddCommand(newReconcileCommand(&repoDir))
	rootCmd.AddCommand(newOverrideCommand(&repoDir))
	rootCmd.AddCommand(newReportCommand(&repoDir))
	rootCmd.AddCommand(newHistoryCommand(&repoDir))

	return rootCmd
}

// ledgerFlags are the flags naming one ledger.
type ledgerFlags struct {
	customer string
	bank     string
	period   string
}

func (f *ledgerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.customer, "customer", "", "customer ID (required)")
	cmd.Flags().StringVar(&f.bank, "bank", "", "bank")
	cmd.Flags().StringVar(&f.period, "period", "", "statement month, YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("period")
}

func (f *ledgerFlags) key() (model.LedgerKey, error) {
	if f.bank == "" {
		return model.LedgerKey{}, fmt.Errorf("--bank is required")
	}
	p, err := model.ParsePeriod(f.period)
	if err != nil {
		return model.LedgerKey{}, err
	}
	return model.LedgerKey{CustomerID: f.customer, Bank: f.bank, Period: p}, nil
}
