package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/model"
)

func newAccountCommand(repoDir *string) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the card-account directory",
	}
	accountCmd.AddCommand(newAccountAddCommand(repoDir))
	accountCmd.AddCommand(newAccountListCommand(repoDir))
	return accountCmd
}

func newAccountAddCommand(repoDir *string) *cobra.Command {
	var acct model.CardAccount

	cmd := &cobra.Command{
		Use:   "add <account-id>",
		Short: "Register a card account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			svc, err := ws.accounts()
			if err != nil {
				return err
			}
			acct.ID = args[0]
			if strings.Contains(acct.ID, "#") {
				return fmt.Errorf("account ID %q must not contain '#'", acct.ID)
			}
			if acct.LastFour != "" && len(acct.LastFour) != 4 {
				return fmt.Errorf("--last-four must be 4 digits, got %q", acct.LastFour)
			}
			if acct.Currency == "" {
				acct.Currency = ws.cfg.Engine.Currency
			}
			acct.Currency = strings.ToUpper(acct.Currency)
			if err := svc.Add(acct); err != nil {
				return err
			}
			if err := svc.Save(ws.root); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added account %s (%s/%s)\n", acct.ID, acct.CustomerID, acct.Bank)
			return nil
		},
	}

	cmd.Flags().StringVar(&acct.CustomerID, "customer", "", "customer ID (required)")
	cmd.Flags().StringVar(&acct.Bank, "bank", "", "issuing bank (required)")
	cmd.Flags().StringVar(&acct.LastFour, "last-four", "", "last four card digits")
	cmd.Flags().StringVar(&acct.Currency, "currency", "", "card currency (defaults to the engine currency)")
	cmd.Flags().StringVar(&acct.Description, "description", "", "free-text description")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("bank")

	return cmd
}

func newAccountListCommand(repoDir *string) *cobra.Command {
	var customer string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List card accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			svc, err := ws.accounts()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCOUNT\tCUSTOMER\tBANK\tCARD\tCURRENCY\tDESCRIPTION")
			for _, a := range svc.All() {
				if customer != "" && a.CustomerID != customer {
					continue
				}
				card := ""
				if a.LastFour != "" {
					card = "*" + a.LastFour
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.CustomerID, a.Bank, card, a.Currency, a.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&customer, "customer", "", "only this customer's accounts")

	return cmd
}
