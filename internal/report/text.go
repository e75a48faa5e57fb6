package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cleared-dev/recon/internal/model"
)

// Text writes a human-readable summary followed by one line per issue.
func Text(w io.Writer, led model.Ledger, res model.VerificationResult) error {
	cur := led.Currency
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Ledger\t%s (%s)\n", led.Key, led.Status)
	if led.ID != "" {
		fmt.Fprintf(tw, "ID\t%s\n", led.ID)
	}
	fmt.Fprintf(tw, "Registry\t%s\n", led.RegistryVersion)
	fmt.Fprintf(tw, "Opening\t%s\n", Amount(led.Opening, cur))
	fmt.Fprintf(tw, "Closing\t%s\n", Amount(led.Closing, cur))
	fmt.Fprintf(tw, "Transactions\t%d\n", led.TransactionCount)
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "\tExpense\tPayment\tBalance\tShare\n")
	fmt.Fprintf(tw, "Owner\t%s\t%s\t%s\t%s\n",
		Amount(led.OwnerExpense, cur), Amount(led.OwnerPayment, cur),
		Amount(led.OwnerBalance, cur), Amount(led.OwnerClosing(), cur))
	fmt.Fprintf(tw, "Counterparty\t%s\t%s\t%s\t%s\n",
		Amount(led.CounterpartyExpense, cur), Amount(led.CounterpartyPayment, cur),
		Amount(led.CounterpartyBalance, cur), Amount(led.CounterpartyClosing(), cur))
	fmt.Fprintln(tw)

	for _, a := range led.Accounts {
		src := "derived"
		if a.ClosingReported {
			src = "reported"
		}
		fmt.Fprintf(tw, "Account %s\t%s\t-> %s\t(%s, %d txns)\n",
			a.AccountID, Amount(a.Opening, cur), Amount(a.Closing, cur), src, a.TransactionCount)
	}
	if len(res.Rejected) > 0 {
		fmt.Fprintf(tw, "Rejected\t%d transactions\n", len(res.Rejected))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	if len(res.Issues) == 0 {
		_, err := fmt.Fprintf(w, "\nPASSED: no issues\n")
		return err
	}

	fmt.Fprintf(w, "\nFAILED: %d issue(s)\n", len(res.Issues))
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tDATE\tREF\tDESCRIPTION\tEXPECTED\tACTUAL\tDIFF")
	for _, is := range res.Issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			is.Kind, dash(is.Date), dash(issueRef(is)), dash(is.Description),
			OptionalAmount(is.Expected, cur), OptionalAmount(is.Actual, cur), diff(is, cur))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing issues: %w", err)
	}
	for _, is := range res.Issues {
		if is.Detail != "" {
			fmt.Fprintf(w, "  - %s %s: %s\n", is.Kind, dash(issueRef(is)), is.Detail)
		}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func diff(is model.Issue, cur string) string {
	if is.Diff == nil {
		return "-"
	}
	return Amount(*is.Diff, cur)
}
