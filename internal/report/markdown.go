package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/cleared-dev/recon/internal/model"
)

// Markdown returns the report as a Markdown document.
func Markdown(led model.Ledger, res model.VerificationResult) string {
	cur := led.Currency
	var b strings.Builder

	fmt.Fprintf(&b, "# Ledger %s\n\n", led.Key)
	fmt.Fprintf(&b, "Status: **%s**, %d transactions, registry `%s`\n\n", led.Status, led.TransactionCount, led.RegistryVersion)

	b.WriteString("| | Expense | Payment | Balance | Share |\n|---|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| Owner | %s | %s | %s | %s |\n",
		Amount(led.OwnerExpense, cur), Amount(led.OwnerPayment, cur),
		Amount(led.OwnerBalance, cur), Amount(led.OwnerClosing(), cur))
	fmt.Fprintf(&b, "| Counterparty | %s | %s | %s | %s |\n\n",
		Amount(led.CounterpartyExpense, cur), Amount(led.CounterpartyPayment, cur),
		Amount(led.CounterpartyBalance, cur), Amount(led.CounterpartyClosing(), cur))
	fmt.Fprintf(&b, "Opening %s, closing %s.\n\n", Amount(led.Opening, cur), Amount(led.Closing, cur))

	if len(res.Issues) == 0 {
		b.WriteString("## Issues\n\nNone.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "## Issues (%d)\n\n", len(res.Issues))
	b.WriteString("| Kind | Date | Ref | Expected | Actual | Diff |\n|---|---|---|---:|---:|---:|\n")
	for _, is := range res.Issues {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			is.Kind, dash(is.Date), escapeCell(dash(issueRef(is))),
			OptionalAmount(is.Expected, cur), OptionalAmount(is.Actual, cur), diff(is, cur))
	}
	b.WriteString("\n")
	for _, is := range res.Issues {
		if is.Detail != "" {
			fmt.Fprintf(&b, "- **%s** %s\n", is.Kind, escapeCell(is.Detail))
		}
	}
	return b.String()
}

// RenderMarkdown renders the Markdown report for a terminal without colour.
func RenderMarkdown(w io.Writer, led model.Ledger, res model.VerificationResult, width int) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(Markdown(led, res))
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
