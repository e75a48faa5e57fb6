package verify

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/ledger"
	"github.com/cleared-dev/recon/internal/model"
)

var oneCent = decimal.New(1, -2)

// pass carries the state of one verification run. Stages only append issues;
// none of them stops the pass.
type pass struct {
	ledger   model.Ledger
	txns     []model.RawTransaction // sorted by occurrence
	prior    *model.Ledger
	byAcct   map[string][]model.RawTransaction
	accounts []string
	issues   []model.Issue
}

// stages run in this order on every pass.
var stages = []func(*pass){
	(*pass).runningBalance,
	(*pass).openingBalance,
	(*pass).crossPeriod,
	(*pass).count,
	(*pass).closingBalance,
}

// Verify checks ledger against the full, unclassified transaction list for its
// period and, when given, the ledger of the preceding period. It is pure:
// identical inputs always produce identical results.
func Verify(led model.Ledger, txns []model.RawTransaction, prior *model.Ledger) model.VerificationResult {
	p := &pass{ledger: led, prior: prior}
	p.txns = Order(txns)
	p.group()

	for _, run := range stages {
		run(p)
	}

	return model.VerificationResult{
		Ledger:   led.Key.String(),
		LedgerID: led.ID,
		Passed:   len(p.issues) == 0,
		Issues:   p.issues,
		Summary:  p.summary(),
	}
}

// Order returns a copy of txns sorted by date, then ingestion sequence, then ID.
func Order(txns []model.RawTransaction) []model.RawTransaction {
	out := make([]model.RawTransaction, len(txns))
	copy(out, txns)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.ID < b.ID
	})
	return out
}

func (p *pass) group() {
	p.byAcct = make(map[string][]model.RawTransaction)
	for _, t := range p.txns {
		p.byAcct[t.AccountID] = append(p.byAcct[t.AccountID], t)
	}
	seen := make(map[string]bool)
	for _, c := range p.ledger.Accounts {
		p.accounts = append(p.accounts, c.AccountID)
		seen[c.AccountID] = true
	}
	var extra []string
	for acct := range p.byAcct {
		if !seen[acct] {
			extra = append(extra, acct)
		}
	}
	sort.Strings(extra)
	p.accounts = append(p.accounts, extra...)
}

func (p *pass) add(is model.Issue) {
	p.issues = append(p.issues, is)
}

func txnIssue(kind model.IssueKind, t model.RawTransaction, expected, actual *decimal.Decimal, detail string) model.Issue {
	is := model.Issue{
		Kind:          kind,
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Date:          t.Date.Format("2006-01-02"),
		Description:   t.Description,
		Expected:      expected,
		Actual:        actual,
		Detail:        detail,
	}
	is.Diff = diff(expected, actual)
	return is
}

func diff(expected, actual *decimal.Decimal) *decimal.Decimal {
	if expected == nil || actual == nil {
		return nil
	}
	d := actual.Sub(*expected)
	return &d
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

// runningBalance walks each account's transactions and checks that every
// reported balance equals the previous balance plus the amount. The previous
// balance is the reported one when present; otherwise the derived value
// carries the chain and the gap itself is reported.
func (p *pass) runningBalance() {
	for _, acct := range p.accounts {
		txns := p.byAcct[acct]
		if len(txns) == 0 {
			continue
		}
		if !anyBalance(txns) {
			p.add(model.Issue{
				Kind:      model.IssueRunningBalance,
				AccountID: acct,
				Period:    p.ledger.Key.Period.String(),
				Detail:    fmt.Sprintf("no running balances reported for %d transactions", len(txns)),
			})
			continue
		}

		var prev decimal.Decimal
		for i, t := range txns {
			var expected decimal.Decimal
			if i == 0 {
				opening, _ := p.opening(acct)
				expected = opening.Add(t.Amount)
			} else {
				expected = prev.Add(t.Amount)
			}

			if t.BalanceAfter == nil {
				p.add(txnIssue(model.IssueRunningBalance, t, ptr(model.Cents(expected)), nil, "running balance not reported"))
				prev = expected
				continue
			}
			actual := *t.BalanceAfter
			// The first reported balance is judged by the opening check.
			if i > 0 && !model.Cents(expected).Equal(model.Cents(actual)) {
				p.add(txnIssue(model.IssueRunningBalance, t, ptr(model.Cents(expected)), ptr(model.Cents(actual)),
					"reported balance does not follow from previous balance and amount"))
			}
			prev = actual
		}
	}
}

// openingBalance inverts each account's first transaction to recover the
// opening balance the source implies and compares it with the recorded one.
func (p *pass) openingBalance() {
	for _, acct := range p.accounts {
		txns := p.byAcct[acct]
		recorded, ok := p.opening(acct)
		if !ok {
			if len(txns) > 0 {
				p.add(model.Issue{
					Kind:          model.IssueOpeningBalance,
					TransactionID: txns[0].ID,
					AccountID:     acct,
					Period:        p.ledger.Key.Period.String(),
					Detail:        "account has transactions but no recorded opening balance in this ledger",
				})
			}
			continue
		}
		if len(txns) == 0 || txns[0].BalanceAfter == nil {
			continue
		}
		first := txns[0]
		implied := first.BalanceAfter.Sub(first.Amount)
		if !model.Cents(implied).Equal(model.Cents(recorded)) {
			p.add(txnIssue(model.IssueOpeningBalance, first, ptr(model.Cents(recorded)), ptr(model.Cents(implied)),
				"opening balance implied by the first transaction differs from the recorded opening"))
		}
	}
}

// crossPeriod requires this period to open where a verified predecessor
// closed. An unverified predecessor cannot vouch for continuity at all.
func (p *pass) crossPeriod() {
	if p.prior == nil {
		return
	}
	prior := *p.prior
	if !prior.IsVerified() {
		state := string(prior.Status)
		if prior.SupersededAt != nil {
			state = "superseded"
		}
		if state == "" {
			state = string(model.StatusPending)
		}
		p.add(model.Issue{
			Kind:   model.IssueCrossPeriod,
			Period: prior.Key.Period.String(),
			Detail: fmt.Sprintf("prior period %s is not verified (%s); verify it first", prior.Key.Period, state),
		})
		return
	}

	if !p.ledger.Opening.Equal(prior.Closing) {
		p.add(model.Issue{
			Kind:     model.IssueCrossPeriod,
			Period:   p.ledger.Key.Period.String(),
			Expected: ptr(prior.Closing),
			Actual:   ptr(p.ledger.Opening),
			Diff:     ptr(p.ledger.Opening.Sub(prior.Closing)),
			Detail:   fmt.Sprintf("opening balance differs from %s closing balance", prior.Key.Period),
		})
	}
	for _, c := range p.ledger.Accounts {
		pc, ok := prior.Contribution(c.AccountID)
		if !ok || c.Opening.Equal(pc.Closing) {
			continue
		}
		p.add(model.Issue{
			Kind:      model.IssueCrossPeriod,
			AccountID: c.AccountID,
			Period:    p.ledger.Key.Period.String(),
			Expected:  ptr(pc.Closing),
			Actual:    ptr(c.Opening),
			Diff:      ptr(c.Opening.Sub(pc.Closing)),
			Detail:    fmt.Sprintf("account opening differs from its %s closing", prior.Key.Period),
		})
	}
}

// count guards against transactions dropped or double counted between the
// source feed and the classified ledger.
func (p *pass) count() {
	srcCount, srcAmount := len(p.txns), sum(p.txns)
	period := p.ledger.Key.Period.String()
	if srcCount != p.ledger.TransactionCount {
		p.add(model.Issue{
			Kind:     model.IssueCount,
			Period:   period,
			Expected: ptr(decimal.NewFromInt(int64(srcCount))),
			Actual:   ptr(decimal.NewFromInt(int64(p.ledger.TransactionCount))),
			Diff:     ptr(decimal.NewFromInt(int64(p.ledger.TransactionCount - srcCount))),
			Detail:   "classified transaction count differs from source count",
		})
	}
	if !srcAmount.Equal(p.ledger.NetAmount) {
		p.add(model.Issue{
			Kind:     model.IssueCount,
			Period:   period,
			Expected: ptr(srcAmount),
			Actual:   ptr(p.ledger.NetAmount),
			Diff:     ptr(p.ledger.NetAmount.Sub(srcAmount)),
			Detail:   "classified amount differs from source amount",
		})
	}
}

// closingBalance checks that the owner and counterparty shares add up to the
// closing balance and that each account's last reported balance matches its
// statement closing.
func (p *pass) closingBalance() {
	shares := p.ledger.OwnerClosing().Add(p.ledger.CounterpartyClosing())
	if shares.Sub(p.ledger.Closing).Abs().GreaterThanOrEqual(oneCent) {
		p.add(model.Issue{
			Kind:     model.IssueClosingBalance,
			Period:   p.ledger.Key.Period.String(),
			Expected: ptr(p.ledger.Closing),
			Actual:   ptr(shares),
			Diff:     ptr(shares.Sub(p.ledger.Closing)),
			Detail:   "owner and counterparty balances do not add up to the closing balance",
		})
	}

	for _, c := range p.ledger.Accounts {
		txns := p.byAcct[c.AccountID]
		if !c.ClosingReported || len(txns) == 0 {
			continue
		}
		last := txns[len(txns)-1]
		if last.BalanceAfter == nil {
			continue
		}
		if !model.Cents(*last.BalanceAfter).Equal(model.Cents(c.Closing)) {
			p.add(txnIssue(model.IssueClosingBalance, last, ptr(model.Cents(c.Closing)), ptr(model.Cents(*last.BalanceAfter)),
				"last reported balance differs from the statement closing balance"))
		}
	}
}

func (p *pass) opening(acct string) (decimal.Decimal, bool) {
	c, ok := p.ledger.Contribution(acct)
	return c.Opening, ok
}

func (p *pass) summary() model.Summary {
	return model.Summary{
		SourceCount:      len(p.txns),
		SourceAmount:     sum(p.txns),
		ClassifiedCount:  p.ledger.TransactionCount,
		ClassifiedAmount: p.ledger.NetAmount,
		Opening:          p.ledger.Opening,
		Closing:          p.ledger.Closing,
		DerivedClosing:   ledger.DerivedClosing(p.ledger),
		OwnerClosing:     p.ledger.OwnerClosing(),
		CounterClosing:   p.ledger.CounterpartyClosing(),
	}
}

func sum(txns []model.RawTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.Amount)
	}
	return total
}

func anyBalance(txns []model.RawTransaction) bool {
	for _, t := range txns {
		if t.BalanceAfter != nil {
			return true
		}
	}
	return false
}
