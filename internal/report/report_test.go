package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
)

func sampleLedger() model.Ledger {
	return model.Ledger{
		ID:               "0b7c5f8e-1111-4a2b-9c3d-123456789abc",
		Key:              model.LedgerKey{CustomerID: "C001", Bank: "maybank", Period: model.Period{Year: 2025, Month: time.January}},
		Currency:         "MYR",
		Opening:          model.Dec("100.00"),
		Closing:          model.Dec("0.00"),
		Status:           model.StatusFailed,
		OwnerOpening:     model.Dec("100.00"),
		OwnerExpense:     model.Dec("50.00"),
		OwnerPayment:     model.Dec("150.00"),
		OwnerBalance:     model.Dec("-100.00"),
		TransactionCount: 2,
		RegistryVersion:  "sha256:0011223344556677",
		Accounts: []model.AccountContribution{
			{AccountID: "A", Opening: model.Dec("100.00"), Closing: model.Dec("0.00"), ClosingReported: true, TransactionCount: 2},
		},
	}
}

func failedResult() model.VerificationResult {
	return model.VerificationResult{
		Ledger: "C001/maybank/2025-01",
		Passed: false,
		Issues: []model.Issue{
			{
				Kind:          model.IssueRunningBalance,
				TransactionID: "A#000002",
				AccountID:     "A",
				Date:          "2025-01-20",
				Description:   "PAYMENT | THANK YOU",
				Expected:      model.DecPtr("0.00"),
				Actual:        model.DecPtr("10.00"),
				Diff:          model.DecPtr("10.00"),
				Detail:        "reported balance differs from previous balance plus amount",
			},
			{
				Kind:      model.IssueOpeningBalance,
				AccountID: "B",
				Expected:  model.DecPtr("5.00"),
				Detail:    "no reported balance to derive the opening from",
			},
		},
		Rejected: []string{"A#000003"},
	}
}

func TestAmount(t *testing.T) {
	assert.Equal(t, money.New(15000, money.MYR).Display(), Amount(model.Dec("150.00"), "MYR"))
	assert.Equal(t, money.New(-1, money.MYR).Display(), Amount(model.Dec("-0.01"), "MYR"))
	assert.Equal(t, money.New(1235, money.USD).Display(), Amount(model.Dec("12.345"), "USD"))
	assert.Equal(t, money.New(500, money.JPY).Display(), Amount(model.Dec("500"), "JPY"))
	assert.Equal(t, "150.00 XXZ", Amount(model.Dec("150"), "XXZ"))
	assert.Equal(t, "missing", OptionalAmount(nil, "MYR"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestText_Passed(t *testing.T) {
	led := sampleLedger()
	led.Status = model.StatusVerified

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, led, model.VerificationResult{Passed: true}))
	out := buf.String()

	assert.Contains(t, out, "C001/maybank/2025-01 (verified)")
	assert.Contains(t, out, Amount(model.Dec("150.00"), "MYR"))
	assert.Contains(t, out, "Account A")
	assert.Contains(t, out, "reported, 2 txns")
	assert.Contains(t, out, "PASSED: no issues")
	assert.NotContains(t, out, "KIND")
}

func TestText_Failed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sampleLedger(), failedResult()))
	out := buf.String()

	assert.Contains(t, out, "FAILED: 2 issue(s)")
	assert.Contains(t, out, "Rejected")
	lines := strings.Split(out, "\n")
	var issueLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "RunningBalanceMismatch") {
			issueLine = l
		}
	}
	require.NotEmpty(t, issueLine)
	assert.Contains(t, issueLine, "A#000002")
	assert.Contains(t, issueLine, "2025-01-20")
	assert.Contains(t, issueLine, Amount(model.Dec("10.00"), "MYR"))
	assert.Contains(t, out, "missing", "absent actual is shown, not defaulted")
	assert.Contains(t, out, "- OpeningBalanceMismatch B: no reported balance")
}

func TestIssuesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, IssuesCSV(&buf, failedResult()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, IssueHeader, records[0])

	first := records[1]
	assert.Equal(t, "C001/maybank/2025-01", first[colLedger])
	assert.Equal(t, "RunningBalanceMismatch", first[colKind])
	assert.Equal(t, "A#000002", first[colTxnID])
	assert.Equal(t, "PAYMENT | THANK YOU", first[colDesc])
	assert.Equal(t, "0.00", first[colExpected])
	assert.Equal(t, "10.00", first[colActual])
	assert.Equal(t, "10.00", first[colDiff])

	second := records[2]
	assert.Equal(t, "5.00", second[colExpected])
	assert.Empty(t, second[colActual])
	assert.Empty(t, second[colDiff])
}

func TestIssuesCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, IssuesCSV(&buf, model.VerificationResult{Passed: true}))
	assert.Equal(t, strings.Join(IssueHeader, ",")+"\n", buf.String())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleLedger(), failedResult()))

	var doc struct {
		Ledger map[string]any `json:"ledger"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "C001/maybank/2025-01", doc.Ledger["key"])
	assert.Equal(t, "-100.00", doc.Ledger["owner_balance"])
	assert.Equal(t, "0.00", doc.Ledger["owner_closing"])
	assert.Equal(t, "failed", doc.Ledger["status"])
	assert.Len(t, doc.Result["issues"], 2)
	assert.NotContains(t, doc.Ledger, "created_at")

	buf.Reset()
	require.NoError(t, JSON(&buf, sampleLedger(), model.VerificationResult{Passed: true}))
	assert.Contains(t, buf.String(), `"issues": []`)
}

func TestQuery(t *testing.T) {
	kinds, err := Query(sampleLedger(), failedResult(), "$.result.issues[*].kind")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"RunningBalanceMismatch", "OpeningBalanceMismatch"}, kinds)

	passed, err := Query(sampleLedger(), failedResult(), "$.result.passed")
	require.NoError(t, err)
	assert.Equal(t, false, passed)

	_, err = Query(sampleLedger(), failedResult(), "$.nope")
	assert.Error(t, err)
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleLedger(), failedResult())
	assert.True(t, strings.HasPrefix(md, "# Ledger C001/maybank/2025-01\n"))
	assert.Contains(t, md, "## Issues (2)")
	assert.Contains(t, md, "| RunningBalanceMismatch | 2025-01-20 | A#000002 |")
	assert.Contains(t, md, "Status: **failed**")

	clean := Markdown(sampleLedger(), model.VerificationResult{Passed: true})
	assert.Contains(t, clean, "None.")
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, sampleLedger(), failedResult(), 120))
	out := buf.String()
	assert.Contains(t, out, "RunningBalanceMismatch")
	assert.Contains(t, out, "A#000002")
}

func TestWrite_Dispatch(t *testing.T) {
	for _, f := range Formats {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, sampleLedger(), failedResult()), f)
		assert.NotZero(t, buf.Len(), f)
	}
	assert.Error(t, Write(&bytes.Buffer{}, Format("pdf"), sampleLedger(), failedResult()))
}
