package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
)

func sampleAccounts() []model.CardAccount {
	return []model.CardAccount{
		{ID: "MBB-VISA", CustomerID: "C001", Bank: "maybank", LastFour: "4821", Currency: "MYR", Description: "Visa Platinum"},
		{ID: "MBB-AMEX", CustomerID: "C001", Bank: "maybank", LastFour: "1007", Currency: "MYR"},
		{ID: "CIMB-MC", CustomerID: "C001", Bank: "cimb", Currency: "MYR", Description: "Mastercard, travel"},
		{ID: "HSBC-VISA", CustomerID: "C002", Bank: "hsbc", LastFour: "9912", Currency: "SGD"},
	}
}

func TestRoundTrip(t *testing.T) {
	accounts := sampleAccounts()

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))
	assert.True(t, strings.HasPrefix(buf.String(), "account_id,customer_id,bank,last_four,currency,description\n"))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, accounts, got)
}

func TestReadAccounts_Empty(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnmarshalAccount_NormalizesCurrency(t *testing.T) {
	acct, err := UnmarshalAccount([]string{" VISA ", "C001", "maybank", "", "myr", ""})
	require.NoError(t, err)
	assert.Equal(t, "VISA", acct.ID)
	assert.Equal(t, "MYR", acct.Currency)
}

func TestUnmarshalAccount_Errors(t *testing.T) {
	tests := []struct {
		name   string
		record []string
		want   string
	}{
		{"wrong field count", []string{"VISA", "C001"}, "expected 6 fields"},
		{"missing id", []string{"", "C001", "maybank", "", "MYR", ""}, "account_id is required"},
		{"hash in id", []string{"VI#SA", "C001", "maybank", "", "MYR", ""}, "must not contain"},
		{"missing customer", []string{"VISA", "", "maybank", "", "MYR", ""}, "customer_id is required"},
		{"missing bank", []string{"VISA", "C001", "", "", "MYR", ""}, "bank is required"},
		{"bad last four", []string{"VISA", "C001", "maybank", "12345", "MYR", ""}, "must be 4 digits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalAccount(tt.record)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadAccounts_ReportsRow(t *testing.T) {
	data := "account_id,customer_id,bank,last_four,currency,description\n" +
		"VISA,C001,maybank,,MYR,\n" +
		"AMEX,,maybank,,MYR,\n"
	_, err := ReadAccounts(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}
