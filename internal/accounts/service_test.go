package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
)

func TestNewService(t *testing.T) {
	svc, err := NewService(sampleAccounts())
	require.NoError(t, err)
	assert.Len(t, svc.All(), 4)

	_, err = NewService([]model.CardAccount{{ID: "A"}, {ID: "A"}})
	assert.Error(t, err)
}

func TestGetExists(t *testing.T) {
	svc, err := NewService(sampleAccounts())
	require.NoError(t, err)

	acct, ok := svc.Get("MBB-VISA")
	assert.True(t, ok)
	assert.Equal(t, "4821", acct.LastFour)

	_, ok = svc.Get("NOPE")
	assert.False(t, ok)

	assert.True(t, svc.Exists("CIMB-MC"))
	assert.False(t, svc.Exists("NOPE"))
}

func TestForCustomerBank(t *testing.T) {
	svc, err := NewService(sampleAccounts())
	require.NoError(t, err)

	got := svc.ForCustomerBank("C001", "maybank")
	require.Len(t, got, 2)
	assert.Equal(t, "MBB-AMEX", got[0].ID)
	assert.Equal(t, "MBB-VISA", got[1].ID)

	assert.Empty(t, svc.ForCustomerBank("C002", "maybank"))
}

func TestChains(t *testing.T) {
	svc, err := NewService(sampleAccounts())
	require.NoError(t, err)

	assert.Equal(t, []Chain{
		{CustomerID: "C001", Bank: "cimb"},
		{CustomerID: "C001", Bank: "maybank"},
		{CustomerID: "C002", Bank: "hsbc"},
	}, svc.Chains(""))
	assert.Equal(t, []Chain{{CustomerID: "C002", Bank: "hsbc"}}, svc.Chains("C002"))
}

func TestAdd(t *testing.T) {
	svc, err := NewService(nil)
	require.NoError(t, err)

	require.NoError(t, svc.Add(model.CardAccount{ID: "VISA", CustomerID: "C001", Bank: "maybank"}))
	assert.Error(t, svc.Add(model.CardAccount{ID: "VISA"}))
	assert.True(t, svc.Exists("VISA"))
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(sampleAccounts())
	require.NoError(t, err)

	require.NoError(t, svc.Save(dir))

	_, err = os.Stat(filepath.Join(dir, "accounts", "accounts.csv"))
	require.NoError(t, err)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, svc.All(), loaded.All())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
