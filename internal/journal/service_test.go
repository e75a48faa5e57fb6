package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_WritesMonthFile(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir)
	led := exampleLedger()

	require.NoError(t, svc.Export(led, exampleEntries(t)))

	path := filepath.Join(dir, "exports", "C001", "maybank", "2025", "01", "journal.csv")
	assert.Equal(t, path, svc.Path(led.Key))
	_, err := os.Stat(path)
	require.NoError(t, err)

	got, err := svc.Read(led.Key)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A#000001", got[0].TransactionID)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "journal-*.csv"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files are cleaned up")
}

func TestExport_ReplacesPreviousExport(t *testing.T) {
	svc := NewService(t.TempDir())
	led := exampleLedger()
	require.NoError(t, svc.Export(led, exampleEntries(t)))

	// Re-exporting the same ledger replaces the file rather than appending.
	require.NoError(t, svc.Export(led, exampleEntries(t)))
	got, err := svc.Read(led.Key)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestExport_ValidationFailure(t *testing.T) {
	svc := NewService(t.TempDir())
	led := exampleLedger()
	entries := exampleEntries(t)[:1]

	err := svc.Export(led, entries)
	require.Error(t, err)
	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, led.Key, exportErr.Key)
	assert.Contains(t, err.Error(), "C001/maybank/2025-01")

	_, statErr := os.Stat(svc.Path(led.Key))
	assert.True(t, os.IsNotExist(statErr), "nothing written on failure")
}

func TestRead_NonExistent(t *testing.T) {
	svc := NewService(t.TempDir())
	got, err := svc.Read(exampleLedger().Key)
	require.NoError(t, err)
	assert.Nil(t, got)
}
