package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
)

var testTime = time.Date(2025, 2, 3, 9, 15, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:       testTime,
		RunID:           "6f1c1a52-6a4e-4f0e-9a53-1d1f0b1f5b8e",
		LedgerKey:       "C001/maybank/2025-01",
		Status:          model.StatusVerified,
		Issues:          0,
		RegistryVersion: "sha256:0123456789abcdef",
	}
}

func TestAppend_NewFileWritesHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	data, err := os.ReadFile(filepath.Join(dir, "logs", "reconcile-log.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t, "2025-02-03T09:15:00Z,6f1c1a52-6a4e-4f0e-9a53-1d1f0b1f5b8e,C001/maybank/2025-01,verified,0,sha256:0123456789abcdef", lines[1])
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := testEntry()
	e2.Status = model.StatusFailed
	e2.Issues = 3
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.StatusVerified, entries[0].Status)
	assert.Equal(t, model.StatusFailed, entries[1].Status)
	assert.Equal(t, 3, entries[1].Issues)
	assert.True(t, entries[1].Timestamp.Equal(testTime))
}

func TestAppend_Concurrent(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, Append(dir, []Entry{testEntry()}))
		}()
	}
	wg.Wait()

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_BadRow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	data := Header + "\nyesterday,r,k,verified,0,v\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "reconcile-log.csv"), []byte(data), 0o644))

	_, err := Read(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestUnmarshalEntry_BadIssues(t *testing.T) {
	row := MarshalEntry(testEntry())
	row[colIssues] = "many"
	_, err := UnmarshalEntry(row)
	assert.ErrorContains(t, err, "parsing issues")
}

func TestFromResultAndForKey(t *testing.T) {
	jan := model.LedgerKey{CustomerID: "C001", Bank: "maybank", Period: model.Period{Year: 2025, Month: time.January}}
	led := model.Ledger{Key: jan, Status: model.StatusFailed, RegistryVersion: "sha256:x"}
	res := model.VerificationResult{Issues: []model.Issue{{Kind: model.IssueCount}, {Kind: model.IssueRunningBalance}}}

	e := FromResult("run-1", testTime, led, res)
	assert.Equal(t, "C001/maybank/2025-01", e.LedgerKey)
	assert.Equal(t, 2, e.Issues)
	assert.Equal(t, model.StatusFailed, e.Status)

	other := e
	other.LedgerKey = "C001/maybank/2025-02"
	got := ForKey([]Entry{e, other, e}, jan)
	assert.Len(t, got, 2)
}
