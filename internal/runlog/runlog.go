// Package runlog keeps the append-only audit trail of reconciliation runs in
// logs/reconcile-log.csv.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cleared-dev/recon/internal/model"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp       time.Time
	RunID           string
	LedgerKey       string
	Status          model.LedgerStatus
	Issues          int
	RegistryVersion string
}

// Header is the CSV header for reconcile-log.csv.
const Header = "timestamp,run_id,ledger_key,status,issues,registry_version"

const (
	numFields     = 6
	logDir        = "logs"
	logFile       = "logs/reconcile-log.csv"
	colTimestamp  = 0
	colRunID      = 1
	colLedgerKey  = 2
	colStatus     = 3
	colIssues     = 4
	colRegVersion = 5
)

// appendMu serializes appends from concurrent reconciliations in one process.
var appendMu sync.Mutex

// FromResult builds the entry recording one reconciliation pass.
func FromResult(runID string, at time.Time, led model.Ledger, res model.VerificationResult) Entry {
	return Entry{
		Timestamp:       at,
		RunID:           runID,
		LedgerKey:       led.Key.String(),
		Status:          led.Status,
		Issues:          len(res.Issues),
		RegistryVersion: led.RegistryVersion,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colLedgerKey] = e.LedgerKey
	row[colStatus] = string(e.Status)
	row[colIssues] = strconv.Itoa(e.Issues)
	row[colRegVersion] = e.RegistryVersion
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	issues, err := strconv.Atoi(record[colIssues])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing issues %q: %w", record[colIssues], err)
	}

	return Entry{
		Timestamp:       ts,
		RunID:           record[colRunID],
		LedgerKey:       record[colLedgerKey],
		Status:          model.LedgerStatus(record[colStatus]),
		Issues:          issues,
		RegistryVersion: record[colRegVersion],
	}, nil
}

// Append writes entries to <root>/logs/reconcile-log.csv, creating the file
// and header if needed.
func Append(root string, entries []Entry) error {
	appendMu.Lock()
	defer appendMu.Unlock()

	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/reconcile-log.csv.
// Returns nil if the file does not exist.
func Read(root string) ([]Entry, error) {
	path := filepath.Join(root, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// ForKey returns the entries for one ledger key, oldest first.
func ForKey(entries []Entry, key model.LedgerKey) []Entry {
	want := key.String()
	var out []Entry
	for _, e := range entries {
		if e.LedgerKey == want {
			out = append(out, e)
		}
	}
	return out
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
