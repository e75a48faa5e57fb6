package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cleared-dev/recon/internal/model"
)

// Dir is the workspace subdirectory holding exported journals.
const Dir = "exports"

// Service reads and writes exported journals under a workspace root.
type Service struct {
	repoRoot string
}

// NewService creates a journal Service.
func NewService(repoRoot string) *Service {
	return &Service{repoRoot: repoRoot}
}

// Export validates entries against led and replaces the month's journal.csv.
// Nothing is written when validation fails.
func (s *Service) Export(led model.Ledger, entries []Entry) error {
	if verrs := ValidateEntries(entries, led); len(verrs) > 0 {
		return &ExportError{Key: led.Key, Errors: verrs}
	}

	path := s.Path(led.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}

	// Write beside the target and rename so readers never see half a file.
	tmp, err := os.CreateTemp(filepath.Dir(path), "journal-*.csv")
	if err != nil {
		return fmt.Errorf("creating journal: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteEntries(tmp, entries); err != nil {
		tmp.Close()
		return fmt.Errorf("writing journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing journal: %w", err)
	}
	return nil
}

// Read returns the exported entries for key, or nil if none were exported.
func (s *Service) Read(key model.LedgerKey) ([]Entry, error) {
	path := s.Path(key)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer f.Close()

	entries, err := ReadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}
	return entries, nil
}

// Path returns exports/<customer>/<bank>/<YYYY>/<MM>/journal.csv.
func (s *Service) Path(key model.LedgerKey) string {
	return filepath.Join(s.repoRoot, Dir, key.CustomerID, key.Bank,
		fmt.Sprintf("%04d", key.Period.Year), fmt.Sprintf("%02d", int(key.Period.Month)), "journal.csv")
}

// ExportError lists the checks a journal failed.
type ExportError struct {
	Key    model.LedgerKey
	Errors []ValidationError
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("journal for %s failed %d check(s); first: %v", e.Key, len(e.Errors), e.Errors[0])
}
