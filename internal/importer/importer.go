package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/recon/internal/model"
)

// Parser converts a statement export into a Statement. The returned
// statement carries balances and line items only; the caller binds it to an
// account and period with Target.Bind.
type Parser interface {
	Parse(r io.Reader) (model.Statement, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CardParser{})
	r.Register(&MaybankParser{})
	return r
}

// Target binds a parsed statement to its card account.
type Target struct {
	Account model.CardAccount
	// Period overrides the period inferred from the first transaction.
	Period *model.Period
}

// Bind returns st keyed to the target account and period. Without an explicit
// period the statement must contain at least one transaction.
func (t Target) Bind(st model.Statement) (model.Statement, error) {
	var period model.Period
	switch {
	case t.Period != nil:
		period = *t.Period
	case len(st.Transactions) > 0:
		period = model.PeriodOf(st.Transactions[0].Date)
	default:
		return model.Statement{}, fmt.Errorf("statement for %s has no transactions; a period is required", t.Account.ID)
	}
	st.Key = model.LedgerKey{CustomerID: t.Account.CustomerID, Bank: t.Account.Bank, Period: period}
	st.AccountID = t.Account.ID
	if st.Currency == "" {
		st.Currency = t.Account.Currency
	}
	return st, nil
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
