package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Supplier is a known counterparty. Flows involving a supplier belong to the
// counterparty side of the ledger.
type Supplier struct {
	Name    string   `yaml:"name"`
	Tags    []string `yaml:"tags,omitempty"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Registry is a snapshot of the supplier registry and keyword sets. It is
// immutable once built; reload to pick up changes.
type Registry struct {
	Suppliers            []Supplier `yaml:"suppliers"`
	SelfPayerKeywords    []string   `yaml:"self_payer_keywords,omitempty"`
	CounterpartyKeywords []string   `yaml:"counterparty_keywords,omitempty"`

	version string
	tags    map[string]bool
	names   []string // lowercased supplier names and aliases

	selfPayers []string
	cpKeywords []string
}

// NewRegistry normalizes the given sets and computes the snapshot version.
func NewRegistry(suppliers []Supplier, selfPayers, counterpartyKeywords []string) *Registry {
	r := &Registry{
		Suppliers:            suppliers,
		SelfPayerKeywords:    selfPayers,
		CounterpartyKeywords: counterpartyKeywords,
	}
	r.build()
	return r
}

// LoadRegistry reads a registry YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	for i, s := range r.Suppliers {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("supplier %d: name is required", i+1)
		}
	}
	r.build()
	return &r, nil
}

// Save writes the registry as YAML.
func (r *Registry) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// Version identifies the snapshot by content. Two registries with the same
// suppliers and keywords, in any order, share a version.
func (r *Registry) Version() string {
	return r.version
}

func (r *Registry) build() {
	r.tags = make(map[string]bool)
	r.names = nil
	for _, s := range r.Suppliers {
		for _, t := range s.Tags {
			if k := normalize(t); k != "" {
				r.tags[k] = true
			}
		}
		if k := normalize(s.Name); k != "" {
			r.names = append(r.names, k)
		}
		for _, a := range s.Aliases {
			if k := normalize(a); k != "" {
				r.names = append(r.names, k)
			}
		}
	}
	sort.Strings(r.names)
	r.selfPayers = normalizeAll(r.SelfPayerKeywords)
	r.cpKeywords = normalizeAll(r.CounterpartyKeywords)
	r.version = r.digest()
}

// digest hashes a canonical, order-independent rendering of the registry.
func (r *Registry) digest() string {
	var lines []string
	for _, s := range r.Suppliers {
		tags := normalizeAll(s.Tags)
		aliases := normalizeAll(s.Aliases)
		lines = append(lines, "s:"+normalize(s.Name)+"|"+strings.Join(tags, ",")+"|"+strings.Join(aliases, ","))
	}
	for _, k := range r.selfPayers {
		lines = append(lines, "p:"+k)
	}
	for _, k := range r.cpKeywords {
		lines = append(lines, "c:"+k)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return "sha256:" + hex.EncodeToString(sum[:])[:16]
}

func (r *Registry) hasTag(tag string) bool {
	k := normalize(tag)
	return k != "" && r.tags[k]
}

// matchesSupplier reports whether any text contains a registered name or alias.
func (r *Registry) matchesSupplier(texts ...string) bool {
	for _, text := range texts {
		if containsAny(text, r.names) {
			return true
		}
	}
	return false
}

// normalize folds case and Unicode compatibility forms and collapses runs of
// whitespace, so "CAFÉ  ALI" matches the alias "café ali". A Caser is
// stateful, hence one per call.
func normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(norm.NFKC.String(s))), " ")
}

func normalizeAll(in []string) []string {
	var out []string
	for _, s := range in {
		if k := normalize(s); k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// containsAny reports whether text contains any already-normalized needle.
func containsAny(text string, needles []string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	for _, n := range needles {
		if n != "" && strings.Contains(t, n) {
			return true
		}
	}
	return false
}
