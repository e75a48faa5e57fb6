package classify

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `suppliers:
  - name: Gadget Zone
    tags: [gz]
    aliases: ["GZ Trading"]
  - name: Kedai Runcit Ali
self_payer_keywords: [self, own account]
counterparty_keywords: [on behalf of]
`

func TestParseRegistry(t *testing.T) {
	reg, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)
	require.Len(t, reg.Suppliers, 2)
	assert.True(t, reg.hasTag("GZ"))
	assert.True(t, reg.matchesSupplier("paid to KEDAI RUNCIT ALI"))
	assert.True(t, reg.matchesSupplier("", "gz trading sdn bhd"))
	assert.False(t, reg.matchesSupplier("Petronas"))
	assert.Contains(t, reg.Version(), "sha256:")
}

func TestParseRegistry_MissingName(t *testing.T) {
	_, err := ParseRegistry([]byte("suppliers:\n  - tags: [x]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestRegistryVersion_OrderIndependent(t *testing.T) {
	a := NewRegistry([]Supplier{{Name: "A"}, {Name: "B"}}, []string{"self", "own"}, nil)
	b := NewRegistry([]Supplier{{Name: "b "}, {Name: "a"}}, []string{"OWN", "self"}, nil)
	assert.Equal(t, a.Version(), b.Version())

	c := NewRegistry([]Supplier{{Name: "A"}, {Name: "C"}}, []string{"self", "own"}, nil)
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestRegistrySaveLoad(t *testing.T) {
	reg, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, reg.Save(path))

	got, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Version(), got.Version())
}

func TestLoadRegistry_NotFound(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNormalize_FoldsUnicodeAndWhitespace(t *testing.T) {
	reg := NewRegistry([]Supplier{{Name: "Café Ali", Aliases: []string{"Straße Motors"}}}, nil, nil)

	assert.True(t, reg.matchesSupplier("CAFE\u0301  ALI SDN BHD"), "decomposed accent and doubled space")
	assert.True(t, reg.matchesSupplier("ＣＡＦÉ ALI"), "fullwidth letters")
	assert.True(t, reg.matchesSupplier("STRASSE MOTORS KL"), "ß folds to ss")
	assert.False(t, reg.matchesSupplier("CAFE ALI"), "accents are significant")
}
