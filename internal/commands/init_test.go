package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/accounts"
	"github.com/cleared-dev/recon/internal/classify"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "recon-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "recon")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/recon")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runRecon(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	_, err := runRecon(t, "init", dir)
	require.NoError(t, err)

	expectedDirs := []string{
		"accounts",
		"data",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	_, err = os.Stat(filepath.Join(dir, "data", "recon.db"))
	assert.NoError(t, err, "database should be created")
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runRecon(t, "init", dir, "--currency", "sgd")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "recon.yaml"))
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "currency: SGD")
	assert.Contains(t, contents, "db_path: data/recon.db")
	assert.Contains(t, contents, "record_failures: true")
}

func TestInit_EmptyDirectoryAndRegistry(t *testing.T) {
	dir := t.TempDir()
	_, err := runRecon(t, "init", dir)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "accounts", "accounts.csv"))
	require.NoError(t, err)
	defer f.Close()
	accts, err := accounts.ReadAccounts(f)
	require.NoError(t, err)
	assert.Empty(t, accts)

	reg, err := classify.LoadRegistry(filepath.Join(dir, "registry.yaml"))
	require.NoError(t, err)
	assert.Empty(t, reg.Suppliers)
	assert.Equal(t, classify.NewRegistry(nil, nil, nil).Version(), reg.Version())
}

func TestInit_Gitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := runRecon(t, "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "data/")
}

func TestInit_RefusesExistingWorkspace(t *testing.T) {
	dir := t.TempDir()
	_, err := runRecon(t, "init", dir)
	require.NoError(t, err)

	out, err := runRecon(t, "init", dir)
	require.Error(t, err, "second init should fail")
	assert.Contains(t, out, "recon.yaml already exists")
}

func TestVersion(t *testing.T) {
	out, err := runRecon(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "recon version dev")
}
