package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/books/internal/errs"
)

const testChart = `[
	{"code": "1000", "parentCode": null, "name": "Assets", "level": 1, "kind": 1},
	{"code": "1100", "parentCode": "1000", "name": "Cash", "level": 2, "kind": 1},
	{"code": "4000", "parentCode": null, "name": "Income", "level": 1, "kind": 4}
]`

const testSplits = `[
	{"description": "salary", "splits": [
		{"account": "1100", "side": "debit", "amount": "25"},
		{"account": "4000", "side": "credit", "amount": "25"}
	]}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runBooks(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("IMPORT_DUPLICATES", "")
	t.Setenv("IMPORT_STRICT_ROLES", "")
	t.Setenv("COA_WATCH", "")
	t.Setenv("DEV_SEED", "")

	cmd := NewRootCommand("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--plain"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateBundled(t *testing.T) {
	out, err := runBooks(t, "validate", "bundled:personal")
	require.NoError(t, err)
	assert.Contains(t, out, "bundled:personal:")
	assert.Contains(t, out, "created")
}

func TestValidateDuplicates(t *testing.T) {
	dup := writeFile(t, "dup.json", `[
		{"code": "1000", "name": "Assets", "level": 1, "kind": 1},
		{"code": "1000", "name": "Assets again", "level": 1, "kind": 1}
	]`)

	_, err := runBooks(t, "validate", dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrDuplicateCode)

	out, err := runBooks(t, "--duplicates", "last_wins", "validate", dup)
	require.NoError(t, err)
	assert.Contains(t, out, "2 accounts")

	_, err = runBooks(t, "--duplicates", "first_wins", "validate", dup)
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := runBooks(t, "validate", filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)
}

func TestTreeWithSplits(t *testing.T) {
	chartPath := writeFile(t, "chart.json", testChart)
	splitsPath := writeFile(t, "splits.json", testSplits)

	out, err := runBooks(t, "tree", chartPath, "--splits", splitsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1000 Assets")
	assert.Contains(t, out, "└── 1100 Cash")
	assert.Contains(t, out, "25.00")

	out, err = runBooks(t, "tree", chartPath, "--splits", splitsPath, "--inverted")
	require.NoError(t, err)
	assert.Contains(t, out, "-25.00")
}

func TestTreeWithoutSplits(t *testing.T) {
	out, err := runBooks(t, "tree", writeFile(t, "chart.csv",
		"code,parent_code,name,level,kind,role,notes,is_placeholder\n1000,,Assets,1,asset,,,\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "└── 1000 Assets\n")
	assert.NotContains(t, out, "0.00")
}

func TestTreeUnknownSplitAccount(t *testing.T) {
	chartPath := writeFile(t, "chart.json", testChart)
	splitsPath := writeFile(t, "splits.json", `[{"splits": [
		{"account": "9999", "side": "debit", "amount": "1"},
		{"account": "4000", "side": "credit", "amount": "1"}]}]`)

	_, err := runBooks(t, "tree", chartPath, "--splits", splitsPath)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPostgresCommandsNeedDatabase(t *testing.T) {
	chartPath := writeFile(t, "chart.json", testChart)
	_, err := runBooks(t, "import", chartPath, "--ledger", "6f1c1f9e-8e7b-4f43-9a59-0b8e8f0d8a11")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	_, err = runBooks(t, "balances", "--ledger", "not-a-uuid")
	require.Error(t, err)

	_, err = runBooks(t, "import", chartPath)
	require.Error(t, err)
}
