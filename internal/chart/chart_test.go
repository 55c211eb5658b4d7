package chart

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
)

const sampleJSON = `[
  {"code": "1", "parentCode": null, "name": "Root", "level": 0, "kind": 1, "role": 0},
  {"code": "1000", "parentCode": "1", "name": "Assets", "level": 1, "kind": 1, "role": 1, "notes": "top level"},
  {"code": "1100", "parentCode": "1000", "name": "Bank", "level": 2, "kind": 1, "role": 2, "isPlaceholder": false}
]`

func TestDecodeJSON(t *testing.T) {
	rows, err := DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].IsRootRow())
	assert.Equal(t, "", rows[0].Parent())
	assert.Equal(t, "1000", rows[2].Parent())
	assert.Equal(t, ledger.RoleBank, rows[2].Role)
	require.NotNil(t, rows[1].Notes)
	assert.Equal(t, "top level", *rows[1].Notes)
	require.NotNil(t, rows[2].IsPlaceholder)
	assert.False(t, *rows[2].IsPlaceholder)
}

func TestDecodeJSONFailures(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`[]`))
	assert.ErrorIs(t, err, errs.ErrDecodeFailed)

	_, err = DecodeJSON(strings.NewReader(`{"code": "1"}`))
	assert.ErrorIs(t, err, errs.ErrDecodeFailed)

	_, err = DecodeJSON(strings.NewReader(`not json`))
	assert.ErrorIs(t, err, errs.ErrDecodeFailed)
}

func TestCSVRoundTrip(t *testing.T) {
	rows, err := DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Nil(t, got[0].ParentCode)
	assert.Equal(t, "1", got[1].Parent())
	assert.Equal(t, ledger.KindAsset, got[1].Kind)
	assert.Equal(t, "top level", *got[1].Notes)
	assert.Nil(t, got[0].Notes)
	assert.Equal(t, 2, got[2].Level)
	require.NotNil(t, got[2].IsPlaceholder)
	assert.False(t, *got[2].IsPlaceholder)
}

func TestReadCSVKindNames(t *testing.T) {
	in := "code,parent_code,name,level,kind,role,notes,is_placeholder\n" +
		"4000,,Income,1,income,11,,\n"
	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.KindIncome, rows[0].Kind)
	assert.Equal(t, ledger.RoleIncome, rows[0].Role)
}

func TestReadCSVFailures(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("code,parent_code,name,level,kind,role,notes,is_placeholder\n"))
	assert.ErrorIs(t, err, errs.ErrDecodeFailed)

	_, err = ReadCSV(strings.NewReader("code,name\n1,Root\n"))
	assert.ErrorIs(t, err, errs.ErrDecodeFailed)

	_, err = ReadCSV(strings.NewReader("code,parent_code,name,level,kind,role,notes,is_placeholder\n1,,Root,zero,1,0,,\n"))
	assert.ErrorIs(t, err, errs.ErrDecodeFailed)
}

func TestBundledCharts(t *testing.T) {
	names := BundledNames()
	assert.Contains(t, names, DefaultChart)
	assert.Contains(t, names, "small_business")

	for _, name := range names {
		rows, err := Bundled(name)
		require.NoError(t, err, name)
		roots := 0
		codes := map[string]bool{}
		for _, r := range rows {
			codes[r.Code] = true
			if r.IsRootRow() {
				roots++
				continue
			}
			assert.True(t, r.Kind.Valid(), "%s: %s", name, r.Code)
			assert.Equal(t, r.Kind, r.Role.Kind(), "%s: %s", name, r.Code)
		}
		assert.Equal(t, 1, roots, name)
		for _, r := range rows {
			if p := r.Parent(); p != "" {
				assert.True(t, codes[p], "%s: missing parent %s", name, p)
			}
		}
	}

	_, err := Bundled("nope")
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)
	_, err = Bundled("../go")
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "chart.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o644))

	rows, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	csvPath := filepath.Join(dir, "chart.CSV")
	require.NoError(t, os.WriteFile(csvPath, buf.Bytes(), 0o644))
	rows, err = Load(csvPath)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = Load(BundledPrefix + DefaultChart)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chart.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	var calls atomic.Int32
	var lastRows atomic.Int32
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWatcher(path, logger, func(_ context.Context, rows []Row) error {
		lastRows.Store(int32(len(rows)))
		calls.Add(1)
		return nil
	}).WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := strings.Replace(sampleJSON, `"isPlaceholder": false}`, `"isPlaceholder": false},
  {"code": "1200", "parentCode": "1000", "name": "Cash", "level": 2, "kind": 1, "role": 3}`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(4), lastRows.Load())

	// Unrelated files in the same directory are ignored.
	time.Sleep(150 * time.Millisecond)
	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("[]"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
}
