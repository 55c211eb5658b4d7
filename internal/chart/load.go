package chart

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinoosan/books/internal/errs"
)

// BundledPrefix selects a bundled chart in a source string, e.g. "bundled:personal".
const BundledPrefix = "bundled:"

// Load resolves a chart source: a bundled chart name with BundledPrefix, or a
// .json/.csv file path.
func Load(source string) ([]Row, error) {
	source = strings.TrimSpace(source)
	if name, ok := strings.CutPrefix(source, BundledPrefix); ok {
		return Bundled(name)
	}
	return LoadFile(source)
}

// LoadFile reads a chart file; the format follows the extension (.csv, anything else is JSON).
func LoadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("chart file %q: %w", path, errs.ErrResourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening chart: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(f)
	}
	return DecodeJSON(f)
}
