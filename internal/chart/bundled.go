package chart

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/tinoosan/books/internal/errs"
)

//go:embed charts/*.json
var bundled embed.FS

// DefaultChart is the bundled chart used when bootstrapping without an explicit choice.
const DefaultChart = "personal"

// Bundled decodes the named chart shipped with the binary.
func Bundled(name string) ([]Row, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("bundled chart %q: %w", name, errs.ErrResourceNotFound)
	}
	b, err := bundled.ReadFile(path.Join("charts", name+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("bundled chart %q: %w", name, errs.ErrResourceNotFound)
	}
	if err != nil {
		return nil, err
	}
	return DecodeJSON(bytes.NewReader(b))
}

// BundledNames lists the charts shipped with the binary.
func BundledNames() []string {
	entries, err := bundled.ReadDir("charts")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}
