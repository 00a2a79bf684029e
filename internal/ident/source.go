// Package ident loads the identifiers a run fetches from delimited files.
package ident

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// DefaultColumn is the header read when none is configured.
const DefaultColumn = "Symbol"

// Load reads column from every file in paths and returns the union of its
// values, upper-cased, trimmed, deduplicated and sorted. Blank values are
// skipped.
func Load(paths []string, column string) ([]string, error) {
	if len(paths) == 0 {
		return nil, errors.New("ident: no source files configured")
	}
	set := map[string]struct{}{}
	for _, path := range paths {
		if err := loadFile(path, column, set); err != nil {
			return nil, err
		}
	}
	return sorted(set), nil
}

// Read returns the normalized identifiers of a single CSV stream.
func Read(r io.Reader, column string) ([]string, error) {
	set := map[string]struct{}{}
	if err := read(r, column, set); err != nil {
		return nil, err
	}
	return sorted(set), nil
}

// Normalize upper-cases and trims an identifier.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func loadFile(path, column string, set map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open identifier source: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := read(f, column, set); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func read(r io.Reader, column string, set map[string]struct{}) error {
	if column == "" {
		column = DefaultColumn
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("missing header row")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	idx := slices.IndexFunc(header, func(h string) bool {
		return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == column
	})
	if idx < 0 {
		return fmt.Errorf("column %q not found in header %v", column, header)
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if idx >= len(record) {
			continue
		}
		if id := Normalize(record[idx]); id != "" {
			set[id] = struct{}{}
		}
	}
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
