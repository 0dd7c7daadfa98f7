// Package roster reads and writes the survey workbook: a CSV whose rows are
// the items to look up. The label column is mandatory; every other column is
// preserved byte-for-byte so operators can keep their own annotations in the
// same file. Result and status columns are created on demand and filled as
// the run progresses.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/releve/internal/match"
)

// ErrNoLabelColumn is returned when the workbook has no recognizable item
// label column.
var ErrNoLabelColumn = errors.New("roster: no label column found")

// labelColumns are accepted header spellings for the item label, tried in
// order. Case-insensitive.
var labelColumns = []string{"Make-Model", "Make Model", "Model", "Item"}

// Table is a loaded workbook: header plus raw rows, all cells padded to the
// header width.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string

	labelCol int
	colIndex map[string]int // lower-cased header name -> index
}

// Entry is one usable roster row.
type Entry struct {
	Row     int    // index into Table.Rows
	Display string // label as written
	Label   string // normalized identity key
}

// Load reads a workbook from disk. Rows shorter than the header are padded
// with empty cells; longer rows keep their extra cells.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roster: open: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("roster: read header: %w", err)
	}

	t := &Table{Path: path, Header: header, labelCol: -1}
	t.reindex()
	for _, name := range labelColumns {
		if idx, ok := t.colIndex[strings.ToLower(name)]; ok {
			t.labelCol = idx
			break
		}
	}
	if t.labelCol < 0 {
		return nil, ErrNoLabelColumn
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster: read row %d: %w", len(t.Rows)+2, err)
		}
		for len(rec) < len(t.Header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func (t *Table) reindex() {
	t.colIndex = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		t.colIndex[strings.ToLower(strings.TrimSpace(name))] = i
	}
}

// LabelColumn returns the header name of the label column.
func (t *Table) LabelColumn() string {
	return t.Header[t.labelCol]
}

// Entries returns the usable rows in roster order. Rows with a blank label
// are skipped; they stay in the file but nothing is looked up for them.
func (t *Table) Entries() []Entry {
	var entries []Entry
	for i, row := range t.Rows {
		display := strings.TrimSpace(row[t.labelCol])
		if display == "" {
			continue
		}
		entries = append(entries, Entry{Row: i, Display: display, Label: match.Normalize(display)})
	}
	return entries
}

// EnsureColumns appends any missing columns with empty cells, leaving
// existing columns untouched.
func (t *Table) EnsureColumns(names ...string) {
	added := false
	for _, name := range names {
		if _, ok := t.colIndex[strings.ToLower(name)]; ok {
			continue
		}
		t.Header = append(t.Header, name)
		added = true
	}
	if !added {
		return
	}
	t.reindex()
	for i, row := range t.Rows {
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows[i] = row
	}
}

// ColumnIndex returns the index of a column by case-insensitive name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if idx, ok := t.colIndex[strings.ToLower(strings.TrimSpace(name))]; ok {
		return idx
	}
	return -1
}

// Set writes a cell by row index and column name.
func (t *Table) Set(row int, column, value string) error {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return fmt.Errorf("roster: unknown column %q", column)
	}
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("roster: row %d out of range", row)
	}
	for len(t.Rows[row]) <= idx {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][idx] = value
	return nil
}

// Get reads a cell by row index and column name. Unknown columns and
// out-of-range rows read as "".
func (t *Table) Get(row int, column string) string {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}

// Clone deep-copies the table so a snapshot can be written while the
// original keeps mutating.
func (t *Table) Clone() *Table {
	c := &Table{Path: t.Path, labelCol: t.labelCol}
	c.Header = append([]string(nil), t.Header...)
	c.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	c.reindex()
	return c
}

// Save writes the table to path atomically: a temp file in the same
// directory is renamed over the target, so a crash mid-write never leaves a
// half-written workbook.
func (t *Table) Save(path string) error {
	if path == "" {
		path = t.Path
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("roster: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Header); err != nil {
		tmp.Close()
		return fmt.Errorf("roster: write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("roster: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("roster: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("roster: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("roster: rename: %w", err)
	}
	return nil
}
