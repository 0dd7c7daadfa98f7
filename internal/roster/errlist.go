package roster

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// LoadErrorList reads the labels a replay pass should be limited to.
// CSV files contribute their label column (or the first column when no
// label-ish header exists); anything else is read as plain text, one label
// per line.
func LoadErrorList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roster: open error list: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readErrorCSV(f)
	}
	return readErrorLines(f)
}

func readErrorCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("roster: read error list header: %w", err)
	}

	col := 0
	found := false
	for i, name := range header {
		for _, want := range labelColumns {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				col, found = i, true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		// Any header mentioning make or model is close enough.
		for i, name := range header {
			lower := strings.ToLower(name)
			if strings.Contains(lower, "make") || strings.Contains(lower, "model") {
				col, found = i, true
				break
			}
		}
	}
	// col stays 0 when nothing matched: first column fallback.

	var labels []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster: read error list row: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[col]); v != "" {
			labels = append(labels, v)
		}
	}
	return labels, nil
}

func readErrorLines(r io.Reader) ([]string, error) {
	var labels []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if v := strings.TrimSpace(sc.Text()); v != "" {
			labels = append(labels, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("roster: read error list: %w", err)
	}
	return labels, nil
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)

// matchKey reduces a label to lowercase alphanumerics so "Nova-12 (5G)"
// and "nova 12 5g" collide.
func matchKey(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}

// FilterEntries returns the roster entries matching any error-list label.
// Matching is containment in either direction over reduced keys: error
// lists are written by hand and rarely reproduce the roster spelling.
func FilterEntries(entries []Entry, errorLabels []string) []Entry {
	keys := make([]string, 0, len(errorLabels))
	for _, l := range errorLabels {
		if k := matchKey(l); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	var out []Entry
	for _, e := range entries {
		ek := matchKey(e.Display)
		if ek == "" {
			continue
		}
		for _, k := range keys {
			if strings.Contains(ek, k) || strings.Contains(k, ek) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
