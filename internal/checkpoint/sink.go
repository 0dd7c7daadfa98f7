package checkpoint

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/releve/internal/roster"
)

// Snapshot is a self-contained, already-copied view of run progress.
// Nothing in it may alias live loop state.
type Snapshot struct {
	Table  *roster.Table // roster with filled columns; nil to skip
	Source string        // source tag for the output file; "" to skip
	Out    []OutputRow   // per-source result rows in roster order
}

// OutputRow is one line of the per-source results file.
type OutputRow struct {
	Model        string
	LowPrice     string
	HighPrice    string
	MRP          string
	ProductURL   string
	Availability string
	SearchURLs   string
}

var outputHeader = []string{
	"Model", "Low_Price", "High_Price", "MRP",
	"Product_URL", "Availability", "Search_URLs",
}

// FileSink writes snapshots next to the roster: the roster file itself is
// rewritten in place (atomic rename) and each source gets a results CSV in
// OutDir.
type FileSink struct {
	OutDir string
}

// Persist writes the roster and the per-source results file.
func (s *FileSink) Persist(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	if snap.Table != nil {
		if err := snap.Table.Save(""); err != nil {
			return fmt.Errorf("checkpoint: roster: %w", err)
		}
	}
	if snap.Source != "" && len(snap.Out) > 0 {
		path := filepath.Join(s.OutDir, snap.Source+"_results.csv")
		if err := writeOutputCSV(path, snap.Out); err != nil {
			return fmt.Errorf("checkpoint: results: %w", err)
		}
	}
	return nil
}

// writeOutputCSV writes rows atomically via temp-and-rename, same as the
// roster save path.
func writeOutputCSV(path string, rows []OutputRow) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(outputHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, r := range rows {
		rec := []string{r.Model, r.LowPrice, r.HighPrice, r.MRP, r.ProductURL, r.Availability, r.SearchURLs}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
