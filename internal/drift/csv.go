package drift

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSV file names written by WriteCSV
const (
	ColDiffFile    = "col_diff.csv"
	ConfigDiffFile = "config_diff.csv"
)

// WriteCSV writes the comparison into dir as two tables: the keys present in
// only one document (col_diff.csv, skipped when there are none) and the value
// differences of shared keys (config_diff.csv). It returns the files written.
func WriteCSV(c Comparison, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create csv directory: %w", err)
	}

	var written []string

	if len(c.OnlyInFirst)+len(c.OnlyInSecond) > 0 {
		rows := [][]string{{"key", "only_in"}}
		for _, key := range c.OnlyInFirst {
			rows = append(rows, []string{key, c.First})
		}
		for _, key := range c.OnlyInSecond {
			rows = append(rows, []string{key, c.Second})
		}
		path := filepath.Join(dir, ColDiffFile)
		if err := writeRows(path, rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	rows := [][]string{{"key", c.First, c.Second}}
	for _, d := range c.Changed {
		rows = append(rows, []string{d.Key, d.First, d.Second})
	}
	path := filepath.Join(dir, ConfigDiffFile)
	if err := writeRows(path, rows); err != nil {
		return written, err
	}
	written = append(written, path)

	return written, nil
}

func writeRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
