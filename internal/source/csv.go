package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV reads a CSV file whose first row names the attributes. Empty
// cells become absent attributes rather than empty strings, so missing
// values behave the same as in JSON input.
func ReadCSV(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var out []map[string]any
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		rec := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(row) && row[i] != "" {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
