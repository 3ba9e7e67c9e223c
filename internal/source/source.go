// Package source loads records for deduplication from JSON lines, CSV
// files, or a SQLite table. Every reader produces the same shape: a
// slice of attribute maps in input order, which the pipeline turns into
// identified records.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Read loads records from a path, dispatching on the file extension:
// .jsonl/.ndjson/.json for JSON lines, .csv for CSV, .db/.sqlite/
// .sqlite3 for a SQLite database (table required).
func Read(ctx context.Context, path, table string) ([]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return ReadJSONLines(path)
	case ".csv":
		return ReadCSV(path)
	case ".db", ".sqlite", ".sqlite3":
		if table == "" {
			return nil, fmt.Errorf("reading from %s requires a table name", path)
		}
		return ReadSQLite(ctx, path, table)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", path)
	}
}
