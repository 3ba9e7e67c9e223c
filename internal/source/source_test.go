package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadJSONLines(t *testing.T) {
	path := writeFile(t, "records.jsonl", `{"name":"Jon","phone":"555"}

{"name":"Amy","nested":{"city":"Oslo"}}
`)
	recs, err := ReadJSONLines(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Jon", recs[0]["name"])
	assert.Equal(t, map[string]any{"city": "Oslo"}, recs[1]["nested"])
}

func TestReadJSONLinesInvalid(t *testing.T) {
	path := writeFile(t, "bad.jsonl", "{not json}\n")
	_, err := ReadJSONLines(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":1:")
}

func TestReadCSV(t *testing.T) {
	path := writeFile(t, "records.csv", "name,phone\nJon,555\nAmy,\n")
	recs, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "555", recs[0]["phone"])
	_, present := recs[1]["phone"]
	assert.False(t, present, "empty cells must be absent, not empty strings")
}

func TestReadCSVEmpty(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	recs, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")

	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE people (name TEXT, phone TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO people VALUES ('Jon', '555'), ('Amy', NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	recs, err := ReadSQLite(context.Background(), path, "people")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Jon", recs[0]["name"])
	_, present := recs[1]["phone"]
	assert.False(t, present, "NULL columns must be absent")
}

func TestReadSQLiteRejectsBadTableName(t *testing.T) {
	_, err := ReadSQLite(context.Background(), "x.db", "people; DROP TABLE people")
	assert.Error(t, err)
}

func TestReadDispatch(t *testing.T) {
	ctx := context.Background()

	jsonl := writeFile(t, "a.jsonl", `{"name":"Jon"}`+"\n")
	recs, err := Read(ctx, jsonl, "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	csvPath := writeFile(t, "a.csv", "name\nJon\n")
	recs, err = Read(ctx, csvPath, "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = Read(ctx, "records.db", "")
	assert.Error(t, err, "sqlite input requires a table")

	_, err = Read(ctx, "records.xml", "")
	assert.Error(t, err)
}
