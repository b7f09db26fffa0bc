package attendance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCSVStore_WritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "attendance.csv")

	_, err := NewCSVStore(path)
	require.NoError(t, err)
	_, err = NewCSVStore(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Timestamp,Confidence\n", string(data))
}

func TestCSVStore_AppendFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	store, err := NewCSVStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Append(Record{Name: "Smith, Jane", Timestamp: mustTime(t, "2024-03-05T17:45:09"), Confidence: 0.123456}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"Smith, Jane",2024-03-05T17:45:09,0.1235`, lines[1])

	records, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Smith, Jane", records[0].Name)
	assert.InDelta(t, 0.1235, records[0].Confidence, 1e-9)
}

func TestCSVStore_ReadAllMissingFile(t *testing.T) {
	store := &CSVStore{path: filepath.Join(t.TempDir(), "missing.csv")}

	records, err := store.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCSVStore_AppendFailsWhenFileRemoved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attendance.csv")
	store, err := NewCSVStore(path)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = store.Append(Record{Name: "Bob"})
	assert.ErrorIs(t, err, ErrLedgerWrite)
}

func TestCSVStore_SkipsUnreadableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	content := "Name,Timestamp,Confidence\nBob,not-a-time,0.5\nAlice,2024-01-01T09:00:00,0.9000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store, err := NewCSVStore(path)
	require.NoError(t, err)
	records, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alice", records[0].Name)
}
