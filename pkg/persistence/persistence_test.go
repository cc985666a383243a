package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSerializer struct{}

func (failingSerializer) Marshal(any) ([]byte, error) { return nil, errors.New("nope") }

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "manifest.json")
	require.NoError(t, WriteJSON(map[string]any{"target": "/tmp/x"}, path))
	require.NoError(t, WriteJSON(map[string]any{"target": "/tmp/y"}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "/tmp/y", got["target"])
	assert.Contains(t, string(data), "\n    \"target\"")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileWriterNoOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	assert.ErrorIs(t, FileWriter{}.Write(path, []byte("new")), os.ErrExist)
	assert.ErrorIs(t, FileWriter{}.Write("", nil), os.ErrInvalid)
}

func TestWriteJSONToFileErrors(t *testing.T) {
	assert.ErrorIs(t, WriteJSONToFile(1, "", JSONSerializer{}, FileWriter{}), os.ErrInvalid)
	err := WriteJSONToFile(1, filepath.Join(t.TempDir(), "f"), failingSerializer{}, FileWriter{})
	assert.ErrorContains(t, err, "failed to marshal data")
}

func TestWriteText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastdump")
	require.NoError(t, WriteText(path, "/tmp/snapshot-1"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/snapshot-1\n", string(data))
}
