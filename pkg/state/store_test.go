package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreLoadBeforeSave(t *testing.T) {
	s := NewMemoryStore()
	var out payload
	assert.ErrorIs(t, s.Load(&out), ErrNotFound)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save(payload{Name: "bus", Count: 3}))

	var out payload
	require.NoError(t, s.Load(&out))
	assert.Equal(t, "bus", out.Name)
	assert.Equal(t, 3, out.Count)
}

func TestMemoryStoreSaveOverwrites(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save(payload{Count: 1}))
	require.NoError(t, s.Save(payload{Count: 2}))

	var out payload
	require.NoError(t, s.Load(&out))
	assert.Equal(t, 2, out.Count)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	var out payload
	assert.ErrorIs(t, s.Load(&out), ErrNotFound)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save(payload{Name: "queue", Count: 7}))

	var out payload
	require.NoError(t, s.Load(&out))
	assert.Equal(t, "queue", out.Name)
	assert.Equal(t, 7, out.Count)
}

func TestFileStoreReplacementIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s := NewFileStore(path)

	require.NoError(t, s.Save(payload{Count: 1}))
	require.NoError(t, s.Save(payload{Count: 2}))

	// Only the target file remains: no leftover temp files from the
	// write-then-rename sequence.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())

	var out payload
	require.NoError(t, s.Load(&out))
	assert.Equal(t, 2, out.Count)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, NewFileStore(path).Save(payload{Name: "persisted"}))

	var out payload
	require.NoError(t, NewFileStore(path).Load(&out))
	assert.Equal(t, "persisted", out.Name)
}
