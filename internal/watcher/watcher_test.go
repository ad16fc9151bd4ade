package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligible(t *testing.T) {
	assert.True(t, Eligible("invoice.pdf"))
	assert.True(t, Eligible("scan.PNG"))
	assert.True(t, Eligible("scan.jpg"))
	assert.True(t, Eligible("scan.JPEG"))
	assert.False(t, Eligible("notes.txt"))
	assert.False(t, Eligible("invoice.docx"))
	assert.False(t, Eligible(".hidden.pdf"))
	assert.False(t, Eligible("upload.pdf~"))
}

func TestNext_OldestFirst(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "first.pdf")
	newer := filepath.Join(dir, "second.pdf")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0644))

	// Push the first file's mtime into the past.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	w := New(dir)
	name, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, "first.pdf", name)
}

func TestNext_SkipsIneligible(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial.pdf"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir.pdf"), 0o755))

	w := New(dir)
	name, err := w.Next()
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestNext_EmptyAndMissingDir(t *testing.T) {
	w := New(t.TempDir())
	name, err := w.Next()
	require.NoError(t, err)
	assert.Empty(t, name)

	w = New("/nonexistent/incoming")
	name, err = w.Next()
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("c"), 0644))

	w := New(dir)
	files, err := w.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pdf", "b.png"}, files)
}

func TestList_MissingDir(t *testing.T) {
	w := New("/nonexistent/incoming")
	files, err := w.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestArchive(t *testing.T) {
	incoming := t.TempDir()
	processed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(incoming, "inv.pdf"), []byte("data"), 0644))

	w := New(incoming)
	name, err := w.Archive("inv.pdf", processed)
	require.NoError(t, err)
	assert.Equal(t, "inv.pdf", name)

	assert.NoFileExists(t, filepath.Join(incoming, "inv.pdf"))
	assert.FileExists(t, filepath.Join(processed, "inv.pdf"))
}

func TestArchive_Collision(t *testing.T) {
	incoming := t.TempDir()
	processed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(incoming, "inv.pdf"), []byte("new"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "inv.pdf"), []byte("old"), 0644))

	w := New(incoming)
	name, err := w.Archive("inv.pdf", processed)
	require.NoError(t, err)
	assert.NotEqual(t, "inv.pdf", name)
	assert.Contains(t, name, "_inv.pdf")
	assert.FileExists(t, filepath.Join(processed, name))

	// Existing file is untouched.
	data, err := os.ReadFile(filepath.Join(processed, "inv.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}
