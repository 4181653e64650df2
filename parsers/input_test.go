package parsers

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestInputHandlerDirMode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"a":1}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.json"), []byte(`{"b":2}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("нет"), 0644))

	h, err := NewInputHandler(dir, nil, ".json")
	require.NoError(t, err)

	files, err := h.FileList()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	content, err := h.ReadFile(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, content)
}

func TestInputHandlerZipMode(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "export.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	w, err := zw.Create("chat/result.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)

	w, err = zw.Create("chat/readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("пропустить"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	h, err := NewInputHandler(zipPath, nil, ".json")
	require.NoError(t, err)

	files, err := h.FileList()
	require.NoError(t, err)
	require.Equal(t, []string{"chat/result.json"}, files)

	content, err := h.ReadFile("chat/result.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
}

func TestInputHandlerCP1251(t *testing.T) {
	dir := t.TempDir()

	encoded, err := charmap.Windows1251.NewEncoder().String("Привет, мир")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "msg.html"), []byte(encoded), 0644))

	h, err := NewInputHandler(dir, charmap.Windows1251, ".html")
	require.NoError(t, err)

	content, err := h.ReadFile(filepath.Join(dir, "msg.html"))
	require.NoError(t, err)
	assert.Equal(t, "Привет, мир", content)
}

func TestInputHandlerInvalidPath(t *testing.T) {
	notZip := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(notZip, []byte("не архив"), 0644))

	_, err := NewInputHandler(notZip, nil, ".json")
	assert.Error(t, err)

	_, err = NewInputHandler(filepath.Join(t.TempDir(), "missing"), nil, ".json")
	assert.Error(t, err)
}
