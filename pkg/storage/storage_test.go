package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()

	store, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStorageSave(t *testing.T) {
	store := newLocalStorage(t)

	content := "LEI Nº 8.078, DE 11 DE SETEMBRO DE 1990"
	info, err := store.Save(bytes.NewBufferString(content), "cdc.txt")
	require.NoError(t, err)

	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "cdc.txt", info.Name)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "text/plain", info.MimeType)

	fullPath := filepath.Join(store.basePath, info.Path)
	_, err = os.Stat(fullPath)
	assert.NoError(t, err)
}

func TestLocalStorageGet(t *testing.T) {
	store := newLocalStorage(t)

	content := "Art. 49. O consumidor pode desistir do contrato."
	info, err := store.Save(bytes.NewBufferString(content), "artigo.txt")
	require.NoError(t, err)

	reader, err := store.Get(info.ID)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	_, err = store.Get("missing-id")
	assert.Error(t, err)
}

func TestLocalStorageDelete(t *testing.T) {
	store := newLocalStorage(t)

	info, err := store.Save(bytes.NewBufferString("conteudo"), "lei.txt")
	require.NoError(t, err)

	require.NoError(t, store.Delete(info.ID))

	exists, err := store.Exists(info.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, store.Delete(info.ID))
}

func TestLocalStorageList(t *testing.T) {
	store := newLocalStorage(t)

	_, err := store.Save(bytes.NewBufferString("a"), "um.txt")
	require.NoError(t, err)
	_, err = store.Save(bytes.NewBufferString("b"), "dois.pdf")
	require.NoError(t, err)

	files, err := store.List()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestLocalStorageExists(t *testing.T) {
	store := newLocalStorage(t)

	info, err := store.Save(bytes.NewBufferString("x"), "doc.md")
	require.NoError(t, err)

	exists, err := store.Exists(info.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists("nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", getMimeType("lei.pdf"))
	assert.Equal(t, "text/markdown", getMimeType("resumo.md"))
	assert.Equal(t, "text/plain", getMimeType("cdc.txt"))
	assert.Equal(t, "text/html", getMimeType("pagina.html"))
	assert.Equal(t, "application/octet-stream", getMimeType("arquivo.bin"))
}
