package storage

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveWritesUnderRoot(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	stored, err := store.Save(context.Background(), "sy-2024/SOA_A_20241015.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "sy-2024", "SOA_A_20241015.pdf"), stored)

	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	_, err = store.Save(context.Background(), "sy-2024/SOA_A_20241015.pdf", []byte("%PDF-2"))
	require.NoError(t, err)
	data, _ = os.ReadFile(stored)
	assert.Equal(t, "%PDF-2", string(data))
}

func TestSaveRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, rel := range []string{"", "..", "../x.pdf", "a/../../x.pdf", "/etc/passwd"} {
		_, err := store.Save(context.Background(), rel, []byte("x"))
		assert.True(t, errors.Is(err, ErrOutsideRoot), rel)
	}
}

func TestArchiveZipsStoredFiles(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := store.Save(ctx, "sy-2024/a.pdf", []byte("A"))
	require.NoError(t, err)
	second, err := store.Save(ctx, "sy-2024/b.pdf", []byte("B"))
	require.NoError(t, err)

	archivePath, err := store.Archive(ctx, "sy-2024/bulk-run.zip", []string{first, second})
	require.NoError(t, err)

	reader, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer reader.Close()

	contents := map[string]string{}
	var names []string
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"sy-2024/a.pdf", "sy-2024/b.pdf"}, names)
	assert.Equal(t, "B", contents["sy-2024/b.pdf"])
}

func TestArchiveRejectsForeignFiles(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	outside := filepath.Join(t.TempDir(), "other.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	_, err = store.Archive(context.Background(), "bulk.zip", []string{outside})
	assert.True(t, errors.Is(err, ErrOutsideRoot))
}

func TestNewLocalStoreRequiresRoot(t *testing.T) {
	_, err := NewLocalStore("  ")
	assert.Error(t, err)
}
