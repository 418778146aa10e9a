package fetcher

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// drain reads every row and then the first error, if any.
func drain(rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	var rows [][]string
	for r := range rowCh {
		rows = append(rows, r)
	}
	var first error
	for err := range errCh {
		if first == nil {
			first = err
		}
	}
	return rows, first
}

// bundleZip packs name -> content into an in-memory archive.
func bundleZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// bundleZipFile writes bundleZip output to a temp file and returns its path.
func bundleZipFile(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, os.WriteFile(path, bundleZip(t, entries), 0o644))
	return path
}
