package nasr

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	body []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.body)), nil
}

func (f *fakeFetcher) DownloadToFile(_ context.Context, url string, path string) (int64, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(path, f.body, 0o644); err != nil {
		return 0, err
	}
	return int64(len(f.body)), nil
}

func buildZIP(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestCycleDate(t *testing.T) {
	anchor := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"anchor day", anchor.Add(15 * time.Hour), anchor},
		{"mid cycle", time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC), anchor},
		{"last day", anchor.AddDate(0, 0, 27), anchor},
		{"next cycle", anchor.AddDate(0, 0, 28), time.Date(2025, time.April, 17, 0, 0, 0, 0, time.UTC)},
		{"before anchor", anchor.AddDate(0, 0, -1), anchor.AddDate(0, 0, -28)},
		{"exact earlier cycle", anchor.AddDate(0, 0, -28), anchor.AddDate(0, 0, -28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CycleDate(tt.at))
		})
	}
}

func TestBundleURL(t *testing.T) {
	cycle := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"https://example.test/28DaySub/20_Mar_2025_CSV.zip",
		BundleURL("https://example.test/28DaySub/{date}_CSV.zip", cycle))
	assert.Equal(t, "https://example.test/static.zip", BundleURL("https://example.test/static.zip", cycle))
}

func TestFetchBundle(t *testing.T) {
	inner := buildZIP(t, map[string]string{"CSV_Data/NAV_BASE.csv": "nav"})
	outer := buildZIP(t, map[string]string{
		"20_Mar_2025_CSV/APT_BASE.csv": "apt",
		"20_Mar_2025_CSV/FIX_BASE.csv": "fix",
		"20_Mar_2025_CSV/readme.txt":   "ignored",
		"nested/NAV_CSV.zip":           string(inner),
	})

	f := &fakeFetcher{body: outer}
	tmp := t.TempDir()
	dest := t.TempDir()

	res, err := FetchBundle(context.Background(), f, "https://example.test/b.zip", tmp, dest, DefaultLayouts())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.test/b.zip"}, f.urls)
	assert.Equal(t, int64(len(outer)), res.Bytes)
	assert.Empty(t, res.Missing)
	assert.Len(t, res.Files, 3)

	for name, want := range map[string]string{"APT_BASE.csv": "apt", "FIX_BASE.csv": "fix", "NAV_BASE.csv": "nav"} {
		got, err := os.ReadFile(filepath.Join(dest, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	_, err = os.Stat(filepath.Join(dest, "readme.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(tmp, "nasr_bundle.zip"))
	assert.True(t, os.IsNotExist(err), "downloaded archive is removed")
}

func TestFetchBundle_PartialBundle(t *testing.T) {
	f := &fakeFetcher{body: buildZIP(t, map[string]string{"FIX_BASE.csv": "fix"})}

	res, err := FetchBundle(context.Background(), f, "https://example.test/b.zip", t.TempDir(), t.TempDir(), DefaultLayouts())
	require.NoError(t, err)
	assert.Equal(t, []string{"APT_BASE.csv", "NAV_BASE.csv"}, res.Missing)
}

func TestFetchBundle_NoTables(t *testing.T) {
	f := &fakeFetcher{body: buildZIP(t, map[string]string{"other.csv": "x"})}

	_, err := FetchBundle(context.Background(), f, "https://example.test/b.zip", t.TempDir(), t.TempDir(), DefaultLayouts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle contains none of")
}

func TestFetchBundle_DownloadError(t *testing.T) {
	f := &fakeFetcher{err: eris.New("boom")}

	_, err := FetchBundle(context.Background(), f, "https://example.test/b.zip", t.TempDir(), t.TempDir(), DefaultLayouts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download bundle")
}
