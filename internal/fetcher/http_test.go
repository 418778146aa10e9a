package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickHTTP(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:         "aerocodes-test",
		Timeout:           5 * time.Second,
		MaxRetries:        retries,
		InitialBackoff:    time.Millisecond,
		RequestsPerSecond: 100,
	})
}

// scripted answers each request with the next status in order, repeating the
// last one, and writes body on 200.
func scripted(t *testing.T, body string, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aerocodes-test", r.Header.Get("User-Agent"))
		n := int(calls.Add(1)) - 1
		status := statuses[min(n, len(statuses)-1)]
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestHTTPDownload_Statuses(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retries   int
		wantCalls int32
		wantErr   string
	}{
		{"ok", []int{200}, 3, 1, ""},
		{"unavailable then ok", []int{503, 200}, 3, 2, ""},
		{"throttled then ok", []int{429, 429, 200}, 3, 3, ""},
		{"server error exhausts", []int{500}, 2, 2, "all retries exhausted"},
		{"missing cycle", []int{404}, 3, 1, "unexpected status 404"},
		{"forbidden", []int{403}, 3, 1, "unexpected status 403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := scripted(t, "bundle", tt.statuses...)

			body, err := quickHTTP(tt.retries).Download(context.Background(), srv.URL+"/28DaySubscription_Effective_2026-10-01.zip")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				data, readErr := io.ReadAll(body)
				require.NoError(t, readErr)
				require.NoError(t, body.Close())
				assert.Equal(t, "bundle", string(data))
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestHTTPDownloadToFile(t *testing.T) {
	payload := "PK fake nasr bundle"
	srv, _ := scripted(t, payload, http.StatusOK)

	path := filepath.Join(t.TempDir(), "nasr.zip")
	n, err := quickHTTP(1).DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	leftovers, err := filepath.Glob(path + ".part-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestHTTPDownloadToFile_FailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than are sent so the copy fails.
		w.Header().Set("Content-Length", strconv.Itoa(1000))
		_, _ = io.WriteString(w, "short")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "nasr.zip")
	_, err := quickHTTP(1).DownloadToFile(context.Background(), srv.URL, path)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "aerocodes/1.0", f.opts.UserAgent)
	assert.Equal(t, 5*time.Minute, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Zero(t, f.opts.InitialBackoff)
	assert.InDelta(t, 2.0, f.opts.RequestsPerSecond, 0.001)
}
