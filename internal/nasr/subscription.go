package nasr

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aerocodes/internal/fetcher"
)

// CycleDays is the length of a NASR subscription cycle.
const CycleDays = 28

// cycleAnchor is a known cycle effective date.
var cycleAnchor = time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)

// CycleDate returns the effective date of the cycle in force at t.
func CycleDate(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := int(day.Sub(cycleAnchor).Hours() / 24)
	n := days / CycleDays
	if days < 0 && days%CycleDays != 0 {
		n--
	}
	return cycleAnchor.AddDate(0, 0, n*CycleDays)
}

// BundleURL expands the {date} placeholder in tmpl with the cycle date
// formatted like 20_Mar_2025.
func BundleURL(tmpl string, cycle time.Time) string {
	return strings.ReplaceAll(tmpl, "{date}", cycle.Format("02_Jan_2006"))
}

// FetchResult reports the outcome of FetchBundle.
type FetchResult struct {
	URL     string
	Bytes   int64
	Files   map[string]string
	Missing []string
}

// FetchBundle downloads the bundle at url into tempDir and extracts the table
// of every layout into destDir. Tables absent from the bundle are listed in
// Missing; a bundle holding none of them is an error.
func FetchBundle(ctx context.Context, f fetcher.Fetcher, url, tempDir, destDir string, layouts []Layout) (*FetchResult, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "nasr: create temp dir")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "nasr: create source dir")
	}

	zipPath := filepath.Join(tempDir, "nasr_bundle.zip")
	defer os.Remove(zipPath) //nolint:errcheck

	log := zap.L().With(zap.String("url", url))
	log.Info("nasr: downloading bundle")

	n, err := f.DownloadToFile(ctx, url, zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "nasr: download bundle")
	}

	names := make([]string, 0, len(layouts))
	for _, l := range layouts {
		names = append(names, l.File)
	}

	files, err := fetcher.ExtractZIPMatching(zipPath, destDir, names)
	if err != nil {
		return nil, eris.Wrap(err, "nasr: extract bundle")
	}

	res := &FetchResult{URL: url, Bytes: n, Files: files}
	for _, name := range names {
		if _, ok := files[name]; !ok {
			res.Missing = append(res.Missing, name)
		}
	}
	sort.Strings(res.Missing)

	if len(files) == 0 {
		return res, eris.Errorf("nasr: bundle contains none of %s", strings.Join(names, ", "))
	}
	if len(res.Missing) > 0 {
		log.Warn("nasr: bundle is missing tables", zap.Strings("missing", res.Missing))
	}
	log.Info("nasr: bundle extracted", zap.Int64("bytes", n), zap.Int("files", len(files)))
	return res, nil
}
