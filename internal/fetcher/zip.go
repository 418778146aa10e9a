package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ExtractZIPMatching extracts every archive entry whose base name matches one
// of names (case-insensitively) into destDir, dropping the entry's directory.
// Names not found at the top level are looked up one level deep inside nested
// .zip entries, which is how the NASR subscription packs its CSV bundle.
// Returns the extracted path for each name found; missing names are absent.
func ExtractZIPMatching(zipPath, destDir string, names []string) (map[string]string, error) {
	wanted := make(map[string]string, len(names))
	for _, n := range names {
		wanted[strings.ToLower(n)] = n
	}
	found := make(map[string]string, len(names))

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var nested []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			nested = append(nested, f)
			continue
		}
		if err := extractIfWanted(f, destDir, wanted, found); err != nil {
			return found, err
		}
	}

	for _, f := range nested {
		if len(found) == len(wanted) {
			break
		}
		if err := searchNested(f, destDir, wanted, found); err != nil {
			return found, err
		}
	}

	return found, nil
}

func extractIfWanted(f *zip.File, destDir string, wanted, found map[string]string) error {
	name, ok := wanted[strings.ToLower(path.Base(f.Name))]
	if !ok {
		return nil
	}
	if _, done := found[name]; done {
		return nil
	}
	dest := filepath.Join(destDir, name)
	if err := extractZIPEntry(f, dest); err != nil {
		return err
	}
	found[name] = dest
	return nil
}

// searchNested spools an inner archive to a temp file and extracts matches from it.
func searchNested(f *zip.File, destDir string, wanted, found map[string]string) error {
	zap.L().Debug("zip: searching nested archive", zap.String("entry", f.Name))

	tmp, err := os.CreateTemp(destDir, ".nested-*.zip")
	if err != nil {
		return eris.Wrap(err, "zip: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := copyEntry(f, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "zip: close temp file")
	}

	r, err := zip.OpenReader(tmp.Name())
	if err != nil {
		return eris.Wrapf(err, "zip: open nested archive %s", f.Name)
	}
	defer r.Close() //nolint:errcheck

	for _, inner := range r.File {
		if inner.FileInfo().IsDir() {
			continue
		}
		if err := extractIfWanted(inner, destDir, wanted, found); err != nil {
			return err
		}
	}
	return nil
}

// extractZIPEntry writes a single zip.File to destPath.
func extractZIPEntry(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return eris.Wrap(err, "zip: create parent directory")
	}

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	return copyEntry(f, out)
}

func copyEntry(f *zip.File, w io.Writer) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	if _, err := io.Copy(w, rc); err != nil {
		return eris.Wrap(err, "zip: write file")
	}
	return nil
}
