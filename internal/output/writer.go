// Package output writes code files, the partition manifest and optional
// GeoJSON to a filesystem, replacing each file atomically.
package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sells-group/aerocodes/internal/codes"
)

// FileMode is the permission of every written file. The files are served
// to other users, so they are world readable.
const FileMode os.FileMode = 0o644

// Writer writes output files through an afero filesystem.
type Writer struct {
	fs afero.Fs
}

// NewWriter creates a Writer on fs.
func NewWriter(fs afero.Fs) *Writer {
	return &Writer{fs: fs}
}

// WriteFile writes data to dir/name via a temp file and rename, so readers
// never observe a partial file. Returns the written path.
func (w *Writer) WriteFile(dir, name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", eris.Errorf("output: invalid file name %q", name)
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "output: create directory %s", dir)
	}

	tmp, err := afero.TempFile(w.fs, dir, "."+name+".tmp-*")
	if err != nil {
		return "", eris.Wrapf(err, "output: create temp file for %s", name)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = w.fs.Remove(tmpName)
		return "", eris.Wrapf(err, "output: write %s", name)
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpName)
		return "", eris.Wrapf(err, "output: close %s", name)
	}
	// TempFile creates 0600 files.
	if err := w.fs.Chmod(tmpName, FileMode); err != nil {
		_ = w.fs.Remove(tmpName)
		return "", eris.Wrapf(err, "output: chmod %s", name)
	}

	path := filepath.Join(dir, name)
	if err := w.fs.Rename(tmpName, path); err != nil {
		_ = w.fs.Remove(tmpName)
		return "", eris.Wrapf(err, "output: rename %s", name)
	}
	return path, nil
}

// WriteCodes encodes entries in mode and writes them to dir/name.
func (w *Writer) WriteCodes(dir, name string, entries []codes.Entry, mode codes.Mode) (string, error) {
	data, err := codes.Encode(entries, mode)
	if err != nil {
		return "", eris.Wrapf(err, "output: encode %s", name)
	}
	if mode == codes.Pretty && (len(data) == 0 || data[len(data)-1] != '\n') {
		data = append(data, '\n')
	}
	return w.WriteFile(dir, name, data)
}

// WriteManifest writes names as a JSON array indented by two spaces.
func (w *Writer) WriteManifest(dir, name string, names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "output: encode manifest")
	}
	return w.WriteFile(dir, name, data)
}

// ReadManifest reads a manifest written by WriteManifest.
func (w *Writer) ReadManifest(path string) ([]string, error) {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: read manifest %s", path)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, eris.Wrapf(err, "output: parse manifest %s", path)
	}
	return names, nil
}

// Prune removes files in dir named <prefix>_*.json that are not in keep.
// A missing directory is not an error. Returns the removed file names.
func (w *Writer) Prune(dir, prefix string, keep []string) ([]string, error) {
	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "output: list %s", dir)
	}

	var removed []string
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || !strings.HasPrefix(name, prefix+"_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if slices.Contains(keep, name) {
			continue
		}
		if err := w.fs.Remove(filepath.Join(dir, name)); err != nil {
			return removed, eris.Wrapf(err, "output: remove stale %s", name)
		}
		zap.L().Debug("output: removed stale file", zap.String("dir", dir), zap.String("file", name))
		removed = append(removed, name)
	}
	return removed, nil
}
