// Package lookup resolves codes against the partition files a build wrote,
// loading only the unit that can hold the code.
package lookup

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/aerocodes/internal/codes"
	"github.com/sells-group/aerocodes/internal/nasr"
	"github.com/sells-group/aerocodes/internal/output"
	"github.com/sells-group/aerocodes/internal/partition"
)

// ErrNotFound is returned for codes absent from every unit.
var ErrNotFound = eris.New("lookup: code not found")

// Result is a resolved code.
type Result struct {
	Code      string  `json:"code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Unit      string  `json:"unit"`
}

// Options locates a build's output.
type Options struct {
	PartitionDir string
	Manifest     string
	Prefix       string
	// SplitDir, when set, serves single-character codes from the
	// per-character split files, since partitions never hold them.
	SplitDir string
}

// Index maps codes to partition units and caches loaded units.
type Index struct {
	fs       afero.Fs
	opts     Options
	manifest []string
	units    map[rune][]partition.Unit

	mu    sync.RWMutex
	cache map[string]map[string]codes.Coord
	group singleflight.Group
}

// Open reads the manifest and indexes its unit names.
func Open(fs afero.Fs, opts Options) (*Index, error) {
	path := filepath.Join(opts.PartitionDir, opts.Manifest)
	names, err := output.NewWriter(fs).ReadManifest(path)
	if err != nil {
		return nil, eris.Wrap(err, "lookup: open index")
	}

	ix := &Index{
		fs:       fs,
		opts:     opts,
		manifest: names,
		units:    make(map[rune][]partition.Unit),
		cache:    make(map[string]map[string]codes.Coord),
	}
	for _, name := range names {
		u, err := partition.ParseUnitName(opts.Prefix, name)
		if err != nil {
			return nil, eris.Wrap(err, "lookup: open index")
		}
		ix.units[u.First] = append(ix.units[u.First], u)
	}
	zap.L().Debug("lookup: index opened", zap.String("manifest", path), zap.Int("units", len(names)))
	return ix, nil
}

// Manifest returns the unit names in manifest order.
func (ix *Index) Manifest() []string {
	out := make([]string, len(ix.manifest))
	copy(out, ix.manifest)
	return out
}

// Normalize applies the same normalization the build applies to codes.
func Normalize(code string) string {
	return nasr.NormalizeCode(cases.Upper(language.Und), code)
}

// Resolve returns the directory and file name that would hold code. A first
// character with a single unit matches any second character.
func (ix *Index) Resolve(code string) (dir, name string, ok bool) {
	first, n := utf8.DecodeRuneInString(code)
	if n == 0 {
		return "", "", false
	}
	if n == len(code) {
		if ix.opts.SplitDir == "" {
			return "", "", false
		}
		return ix.opts.SplitDir, partition.SplitFileName(ix.opts.Prefix, first), true
	}

	units := ix.units[first]
	if len(units) == 1 {
		return ix.opts.PartitionDir, units[0].Name, true
	}
	second, _ := utf8.DecodeRuneInString(code[n:])
	for _, u := range units {
		if second >= u.Start && second <= u.End {
			return ix.opts.PartitionDir, u.Name, true
		}
	}
	return "", "", false
}

// Lookup normalizes code and returns its coordinates.
func (ix *Index) Lookup(ctx context.Context, code string) (*Result, error) {
	code = Normalize(code)
	dir, name, ok := ix.Resolve(code)
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "%q", code)
	}

	unit, err := ix.load(ctx, dir, name)
	if err != nil {
		return nil, err
	}
	coord, ok := unit[code]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "%q", code)
	}
	return &Result{Code: code, Latitude: coord.Lat(), Longitude: coord.Lon(), Unit: name}, nil
}

func (ix *Index) load(ctx context.Context, dir, name string) (map[string]codes.Coord, error) {
	path := filepath.Join(dir, name)

	ix.mu.RLock()
	unit, ok := ix.cache[path]
	ix.mu.RUnlock()
	if ok {
		return unit, nil
	}

	ch := ix.group.DoChan(path, func() (any, error) {
		data, err := afero.ReadFile(ix.fs, path)
		if err != nil {
			return nil, eris.Wrapf(err, "lookup: read unit %s", name)
		}
		var m map[string]codes.Coord
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, eris.Wrapf(err, "lookup: parse unit %s", name)
		}

		ix.mu.Lock()
		ix.cache[path] = m
		ix.mu.Unlock()

		zap.L().Debug("lookup: loaded unit", zap.String("path", path), zap.Int("codes", len(m)))
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "lookup: load unit")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]codes.Coord), nil
	}
}

// Cached reports how many units are held in memory.
func (ix *Index) Cached() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.cache)
}
