// Package pipeline runs a build: read every NASR table into the code
// registry, then write the aggregate file, the per-character split files, the
// size-bounded partition files and their manifest.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sells-group/aerocodes/internal/codes"
	"github.com/sells-group/aerocodes/internal/config"
	"github.com/sells-group/aerocodes/internal/fetcher"
	"github.com/sells-group/aerocodes/internal/nasr"
	"github.com/sells-group/aerocodes/internal/output"
	"github.com/sells-group/aerocodes/internal/partition"
	"github.com/sells-group/aerocodes/internal/store"
)

// ErrNoSources is returned when every source table failed to load.
var ErrNoSources = eris.New("pipeline: no source table could be read")

// Options configures a build.
type Options struct {
	Layouts      []nasr.Layout
	SourceDir    string
	CSV          fetcher.CSVOptions
	OutputDir    string
	SplitDir     string
	PartitionDir string
	Prefix       string
	Manifest     string
	MaxUnitBytes int
	Prune        bool
	GeoJSON      bool
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, layouts []nasr.Layout) Options {
	return Options{
		Layouts:   layouts,
		SourceDir: cfg.Source.Dir,
		CSV: fetcher.CSVOptions{
			Delimiter:  cfg.Source.DelimiterRune(),
			Comment:    cfg.Source.CommentRune(),
			LazyQuotes: cfg.Source.LazyQuotes,
			TrimSpace:  cfg.Source.TrimSpace,
			Charset:    cfg.Source.Charset,
		},
		OutputDir:    cfg.Output.Dir,
		SplitDir:     cfg.Output.SplitDir,
		PartitionDir: cfg.Output.PartitionDir,
		Prefix:       cfg.Output.Prefix,
		Manifest:     cfg.Output.Manifest,
		MaxUnitBytes: cfg.Partition.MaxUnitBytes(),
		Prune:        cfg.Output.Prune,
		GeoJSON:      cfg.Output.GeoJSON,
	}
}

// SourceResult is the outcome of one source table.
type SourceResult struct {
	nasr.Stats
	Err error
}

// Result summarizes a build.
type Result struct {
	RunID         string
	Sources       []SourceResult
	Codes         int
	AggregateFile string
	SplitFiles    []string
	Units         []string
	ManifestFile  string
	GeoJSONFile   string
	Pruned        []string
	Duration      time.Duration
}

// RunResult converts the result for the run log.
func (r *Result) RunResult() store.RunResult {
	rr := store.RunResult{
		Codes:      r.Codes,
		Units:      len(r.Units),
		SplitFiles: len(r.SplitFiles),
	}
	for _, s := range r.Sources {
		stat := store.SourceStat{
			Kind:     string(s.Kind),
			File:     s.File,
			Rows:     s.Rows,
			Accepted: s.Accepted,
			Rejected: s.Rejected,
		}
		if s.Err != nil {
			stat.Error = s.Err.Error()
		}
		rr.Sources = append(rr.Sources, stat)
	}
	return rr
}

// Pipeline owns one build's registry and outputs.
type Pipeline struct {
	opts    Options
	store   store.Store
	writer  *output.Writer
	scanner *nasr.Scanner
}

// New creates a Pipeline writing through fs and logging runs to st.
func New(opts Options, st store.Store, fs afero.Fs) *Pipeline {
	if st == nil {
		st = store.NopStore{}
	}
	if len(opts.Layouts) == 0 {
		opts.Layouts = nasr.DefaultLayouts()
	}
	return &Pipeline{
		opts:    opts,
		store:   st,
		writer:  output.NewWriter(fs),
		scanner: nasr.NewScanner(opts.SourceDir, opts.CSV),
	}
}

// Run executes the build. Source failures are logged and recorded; encoding
// or write failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("source_dir", p.opts.SourceDir))
	log.Info("pipeline: starting build", zap.Int("sources", len(p.opts.Layouts)))

	run, err := p.store.StartRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}
	res := &Result{RunID: run.ID}

	if err := p.build(ctx, res); err != nil {
		res.Duration = time.Since(start)
		if failErr := p.store.FailRun(ctx, run.ID, res.RunResult(), err); failErr != nil {
			log.Warn("pipeline: failed to record failed run", zap.Error(failErr))
		}
		return res, err
	}

	res.Duration = time.Since(start)
	if err := p.store.CompleteRun(ctx, run.ID, res.RunResult()); err != nil {
		log.Warn("pipeline: failed to record run", zap.Error(err))
	}

	log.Info("pipeline: build complete",
		zap.String("run_id", run.ID),
		zap.Int("codes", res.Codes),
		zap.Int("split_files", len(res.SplitFiles)),
		zap.Int("units", len(res.Units)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (p *Pipeline) build(ctx context.Context, res *Result) error {
	reg, err := p.load(ctx, res)
	if err != nil {
		return err
	}
	entries := reg.Entries()
	res.Codes = len(entries)

	if res.AggregateFile, err = p.writeAggregate(entries); err != nil {
		return err
	}
	if res.SplitFiles, err = p.writeSplit(entries); err != nil {
		return err
	}
	if res.Units, err = p.writePartitions(entries); err != nil {
		return err
	}
	if res.ManifestFile, err = p.writer.WriteManifest(p.opts.PartitionDir, p.opts.Manifest, res.Units); err != nil {
		return eris.Wrap(err, "pipeline: write manifest")
	}
	zap.L().Info("pipeline: wrote manifest", zap.String("path", res.ManifestFile), zap.Int("units", len(res.Units)))

	if p.opts.GeoJSON {
		if res.GeoJSONFile, err = p.writer.WriteGeoJSON(p.opts.OutputDir, p.opts.Prefix+".geojson", entries); err != nil {
			return eris.Wrap(err, "pipeline: write geojson")
		}
		zap.L().Info("pipeline: wrote geojson", zap.String("path", res.GeoJSONFile))
	}

	if p.opts.Prune {
		if res.Pruned, err = p.prune(res); err != nil {
			return err
		}
	}
	return nil
}

// load reads every source in layout order. A source's records are applied
// only after the whole table was read, so a failing table leaves no trace.
func (p *Pipeline) load(ctx context.Context, res *Result) (*codes.Registry, error) {
	reg := codes.NewRegistry()
	ok := 0

	for _, layout := range p.opts.Layouts {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: cancelled")
		}

		var pending []codes.Record
		stats, err := p.scanner.Scan(ctx, layout, func(r codes.Record) {
			pending = append(pending, r)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(err, "pipeline: cancelled")
			}
			zap.L().Warn("pipeline: skipping source",
				zap.String("kind", string(layout.Kind)),
				zap.String("file", layout.File),
				zap.Error(err),
			)
			res.Sources = append(res.Sources, SourceResult{Stats: stats, Err: err})
			continue
		}

		replaced := 0
		for _, r := range pending {
			if reg.Put(r) {
				replaced++
			}
		}
		ok++
		res.Sources = append(res.Sources, SourceResult{Stats: stats})

		zap.L().Info("pipeline: loaded source",
			zap.String("kind", string(layout.Kind)),
			zap.String("file", layout.File),
			zap.Int("rows", stats.Rows),
			zap.Int("accepted", stats.Accepted),
			zap.Int("rejected", stats.Rejected),
			zap.Int("replaced", replaced),
			zap.Int("registry_size", reg.Len()),
		)
	}

	if ok == 0 {
		return nil, ErrNoSources
	}
	return reg, nil
}

func (p *Pipeline) writeAggregate(entries []codes.Entry) (string, error) {
	path, err := p.writer.WriteCodes(p.opts.OutputDir, p.opts.Prefix+".json", entries, codes.Pretty)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: write aggregate")
	}
	zap.L().Info("pipeline: wrote aggregate", zap.String("path", path), zap.Int("codes", len(entries)))
	return path, nil
}

func (p *Pipeline) writeSplit(entries []codes.Entry) ([]string, error) {
	groups := partition.ByFirstChar(entries)
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		name := partition.SplitFileName(p.opts.Prefix, g.Char)
		path, err := p.writer.WriteCodes(p.opts.SplitDir, name, g.Entries, codes.Minified)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: write split file %s", name)
		}
		zap.L().Info("pipeline: wrote split file", zap.String("path", path), zap.Int("codes", len(g.Entries)))
		names = append(names, name)
	}
	return names, nil
}

func (p *Pipeline) writePartitions(entries []codes.Entry) ([]string, error) {
	units, err := partition.Partition(entries, partition.Options{
		Prefix:   p.opts.Prefix,
		MaxBytes: p.opts.MaxUnitBytes,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: partition")
	}

	for _, u := range units {
		path, err := p.writer.WriteCodes(p.opts.PartitionDir, u.Name, u.Entries, codes.Minified)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: write unit %s", u.Name)
		}
		zap.L().Info("pipeline: wrote unit",
			zap.String("path", path),
			zap.Int("codes", len(u.Entries)),
			zap.Bool("full", u.Full),
		)
	}
	return partition.Names(units), nil
}

// prune removes stale prefixed files from the split and partition
// directories. The two may be the same directory.
func (p *Pipeline) prune(res *Result) ([]string, error) {
	keep := map[string][]string{}
	var dirs []string
	add := func(dir string, names ...string) {
		dir = filepath.Clean(dir)
		if _, ok := keep[dir]; !ok {
			dirs = append(dirs, dir)
		}
		keep[dir] = append(keep[dir], names...)
	}
	add(p.opts.SplitDir, res.SplitFiles...)
	add(p.opts.PartitionDir, res.Units...)
	add(p.opts.PartitionDir, p.opts.Manifest)

	var removed []string
	for _, dir := range dirs {
		names, err := p.writer.Prune(dir, p.opts.Prefix, keep[dir])
		if err != nil {
			return removed, eris.Wrap(err, "pipeline: prune")
		}
		for _, n := range names {
			removed = append(removed, filepath.Join(dir, n))
		}
	}
	if len(removed) > 0 {
		zap.L().Info("pipeline: pruned stale files", zap.Strings("files", removed))
	}
	return removed, nil
}
