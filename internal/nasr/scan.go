package nasr

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aerocodes/internal/codes"
	"github.com/sells-group/aerocodes/internal/fetcher"
)

// Stats counts the rows of one scanned table.
type Stats struct {
	Kind     Kind   `json:"kind"`
	File     string `json:"file"`
	Rows     int    `json:"rows"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
}

// Scanner reads NASR tables from a directory.
type Scanner struct {
	Dir string
	CSV fetcher.CSVOptions
}

// NewScanner creates a Scanner for dir reading CSV tables with opts.
func NewScanner(dir string, opts fetcher.CSVOptions) *Scanner {
	return &Scanner{Dir: dir, CSV: opts}
}

// Path returns the on-disk path of a layout's table.
func (s *Scanner) Path(l Layout) string {
	return filepath.Join(s.Dir, l.File)
}

// Scan reads the table for layout and calls fn for every accepted record in
// row order. Fatal problems are ErrSourceUnreadable or ErrSourceEmpty; in that
// case records already passed to fn must be discarded by the caller.
func (s *Scanner) Scan(ctx context.Context, layout Layout, fn func(codes.Record)) (Stats, error) {
	stats := Stats{Kind: layout.Kind, File: layout.File}
	path := s.Path(layout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh, closeFn, err := s.open(ctx, path, layout)
	if err != nil {
		return stats, err
	}
	defer closeFn()

	var ext *Extractor
	for row := range rowCh {
		if ext == nil {
			ext, err = NewExtractor(layout, row)
			if err != nil {
				return stats, err
			}
			continue
		}
		stats.Rows++
		rec, ok := ext.Extract(row)
		if !ok {
			stats.Rejected++
			continue
		}
		stats.Accepted++
		fn(rec)
	}

	if err := <-errCh; err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, eris.Wrap(ctxErr, "nasr: scan cancelled")
		}
		return stats, eris.Wrapf(ErrSourceUnreadable, "%s: %v", layout.File, err)
	}
	if ext == nil || stats.Rows == 0 {
		return stats, eris.Wrapf(ErrSourceEmpty, "%s", layout.File)
	}

	zap.L().Debug("nasr: scanned table",
		zap.String("file", layout.File),
		zap.Int("rows", stats.Rows),
		zap.Int("accepted", stats.Accepted),
		zap.Int("rejected", stats.Rejected),
	)
	return stats, nil
}

func (s *Scanner) open(ctx context.Context, path string, layout Layout) (<-chan []string, <-chan error, func(), error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, nil, eris.Wrapf(ErrSourceUnreadable, "%s: %v", layout.File, err)
	}

	if layout.IsXLSX() {
		rowCh, errCh := fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{SheetName: layout.Sheet})
		return rowCh, errCh, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(ErrSourceUnreadable, "%s: %v", layout.File, err)
	}
	rowCh, errCh := fetcher.StreamCSV(ctx, f, s.CSV)
	return rowCh, errCh, func() { _ = f.Close() }, nil
}
