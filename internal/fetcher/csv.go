// Package fetcher downloads NASR bundles over HTTP or FTP, unpacks them, and
// streams tabular rows from CSV and XLSX files.
package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions tunes how a NASR table file is tokenized.
type CSVOptions struct {
	Delimiter  rune // zero means ','
	Comment    rune // zero disables comment lines
	LazyQuotes bool
	TrimSpace  bool
	// Charset is a WHATWG label such as "windows-1252". Empty means UTF-8.
	Charset string
}

func (o CSVOptions) newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	if o.Delimiter != 0 {
		cr.Comma = o.Delimiter
	}
	cr.Comment = o.Comment
	cr.LazyQuotes = o.LazyQuotes
	cr.FieldsPerRecord = -1
	return cr
}

// DecodeReader returns r transcoded to UTF-8. A byte order mark, when
// present, selects the encoding and is stripped.
func DecodeReader(r io.Reader, charset string) (io.Reader, error) {
	dec := transform.Transformer(transform.Nop)
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
		}
		dec = enc.NewDecoder()
	}
	return transform.NewReader(r, unicode.BOMOverride(dec)), nil
}

// StreamCSV tokenizes r on a goroutine. The header line, when the file has
// one, arrives as the first row. The caller must drain the row channel and
// then read the error channel; both close when the file is exhausted.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	em := newRowEmitter(ctx, "csv")

	go func() {
		defer em.finish()

		src, err := DecodeReader(r, opts.Charset)
		if err != nil {
			em.fail(err)
			return
		}

		cr := opts.newReader(src)
		for line := 1; ; line++ {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				em.fail(eris.Wrapf(err, "csv: read record %d", line))
				return
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}
			if !em.emit(rec) {
				return
			}
		}
	}()

	return em.channels()
}
