package fetcher

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions picks the worksheet to read. SheetName wins over SheetIndex
// and is matched case-insensitively when no exact name exists.
type XLSXOptions struct {
	SheetIndex int
	SheetName  string
}

// StreamXLSX streams the rows of one worksheet, header first. Trailing blank
// cells are dropped and rows with no content are skipped.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan []string, <-chan error) {
	em := newRowEmitter(ctx, "xlsx")

	go func() {
		defer em.finish()

		book, err := xlsx.OpenFile(path)
		if err != nil {
			em.fail(eris.Wrapf(err, "xlsx: open workbook %s", path))
			return
		}

		sheet, err := pickSheet(book, opts)
		if err != nil {
			em.fail(err)
			return
		}

		for _, r := range sheet.Rows {
			values := cellValues(r)
			if len(values) == 0 {
				continue
			}
			if !em.emit(values) {
				return
			}
		}
	}()

	return em.channels()
}

func pickSheet(book *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName == "" {
		if opts.SheetIndex < 0 || opts.SheetIndex >= len(book.Sheets) {
			return nil, eris.Errorf("xlsx: sheet index %d out of range, workbook has %d", opts.SheetIndex, len(book.Sheets))
		}
		return book.Sheets[opts.SheetIndex], nil
	}

	if s, ok := book.Sheet[opts.SheetName]; ok {
		return s, nil
	}
	for _, s := range book.Sheets {
		if strings.EqualFold(s.Name, opts.SheetName) {
			return s, nil
		}
	}
	return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
}

// cellValues renders a row as text with trailing empty cells removed.
func cellValues(r *xlsx.Row) []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Cells))
	last := -1
	for i, c := range r.Cells {
		out[i] = c.String()
		if strings.TrimSpace(out[i]) != "" {
			last = i
		}
	}
	return out[:last+1]
}
