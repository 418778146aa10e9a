package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
)

// rowBuffer is the row channel capacity shared by the tabular readers.
const rowBuffer = 64

// rowEmitter owns the channel pair handed out by StreamCSV and StreamXLSX.
// The producer goroutine must call finish exactly once.
type rowEmitter struct {
	ctx    context.Context
	format string
	rows   chan []string
	errs   chan error
}

func newRowEmitter(ctx context.Context, format string) *rowEmitter {
	return &rowEmitter{
		ctx:    ctx,
		format: format,
		rows:   make(chan []string, rowBuffer),
		errs:   make(chan error, 1),
	}
}

// emit delivers row, or records the cancellation and returns false.
func (e *rowEmitter) emit(row []string) bool {
	if err := e.ctx.Err(); err != nil {
		e.fail(eris.Wrapf(err, "%s: stream stopped", e.format))
		return false
	}
	select {
	case e.rows <- row:
		return true
	case <-e.ctx.Done():
		e.fail(eris.Wrapf(e.ctx.Err(), "%s: stream stopped", e.format))
		return false
	}
}

func (e *rowEmitter) fail(err error) {
	e.errs <- err
}

func (e *rowEmitter) finish() {
	close(e.rows)
	close(e.errs)
}

func (e *rowEmitter) channels() (<-chan []string, <-chan error) {
	return e.rows, e.errs
}
