package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom streams rows into table over the COPY protocol and returns the
// number of rows written. table may be schema qualified ("audit.run_sources").
// Every row must have one value per column.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return 0, eris.Errorf("db: copy %s row %d has %d values for %d columns", table, i, len(r), len(columns))
		}
	}

	ident := pgx.Identifier(strings.Split(table, "."))
	n, err := pool.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy %s", table)
	}
	return n, nil
}
