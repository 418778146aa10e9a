package nasr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// csvRow builds a comma-separated row of width cells with the given values set.
func csvRow(width int, vals map[int]string) string {
	cells := make([]string, width)
	for i, v := range vals {
		cells[i] = v
	}
	return strings.Join(cells, ",")
}

func header(width int) []string {
	h := make([]string, width)
	for i := range h {
		h[i] = "COL" + string(rune('A'+i%26))
	}
	return h
}

func writeTable(t *testing.T, dir, name string, width int, rows ...map[int]string) string {
	t.Helper()
	lines := []string{strings.Join(header(width), ",")}
	for _, r := range rows {
		lines = append(lines, csvRow(width, r))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func airportLayout() Layout {
	l, _ := DefaultLayout(KindAirport)
	return l
}

func fixLayout() Layout {
	l, _ := DefaultLayout(KindFix)
	return l
}
