package nasr

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/aerocodes/internal/codes"
)

var (
	// ErrSourceUnreadable marks a table that could not be opened or parsed,
	// or whose header is too narrow for its layout.
	ErrSourceUnreadable = eris.New("nasr: source unreadable")
	// ErrSourceEmpty marks a table without data rows.
	ErrSourceEmpty = eris.New("nasr: source empty")
)

// Extractor turns raw rows of one table into code records.
type Extractor struct {
	layout   Layout
	width    int
	codeCol  int
	fallback int // -1 when the layout has no fallback column
	upper    cases.Caser
}

// NewExtractor resolves the layout's columns against the table header.
// A header that cannot hold every configured column is ErrSourceUnreadable.
func NewExtractor(layout Layout, header []string) (*Extractor, error) {
	width := len(header)
	e := &Extractor{
		layout:   layout,
		width:    width,
		fallback: -1,
		upper:    cases.Upper(language.Und),
	}

	switch layout.Code.Mode {
	case ColumnTrailing:
		e.codeCol = width - layout.Code.FromEnd
		e.fallback = layout.Code.Fallback
	default:
		e.codeCol = layout.Code.Index
	}

	need := max(e.codeCol, e.fallback, layout.Lat, layout.Lon) + 1
	if e.codeCol < 0 || need > width {
		return nil, eris.Wrapf(ErrSourceUnreadable,
			"%s header has %d columns, layout needs %d", layout.File, width, max(need, layout.Code.FromEnd))
	}
	return e, nil
}

// CodeColumn returns the resolved primary code column index.
func (e *Extractor) CodeColumn() int {
	return e.codeCol
}

// Extract returns the record for row, or false when the row has no usable
// code or coordinates.
func (e *Extractor) Extract(row []string) (codes.Record, bool) {
	raw := cell(row, e.codeCol)
	if e.fallback >= 0 && strings.TrimSpace(raw) == "" {
		raw = cell(row, e.fallback)
	}
	// Codes must be valid UTF-8 to survive JSON encoding unchanged.
	if !utf8.ValidString(raw) {
		return codes.Record{}, false
	}
	code := NormalizeCode(e.upper, raw)
	if code == "" {
		return codes.Record{}, false
	}

	lat, ok := parseCoord(cell(row, e.layout.Lat))
	if !ok {
		return codes.Record{}, false
	}
	lon, ok := parseCoord(cell(row, e.layout.Lon))
	if !ok {
		return codes.Record{}, false
	}

	return codes.Record{Code: code, Lat: lat, Lon: lon}, true
}

// NormalizeCode upper-cases with full Unicode case mapping and trims spaces.
func NormalizeCode(upper cases.Caser, s string) string {
	return strings.TrimSpace(upper.String(s))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseCoord accepts finite decimal numbers only.
func parseCoord(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
