// Package nasr reads FAA NASR reference tables (airports, fixes, navaids)
// and extracts normalized identifier codes with their coordinates.
package nasr

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Kind identifies a NASR source table.
type Kind string

const (
	KindAirport Kind = "airport"
	KindFix     Kind = "fix"
	KindNavaid  Kind = "navaid"
)

// ColumnMode selects how the code column is located.
type ColumnMode string

const (
	// ColumnFixed reads the code from a fixed column index.
	ColumnFixed ColumnMode = "fixed"
	// ColumnTrailing counts back from the header width and falls back to a
	// fixed column when that cell is blank. APT_BASE keeps the ICAO id there.
	ColumnTrailing ColumnMode = "trailing"
)

// ColumnRule locates the code column of a table.
type ColumnRule struct {
	Mode     ColumnMode `yaml:"mode"`
	Index    int        `yaml:"index,omitempty"`
	FromEnd  int        `yaml:"from_end,omitempty"`
	Fallback int        `yaml:"fallback,omitempty"`
}

// Layout describes where the code and coordinates live in one source table.
type Layout struct {
	Kind  Kind       `yaml:"kind"`
	File  string     `yaml:"file"`
	Code  ColumnRule `yaml:"code"`
	Lat   int        `yaml:"lat"`
	Lon   int        `yaml:"lon"`
	Sheet string     `yaml:"sheet,omitempty"`
}

// DefaultLayout returns the built-in layout for a kind.
func DefaultLayout(k Kind) (Layout, bool) {
	switch k {
	case KindAirport:
		return Layout{
			Kind: KindAirport,
			File: "APT_BASE.csv",
			Code: ColumnRule{Mode: ColumnTrailing, FromEnd: 4, Fallback: 4},
			Lat:  19,
			Lon:  24,
		}, true
	case KindFix:
		return Layout{
			Kind: KindFix,
			File: "FIX_BASE.csv",
			Code: ColumnRule{Mode: ColumnFixed, Index: 1},
			Lat:  9,
			Lon:  14,
		}, true
	case KindNavaid:
		return Layout{
			Kind: KindNavaid,
			File: "NAV_BASE.csv",
			Code: ColumnRule{Mode: ColumnFixed, Index: 1},
			Lat:  26,
			Lon:  31,
		}, true
	default:
		return Layout{}, false
	}
}

// DefaultLayouts returns the built-in layouts in processing order. On
// duplicate codes the later table wins, so navaids override fixes, which
// override airports.
func DefaultLayouts() []Layout {
	var out []Layout
	for _, k := range []Kind{KindAirport, KindFix, KindNavaid} {
		l, _ := DefaultLayout(k)
		out = append(out, l)
	}
	return out
}

// IsXLSX reports whether the layout's file is a workbook.
func (l Layout) IsXLSX() bool {
	return strings.HasSuffix(strings.ToLower(l.File), ".xlsx")
}

// Validate checks the layout for impossible column settings.
func (l Layout) Validate() error {
	if _, ok := DefaultLayout(l.Kind); !ok {
		return eris.Errorf("nasr: unknown source kind %q", l.Kind)
	}
	if l.File == "" {
		return eris.Errorf("nasr: %s layout has no file", l.Kind)
	}
	switch l.Code.Mode {
	case ColumnFixed:
		if l.Code.Index < 0 {
			return eris.Errorf("nasr: %s code index %d is negative", l.File, l.Code.Index)
		}
	case ColumnTrailing:
		if l.Code.FromEnd <= 0 {
			return eris.Errorf("nasr: %s code from_end must be > 0", l.File)
		}
		if l.Code.Fallback < 0 {
			return eris.Errorf("nasr: %s code fallback %d is negative", l.File, l.Code.Fallback)
		}
	default:
		return eris.Errorf("nasr: %s has unknown code mode %q", l.File, l.Code.Mode)
	}
	if l.Lat < 0 || l.Lon < 0 {
		return eris.Errorf("nasr: %s coordinate columns must be >= 0", l.File)
	}
	return nil
}

// LoadLayouts reads layouts from a YAML file with a top-level "sources" list.
// A source that omits its code rule inherits the built-in rule for its kind.
func LoadLayouts(path string) ([]Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nasr: read layout file %s", path)
	}
	return ParseLayouts(data)
}

// ParseLayouts decodes and validates a layout document.
func ParseLayouts(data []byte) ([]Layout, error) {
	var doc struct {
		Sources []Layout `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "nasr: parse layout file")
	}
	if len(doc.Sources) == 0 {
		return nil, eris.New("nasr: layout file lists no sources")
	}

	seen := make(map[string]bool, len(doc.Sources))
	for i := range doc.Sources {
		l := &doc.Sources[i]
		if l.Code.Mode == "" {
			if def, ok := DefaultLayout(l.Kind); ok {
				l.Code = def.Code
			}
		}
		if err := l.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(l.File)
		if seen[key] {
			return nil, eris.Errorf("nasr: file %s listed twice", l.File)
		}
		seen[key] = true
	}
	return doc.Sources, nil
}
