// Package partition groups registry entries into output units: one file per
// first character, and size-bounded files per first character split on the
// second character's code point.
package partition

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aerocodes/internal/codes"
)

// Ordinal bounds used in the name of a unit holding a whole first-character
// group ('0' through 'Z').
const (
	FullStart rune = 48
	FullEnd   rune = 90
)

// Group is the set of entries sharing a first character.
type Group struct {
	Char    rune
	Entries []codes.Entry
}

// Unit is one size-bounded output file.
type Unit struct {
	Name  string
	First rune
	Start rune
	End   rune
	// Full marks a unit holding every partitionable code of First.
	Full    bool
	Entries []codes.Entry
}

// Options configures Partition.
type Options struct {
	Prefix   string
	MaxBytes int
}

// SplitFileName returns the file name of a first-character group.
func SplitFileName(prefix string, c rune) string {
	return prefix + "_" + string(c) + ".json"
}

// UnitName returns the file name of a unit covering [start, end] of first.
func UnitName(prefix string, first, start, end rune) string {
	return fmt.Sprintf("%s_%c_%d_%d.json", prefix, first, start, end)
}

// ParseUnitName is the inverse of UnitName. Full is never set; whether a
// 48-90 unit holds a whole group depends on its siblings.
func ParseUnitName(prefix, name string) (Unit, error) {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return Unit{}, eris.Errorf("partition: %q does not start with %q", name, prefix+"_")
	}
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok {
		return Unit{}, eris.Errorf("partition: %q is not a .json file", name)
	}

	first, size := utf8.DecodeRuneInString(rest)
	if size == 0 || (first == utf8.RuneError && size == 1) {
		return Unit{}, eris.Errorf("partition: %q has no first character", name)
	}
	bounds, ok := strings.CutPrefix(rest[size:], "_")
	if !ok {
		return Unit{}, eris.Errorf("partition: %q has no ordinal range", name)
	}
	lo, hi, ok := strings.Cut(bounds, "_")
	if !ok {
		return Unit{}, eris.Errorf("partition: %q has no ordinal range", name)
	}
	start, err := strconv.ParseInt(lo, 10, 32)
	if err != nil {
		return Unit{}, eris.Wrapf(err, "partition: %q start ordinal", name)
	}
	end, err := strconv.ParseInt(hi, 10, 32)
	if err != nil {
		return Unit{}, eris.Wrapf(err, "partition: %q end ordinal", name)
	}
	if start > end {
		return Unit{}, eris.Errorf("partition: %q range is reversed", name)
	}

	return Unit{Name: name, First: first, Start: rune(start), End: rune(end)}, nil
}

// ByFirstChar groups every entry by its first character. Groups keep the order
// in which their character first appears; entries keep their input order.
func ByFirstChar(entries []codes.Entry) []Group {
	index := make(map[rune]int)
	var groups []Group
	for _, e := range entries {
		c, _ := utf8.DecodeRuneInString(e.Code)
		i, ok := index[c]
		if !ok {
			i = len(groups)
			index[c] = i
			groups = append(groups, Group{Char: c})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

type subGroup struct {
	char    rune
	entries []codes.Entry
	bytes   int
}

type firstGroup struct {
	char rune
	subs map[rune]*subGroup
}

// Partition splits entries into units whose minified size stays within
// opts.MaxBytes. Codes shorter than two characters are skipped. A first
// character whose codes fit the budget becomes one Full unit; otherwise its
// second-character sub-groups are packed greedily in ascending code point
// order. A single sub-group larger than the budget becomes its own unit.
func Partition(entries []codes.Entry, opts Options) ([]Unit, error) {
	if opts.MaxBytes <= 0 {
		return nil, eris.Errorf("partition: max bytes must be > 0, got %d", opts.MaxBytes)
	}

	index := make(map[rune]int)
	var groups []*firstGroup
	for _, e := range entries {
		first, n := utf8.DecodeRuneInString(e.Code)
		if n == 0 || len(e.Code) == n {
			continue
		}
		second, _ := utf8.DecodeRuneInString(e.Code[n:])

		size, err := codes.EntrySize(e)
		if err != nil {
			return nil, err
		}

		i, ok := index[first]
		if !ok {
			i = len(groups)
			index[first] = i
			groups = append(groups, &firstGroup{char: first, subs: make(map[rune]*subGroup)})
		}
		g := groups[i]
		sg, ok := g.subs[second]
		if !ok {
			sg = &subGroup{char: second}
			g.subs[second] = sg
		}
		sg.entries = append(sg.entries, e)
		sg.bytes += size
	}

	var units []Unit
	for _, g := range groups {
		units = append(units, packGroup(g, opts)...)
	}
	return units, nil
}

func packGroup(g *firstGroup, opts Options) []Unit {
	subs := make([]*subGroup, 0, len(g.subs))
	totalBytes, totalCount := 0, 0
	for _, sg := range g.subs {
		subs = append(subs, sg)
		totalBytes += sg.bytes
		totalCount += len(sg.entries)
	}
	slices.SortFunc(subs, func(a, b *subGroup) int { return cmp.Compare(a.char, b.char) })

	if codes.ObjectSize(totalBytes, totalCount) <= opts.MaxBytes {
		return []Unit{{
			Name:    UnitName(opts.Prefix, g.char, FullStart, FullEnd),
			First:   g.char,
			Start:   FullStart,
			End:     FullEnd,
			Full:    true,
			Entries: concat(subs, totalCount),
		}}
	}

	var (
		units []Unit
		chunk []*subGroup
		size  int
		count int
	)
	flush := func() {
		start, end := chunk[0].char, chunk[len(chunk)-1].char
		units = append(units, Unit{
			Name:    UnitName(opts.Prefix, g.char, start, end),
			First:   g.char,
			Start:   start,
			End:     end,
			Entries: concat(chunk, count),
		})
		chunk, size, count = nil, 0, 0
	}

	for _, sg := range subs {
		if len(chunk) > 0 && codes.ObjectSize(size+sg.bytes, count+len(sg.entries)) > opts.MaxBytes {
			flush()
		}
		chunk = append(chunk, sg)
		size += sg.bytes
		count += len(sg.entries)
	}
	if len(chunk) > 0 {
		flush()
	}
	return units
}

func concat(subs []*subGroup, n int) []codes.Entry {
	out := make([]codes.Entry, 0, n)
	for _, sg := range subs {
		out = append(out, sg.entries...)
	}
	return out
}

// Names returns the unit names in order.
func Names(units []Unit) []string {
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	return names
}
