// Package codes holds the merged identifier-code registry and its JSON encoding.
package codes

import "iter"

// Coord is a [latitude, longitude] pair, encoded as a two-element JSON array.
type Coord [2]float64

// Lat returns the latitude.
func (c Coord) Lat() float64 { return c[0] }

// Lon returns the longitude.
func (c Coord) Lon() float64 { return c[1] }

// Record is one normalized code with its position, as produced by extraction.
type Record struct {
	Code string
	Lat  float64
	Lon  float64
}

// Entry is a registry row: a code and its coordinates.
type Entry struct {
	Code  string
	Coord Coord
}

// Registry maps codes to coordinates. A later Put for an existing code
// replaces its coordinates but keeps the code's original position, so
// iteration order is the order in which codes were first seen.
type Registry struct {
	index   map[string]int
	entries []Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Put inserts or overwrites the record's code. It reports whether an
// existing entry was replaced.
func (r *Registry) Put(rec Record) bool {
	c := Coord{rec.Lat, rec.Lon}
	if i, ok := r.index[rec.Code]; ok {
		r.entries[i].Coord = c
		return true
	}
	r.index[rec.Code] = len(r.entries)
	r.entries = append(r.entries, Entry{Code: rec.Code, Coord: c})
	return false
}

// Get returns the coordinates for code.
func (r *Registry) Get(code string) (Coord, bool) {
	i, ok := r.index[code]
	if !ok {
		return Coord{}, false
	}
	return r.entries[i].Coord, true
}

// Len returns the number of distinct codes.
func (r *Registry) Len() int {
	return len(r.entries)
}

// All iterates codes in insertion order.
func (r *Registry) All() iter.Seq2[string, Coord] {
	return func(yield func(string, Coord) bool) {
		for _, e := range r.entries {
			if !yield(e.Code, e.Coord) {
				return
			}
		}
	}
}

// Entries returns a copy of the registry contents in insertion order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
