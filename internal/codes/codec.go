package codes

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tidwall/pretty"
)

// ErrNonFinite is returned when an entry holds a NaN or infinite coordinate,
// which has no JSON representation.
var ErrNonFinite = eris.New("codes: non-finite coordinate")

// Mode selects the JSON layout of an output file.
type Mode int

const (
	// Minified output has no insignificant whitespace. Partition sizes are
	// measured in this mode.
	Minified Mode = iota
	// Pretty output is indented for humans.
	Pretty
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Minified:
		return "minified"
	case Pretty:
		return "pretty"
	default:
		return "unknown"
	}
}

var prettyOptions = &pretty.Options{
	Width:    80,
	Prefix:   "",
	Indent:   "  ",
	SortKeys: false,
}

// Encode renders entries as a JSON object {"CODE":[lat,lon],...} in the
// given mode. Key order follows the slice order.
func Encode(entries []Entry, mode Mode) ([]byte, error) {
	buf, err := AppendMinified(make([]byte, 0, 32*len(entries)+2), entries)
	if err != nil {
		return nil, err
	}
	if mode == Pretty {
		return pretty.PrettyOptions(buf, prettyOptions), nil
	}
	return buf, nil
}

// AppendMinified appends the minified object for entries to dst.
func AppendMinified(dst []byte, entries []Entry) ([]byte, error) {
	dst = append(dst, '{')
	for i, e := range entries {
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		dst, err = appendEntry(dst, e)
		if err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

// EntrySize returns the number of bytes the entry occupies inside a minified
// object, excluding the separating comma.
func EntrySize(e Entry) (int, error) {
	var scratch [64]byte
	b, err := appendEntry(scratch[:0], e)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// ObjectSize returns the minified size of an object holding count entries
// whose EntrySize values sum to entryBytes.
func ObjectSize(entryBytes, count int) int {
	if count == 0 {
		return 2
	}
	return 2 + entryBytes + count - 1
}

// Size returns len(Encode(entries, Minified)) without building the buffer.
func Size(entries []Entry) (int, error) {
	total := 0
	for _, e := range entries {
		n, err := EntrySize(e)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return ObjectSize(total, len(entries)), nil
}

// appendKey appends code as a JSON string. '&', '<' and '>' are written as
// is rather than as \u escapes.
func appendKey(dst []byte, code string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(code); err != nil {
		return nil, eris.Wrapf(err, "codes: encode key %q", code)
	}
	return append(dst, bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})...), nil
}

func appendEntry(dst []byte, e Entry) ([]byte, error) {
	dst, err := appendKey(dst, e.Code)
	if err != nil {
		return nil, err
	}
	dst = append(dst, ':', '[')
	if dst, err = appendFloat(dst, e.Coord[0], e.Code); err != nil {
		return nil, err
	}
	dst = append(dst, ',')
	if dst, err = appendFloat(dst, e.Coord[1], e.Code); err != nil {
		return nil, err
	}
	return append(dst, ']'), nil
}

func appendFloat(dst []byte, f float64, code string) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, eris.Wrapf(ErrNonFinite, "code %q", code)
	}
	return strconv.AppendFloat(dst, f, 'f', -1, 64), nil
}
