package anchor

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalized is the NFC, whitespace-collapsed form of a raw string together with the raw byte
// range every normalized byte came from.
type Normalized struct {
	Text   string
	starts []int
	ends   []int
}

// Normalize collapses whitespace runs to one space, trims both ends and composes to NFC.
func Normalize(s string) string {
	return NormalizeMap(s).Text
}

// NormalizeMap normalizes raw and records the offset map back into raw.
func NormalizeMap(raw string) Normalized {
	var (
		it         norm.Iter
		out        []byte
		starts     []int
		ends       []int
		inSpace    bool
		spaceStart int
		spaceEnd   int
	)
	it.InitString(norm.NFC, raw)
	for !it.Done() {
		start := it.Pos()
		seg := it.Next()
		end := it.Pos()

		r, size := utf8.DecodeRune(seg)
		if size == len(seg) && unicode.IsSpace(r) {
			if !inSpace {
				inSpace = true
				spaceStart = start
			}
			spaceEnd = end
			continue
		}
		if inSpace && len(out) > 0 {
			out = append(out, ' ')
			starts = append(starts, spaceStart)
			ends = append(ends, spaceEnd)
		}
		inSpace = false
		for range seg {
			starts = append(starts, start)
			ends = append(ends, end)
		}
		out = append(out, seg...)
	}
	return Normalized{Text: string(out), starts: starts, ends: ends}
}

// Raw maps the normalized byte range [start, end) back to a raw byte range.
func (n Normalized) Raw(start, end int) (int, int) {
	if start >= end || start < 0 || end > len(n.starts) {
		if start >= 0 && start < len(n.starts) {
			return n.starts[start], n.starts[start]
		}
		return 0, 0
	}
	return n.starts[start], n.ends[end-1]
}
