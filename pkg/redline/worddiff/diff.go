// Package worddiff turns an (old, new) text pair into an ordered list of unchanged, deleted and
// inserted spans.
//
// Texts are split into alternating word and whitespace tokens and diffed at token level, so the
// unchanged and deleted spans concatenate to the old text and the unchanged and inserted spans
// concatenate to the new text, byte for byte.
package worddiff

import (
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Kind is the kind of a span.
type Kind int

const (
	Unchanged Kind = iota
	Deleted
	Inserted
)

func (k Kind) String() string {
	switch k {
	case Deleted:
		return "deleted"
	case Inserted:
		return "inserted"
	default:
		return "unchanged"
	}
}

// Span is a piece of text with its diff kind. Ref identifies the change that produced a
// deleted or inserted span; zero means none.
type Span struct {
	Kind Kind
	Text string
	Ref  int
}

// Diff returns the minimal token-level diff of old and new.
func Diff(old, new string) []Span {
	a, b := tokenize(old), tokenize(new)
	ra, rb, vocab := encode(a, b)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	var out []Span
	for _, d := range dmp.DiffMainRunes(ra, rb, false) {
		var sb strings.Builder
		for _, r := range d.Text {
			sb.WriteString(vocab[r])
		}
		var kind Kind
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = Deleted
		case diffmatchpatch.DiffInsert:
			kind = Inserted
		default:
			kind = Unchanged
		}
		out = append(out, Span{Kind: kind, Text: sb.String()})
	}
	return Merge(out)
}

// Readable returns the diff of old and new, collapsed to a whole-phrase deletion followed by a
// whole-phrase insertion when the pieces left unchanged would not outnumber the words changed.
func Readable(old, new string) []Span {
	if old == new {
		if old == "" {
			return nil
		}
		return []Span{{Kind: Unchanged, Text: old}}
	}
	spans := Diff(old, new)
	var same, deleted, inserted int
	for _, s := range spans {
		n := len(strings.Fields(s.Text))
		switch s.Kind {
		case Unchanged:
			same += n
		case Deleted:
			deleted += n
		case Inserted:
			inserted += n
		}
	}
	if same > max(deleted, inserted) {
		return spans
	}
	var out []Span
	if old != "" {
		out = append(out, Span{Kind: Deleted, Text: old})
	}
	if new != "" {
		out = append(out, Span{Kind: Inserted, Text: new})
	}
	return out
}

// Granularity is the unit of change shown to the reader.
type Granularity int

const (
	// Phrase collapses heavily rewritten text into one deletion and one insertion.
	Phrase Granularity = iota
	// Word always shows the minimal word diff.
	Word
)

// ParseGranularity maps "phrase" and "word" to their Granularity.
func ParseGranularity(s string) (Granularity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "phrase":
		return Phrase, true
	case "word":
		return Word, true
	}
	return Phrase, false
}

// Diff diffs old and new at this granularity.
func (g Granularity) Diff(old, new string) []Span {
	if g == Word {
		if old == new && old == "" {
			return nil
		}
		return Diff(old, new)
	}
	return Readable(old, new)
}

// Merge joins adjacent spans of the same kind and ref and drops empty ones.
func Merge(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Kind == s.Kind && out[n-1].Ref == s.Ref {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	return out
}

// Old reconstructs the old text from spans.
func Old(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		if s.Kind != Inserted {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// New reconstructs the new text from spans.
func New(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		if s.Kind != Deleted {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// tokenize splits s into maximal runs of whitespace and non-whitespace.
func tokenize(s string) []string {
	var out []string
	start := 0
	var inSpace bool
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > start && space != inSpace {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// encode maps every distinct token to a private-use rune so the character differ can work on
// tokens. Surrogate code points are never produced.
func encode(a, b []string) ([]rune, []rune, map[rune]string) {
	ids := make(map[string]rune)
	vocab := make(map[rune]string)
	next := rune(0xE000)
	conv := func(tokens []string) []rune {
		out := make([]rune, len(tokens))
		for i, tok := range tokens {
			r, ok := ids[tok]
			if !ok {
				r = next
				ids[tok] = r
				vocab[r] = tok
				next++
				if next == 0xF900 {
					next = 0xF0000
				}
			}
			out[i] = r
		}
		return out
	}
	return conv(a), conv(b), vocab
}
