package pdfmark

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/benjaminschreck/go-redline/pkg/redline/anchor"
)

// Change is a suggestion positioned by page and optional line.
type Change struct {
	Page       int
	Line       int
	Old        string
	New        string
	Motivation string
}

// Status is the outcome of one change.
type Status int

const (
	// Matched means the change was found on its declared line, or anywhere on the page when no
	// line was given.
	Matched Status = iota
	// Neighbor means the change was found on a line near the declared one.
	Neighbor
	NoMatch
	// Invalid means the change names no existing page or carries no old text.
	Invalid
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "applied"
	case Neighbor:
		return "fuzzy_match"
	case NoMatch:
		return "no_match"
	}
	return "skipped_invalid_record"
}

// Outcome reports what happened to one change.
type Outcome struct {
	Status Status
	// Line is the line the change was found on, or 0.
	Line int
}

// Highlight is one annotation to place over page text.
type Highlight struct {
	Page    int    `json:"page"`
	Line    int    `json:"line,omitempty"`
	Rects   []Rect `json:"rects"`
	Old     string `json:"old"`
	Content string `json:"content"`
}

// Annotator matches changes against page text.
type Annotator struct {
	// Radius is how many lines around the declared one are searched.
	Radius int
	// Motivation appends the change's motivation to the annotation text.
	Motivation bool
}

// DefaultAnnotator searches two lines either side of the declared line.
func DefaultAnnotator() Annotator {
	return Annotator{Radius: 2}
}

var trailingDigits = regexp.MustCompile(`(\p{L})\d{1,3}([^\p{L}\p{N}]|$)`)

// CleanText removes footnote markers glued to the end of words, so "arbete15." reads "arbete.".
func CleanText(s string) string {
	return strings.TrimSpace(trailingDigits.ReplaceAllString(s, "$1$2"))
}

// contains reports whether the line and old text contain one another once both are cleaned and
// normalised.
func contains(line, old string) bool {
	l := anchor.Normalize(CleanText(line))
	o := anchor.Normalize(old)
	co := anchor.Normalize(CleanText(old))
	if l == "" || o == "" {
		return false
	}
	return strings.Contains(l, o) || strings.Contains(co, l)
}

// Annotate returns the highlights for changes and one outcome per change.
func (a Annotator) Annotate(doc *Document, changes []Change) ([]Highlight, []Outcome) {
	var highlights []Highlight
	outcomes := make([]Outcome, len(changes))
	for i, ch := range changes {
		page, ok := doc.Page(ch.Page)
		if !ok || strings.TrimSpace(ch.Old) == "" {
			outcomes[i] = Outcome{Status: Invalid}
			continue
		}
		content := a.content(ch)

		if ch.Line <= 0 {
			found := false
			for _, b := range page.Blocks {
				boxes := b.Boxes(ch.Old)
				if len(boxes) == 0 {
					continue
				}
				highlights = append(highlights, Highlight{Page: page.Number, Line: b.Line, Rects: boxes, Old: ch.Old, Content: content})
				found = true
			}
			outcomes[i] = Outcome{Status: NoMatch}
			if found {
				outcomes[i] = Outcome{Status: Matched}
			}
			continue
		}

		b, ok := a.find(page, ch)
		if !ok {
			outcomes[i] = Outcome{Status: NoMatch}
			continue
		}
		boxes := b.Boxes(ch.Old)
		if len(boxes) == 0 {
			boxes = []Rect{b.Rect}
		}
		highlights = append(highlights, Highlight{Page: page.Number, Line: b.Line, Rects: boxes, Old: ch.Old, Content: content})
		status := Matched
		if b.Line != ch.Line {
			status = Neighbor
		}
		outcomes[i] = Outcome{Status: status, Line: b.Line}
	}
	return highlights, outcomes
}

// find returns the declared line when it matches, otherwise the nearest matching line within the
// radius. Ties go to the earlier line.
func (a Annotator) find(page Page, ch Change) (Block, bool) {
	for _, b := range page.Blocks {
		if b.Line == ch.Line && contains(b.Text, ch.Old) {
			return b, true
		}
	}
	for d := 1; d <= a.Radius; d++ {
		for _, line := range []int{ch.Line - d, ch.Line + d} {
			if line < 1 || line > len(page.Blocks) {
				continue
			}
			if b := page.Blocks[line-1]; contains(b.Text, ch.Old) {
				return b, true
			}
		}
	}
	return Block{}, false
}

func (a Annotator) content(ch Change) string {
	if a.Motivation && ch.Motivation != "" {
		if ch.New == "" {
			return ch.Motivation
		}
		return ch.New + "\n" + ch.Motivation
	}
	return ch.New
}

// Dedupe drops highlights on the same page that repeat an earlier one's non-empty text or whose
// first box lies within tol of it. It returns the kept highlights and the number removed.
func Dedupe(highlights []Highlight, tol float64) ([]Highlight, int) {
	kept := make([]Highlight, 0, len(highlights))
	removed := 0
	for _, h := range highlights {
		dup := false
		for _, k := range kept {
			if k.Page != h.Page {
				continue
			}
			same := k.Content != "" && strings.TrimSpace(k.Content) == strings.TrimSpace(h.Content)
			if same || first(k).Near(first(h), tol) {
				dup = true
				break
			}
		}
		if dup {
			removed++
			continue
		}
		kept = append(kept, h)
	}
	return kept, removed
}

func first(h Highlight) Rect {
	if len(h.Rects) == 0 {
		return Rect{}
	}
	return h.Rects[0]
}

// Sidecar is the annotation file written next to a PDF.
type Sidecar struct {
	Source     string      `json:"source"`
	Highlights []Highlight `json:"highlights"`
}

// WriteSidecar encodes the highlights as indented JSON.
func WriteSidecar(w io.Writer, source string, highlights []Highlight) error {
	if highlights == nil {
		highlights = []Highlight{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(Sidecar{Source: source, Highlights: highlights})
}
