// Package anchor locates the text a change refers to inside a unit.
//
// Matching is done on normalized text (NFC, collapsed whitespace). An exact match is tried
// first, paragraph by paragraph; when none is found a similarity score between the requested
// text and each paragraph, and for multi-paragraph units the whole unit, decides whether a
// fuzzy replacement is acceptable.
package anchor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/benjaminschreck/go-redline/pkg/redline/index"
)

// Status is the outcome of a resolution.
type Status int

const (
	NotFound Status = iota
	Exact
	Fuzzy
	// BelowThreshold means the best similarity score did not reach the threshold.
	BelowThreshold
	// Rejected means fuzzy matching was not attempted because the text is too short or numeric.
	Rejected
)

func (s Status) String() string {
	switch s {
	case Exact:
		return "exact"
	case Fuzzy:
		return "fuzzy"
	case BelowThreshold:
		return "below_threshold"
	case Rejected:
		return "rejected"
	default:
		return "not_found"
	}
}

// Matched reports whether the result can be applied.
func (s Status) Matched() bool {
	return s == Exact || s == Fuzzy
}

// WholeUnit is the Paragraph value of a fuzzy match against the entire unit.
const WholeUnit = -1

// Result locates a change inside a unit.
type Result struct {
	Status Status
	// Paragraph is the index into the unit's paragraphs, or WholeUnit.
	Paragraph int
	// Start and End delimit the matched raw text inside the paragraph.
	Start, End int
	Score      int
}

// Free reports whether the raw range [start, end) of paragraph p may still be edited.
type Free func(p, start, end int) bool

// Resolver holds the matching thresholds.
type Resolver struct {
	// Threshold is the minimum similarity, 0-100, for a fuzzy match.
	Threshold int
	// MinFuzzyLength is the minimum rune length of a text eligible for fuzzy matching.
	MinFuzzyLength int
	// Radius is how many neighbouring units Suggest inspects on each side.
	Radius int
}

// DefaultResolver returns the standard thresholds.
func DefaultResolver() Resolver {
	return Resolver{Threshold: 90, MinFuzzyLength: 4, Radius: 2}
}

var numericPattern = regexp.MustCompile(`^[\d\s.,:;%+\-–/()]+$`)

// Resolve locates old inside the paragraph texts. free may be nil.
func (r Resolver) Resolve(texts []string, old string, free Free) Result {
	if free == nil {
		free = func(int, int, int) bool { return true }
	}
	needle := Normalize(old)
	if needle == "" {
		return Result{Status: NotFound}
	}

	norms := make([]Normalized, len(texts))
	for p, text := range texts {
		norms[p] = NormalizeMap(text)
		hay := norms[p].Text
		for from := 0; from <= len(hay)-len(needle); {
			i := strings.Index(hay[from:], needle)
			if i < 0 {
				break
			}
			s, e := norms[p].Raw(from+i, from+i+len(needle))
			if free(p, s, e) {
				return Result{Status: Exact, Paragraph: p, Start: s, End: e, Score: 100}
			}
			_, size := utf8.DecodeRuneInString(hay[from+i:])
			from += i + size
		}
	}

	if r.rejectFuzzy(needle) {
		return Result{Status: Rejected}
	}

	best := Result{Status: BelowThreshold}
	for p, n := range norms {
		if n.Text == "" || !free(p, 0, len(texts[p])) {
			continue
		}
		if score := Ratio(needle, n.Text); score > best.Score {
			best = Result{Status: BelowThreshold, Paragraph: p, Start: 0, End: len(texts[p]), Score: score}
		}
	}
	if len(texts) > 1 && allFree(texts, free) {
		whole := Normalize(strings.Join(texts, "\n"))
		if score := Ratio(needle, whole); score > best.Score {
			best = Result{Status: BelowThreshold, Paragraph: WholeUnit, Score: score}
		}
	}
	if best.Score >= r.Threshold && best.Score > 0 {
		best.Status = Fuzzy
	}
	return best
}

func allFree(texts []string, free Free) bool {
	for p, text := range texts {
		if !free(p, 0, len(text)) {
			return false
		}
	}
	return true
}

func (r Resolver) rejectFuzzy(needle string) bool {
	return utf8.RuneCountInString(needle) < r.MinFuzzyLength || numericPattern.MatchString(needle)
}

// Suggest looks for old in the units around id and returns the first neighbour it matches.
func (r Resolver) Suggest(x *index.Index, id, old string) (string, bool) {
	for _, n := range x.Neighbors(id, r.Radius) {
		if res := r.Resolve(n.Texts(), old, nil); res.Status.Matched() {
			return n.ID, true
		}
	}
	return "", false
}
