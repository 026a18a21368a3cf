// Package markup renders resolved changes into a document as visible markup.
//
// Changes are grouped per unit and applied in record order through a worddiff.Composer, so a
// later change only matches text an earlier change left untouched. Each touched paragraph is
// then rebuilt: unchanged text keeps its original run properties, deleted text is struck through
// in red and inserted text is painted according to the configured style. Runs and elements that
// do not carry editable text (references, drawings, fields, bookmarks, hyperlinks) are moved
// over unchanged at their original offset.
//
// Footnotes and text boxes live outside the body story and are patched in a second pass.
package markup

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/anchor"
	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/index"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
	"github.com/benjaminschreck/go-redline/pkg/redline/worddiff"
)

// Change is a validated change request.
type Change struct {
	UnitID     string
	Old        string
	New        string
	Motivation string
	// FootnoteID targets a footnote by its xml id instead of the indexed one.
	FootnoteID string
}

// Status is the result of applying one change.
type Status int

const (
	Pending Status = iota
	Applied
	FuzzyApplied
	NoMatch
	UnknownUnit
	Unsupported
	Duplicate
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case FuzzyApplied:
		return "fuzzy_match"
	case NoMatch:
		return "no_match"
	case UnknownUnit:
		return "unknown_unit"
	case Unsupported:
		return "unsupported"
	case Duplicate:
		return "duplicate"
	default:
		return "pending"
	}
}

// Result is the outcome of one change.
type Result struct {
	Status     Status
	Score      int
	Suggestion string
	Reason     string
}

// Options configure an Applier.
type Options struct {
	Insert      wml.InsertStyle
	Granularity worddiff.Granularity
	// KeepProps records the own colour and underline of painted runs for revision conversion.
	KeepProps bool
	// Comments attaches each change's motivation as a comment where the unit allows it.
	Comments bool
	// AnnotateOnly leaves the text untouched and records each matched change as a comment.
	AnnotateOnly bool
	Author       string
	Initials     string
	Now          func() time.Time
	Resolver     anchor.Resolver
}

// Applier applies changes to one package.
type Applier struct {
	pkg      *docx.Package
	idx      *index.Index
	opts     Options
	comments *docx.Comments
	warnings []string
}

// NewApplier returns an applier over pkg and its index.
func NewApplier(pkg *docx.Package, idx *index.Index, opts Options) *Applier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Resolver.Threshold == 0 {
		opts.Resolver = anchor.DefaultResolver()
	}
	return &Applier{pkg: pkg, idx: idx, opts: opts}
}

// Warnings returns non-fatal problems met while applying.
func (a *Applier) Warnings() []string {
	return a.warnings
}

type group struct {
	unit       *index.Unit
	footnoteID string
	changes    []int
}

func (a *Applier) group(changes []Change, results []Result) []*group {
	var groups []*group
	byKey := make(map[string]*group)
	for i, ch := range changes {
		if results[i].Status != Pending {
			continue
		}
		u, ok := a.idx.Get(ch.UnitID)
		if !ok {
			results[i] = Result{Status: UnknownUnit, Reason: "unit out of range"}
			continue
		}
		key := ch.UnitID + "#" + ch.FootnoteID
		g, ok := byKey[key]
		if !ok {
			g = &group{unit: u, footnoteID: ch.FootnoteID}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.changes = append(g.changes, i)
	}
	return groups
}

// Apply applies every change that targets a body, table, header or footer unit. Changes on
// footnotes and text boxes stay Pending until Patch.
func (a *Applier) Apply(changes []Change) []Result {
	results := make([]Result, len(changes))
	for _, g := range a.group(changes, results) {
		if g.unit.Kind.Deferred() {
			continue
		}
		a.applyUnit(g, g.unit.Paragraphs, changes, results)
	}
	return results
}

// Patch applies the pending footnote and text box changes against the live parts.
func (a *Applier) Patch(changes []Change, results []Result) {
	for _, g := range a.group(changes, results) {
		paras, err := index.Locate(a.pkg, g.unit, g.footnoteID)
		if err != nil {
			for _, i := range g.changes {
				results[i] = Result{Status: NoMatch, Reason: err.Error()}
			}
			continue
		}
		a.applyUnit(g, paras, changes, results)
	}
}

func (a *Applier) applyUnit(g *group, paras []*etree.Element, changes []Change, results []Result) {
	texts := make([]string, len(paras))
	for i, p := range paras {
		texts[i] = wml.ParagraphText(p)
	}
	comp := worddiff.NewComposer(texts)
	comp.Granularity = a.opts.Granularity
	notes := make(map[int]string)
	var annotations []annotation
	seen := make(map[string]bool)

	for _, ci := range g.changes {
		ch := changes[ci]
		ref := ci + 1
		key := anchor.Normalize(ch.Old)
		if key != "" && seen[key] {
			results[ci] = Result{Status: Duplicate, Reason: "same text already changed in this unit"}
			continue
		}

		if key == "" {
			results[ci] = a.fill(comp, texts, ch, ref)
			if results[ci].Status == Applied && a.opts.AnnotateOnly && len(paras) > 0 {
				annotations = append(annotations, annotation{para: 0, text: suggestion(ch)})
			}
			continue
		}

		free := comp.Free
		if a.opts.AnnotateOnly {
			free = nil
		}
		res := a.opts.Resolver.Resolve(texts, ch.Old, free)
		if !res.Status.Matched() {
			results[ci] = a.miss(g.unit, ch, res)
			continue
		}

		ok := true
		switch {
		case a.opts.AnnotateOnly:
			p := res.Paragraph
			if p == anchor.WholeUnit {
				p = 0
			}
			annotations = append(annotations, annotation{para: p, text: suggestion(ch)})
		case res.Paragraph == anchor.WholeUnit:
			ok = replaceWhole(comp, texts, ch.New, ref)
		case res.Status == anchor.Fuzzy:
			ok = comp.Replace(res.Paragraph, 0, len(texts[res.Paragraph]), ch.New, ref)
		default:
			ok = comp.Replace(res.Paragraph, res.Start, res.End, ch.New, ref)
		}
		if !ok {
			results[ci] = Result{Status: NoMatch, Score: res.Score, Reason: "text overlaps an earlier change"}
			continue
		}
		seen[key] = true
		if res.Status == anchor.Fuzzy {
			results[ci] = Result{Status: FuzzyApplied, Score: res.Score}
		} else {
			results[ci] = Result{Status: Applied, Score: res.Score}
		}
		if ch.Motivation != "" && a.opts.Comments {
			notes[ref] = ch.Motivation
		}
	}

	commentable := g.unit.Kind.SupportsComments()
	if a.opts.AnnotateOnly {
		if !commentable {
			for _, ci := range g.changes {
				if results[ci].Status == Applied || results[ci].Status == FuzzyApplied {
					results[ci] = Result{Status: Unsupported, Reason: fmt.Sprintf("comments are not supported in %s units", g.unit.Kind)}
				}
			}
			return
		}
		for _, an := range annotations {
			a.annotate(paras[an.para], an.text)
		}
		if len(annotations) > 0 {
			a.pkg.Touch(g.unit.Part)
		}
		return
	}

	touched := false
	for p := range paras {
		if !comp.Changed(p) {
			continue
		}
		a.rebuild(paras[p], comp.Spans(p), notes, commentable)
		touched = true
	}
	if touched {
		a.pkg.Touch(g.unit.Part)
	}
}

func (a *Applier) fill(comp *worddiff.Composer, texts []string, ch Change, ref int) Result {
	if len(texts) == 0 {
		return Result{Status: Unsupported, Reason: "unit has no paragraph to fill"}
	}
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return Result{Status: NoMatch, Reason: "old text is empty but the unit is not"}
		}
	}
	if strings.TrimSpace(ch.New) == "" {
		return Result{Status: NoMatch, Reason: "nothing to fill"}
	}
	if a.opts.AnnotateOnly {
		return Result{Status: Applied, Score: 100}
	}
	if !comp.Replace(0, 0, len(texts[0]), ch.New, ref) {
		return Result{Status: NoMatch, Reason: "unit already filled by an earlier change"}
	}
	return Result{Status: Applied, Score: 100}
}

func (a *Applier) miss(u *index.Unit, ch Change, res anchor.Result) Result {
	out := Result{Status: NoMatch, Score: res.Score}
	switch res.Status {
	case anchor.BelowThreshold:
		out.Reason = fmt.Sprintf("best similarity %d is below threshold %d", res.Score, a.opts.Resolver.Threshold)
	case anchor.Rejected:
		out.Reason = "text too short or numeric for fuzzy matching"
	default:
		out.Reason = "text not found"
	}
	if id, ok := a.opts.Resolver.Suggest(a.idx, u.ID, ch.Old); ok {
		out.Suggestion = id
	}
	return out
}

// replaceWhole puts new into the first non-blank paragraph and deletes the text of the others.
func replaceWhole(comp *worddiff.Composer, texts []string, new string, ref int) bool {
	target := -1
	for p, t := range texts {
		if strings.TrimSpace(t) != "" {
			target = p
			break
		}
	}
	if target < 0 {
		return false
	}
	for p, t := range texts {
		if t == "" {
			continue
		}
		repl := ""
		if p == target {
			repl = new
		}
		if !comp.Replace(p, 0, len(t), repl, ref) {
			return false
		}
	}
	return true
}

func suggestion(ch Change) string {
	text := fmt.Sprintf("Suggestion: insert %q", ch.New)
	if ch.Old != "" {
		text = fmt.Sprintf("Suggestion: replace %q with %q", ch.Old, ch.New)
	}
	if ch.Motivation != "" {
		text += "\n" + ch.Motivation
	}
	return text
}
