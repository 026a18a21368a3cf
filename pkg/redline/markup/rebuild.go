package markup

import (
	"sort"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
	"github.com/benjaminschreck/go-redline/pkg/redline/worddiff"
)

// segment is the range an original text run covered.
type segment struct {
	start, end int
	props      *etree.Element
}

// payload is a token without editable text and the text offset it sat at.
type payload struct {
	at  int
	tok etree.Token
}

type layout struct {
	segments []segment
	payloads []payload
}

// dismantle strips p down to its w:pPr and returns what it held.
func dismantle(p *etree.Element) layout {
	var l layout
	pos := 0
	for _, tok := range append([]etree.Token(nil), p.Child...) {
		el, isElement := tok.(*etree.Element)
		switch {
		case isElement && wml.Is(el, "pPr"):
			continue
		case isElement && wml.IsTextRun(el):
			text := wml.RunText(el)
			l.segments = append(l.segments, segment{start: pos, end: pos + len(text), props: wml.RunProps(el)})
			pos += len(text)
		case isElement:
			l.payloads = append(l.payloads, payload{at: pos, tok: el})
		default:
			if cd, ok := tok.(*etree.CharData); !ok || !cd.IsWhitespace() {
				l.payloads = append(l.payloads, payload{at: pos, tok: tok})
			}
		}
		p.RemoveChild(tok)
	}
	return l
}

func (l layout) propsAt(off int) *etree.Element {
	if len(l.segments) == 0 {
		return nil
	}
	for _, s := range l.segments {
		if off >= s.start && off < s.end {
			return s.props
		}
	}
	if off <= 0 {
		return l.segments[0].props
	}
	return l.segments[len(l.segments)-1].props
}

// cuts returns the offsets strictly inside (start, end) where a piece must end because a run
// boundary or a payload sits there.
func (l layout) cuts(start, end int) []int {
	set := make(map[int]bool)
	for _, s := range l.segments {
		if s.start > start && s.start < end {
			set[s.start] = true
		}
	}
	for _, p := range l.payloads {
		if p.at > start && p.at < end {
			set[p.at] = true
		}
	}
	out := make([]int, 0, len(set))
	for off := range set {
		out = append(out, off)
	}
	sort.Ints(out)
	return out
}

// rebuild rewrites the runs of p from spans.
func (a *Applier) rebuild(p *etree.Element, spans []worddiff.Span, notes map[int]string, commentable bool) {
	l := dismantle(p)

	next := 0
	flush := func(upTo int) {
		for next < len(l.payloads) && l.payloads[next].at <= upTo {
			p.AddChild(l.payloads[next].tok)
			next++
		}
	}

	first, last := anchors(spans, notes, commentable)
	ids := make(map[int]string)

	cursor := 0
	for i, span := range spans {
		if at, ok := first[span.Ref]; ok && at == i {
			ref := span.Ref
			flush(cursor)
			if id, ok := a.comment(notes[ref]); ok {
				ids[ref] = id
				rangeMarker(p, "w:commentRangeStart", id)
			}
		}

		switch span.Kind {
		case worddiff.Inserted:
			flush(cursor)
			at := cursor
			if at > 0 {
				at--
			}
			props := a.paint(l.propsAt(at), worddiff.Inserted)
			p.AddChild(wml.NewRun(props, span.Text, false))
		default:
			end := cursor + len(span.Text)
			bounds := append(l.cuts(cursor, end), end)
			from := cursor
			for _, to := range bounds {
				flush(from)
				props := l.propsAt(from)
				if span.Kind == worddiff.Deleted {
					props = a.paint(props, worddiff.Deleted)
				}
				p.AddChild(wml.NewRun(props, span.Text[from-cursor:to-cursor], false))
				from = to
			}
			cursor = end
		}

		if at, ok := last[span.Ref]; ok && at == i {
			if id, ok := ids[span.Ref]; ok {
				rangeMarker(p, "w:commentRangeEnd", id)
				p.CreateElement("w:r").CreateElement("w:commentReference").CreateAttr("w:id", id)
			}
		}
	}
	for ; next < len(l.payloads); next++ {
		p.AddChild(l.payloads[next].tok)
	}
}

// paint returns a painted copy of props for a span of the given kind.
func (a *Applier) paint(props *etree.Element, kind worddiff.Kind) *etree.Element {
	out := wml.PlainProps(props)
	if a.opts.KeepProps {
		wml.KeepProps(out, props)
	}
	if kind == worddiff.Deleted {
		return wml.PaintDeleted(out)
	}
	return wml.PaintInserted(out, a.opts.Insert)
}

// anchors returns, per change ref carrying a note, the first and last span index the comment
// range encloses: the inserted spans, or the deleted ones for a pure deletion.
func anchors(spans []worddiff.Span, notes map[int]string, commentable bool) (map[int]int, map[int]int) {
	first := make(map[int]int)
	last := make(map[int]int)
	if !commentable {
		return first, last
	}
	hasInsert := make(map[int]bool)
	for _, s := range spans {
		if s.Kind == worddiff.Inserted {
			hasInsert[s.Ref] = true
		}
	}
	for i, s := range spans {
		if s.Ref == 0 || notes[s.Ref] == "" || s.Kind == worddiff.Unchanged {
			continue
		}
		if hasInsert[s.Ref] && s.Kind != worddiff.Inserted {
			continue
		}
		if _, ok := first[s.Ref]; !ok {
			first[s.Ref] = i
		}
		last[s.Ref] = i
	}
	return first, last
}

func rangeMarker(p *etree.Element, tag, id string) {
	p.CreateElement(tag).CreateAttr("w:id", id)
}

func (a *Applier) comment(text string) (string, bool) {
	if a.comments == nil {
		c, _, err := a.pkg.EnsureComments()
		if err != nil {
			a.warnings = append(a.warnings, "comment store unavailable: "+err.Error())
			return "", false
		}
		a.comments = c
	}
	return a.comments.Add(docx.Comment{
		Author:   a.opts.Author,
		Initials: a.opts.Initials,
		Date:     a.opts.Now(),
		Text:     text,
	}), true
}

type annotation struct {
	para int
	text string
}

// annotate encloses the whole paragraph in a comment range and appends the reference run.
func (a *Applier) annotate(p *etree.Element, text string) {
	id, ok := a.comment(text)
	if !ok {
		return
	}
	start := etree.NewElement("w:commentRangeStart")
	start.CreateAttr("w:id", id)
	at := 0
	if pPr := wml.Child(p, "pPr"); pPr != nil {
		at = pPr.Index() + 1
	}
	p.InsertChildAt(at, start)
	rangeMarker(p, "w:commentRangeEnd", id)
	p.CreateElement("w:r").CreateElement("w:commentReference").CreateAttr("w:id", id)
}
