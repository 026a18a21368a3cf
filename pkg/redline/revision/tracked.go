package revision

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// tracker wraps markup runs in revision elements.
type tracker struct {
	author string
	date   string
	rsid   string
	next   int
}

// convert processes every paragraph below root and returns the number of insertion and deletion
// wrappers written.
func (t *tracker) convert(root *etree.Element) (ins, del int) {
	for _, p := range wml.Descendants(root, "p") {
		i, d := t.paragraph(p)
		ins += i
		del += d
	}
	return ins, del
}

// paragraph merges consecutive runs carrying the same markup into one wrapper. Only runs that are
// direct children of the paragraph are considered.
func (t *tracker) paragraph(p *etree.Element) (ins, del int) {
	var group []*etree.Element
	mark := wml.MarkNone
	flush := func() {
		if len(group) == 0 {
			return
		}
		if t.wrap(p, group, mark) {
			if mark == wml.MarkInserted {
				ins++
			} else {
				del++
			}
		}
		group = nil
	}
	for _, c := range p.ChildElements() {
		m := wml.MarkNone
		if wml.Is(c, "r") {
			m = wml.Signature(c)
		}
		if m != mark || m == wml.MarkNone {
			flush()
		}
		mark = m
		if m != wml.MarkNone {
			group = append(group, c)
		}
	}
	flush()
	return ins, del
}

// wrap moves runs into a new w:ins or w:del placed where the first run was. Comment references
// found in the runs are moved to runs of their own right after the wrapper.
func (t *tracker) wrap(p *etree.Element, runs []*etree.Element, mark wml.Mark) bool {
	tag := "w:del"
	if mark == wml.MarkInserted {
		tag = "w:ins"
	}
	w := etree.NewElement(tag)
	w.CreateAttr("w:id", strconv.Itoa(t.next))
	w.CreateAttr("w:author", t.author)
	w.CreateAttr("w:date", t.date)
	p.InsertChildAt(runs[0].Index(), w)

	var refs []*etree.Element
	for _, r := range runs {
		p.RemoveChild(r)
		wml.StripMarkup(r)
		for _, ref := range wml.Children(r, "commentReference") {
			r.RemoveChild(ref)
			refs = append(refs, ref)
		}
		if !hasContent(r) {
			continue
		}
		if mark == wml.MarkDeleted {
			toDeleted(r)
			r.CreateAttr("w:rsidDel", t.rsid)
		} else {
			r.CreateAttr("w:rsidR", t.rsid)
		}
		w.AddChild(r)
	}

	pos := w.Index() + 1
	for _, ref := range refs {
		run := etree.NewElement("w:r")
		run.AddChild(ref)
		p.InsertChildAt(pos, run)
		pos++
	}
	if len(w.ChildElements()) == 0 {
		p.RemoveChild(w)
		return false
	}
	t.next++
	return true
}

// toDeleted renames the text carriers of a run to their deleted forms.
func toDeleted(r *etree.Element) {
	for _, c := range r.ChildElements() {
		switch {
		case wml.Is(c, "t"):
			c.Tag = "delText"
		case wml.Is(c, "instrText"):
			c.Tag = "delInstrText"
		}
	}
}

func hasContent(r *etree.Element) bool {
	for _, c := range r.ChildElements() {
		if !wml.Is(c, "rPr") {
			return true
		}
	}
	return false
}
