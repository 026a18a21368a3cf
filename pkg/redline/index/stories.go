package index

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// addStory adds the paragraphs of the first section's default header or footer. When the
// section carries no default reference the first numbered part is used.
func (x *Index) addStory(pkg *docx.Package, main string, body *etree.Element, refTag string, kind Kind, fallback []string) {
	part := defaultStoryPart(pkg, main, body, refTag)
	if part == "" && len(fallback) > 0 {
		part = fallback[0]
	}
	if part == "" {
		return
	}
	doc, err := pkg.XML(part)
	if err != nil {
		return
	}
	for i, p := range wml.Children(doc.Root(), "p") {
		x.add(&Unit{ID: fmt.Sprintf("%s_%d", kind, i+1), Kind: kind, Part: part, Paragraphs: []*etree.Element{p}, Ordinal: i + 1})
	}
}

func defaultStoryPart(pkg *docx.Package, main string, body *etree.Element, refTag string) string {
	sect := firstSection(body)
	if sect == nil {
		return ""
	}
	rels, err := pkg.Relationships(main)
	if err != nil {
		return ""
	}
	for _, ref := range wml.Children(sect, refTag) {
		if t := ref.SelectAttrValue("w:type", "default"); t != "default" {
			continue
		}
		rel, ok := rels.ByID(ref.SelectAttrValue("r:id", ""))
		if !ok {
			continue
		}
		if target := rels.Resolve(rel); pkg.Has(target) {
			return target
		}
	}
	return ""
}

// firstSection returns the sectPr closing the first section of the body.
func firstSection(body *etree.Element) *etree.Element {
	for _, el := range body.ChildElements() {
		switch {
		case wml.Is(el, "p"):
			if sect := wml.Child(wml.Child(el, "pPr"), "sectPr"); sect != nil {
				return sect
			}
		case wml.Is(el, "sectPr"):
			return el
		}
	}
	return nil
}

// TextBoxes returns the paragraphs of every text box drawn inside the given body paragraphs,
// skipping boxes without text.
func TextBoxes(paragraphs []*etree.Element) [][]*etree.Element {
	var out [][]*etree.Element
	for _, p := range paragraphs {
		for _, drawing := range wml.Descendants(p, "drawing") {
			content := wml.Descendants(drawing, "txbxContent")
			if len(content) == 0 {
				continue
			}
			paras := wml.Descendants(content[0], "p")
			var sb strings.Builder
			for _, bp := range paras {
				sb.WriteString(wml.ParagraphText(bp))
			}
			if strings.TrimSpace(sb.String()) == "" {
				continue
			}
			out = append(out, paras)
		}
	}
	return out
}

// Footnotes returns the footnote part name and its footnotes that carry text. Separator
// footnotes are skipped.
func Footnotes(pkg *docx.Package) (string, []*etree.Element, error) {
	part := footnotesPart(pkg)
	if part == "" {
		return "", nil, nil
	}
	doc, err := pkg.XML(part)
	if err != nil {
		return part, nil, err
	}
	var out []*etree.Element
	for _, fn := range wml.Children(doc.Root(), "footnote") {
		switch wml.ID(fn) {
		case "-1", "0":
			continue
		}
		switch fn.SelectAttrValue("w:type", "normal") {
		case "separator", "continuationSeparator", "continuationNotice":
			continue
		}
		var sb strings.Builder
		for _, p := range wml.Descendants(fn, "p") {
			sb.WriteString(wml.ParagraphText(p))
		}
		if strings.TrimSpace(sb.String()) == "" {
			continue
		}
		out = append(out, fn)
	}
	return part, out, nil
}

func footnotesPart(pkg *docx.Package) string {
	main := pkg.MainDocument()
	if rels, err := pkg.Relationships(main); err == nil {
		for _, rel := range rels.ByType(docx.RelFootnotes) {
			if target := rels.Resolve(rel); pkg.Has(target) {
				return target
			}
		}
	}
	if pkg.Has(docx.FootnotesPart) {
		return docx.FootnotesPart
	}
	return ""
}

// Locate re-reads the paragraphs of a deferred unit from the live package tree. footnoteID,
// when set, overrides the footnote the unit was indexed with.
func Locate(pkg *docx.Package, u *Unit, footnoteID string) ([]*etree.Element, error) {
	switch u.Kind {
	case KindFootnote:
		if footnoteID == "" {
			footnoteID = u.FootnoteID
		}
		part := footnotesPart(pkg)
		if part == "" {
			return nil, fmt.Errorf("footnote %s: %w", footnoteID, docx.ErrPartNotFound)
		}
		doc, err := pkg.XML(part)
		if err != nil {
			return nil, err
		}
		for _, fn := range wml.Children(doc.Root(), "footnote") {
			if wml.ID(fn) == footnoteID {
				return wml.Descendants(fn, "p"), nil
			}
		}
		return nil, fmt.Errorf("footnote %s not found", footnoteID)
	case KindTextBox:
		doc, err := pkg.XML(pkg.MainDocument())
		if err != nil {
			return nil, err
		}
		if attached(doc.Root(), u.Paragraphs) {
			return u.Paragraphs, nil
		}
		boxes := TextBoxes(wml.Children(wml.Child(doc.Root(), "body"), "p"))
		if u.Ordinal < 1 || u.Ordinal > len(boxes) {
			return nil, fmt.Errorf("text box %d not found", u.Ordinal)
		}
		return boxes[u.Ordinal-1], nil
	}
	return u.Paragraphs, nil
}

func attached(root *etree.Element, paragraphs []*etree.Element) bool {
	if len(paragraphs) == 0 {
		return false
	}
	for _, p := range paragraphs {
		top := p
		for top != nil && top != root {
			top = top.Parent()
		}
		if top == nil {
			return false
		}
	}
	return true
}
