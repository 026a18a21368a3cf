// Package index enumerates the addressable text units of a word-processing package and gives
// them stable identifiers.
//
// Identifiers follow document order and are 1-based:
//
//	paragraph_N            top-level body paragraph
//	table_T_cell_R_C       cell of a top-level body table
//	header_N, footer_N     paragraph of the first section's default header or footer
//	textbox_N              text box inside a body paragraph drawing
//	footnote_N             footnote with text, in footnote part order
//
// The same package always yields the same identifiers.
package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// ErrUnsupportedPackage is returned when the package has no readable main document body.
var ErrUnsupportedPackage = errors.New("unsupported package")

// Kind is the kind of a text unit.
type Kind int

const (
	KindParagraph Kind = iota
	KindTableCell
	KindHeader
	KindFooter
	KindTextBox
	KindFootnote
)

func (k Kind) String() string {
	switch k {
	case KindParagraph:
		return "paragraph"
	case KindTableCell:
		return "table_cell"
	case KindHeader:
		return "header"
	case KindFooter:
		return "footer"
	case KindTextBox:
		return "textbox"
	case KindFootnote:
		return "footnote"
	default:
		return "unknown"
	}
}

// Deferred reports whether units of this kind are patched in the second pass, after the body.
func (k Kind) Deferred() bool {
	return k == KindTextBox || k == KindFootnote
}

// SupportsComments reports whether comments may be anchored in units of this kind.
func (k Kind) SupportsComments() bool {
	return k == KindParagraph || k == KindTableCell
}

// Unit is an addressable span of text.
type Unit struct {
	ID         string
	Kind       Kind
	Part       string
	Paragraphs []*etree.Element
	// Ordinal is the 1-based position among units of the same kind.
	Ordinal int
	// FootnoteID is the w:id of the footnote element for footnote units.
	FootnoteID string
}

// Texts returns the current editable text of each paragraph of the unit.
func (u *Unit) Texts() []string {
	out := make([]string, len(u.Paragraphs))
	for i, p := range u.Paragraphs {
		out[i] = wml.ParagraphText(p)
	}
	return out
}

// Text returns the current editable text of the unit, paragraphs separated by newlines.
func (u *Unit) Text() string {
	return strings.Join(u.Texts(), "\n")
}

// Empty reports whether the unit has no visible text.
func (u *Unit) Empty() bool {
	return strings.TrimSpace(u.Text()) == ""
}

// Index is the ordered set of units of a package.
type Index struct {
	units []*Unit
	byID  map[string]*Unit
}

// Build enumerates the units of pkg.
func Build(pkg *docx.Package) (*Index, error) {
	main := pkg.MainDocument()
	doc, err := pkg.XML(main)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPackage, err)
	}
	body := wml.Child(doc.Root(), "body")
	if body == nil {
		return nil, fmt.Errorf("%w: %s has no body", ErrUnsupportedPackage, main)
	}

	x := &Index{byID: make(map[string]*Unit)}

	paragraphs := wml.Children(body, "p")
	for i, p := range paragraphs {
		x.add(&Unit{ID: fmt.Sprintf("paragraph_%d", i+1), Kind: KindParagraph, Part: main, Paragraphs: []*etree.Element{p}, Ordinal: i + 1})
	}

	for ti, tbl := range wml.Children(body, "tbl") {
		for ri, tr := range wml.Children(tbl, "tr") {
			for ci, tc := range wml.Children(tr, "tc") {
				x.add(&Unit{
					ID:         fmt.Sprintf("table_%d_cell_%d_%d", ti+1, ri+1, ci+1),
					Kind:       KindTableCell,
					Part:       main,
					Paragraphs: wml.Children(tc, "p"),
				})
			}
		}
	}

	x.addStory(pkg, main, body, "headerReference", KindHeader, pkg.HeaderParts())
	x.addStory(pkg, main, body, "footerReference", KindFooter, pkg.FooterParts())

	for i, box := range TextBoxes(paragraphs) {
		x.add(&Unit{ID: fmt.Sprintf("textbox_%d", i+1), Kind: KindTextBox, Part: main, Paragraphs: box, Ordinal: i + 1})
	}

	// An unreadable footnote part leaves the body addressable.
	part, footnotes, _ := Footnotes(pkg)
	for i, fn := range footnotes {
		x.add(&Unit{
			ID:         fmt.Sprintf("footnote_%d", i+1),
			Kind:       KindFootnote,
			Part:       part,
			Paragraphs: wml.Descendants(fn, "p"),
			Ordinal:    i + 1,
			FootnoteID: wml.ID(fn),
		})
	}
	return x, nil
}

func (x *Index) add(u *Unit) {
	if u.Ordinal == 0 {
		u.Ordinal = len(x.ofKind(u.Kind)) + 1
	}
	x.units = append(x.units, u)
	x.byID[u.ID] = u
}

func (x *Index) ofKind(k Kind) []*Unit {
	var out []*Unit
	for _, u := range x.units {
		if u.Kind == k {
			out = append(out, u)
		}
	}
	return out
}

// Get returns the unit with the given identifier.
func (x *Index) Get(id string) (*Unit, bool) {
	u, ok := x.byID[id]
	return u, ok
}

// Units returns every unit in document order.
func (x *Index) Units() []*Unit {
	out := make([]*Unit, len(x.units))
	copy(out, x.units)
	return out
}

// Neighbors returns the units of the same kind within radius positions of id, in document order.
func (x *Index) Neighbors(id string, radius int) []*Unit {
	u, ok := x.byID[id]
	if !ok {
		return nil
	}
	same := x.ofKind(u.Kind)
	pos := -1
	for i, s := range same {
		if s == u {
			pos = i
			break
		}
	}
	var out []*Unit
	for i := pos - radius; i <= pos+radius; i++ {
		if i < 0 || i >= len(same) || i == pos {
			continue
		}
		out = append(out, same[i])
	}
	return out
}
