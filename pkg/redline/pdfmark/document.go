// Package pdfmark locates suggested changes in the text of a PDF and turns them into highlight
// annotations. PDFs carry no editable runs, so matching is positional: a change names a page and
// optionally a line, and the annotation covers the boxes of the matched text.
package pdfmark

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// Rect is a box in PDF user space; Y grows upwards.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Union returns the smallest box covering r and o.
func (r Rect) Union(o Rect) Rect {
	if r == (Rect{}) {
		return o
	}
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Near reports whether every edge of r lies within tol of the matching edge of o.
func (r Rect) Near(o Rect, tol float64) bool {
	return math.Abs(r.X0-o.X0) < tol && math.Abs(r.Y0-o.Y0) < tol &&
		math.Abs(r.X1-o.X1) < tol && math.Abs(r.Y1-o.Y1) < tol
}

// Glyph is a positioned piece of text as the content stream draws it.
type Glyph struct {
	Text string
	Rect Rect
}

// Block is one line of page text.
type Block struct {
	Line   int
	Text   string
	Rect   Rect
	glyphs []Glyph
	starts []int
}

// NewBlock assembles glyphs drawn left to right into a line. A space is inserted where the gap
// between two glyphs is wider than a fraction of the glyph height.
func NewBlock(glyphs []Glyph) Block {
	b := Block{glyphs: glyphs, starts: make([]int, len(glyphs))}
	var sb strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			gap := g.Rect.X0 - prev.Rect.X1
			if gap > 0.15*(g.Rect.Y1-g.Rect.Y0) && !endsSpace(sb.String()) && !startsSpace(g.Text) {
				sb.WriteByte(' ')
			}
		}
		b.starts[i] = sb.Len()
		sb.WriteString(g.Text)
		b.Rect = b.Rect.Union(g.Rect)
	}
	b.Text = sb.String()
	return b
}

func endsSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[len(s)-1]))
}

func startsSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[0]))
}

// Boxes returns one box per occurrence of text in the block, or nil when the text does not occur
// literally. Matching ignores case.
func (b Block) Boxes(text string) []Rect {
	if text == "" {
		return nil
	}
	hay := strings.ToLower(b.Text)
	needle := strings.ToLower(text)
	if len(hay) != len(b.Text) || len(needle) != len(text) {
		hay, needle = b.Text, text
	}
	var out []Rect
	for from := 0; ; {
		i := strings.Index(hay[from:], needle)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(needle)
		var box Rect
		for gi, g := range b.glyphs {
			gs := b.starts[gi]
			if gs < end && gs+len(g.Text) > start {
				box = box.Union(g.Rect)
			}
		}
		if box != (Rect{}) {
			out = append(out, box)
		}
		from = end
	}
	return out
}

// Page is the text of one page, blocks ordered top-down and numbered from 1.
type Page struct {
	Number int
	Blocks []Block
}

// NewPage orders blocks top-down, drops empty ones and numbers the rest.
func NewPage(number int, blocks []Block) Page {
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Rect.Y1 > blocks[j].Rect.Y1 })
	p := Page{Number: number}
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		b.Line = len(p.Blocks) + 1
		p.Blocks = append(p.Blocks, b)
	}
	return p
}

// Document is the extracted text of a PDF.
type Document struct {
	Pages []Page
}

// Page returns the page with the given 1-based number.
func (d *Document) Page(n int) (Page, bool) {
	if n < 1 || n > len(d.Pages) {
		return Page{}, false
	}
	return d.Pages[n-1], true
}

// Load reads the text of every page of a PDF file.
func Load(path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	doc := &Document{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			doc.Pages = append(doc.Pages, Page{Number: i})
			continue
		}
		chars, err := content(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, NewPage(i, rows(chars)))
	}
	return doc, nil
}

// content returns the positioned characters of a page. The content stream interpreter panics on
// malformed operators.
func content(p pdf.Page) (chars []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	return p.Content().Text, nil
}

// rows groups characters sharing a baseline into blocks, each ordered left to right.
func rows(chars []pdf.Text) []Block {
	byLine := make(map[int64][]Glyph)
	var order []int64
	for _, c := range chars {
		if c.S == "" || c.S == "\n" {
			continue
		}
		y := int64(math.Round(c.Y))
		if _, ok := byLine[y]; !ok {
			order = append(order, y)
		}
		byLine[y] = append(byLine[y], Glyph{
			Text: c.S,
			Rect: Rect{X0: c.X, Y0: c.Y, X1: c.X + c.W, Y1: c.Y + c.FontSize},
		})
	}
	blocks := make([]Block, 0, len(order))
	for _, y := range order {
		glyphs := byLine[y]
		sort.SliceStable(glyphs, func(a, b int) bool { return glyphs[a].Rect.X0 < glyphs[b].Rect.X0 })
		blocks = append(blocks, NewBlock(glyphs))
	}
	return blocks
}

// Line is one entry of the structure listing.
type Line struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// PageLines lists the lines of one page.
type PageLines struct {
	Page  int    `json:"page"`
	Lines []Line `json:"lines"`
}

// Structure is the page and line listing handed to the suggestion service.
type Structure struct {
	Type  string      `json:"type"`
	Pages []PageLines `json:"pages"`
}

// Structure lists every non-empty line by page.
func (d *Document) Structure() Structure {
	s := Structure{Type: "pdf", Pages: make([]PageLines, 0, len(d.Pages))}
	for _, p := range d.Pages {
		pl := PageLines{Page: p.Number, Lines: make([]Line, 0, len(p.Blocks))}
		for _, b := range p.Blocks {
			pl.Lines = append(pl.Lines, Line{Line: b.Line, Text: strings.TrimSpace(b.Text)})
		}
		s.Pages = append(s.Pages, pl)
	}
	return s
}
