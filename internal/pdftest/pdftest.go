// Package pdftest writes small single-font PDF files for tests and reads back the annotations
// written into them. Every printable ASCII glyph is 500 units wide, so a line drawn at size 10
// advances 5 points per character.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Line is one text line drawn at X, Y in points.
type Line struct {
	X, Y float64
	Size float64
	Text string
}

// Build returns a PDF with one page per argument.
func Build(pages ...[]Line) []byte {
	var buf bytes.Buffer
	var offsets []int
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 page tree, 3 font, then a page and its content per page.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	widths := strings.TrimSpace(strings.Repeat("500 ", 126-32+1))
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
		"/FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>")

	for i, lines := range pages {
		var content strings.Builder
		for _, l := range lines {
			size := l.Size
			if size == 0 {
				size = 10
			}
			fmt.Fprintf(&content, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", size, l.X, l.Y, escape(l.Text))
		}
		object(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// Annotation is an annotation read back from a page.
type Annotation struct {
	Page     int
	Subtype  string
	Title    string
	Contents string
	Rect     [4]float64
	Quads    int
}

// Annotations returns every annotation of the PDF at path in page order.
func Annotations(path string) ([]Annotation, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Annotation
	for i := 1; i <= r.NumPage(); i++ {
		annots := r.Page(i).V.Key("Annots")
		for k := 0; k < annots.Len(); k++ {
			a := annots.Index(k)
			ann := Annotation{
				Page:     i,
				Subtype:  a.Key("Subtype").Name(),
				Title:    a.Key("T").Text(),
				Contents: a.Key("Contents").Text(),
				Quads:    a.Key("QuadPoints").Len() / 8,
			}
			rect := a.Key("Rect")
			for j := 0; j < 4 && j < rect.Len(); j++ {
				ann.Rect[j] = rect.Index(j).Float64()
			}
			out = append(out, ann)
		}
	}
	return out, nil
}
