package pdfmark

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-redline/internal/pdftest"
)

// line lays words out left to right at height y, 5pt per character with a 4pt gap.
func line(y float64, words ...string) Block {
	var glyphs []Glyph
	x := 50.0
	for _, w := range words {
		width := 5 * float64(len([]rune(w)))
		glyphs = append(glyphs, Glyph{Text: w, Rect: Rect{X0: x, Y0: y, X1: x + width, Y1: y + 10}})
		x += width + 4
	}
	return NewBlock(glyphs)
}

func document() *Document {
	return &Document{Pages: []Page{
		NewPage(1, []Block{
			line(600, "Beslutet", "gäller", "från", "och", "med", "idag."),
			line(700, "Myndigheten", "skall", "besluta."),
			line(650, "Den", "som", "har", "deltidsarbete15", "får", "ersättning."),
			line(680, " "),
		}),
		NewPage(2, []Block{
			line(700, "Myndigheten", "skall", "besluta", "och", "myndigheten", "skall", "svara."),
		}),
	}}
}

func TestNewBlock(t *testing.T) {
	b := line(700, "Myndigheten", "skall", "besluta.")
	assert.Equal(t, "Myndigheten skall besluta.", b.Text)
	assert.Equal(t, Rect{X0: 50, Y0: 700, X1: 50 + 55 + 4 + 25 + 4 + 40, Y1: 710}, b.Rect)

	boxes := b.Boxes("SKALL")
	require.Len(t, boxes, 1)
	assert.Equal(t, Rect{X0: 109, Y0: 700, X1: 134, Y1: 710}, boxes[0])
	assert.Nil(t, b.Boxes("saknas"))

	joined := NewBlock([]Glyph{
		{Text: "ab", Rect: Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}},
		{Text: "cd", Rect: Rect{X0: 10.5, Y0: 0, X1: 20, Y1: 10}},
	})
	assert.Equal(t, "abcd", joined.Text, "glyphs drawn back to back form one word")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	data := pdftest.Build(
		[]pdftest.Line{
			{X: 72, Y: 650, Text: "Beslutet"},
			{X: 72, Y: 700, Text: "Myndigheten skall besluta."},
			{X: 200, Y: 650, Text: "och med idag."},
		},
		[]pdftest.Line{{X: 72, Y: 700, Size: 12, Text: "Andra sidan"}},
	)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)

	p := doc.Pages[0]
	require.Len(t, p.Blocks, 2)
	assert.Equal(t, "Myndigheten skall besluta.", p.Blocks[0].Text)
	assert.Equal(t, Rect{X0: 72, Y0: 700, X1: 72 + 26*5, Y1: 710}, p.Blocks[0].Rect)
	assert.Equal(t, []Rect{{X0: 132, Y0: 700, X1: 157, Y1: 710}}, p.Blocks[0].Boxes("skall"))
	assert.Equal(t, "Beslutet och med idag.", p.Blocks[1].Text, "separate runs on one baseline join with a space")

	assert.Equal(t, 2, doc.Pages[1].Number)
	require.Len(t, doc.Pages[1].Blocks, 1)
	assert.Equal(t, Rect{X0: 72, Y0: 700, X1: 72 + 11*6, Y1: 712}, doc.Pages[1].Blocks[0].Rect)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestNewPageOrdersTopDown(t *testing.T) {
	p := document().Pages[0]
	require.Len(t, p.Blocks, 3, "blank lines are dropped")
	for i, want := range []string{"Myndigheten skall besluta.", "Den som har deltidsarbete15 får ersättning.", "Beslutet gäller från och med idag."} {
		assert.Equal(t, i+1, p.Blocks[i].Line)
		assert.Equal(t, want, p.Blocks[i].Text)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"deltidsarbete15 får", "deltidsarbete får"},
		{"arbete15.", "arbete."},
		{"ökning12, och", "ökning, och"},
		{"år 2024", "år 2024"},
		{"x1y", "x1y"},
		{"sida1234", "sida1234"},
		{"  fotnot3  ", "fotnot"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestAnnotate(t *testing.T) {
	changes := []Change{
		{Page: 1, Line: 1, Old: "skall besluta", New: "ska besluta"},
		{Page: 1, Line: 3, Old: "deltidsarbete får", New: "deltidsarbete kan få", Motivation: "Tydligare."},
		{Page: 1, Line: 1, Old: "finns inte", New: "x"},
		{Page: 2, Old: "skall", New: "ska"},
		{Page: 3, Old: "skall", New: "ska"},
		{Page: 1, Line: 2, Old: "   ", New: "x"},
	}
	a := DefaultAnnotator()
	a.Motivation = true
	highlights, outcomes := a.Annotate(document(), changes)

	assert.Equal(t, []Outcome{
		{Status: Matched, Line: 1},
		{Status: Neighbor, Line: 2},
		{Status: NoMatch},
		{Status: Matched},
		{Status: Invalid},
		{Status: Invalid},
	}, outcomes)

	require.Len(t, highlights, 3)
	assert.Equal(t, "ska besluta", highlights[0].Content)
	assert.Equal(t, []Rect{{X0: 109, Y0: 700, X1: 178, Y1: 710}}, highlights[0].Rects)

	second := highlights[1]
	assert.Equal(t, 2, second.Line)
	assert.Equal(t, "deltidsarbete kan få\nTydligare.", second.Content)
	require.Len(t, second.Rects, 1, "cleaned match falls back to the line box")
	assert.Equal(t, document().Pages[0].Blocks[1].Rect, second.Rects[0])

	third := highlights[2]
	assert.Equal(t, 2, third.Page)
	assert.Len(t, third.Rects, 2, "every occurrence on the page is highlighted")
}

func TestAnnotateRadius(t *testing.T) {
	doc := document()
	change := Change{Page: 1, Line: 4, Old: "skall besluta", New: "ska besluta"}

	_, outcomes := Annotator{Radius: 2}.Annotate(doc, []Change{change})
	assert.Equal(t, NoMatch, outcomes[0].Status, "line 1 is three lines away")

	_, outcomes = Annotator{Radius: 3}.Annotate(doc, []Change{change})
	assert.Equal(t, Outcome{Status: Neighbor, Line: 1}, outcomes[0])
}

func TestDedupe(t *testing.T) {
	box := Rect{X0: 10, Y0: 10, X1: 50, Y1: 20}
	shifted := Rect{X0: 12, Y0: 11, X1: 53, Y1: 22}
	far := Rect{X0: 100, Y0: 10, X1: 150, Y1: 20}
	in := []Highlight{
		{Page: 1, Rects: []Rect{box}, Content: "ska"},
		{Page: 1, Rects: []Rect{shifted}, Content: "annat"},
		{Page: 1, Rects: []Rect{far}, Content: "ska "},
		{Page: 1, Rects: []Rect{far}, Content: ""},
		{Page: 2, Rects: []Rect{box}, Content: "ska"},
		{Page: 1, Rects: []Rect{{X0: 101, Y0: 10, X1: 151, Y1: 20}}, Content: "tredje"},
		{Page: 1, Rects: []Rect{{X0: 300, Y0: 300, X1: 320, Y1: 310}}, Content: ""},
	}
	kept, removed := Dedupe(in, 5)
	assert.Equal(t, 3, removed)
	require.Len(t, kept, 4)
	assert.Equal(t, box, kept[0].Rects[0])
	assert.Equal(t, far, kept[1].Rects[0], "empty texts are never equal")
	assert.Equal(t, 2, kept[2].Page)
	assert.Equal(t, 300.0, kept[3].Rects[0].X0)
}

func TestWriteSidecar(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSidecar(&buf, "report.pdf", nil))
	var got Sidecar
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "report.pdf", got.Source)
	assert.NotNil(t, got.Highlights)

	buf.Reset()
	require.NoError(t, WriteSidecar(&buf, "r.pdf", []Highlight{{Page: 1, Rects: []Rect{{X1: 1, Y1: 1}}, Old: "a<b", Content: "c"}}))
	assert.True(t, strings.Contains(buf.String(), `"old": "a<b"`))
}

func TestStructure(t *testing.T) {
	s := document().Structure()
	assert.Equal(t, "pdf", s.Type)
	require.Len(t, s.Pages, 2)
	assert.Equal(t, PageLines{Page: 2, Lines: []Line{{Line: 1, Text: "Myndigheten skall besluta och myndigheten skall svara."}}}, s.Pages[1])
}

func TestAnnotations(t *testing.T) {
	highlights := []Highlight{
		{Page: 1, Rects: []Rect{{X0: 10, Y0: 700, X1: 40, Y1: 710}, {X0: 10, Y0: 690, X1: 20, Y1: 700}}, Content: "ska"},
		{Page: 1, Content: "no boxes"},
		{Page: 2, Rects: []Rect{{X0: 72, Y0: 700, X1: 90, Y1: 712}}, Content: "i dag"},
	}
	m := Annotations(highlights, "Granskare")
	require.Len(t, m, 2)
	require.Len(t, m[1], 1, "highlights without boxes are skipped")
	require.Len(t, m[2], 1)
	assert.Equal(t, "ska", m[1][0].ContentString())
	assert.Equal(t, "redline1", m[1][0].ID())
	assert.Equal(t, "redline3", m[2][0].ID())
}

func TestAnnotateFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	require.NoError(t, os.WriteFile(src, pdftest.Build(
		[]pdftest.Line{{X: 72, Y: 700, Text: "Myndigheten skall besluta."}},
		[]pdftest.Line{{X: 72, Y: 700, Size: 12, Text: "Andra sidan."}},
	), 0o644))

	doc, err := Load(src)
	require.NoError(t, err)
	a := DefaultAnnotator()
	a.Motivation = true
	highlights, outcomes := a.Annotate(doc, []Change{
		{Page: 1, Line: 1, Old: "skall", New: "ska", Motivation: "Modern form"},
		{Page: 2, Old: "Andra", New: "Tredje"},
	})
	require.Equal(t, Matched, outcomes[0].Status)
	require.Equal(t, Matched, outcomes[1].Status)

	dst := filepath.Join(dir, "out.pdf")
	require.NoError(t, AnnotateFile(src, dst, highlights, "Granskare"))

	annots, err := pdftest.Annotations(dst)
	require.NoError(t, err)
	require.Len(t, annots, 2)
	assert.Equal(t, 1, annots[0].Page)
	assert.Equal(t, "Highlight", annots[0].Subtype)
	assert.Equal(t, "Granskare", annots[0].Title)
	assert.Equal(t, "ska\nModern form", strings.ReplaceAll(annots[0].Contents, "\r", ""))
	assert.InDeltaSlice(t, []float64{132, 700, 157, 710}, annots[0].Rect[:], 0.01)
	assert.Equal(t, 2, annots[1].Page)
	assert.Equal(t, "Tredje", annots[1].Contents)

	again, err := Load(dst)
	require.NoError(t, err)
	assert.Equal(t, doc.Structure(), again.Structure(), "page text is untouched")

	assert.Error(t, AnnotateFile(filepath.Join(dir, "missing.pdf"), filepath.Join(dir, "none.pdf"), highlights, "x"))
	assert.NoFileExists(t, filepath.Join(dir, "none.pdf"))
}
