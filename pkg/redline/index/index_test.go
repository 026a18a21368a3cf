package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/internal/docxtest"
)

func fixture() *docx.Package {
	return docxtest.New().
		Paragraph("Inledning").
		Paragraph("Myndigheten ", "skall besluta.").
		Paragraph().
		Table([]string{"A1", "B1"}, []string{"A2", "two\nlines"}).
		TextBox("Boxed text").
		TextBox("").
		Header("Page header").
		Footer("Page footer", "Second line").
		Footnote(2, "First note").
		Footnote(3, "   ").
		Footnote(4, "Second note").
		Package()
}

func TestBuildIdentifiers(t *testing.T) {
	x, err := Build(fixture())
	require.NoError(t, err)

	var ids []string
	for _, u := range x.Units() {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{
		"paragraph_1", "paragraph_2", "paragraph_3", "paragraph_4", "paragraph_5",
		"table_1_cell_1_1", "table_1_cell_1_2", "table_1_cell_2_1", "table_1_cell_2_2",
		"header_1", "footer_1", "footer_2",
		"textbox_1",
		"footnote_1", "footnote_2",
	}, ids)

	u, ok := x.Get("paragraph_2")
	require.True(t, ok)
	assert.Equal(t, "Myndigheten skall besluta.", u.Text())
	assert.Equal(t, KindParagraph, u.Kind)

	cell, _ := x.Get("table_1_cell_2_2")
	assert.Equal(t, "two\nlines", cell.Text())
	assert.Len(t, cell.Paragraphs, 2)

	fn, _ := x.Get("footnote_2")
	assert.Equal(t, "4", fn.FootnoteID)
	assert.Equal(t, "Second note", fn.Text())

	box, _ := x.Get("textbox_1")
	assert.Equal(t, "Boxed text", box.Text())

	empty, _ := x.Get("paragraph_3")
	assert.True(t, empty.Empty())
}

func TestBuildIsDeterministic(t *testing.T) {
	data := docxtest.New().Paragraph("a").Table([]string{"x"}).Footnote(1, "n").Bytes()
	first, err := docx.FromBytes(data)
	require.NoError(t, err)
	second, err := docx.FromBytes(data)
	require.NoError(t, err)

	a, err := Build(first)
	require.NoError(t, err)
	b, err := Build(second)
	require.NoError(t, err)
	require.Equal(t, len(a.Units()), len(b.Units()))
	for i := range a.Units() {
		assert.Equal(t, a.Units()[i].ID, b.Units()[i].ID)
		assert.Equal(t, a.Units()[i].Text(), b.Units()[i].Text())
	}
}

func TestBuildRejectsPackageWithoutBody(t *testing.T) {
	pkg := docxtest.New().Without(docx.DocumentPart).Package()
	_, err := Build(pkg)
	assert.ErrorIs(t, err, ErrUnsupportedPackage)
}

func TestNeighbors(t *testing.T) {
	b := docxtest.New()
	for _, s := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		b.Paragraph(s)
	}
	x, err := Build(b.Package())
	require.NoError(t, err)

	var ids []string
	for _, u := range x.Neighbors("paragraph_2", 2) {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"paragraph_1", "paragraph_3", "paragraph_4"}, ids)
	assert.Nil(t, x.Neighbors("paragraph_99", 2))
}

func TestKindProperties(t *testing.T) {
	assert.True(t, KindFootnote.Deferred())
	assert.True(t, KindTextBox.Deferred())
	assert.False(t, KindTableCell.Deferred())
	assert.False(t, KindHeader.SupportsComments())
	assert.True(t, KindParagraph.SupportsComments())
	assert.Equal(t, "table_cell", KindTableCell.String())
}

func TestLocateFootnoteByXMLID(t *testing.T) {
	pkg := fixture()
	x, err := Build(pkg)
	require.NoError(t, err)
	u, _ := x.Get("footnote_1")

	paras, err := Locate(pkg, u, "")
	require.NoError(t, err)
	require.Len(t, paras, 1)

	paras, err = Locate(pkg, u, "4")
	require.NoError(t, err)
	require.Len(t, paras, 1)

	_, err = Locate(pkg, u, "42")
	assert.Error(t, err)
}
