package redline

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-redline/internal/docxtest"
	"github.com/benjaminschreck/go-redline/internal/pdftest"
	"github.com/benjaminschreck/go-redline/pkg/redline/pdfmark"
)

func TestExtractDocx(t *testing.T) {
	doc := writeFile(t, "report.docx", docxtest.New().
		Paragraph("  Myndigheten skall besluta. ").
		Raw("<w:p/>").
		Table([]string{"Rubrik", "Värde"}).
		Header("Sidhuvud").
		Footnote(4, "Se bilaga.").
		Bytes())

	got, err := Extract(doc)
	require.NoError(t, err)
	s, ok := got.(*Structure)
	require.True(t, ok)
	assert.Equal(t, "docx", s.Type)

	byID := make(map[string]Element)
	for _, el := range s.Elements {
		byID[el.ElementID] = el
	}
	assert.Equal(t, Element{Type: "paragraph", ElementID: "paragraph_1", Text: "Myndigheten skall besluta."}, byID["paragraph_1"])
	assert.True(t, byID["paragraph_2"].Empty)
	assert.Equal(t, "Värde", byID["table_1_cell_1_2"].Text)
	assert.Equal(t, "Sidhuvud", byID["header_1"].Text)
	assert.Equal(t, Element{Type: "footnote", ElementID: "footnote_1", Text: "Se bilaga.", FootnoteID: "4"}, byID["footnote_1"])

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"element_id":"paragraph_1"`)
}

func TestExtractPDF(t *testing.T) {
	doc := writeFile(t, "report.pdf", pdftest.Build(
		[]pdftest.Line{{X: 72, Y: 700, Text: "Forsta raden"}, {X: 72, Y: 680, Text: "Andra raden"}},
	))

	got, err := Extract(doc)
	require.NoError(t, err)
	s, ok := got.(pdfmark.Structure)
	require.True(t, ok)
	assert.Equal(t, "pdf", s.Type)
	require.Len(t, s.Pages, 1)
	assert.Equal(t, []pdfmark.Line{{Line: 1, Text: "Forsta raden"}, {Line: 2, Text: "Andra raden"}}, s.Pages[0].Lines)
}

func TestExtractErrors(t *testing.T) {
	for _, path := range []string{
		writeFile(t, "notes.txt", []byte("x")),
		writeFile(t, "broken.docx", []byte("x")),
		filepath.Join(t.TempDir(), "missing.pdf"),
	} {
		_, err := Extract(path)
		assert.True(t, IsUnrecoverable(err), path)
	}
}
