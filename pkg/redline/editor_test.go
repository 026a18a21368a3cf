package redline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/index"
	"github.com/benjaminschreck/go-redline/internal/docxtest"
	"github.com/benjaminschreck/go-redline/internal/pdftest"
	"github.com/benjaminschreck/go-redline/pkg/redline/pdfmark"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testEditor(t *testing.T, modify func(*Config)) *Editor {
	t.Helper()
	config := DefaultConfig()
	config.ScratchDir = t.TempDir()
	if modify != nil {
		modify(config)
	}
	e, err := NewEditor(config,
		WithLogger(NewLogger(io.Discard, LogOff)),
		WithClock(func() time.Time { return fixedNow }),
		WithSeed(1, 2),
	)
	require.NoError(t, err)
	return e
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func parse(t *testing.T, input string) []ChangeRecord {
	t.Helper()
	changes, err := ParseChanges(strings.NewReader(input))
	require.NoError(t, err)
	return changes
}

func statuses(res *Result) []Status {
	out := make([]Status, len(res.Outcomes))
	for i, o := range res.Outcomes {
		out[i] = o.Status
	}
	return out
}

func unitRuns(t *testing.T, pkg *docx.Package, id string) map[wml.Mark][]string {
	t.Helper()
	x, err := index.Build(pkg)
	require.NoError(t, err)
	u, ok := x.Get(id)
	require.True(t, ok, id)
	out := make(map[wml.Mark][]string)
	for _, r := range wml.Children(u.Paragraphs[0], "r") {
		if wml.IsTextRun(r) {
			out[wml.Signature(r)] = append(out[wml.Signature(r)], wml.RunText(r))
		}
	}
	return out
}

func report() *docxtest.Builder {
	return docxtest.New().
		Paragraph("Myndigheten skall besluta.").
		Paragraph("Beslutet gäller från och med idag.").
		Footnote(2, "Se bilaga tre.")
}

const reportChanges = `[
	{"unit_id":"paragraph_1","old":"skall","new":"ska","motivation":"Modern form"},
	{"unit_id":"paragraph_2","old":"helt annan mening","new":"x"},
	{"unit_id":"paragraph_1","new":"saknar old"},
	{"footnote_id":"2","old":"tre","new":"fyra"},
	{"footnote_id":"9","old":"tre","new":"fyra"}
]`

func TestApplySimple(t *testing.T) {
	e := testEditor(t, func(c *Config) { c.IncludeComments = true })
	doc := writeFile(t, "report.docx", report().Bytes())
	before, err := os.ReadFile(doc)
	require.NoError(t, err)

	res, err := e.Apply(context.Background(), doc, parse(t, reportChanges))
	require.NoError(t, err)

	assert.Equal(t, StrategyPlainMarkup, res.Strategy)
	assert.False(t, res.Fallback())
	assert.Equal(t, []Status{StatusApplied, StatusNoMatch, StatusInvalid, StatusApplied, StatusNoMatch}, statuses(res))
	assert.Equal(t, 2, res.Applied())
	assert.False(t, res.Complete())
	assert.True(t, IsAnchorError(res.Outcomes[1].Err))
	assert.ErrorIs(t, res.Outcomes[2].Err, ErrInvalidRecord)
	assert.Equal(t, "footnote_1", res.Outcomes[3].UnitID)
	assert.Contains(t, res.Outcomes[4].Reason, "footnote not found")
	require.NotNil(t, res.Integrity)
	assert.True(t, res.Integrity.After.Valid)
	assert.Nil(t, res.Revisions, "simple mode converts nothing")

	assert.Equal(t, filepath.Join(filepath.Dir(doc), "report_edited.docx"), res.Output)
	out, err := docx.Open(res.Output)
	require.NoError(t, err)
	runs := unitRuns(t, out, "paragraph_1")
	assert.Equal(t, []string{"skall"}, runs[wml.MarkDeleted])
	assert.Equal(t, []string{"ska"}, runs[wml.MarkInserted])

	comments, err := out.Comments()
	require.NoError(t, err)
	require.NotNil(t, comments)
	assert.Len(t, comments.IDs(), 1)

	footnotes, err := out.Raw(docx.FootnotesPart)
	require.NoError(t, err)
	assert.Contains(t, string(footnotes), "fyra")

	after, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the input is never modified")
}

func TestApplyTracked(t *testing.T) {
	e := testEditor(t, func(c *Config) {
		c.Mode = ModeTracked
		c.Author = "Granskare"
	})
	doc := writeFile(t, "report.docx", report().Bytes())

	res, err := e.Apply(context.Background(), doc, parse(t, `[{"unit_id":"paragraph_1","old":"skall","new":"ska"}]`))
	require.NoError(t, err)

	assert.Equal(t, StrategyNativeRevision, res.Strategy)
	assert.Equal(t, []Attempt{{Strategy: StrategyNativeRevision}}, res.Attempts)
	assert.True(t, res.Complete())
	require.NotNil(t, res.Revisions)
	assert.Equal(t, 1, res.Revisions.Insertions)
	assert.Equal(t, 1, res.Revisions.Deletions)
	require.NotNil(t, res.Quality)
	assert.True(t, res.Quality.TrackRevisions)

	out, err := docx.Open(res.Output)
	require.NoError(t, err)
	main, err := out.XML(docx.DocumentPart)
	require.NoError(t, err)
	body := wml.Child(main.Root(), "body")
	dels := wml.Descendants(body, "del")
	require.Len(t, dels, 1)
	assert.Equal(t, "Granskare", dels[0].SelectAttrValue("w:author", ""))
	assert.Equal(t, "2024-05-01T12:00:00+02:00", dels[0].SelectAttrValue("w:date", ""), "dates use the configured zone")
	assert.Equal(t, "skall", wml.Child(wml.Child(dels[0], "r"), "delText").Text())
	inss := wml.Descendants(body, "ins")
	require.Len(t, inss, 1)
	assert.Equal(t, "ska", wml.Child(wml.Child(inss[0], "r"), "t").Text())

	settings, err := out.XML(docx.SettingsPart)
	require.NoError(t, err)
	assert.NotNil(t, wml.Child(settings.Root(), "trackRevisions"))
}

func textOf(els []*etree.Element, tag string) []string {
	var out []string
	for _, el := range els {
		var sb strings.Builder
		for _, t := range wml.Descendants(el, tag) {
			sb.WriteString(t.Text())
		}
		out = append(out, sb.String())
	}
	return out
}

func TestApplyTextBox(t *testing.T) {
	fixture := docxtest.New().
		Raw(`<w:p>` + docxtest.Run("Se rutan ") + docxtest.Drawing("Rutan skall visas.") + docxtest.Run("nedan.") + `</w:p>`).
		Bytes()
	changes := `[{"unit_id":"textbox_1","old":"skall","new":"ska"},{"unit_id":"paragraph_1","old":"nedan","new":"här"}]`

	tests := []struct {
		name     string
		mode     Mode
		strategy Strategy
	}{
		{"simple", ModeSimple, StrategyPlainMarkup},
		{"tracked", ModeTracked, StrategyNativeRevision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEditor(t, func(c *Config) { c.Mode = tt.mode })
			res, err := e.Apply(context.Background(), writeFile(t, "box.docx", fixture), parse(t, changes))
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.Equal(t, []Status{StatusApplied, StatusApplied}, statuses(res))

			out, err := docx.Open(res.Output)
			require.NoError(t, err)
			main, err := out.XML(docx.DocumentPart)
			require.NoError(t, err)
			body := wml.Child(main.Root(), "body")
			p := wml.Children(body, "p")[0]
			require.Len(t, wml.Descendants(p, "drawing"), 1, "the paragraph keeps its drawing")
			boxes := wml.Descendants(p, "txbxContent")
			require.Len(t, boxes, 1)
			box := boxes[0]

			if tt.mode == ModeSimple {
				assert.Equal(t, []string{"skall"}, unitRuns(t, out, "textbox_1")[wml.MarkDeleted])
				assert.Equal(t, []string{"ska"}, unitRuns(t, out, "textbox_1")[wml.MarkInserted])
				assert.Equal(t, []string{"nedan"}, unitRuns(t, out, "paragraph_1")[wml.MarkDeleted])
				assert.Empty(t, wml.Descendants(body, "del"))
				return
			}

			assert.Equal(t, []string{"skall"}, textOf(wml.Descendants(box, "del"), "delText"))
			assert.Equal(t, []string{"ska"}, textOf(wml.Descendants(box, "ins"), "t"))
			assert.Equal(t, []string{"nedan"}, textOf(wml.Children(p, "del"), "delText"))
			assert.Equal(t, []string{"här"}, textOf(wml.Children(p, "ins"), "t"))
			assert.Equal(t, 2, res.Revisions.Insertions)
			assert.Equal(t, 2, res.Revisions.Deletions)
			for _, r := range wml.Descendants(box, "r") {
				assert.Equal(t, wml.MarkNone, wml.Signature(r), "no visual markup is left")
			}
		})
	}
}

func TestApplyTrackedKeepsOwnFormatting(t *testing.T) {
	e := testEditor(t, func(c *Config) { c.Mode = ModeTracked })
	fixture := docxtest.New().
		Raw(`<w:p>` + docxtest.StyledRun(`<w:b/><w:color w:val="1F4E79"/><w:u w:val="double"/>`, "Vi skall göra det.") + `</w:p>`).
		Bytes()

	res, err := e.Apply(context.Background(), writeFile(t, "own.docx", fixture), parse(t, `[{"unit_id":"paragraph_1","old":"skall","new":"ska"}]`))
	require.NoError(t, err)
	require.Equal(t, StrategyNativeRevision, res.Strategy)

	out, err := docx.Open(res.Output)
	require.NoError(t, err)
	main, err := out.XML(docx.DocumentPart)
	require.NoError(t, err)
	body := wml.Child(main.Root(), "body")

	changed := append(wml.Descendants(body, "del"), wml.Descendants(body, "ins")...)
	require.Len(t, changed, 2)
	for _, w := range changed {
		props := wml.RunProps(wml.Child(w, "r"))
		require.NotNil(t, props, w.Tag)
		assert.Equal(t, "1F4E79", wml.Val(wml.Child(props, "color")), w.Tag)
		assert.Equal(t, "double", wml.Val(wml.Child(props, "u")), w.Tag)
		assert.NotNil(t, wml.Child(props, "b"), w.Tag)
		assert.Nil(t, wml.Child(props, "strike"), w.Tag)
	}
	for _, props := range wml.Descendants(body, "rPr") {
		assert.Empty(t, props.Attr, "no working attributes are left in the output")
	}
}

func TestApplyTrackedIsReproducible(t *testing.T) {
	e := testEditor(t, func(c *Config) { c.Mode = ModeTracked })
	changes := parse(t, `[{"unit_id":"paragraph_1","old":"skall","new":"ska"}]`)

	read := func() []byte {
		doc := writeFile(t, "report.docx", report().Bytes())
		res, err := e.Apply(context.Background(), doc, changes)
		require.NoError(t, err)
		out, err := docx.Open(res.Output)
		require.NoError(t, err)
		data, err := out.Raw(docx.DocumentPart)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, string(read()), string(read()))
}

func TestApplyFallsBackWhenConversionFails(t *testing.T) {
	// A revision already nested inside another one cannot be converted.
	nested := `<w:p><w:ins w:id="90" w:author="x"><w:r><w:drawing><wp:anchor><a:graphic><a:graphicData><wps:wsp><wps:txbx><w:txbxContent>` +
		`<w:p><w:del w:id="91" w:author="x"><w:r><w:delText>gammal</w:delText></w:r></w:del></w:p>` +
		`</w:txbxContent></wps:txbx></wps:wsp></a:graphicData></a:graphic></wp:anchor></w:drawing></w:r></w:ins></w:p>`
	e := testEditor(t, func(c *Config) { c.Mode = ModeTracked })
	doc := writeFile(t, "report.docx", docxtest.New().Paragraph("Myndigheten skall besluta.").Raw(nested).Bytes())

	res, err := e.Apply(context.Background(), doc, parse(t, `[{"unit_id":"paragraph_1","old":"skall","new":"ska"}]`))
	require.NoError(t, err)

	assert.Equal(t, StrategyPlainMarkup, res.Strategy)
	assert.True(t, res.Fallback())
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, StrategyNativeRevision, res.Attempts[0].Strategy)
	assert.Contains(t, res.Attempts[0].Error, "nested revision")
	assert.Contains(t, res.Attempts[0].Error, "convert [changes=1]")
	assert.Empty(t, res.Attempts[1].Error)
	assert.Equal(t, []Status{StatusApplied}, statuses(res))
	assert.Nil(t, res.Revisions)

	out, err := docx.Open(res.Output)
	require.NoError(t, err)
	runs := unitRuns(t, out, "paragraph_1")
	assert.Equal(t, []string{"skall"}, runs[wml.MarkDeleted])
}

func TestApplyOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	e := testEditor(t, func(c *Config) { c.OutputDir = dir })
	doc := writeFile(t, "Rapport 2024.docx", report().Bytes())

	res, err := e.Apply(context.Background(), doc, parse(t, `[{"unit_id":"paragraph_1","old":"skall","new":"ska"}]`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Rapport 2024_edited.docx"), res.Output)
	assert.FileExists(t, res.Output)
}

func TestApplyUnrecoverable(t *testing.T) {
	e := testEditor(t, nil)
	changes := parse(t, `[{"unit_id":"paragraph_1","old":"a","new":"b"}]`)

	tests := []struct {
		name string
		path string
	}{
		{"unsupported extension", writeFile(t, "notes.txt", []byte("text"))},
		{"missing docx", filepath.Join(t.TempDir(), "missing.docx")},
		{"corrupt docx", writeFile(t, "broken.docx", []byte("not a zip"))},
		{"corrupt pdf", writeFile(t, "broken.pdf", []byte("%PDF-1.4\ngarbage"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Apply(context.Background(), tt.path, changes)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsUnrecoverable(err), "%v", err)
		})
	}
}

func TestApplyCancelled(t *testing.T) {
	e := testEditor(t, nil)
	doc := writeFile(t, "report.docx", report().Bytes())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Apply(ctx, doc, parse(t, `[{"unit_id":"paragraph_1","old":"skall","new":"ska"}]`))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewEditorRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Mode = "fancy"
	_, err := NewEditor(config)
	assert.ErrorContains(t, err, "invalid config")
}

func TestApplyPDF(t *testing.T) {
	e := testEditor(t, func(c *Config) { c.IncludeComments = true })
	doc := writeFile(t, "report.pdf", pdftest.Build([]pdftest.Line{
		{X: 72, Y: 700, Text: "Myndigheten skall besluta."},
		{X: 72, Y: 680, Text: "Beslutet galler fran och med idag."},
	}))

	res, err := e.Apply(context.Background(), doc, parse(t, `[
		{"page":1,"line":1,"old":"skall","new":"ska","motivation":"Modern form"},
		{"page":1,"line":1,"old":"idag","new":"i dag"},
		{"page":3,"old":"x","new":"y"},
		{"page":1,"old":"  ","new":"y"},
		{"page":1,"line":1,"old":"saknas","new":"y"}
	]`))
	require.NoError(t, err)

	assert.Equal(t, StrategyPDFAnnotations, res.Strategy)
	assert.Equal(t, []Status{StatusApplied, StatusFuzzy, StatusInvalid, StatusInvalid, StatusNoMatch}, statuses(res))
	assert.Equal(t, 1, res.Outcomes[0].Line)
	assert.Equal(t, 2, res.Outcomes[1].Line)
	assert.Equal(t, "line 2", res.Outcomes[1].Suggestion)
	assert.True(t, IsAnchorError(res.Outcomes[4].Err))
	assert.Equal(t, filepath.Join(filepath.Dir(doc), "report_annotated.pdf"), res.Output)
	assert.Empty(t, res.Sidecar)

	annots, err := pdftest.Annotations(res.Output)
	require.NoError(t, err)
	require.Len(t, annots, 2)
	assert.Equal(t, "Highlight", annots[0].Subtype)
	assert.Equal(t, "Redline", annots[0].Title)
	assert.Contains(t, annots[0].Contents, "ska")
	assert.Contains(t, annots[0].Contents, "Modern form")
	assert.InDeltaSlice(t, []float64{132, 700, 157, 710}, annots[0].Rect[:], 0.01)
	assert.Equal(t, 1, annots[0].Quads)
	assert.Equal(t, "i dag", annots[1].Contents)

	pages, err := pdfmark.Load(res.Output)
	require.NoError(t, err, "the annotated copy is still readable")
	assert.Equal(t, "Myndigheten skall besluta.", pages.Pages[0].Blocks[0].Text)
}

func TestApplyPDFSidecar(t *testing.T) {
	e := testEditor(t, func(c *Config) { c.PDFSidecar = true })
	doc := writeFile(t, "report.pdf", pdftest.Build([]pdftest.Line{{X: 72, Y: 700, Text: "Myndigheten skall besluta."}}))

	res, err := e.Apply(context.Background(), doc, parse(t, `[{"page":1,"line":1,"old":"skall","new":"ska","motivation":"Modern form"}]`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(doc), "report_annotations.json"), res.Sidecar)

	data, err := os.ReadFile(res.Sidecar)
	require.NoError(t, err)
	var sidecar pdfmark.Sidecar
	require.NoError(t, json.Unmarshal(data, &sidecar))
	assert.Equal(t, doc, sidecar.Source)
	require.Len(t, sidecar.Highlights, 1)
	assert.Equal(t, "ska", sidecar.Highlights[0].Content, "motivations are left out without comments")
	assert.Equal(t, []pdfmark.Rect{{X0: 132, Y0: 700, X1: 157, Y1: 710}}, sidecar.Highlights[0].Rects)
}

func TestApplyPDFWithoutMatches(t *testing.T) {
	e := testEditor(t, nil)
	src := pdftest.Build([]pdftest.Line{{X: 72, Y: 700, Text: "Myndigheten skall besluta."}})
	doc := writeFile(t, "report.pdf", src)

	res, err := e.Apply(context.Background(), doc, parse(t, `[{"page":1,"old":"saknas","new":"y"}]`))
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusNoMatch}, statuses(res))

	out, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, src, out, "a PDF without highlights is copied unchanged")
}
