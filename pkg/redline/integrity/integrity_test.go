package integrity

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/internal/docxtest"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

func codes(r *Report) []Code {
	var out []Code
	for _, i := range r.Issues {
		out = append(out, i.Code)
	}
	return out
}

func dropRelationship(t *testing.T, pkg *docx.Package, relType string) {
	t.Helper()
	name := docx.RelsPath(docx.DocumentPart)
	doc, err := pkg.XML(name)
	require.NoError(t, err)
	for _, el := range doc.Root().ChildElements() {
		if el.SelectAttrValue("Type", "") == relType {
			doc.Root().RemoveChild(el)
		}
	}
	pkg.Touch(name)
}

func TestValidateHealthyPackage(t *testing.T) {
	pkg := docxtest.New().Paragraph("Hello").Header("Head").Footnote(1, "Note").Package()

	report := Validate(pkg, DefaultOptions(false))
	assert.True(t, report.Valid)
	assert.True(t, report.Clean(), "%v", report.Issues)
	assert.Empty(t, pkg.Dirty(), "validation does not mutate")
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name    string
		build   func(t *testing.T) *docx.Package
		opts    Options
		want    []Code
		invalid bool
	}{
		{
			name: "orphan comment reference without comment store",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().
					Raw(`<w:p>` + docxtest.Run("x") + `<w:r><w:commentReference w:id="3"/></w:r></w:p>`).
					Without(docx.CommentsPart).
					Package()
			},
			opts:    DefaultOptions(false),
			want:    []Code{CodeMissingPart, CodeOrphanComment},
			invalid: true,
		},
		{
			name: "localised style ids count as base styles",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().
					Styles("Standard", "Standardstycketeckensnitt", "Normaltabell", "CommentText", "InsertedText", "DeletedText").
					Package()
			},
			opts: DefaultOptions(false),
		},
		{
			name: "missing base styles are warnings",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().Styles("Normal", "TableNormal").Package()
			},
			opts: DefaultOptions(false),
			want: []Code{CodeMissingStyle, CodeMissingStyle, CodeMissingStyle, CodeMissingStyle},
		},
		{
			name: "unlinked settings",
			build: func(t *testing.T) *docx.Package {
				pkg := docxtest.New().Package()
				dropRelationship(t, pkg, docx.RelSettings)
				return pkg
			},
			opts:    DefaultOptions(false),
			want:    []Code{CodeMissingRelationship},
			invalid: true,
		},
		{
			name: "missing settings part",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().Without(docx.SettingsPart).Package()
			},
			opts:    DefaultOptions(true),
			want:    []Code{CodeMissingPart},
			invalid: true,
		},
		{
			name: "tracked output without tracking flag",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().Package()
			},
			opts: DefaultOptions(true),
			want: []Code{CodeEmptyRsidPool, CodeTrackingDisabled},
		},
		{
			name: "tracking switched off explicitly",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().Settings(`<w:trackRevisions w:val="0"/><w:rsids><w:rsid w:val="00112233"/></w:rsids>`).Package()
			},
			opts: DefaultOptions(true),
			want: []Code{CodeTrackingDisabled},
		},
		{
			name: "theme without override",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().Part(docx.ThemePart, `<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"/>`).Package()
			},
			opts:    DefaultOptions(false),
			want:    []Code{CodeMissingContentType},
			invalid: true,
		},
		{
			name: "malformed part",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().Part("word/glossary.xml", `<w:glossary><w:p></w:glossary>`).Package()
			},
			opts:    DefaultOptions(false),
			want:    []Code{CodeMalformedXML},
			invalid: true,
		},
		{
			name: "missing main document",
			build: func(t *testing.T) *docx.Package {
				return docxtest.New().Without(docx.DocumentPart).Package()
			},
			opts:    DefaultOptions(false),
			want:    []Code{CodeMissingPart},
			invalid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate(tt.build(t), tt.opts)
			assert.Equal(t, tt.want, codes(report), "%v", report.Issues)
			assert.Equal(t, !tt.invalid, report.Valid)
		})
	}
}

func TestValidateDanglingRelationship(t *testing.T) {
	pkg := docxtest.New().Package()
	rels, err := pkg.Relationships(docx.DocumentPart)
	require.NoError(t, err)
	rels.Add("http://schemas.openxmlformats.org/officeDocument/2006/relationships/image", "media/image1.png")

	report := Validate(pkg, DefaultOptions(false))
	require.Equal(t, []Code{CodeDanglingRelationship}, codes(report))
	assert.Contains(t, report.Issues[0].Message, "word/media/image1.png")
	assert.True(t, report.Valid)

	mutations, err := Repair(pkg, DefaultOptions(false))
	require.NoError(t, err)
	assert.Empty(t, mutations, "relationships are never removed")
}

func TestRepairHealthyPackageIsNoop(t *testing.T) {
	for _, tracked := range []bool{false, true} {
		t.Run(fmt.Sprint("tracked=", tracked), func(t *testing.T) {
			pkg := docxtest.New().Paragraph("Hello").
				Settings(`<w:trackRevisions/><w:rsids><w:rsidRoot w:val="00112233"/><w:rsid w:val="00112233"/></w:rsids>`).
				Package()
			mutations, err := Repair(pkg, DefaultOptions(tracked))
			require.NoError(t, err)
			assert.Empty(t, mutations)
			assert.Empty(t, pkg.Dirty())
		})
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	pkg := docxtest.New().
		Raw(`<w:p><w:commentRangeStart w:id="9"/>` + docxtest.Run("x") + `<w:commentRangeEnd w:id="9"/><w:r><w:commentReference w:id="9"/></w:r></w:p>`).
		Styles("Normal").
		Without(docx.CommentsPart).
		Without(docx.FontTablePart).
		Part(docx.ThemePart, `<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"/>`).
		Package()
	opts := DefaultOptions(true)

	first, err := Repair(pkg, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	report := Validate(pkg, opts)
	assert.True(t, report.Clean(), "%v", report.Issues)

	again, err := Repair(pkg, opts)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRepairCommentStore(t *testing.T) {
	pkg := docxtest.New().
		Raw(`<w:p>` + docxtest.Run("keep") + `<w:r><w:commentReference w:id="3"/></w:r>` +
			`<w:r><w:t>also</w:t><w:commentReference w:id="4"/></w:r></w:p>`).
		Without(docx.CommentsPart).
		Package()

	out, err := ValidateRepair(pkg, DefaultOptions(false))
	require.NoError(t, err)
	assert.False(t, out.Before.Valid)
	assert.True(t, out.Fixed())
	assert.True(t, out.After.Clean(), "%v", out.After.Issues)

	c, err := pkg.Comments()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Empty(t, c.IDs())

	doc, err := pkg.XML(docx.DocumentPart)
	require.NoError(t, err)
	p := wml.Descendants(doc.Root(), "p")[0]
	runs := wml.Children(p, "r")
	require.Len(t, runs, 2, "the reference-only run is dropped, text runs stay")
	assert.Equal(t, "keep", wml.RunText(runs[0]))
	assert.Equal(t, "also", wml.RunText(runs[1]))
}

func TestRepairStyles(t *testing.T) {
	pkg := docxtest.New().Styles("Standard", "CommentText").Package()

	mutations, err := Repair(pkg, DefaultOptions(false))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"added style DefaultParagraphFont",
		"added style TableNormal",
		"added style InsertedText",
		"added style DeletedText",
	}, mutations)

	doc, err := pkg.XML(docx.StylesPart)
	require.NoError(t, err)
	for _, st := range wml.Children(doc.Root(), "style") {
		if st.SelectAttrValue("w:styleId", "") == "TableNormal" {
			assert.Equal(t, "table", st.SelectAttrValue("w:type", ""))
			assert.Equal(t, "1", st.SelectAttrValue("w:default", ""))
			assert.NotNil(t, wml.Child(st, "tblPr"))
		}
	}
}

func TestRepairSettings(t *testing.T) {
	pkg := docxtest.New().Settings(`<w:trackRevisions w:val="false"/><w:defaultTabStop w:val="720"/>`).Package()

	mutations, err := Repair(pkg, DefaultOptions(true))
	require.NoError(t, err)
	assert.Len(t, mutations, 2)

	doc, err := pkg.XML(docx.SettingsPart)
	require.NoError(t, err)
	settings := doc.Root()
	assert.True(t, tracking(settings))
	assert.Len(t, rsids(settings), syntheticRsids)
	rsidRoot := wml.Child(wml.Child(settings, "rsids"), "rsidRoot")
	require.NotNil(t, rsidRoot)
	assert.Len(t, wml.Val(rsidRoot), 8)

	var order []string
	for _, c := range settings.ChildElements() {
		order = append(order, c.Tag)
	}
	assert.Equal(t, []string{"trackRevisions", "defaultTabStop", "rsids"}, order)
}

func TestRepairCreatesContentTypes(t *testing.T) {
	pkg := docxtest.New().Paragraph("x").Without(docx.ContentTypesPart).Package()
	require.True(t, Validate(pkg, DefaultOptions(false)).Has(CodeMissingPart))

	out, err := ValidateRepair(pkg, DefaultOptions(false))
	require.NoError(t, err)
	assert.True(t, out.After.Clean(), "%v", out.After.Issues)

	types, err := pkg.ContentTypes()
	require.NoError(t, err)
	assert.Equal(t, docx.TypeDocument, types.TypeOf(docx.DocumentPart))
	assert.Equal(t, docx.TypeRels, types.TypeOf(docx.PackageRelsPart))
}

func TestRepairUnrecoverable(t *testing.T) {
	pkg := docxtest.New().Without(docx.DocumentPart).Package()
	_, err := Repair(pkg, DefaultOptions(false))
	assert.True(t, errors.Is(err, ErrUnrepairable))

	pkg = docxtest.New().Part("word/glossary.xml", "<broken").Package()
	out, err := ValidateRepair(pkg, DefaultOptions(false))
	require.NoError(t, err)
	assert.False(t, out.Fixed())
	assert.True(t, out.After.Has(CodeMalformedXML))
}

func TestQuality(t *testing.T) {
	q := Quality(docxtest.New().Styles("Normal", "Standardstycketeckensnitt").Package())
	assert.Equal(t, []string{"CommentText", "DefaultParagraphFont", "DeletedText", "InsertedText", "TableNormal"}, q.MissingStyles)
	assert.False(t, q.TrackRevisions)
	assert.Zero(t, q.Rsids)
	assert.True(t, q.Sparse)

	var rsids strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&rsids, `<w:rsid w:val="00AA%04X"/>`, i)
	}
	q = Quality(docxtest.New().Settings(`<w:trackRevisions/><w:rsids>` + rsids.String() + `</w:rsids>`).Package())
	assert.Empty(t, q.MissingStyles)
	assert.True(t, q.TrackRevisions)
	assert.Equal(t, 12, q.Rsids)
	assert.False(t, q.Sparse)
}
