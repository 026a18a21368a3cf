// Package docxtest builds small in-memory DOCX packages for tests.
package docxtest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
)

const (
	nsDecl = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape"`
	header = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// RequiredStyles is the style set a healthy fixture defines.
var RequiredStyles = []string{"Normal", "DefaultParagraphFont", "TableNormal", "CommentText", "InsertedText", "DeletedText"}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// Escape escapes text for element content.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Run returns a plain text run.
func Run(text string) string {
	return `<w:r><w:t xml:space="preserve">` + Escape(text) + `</w:t></w:r>`
}

// StyledRun returns a run with the given raw rPr children.
func StyledRun(props, text string) string {
	return `<w:r><w:rPr>` + props + `</w:rPr><w:t xml:space="preserve">` + Escape(text) + `</w:t></w:r>`
}

// Para returns a paragraph with one run per text.
func Para(texts ...string) string {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	for _, t := range texts {
		sb.WriteString(Run(t))
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

// Builder assembles a package.
type Builder struct {
	body      []string
	headers   [][]string
	footers   [][]string
	footnotes []footnote
	comments  []string
	styles    []string
	settings  string
	without   map[string]bool
	extra     map[string]string
}

type footnote struct {
	id   int
	text string
}

// New returns a builder with the required styles, settings, font table, web settings and an
// empty comment store.
func New() *Builder {
	return &Builder{
		styles:   RequiredStyles,
		settings: `<w:defaultTabStop w:val="720"/>`,
		without:  make(map[string]bool),
		extra:    make(map[string]string),
	}
}

// Paragraph adds a body paragraph with one run per text.
func (b *Builder) Paragraph(texts ...string) *Builder {
	b.body = append(b.body, Para(texts...))
	return b
}

// Raw adds raw body XML.
func (b *Builder) Raw(xml string) *Builder {
	b.body = append(b.body, xml)
	return b
}

// Table adds a table; each row lists its cell texts.
func (b *Builder) Table(rows ...[]string) *Builder {
	var sb strings.Builder
	sb.WriteString("<w:tbl><w:tblPr/>")
	for _, row := range rows {
		sb.WriteString("<w:tr>")
		for _, cell := range row {
			sb.WriteString("<w:tc><w:tcPr/>")
			for _, line := range strings.Split(cell, "\n") {
				if line == "" {
					sb.WriteString("<w:p/>")
					continue
				}
				sb.WriteString(Para(line))
			}
			sb.WriteString("</w:tc>")
		}
		sb.WriteString("</w:tr>")
	}
	sb.WriteString("</w:tbl>")
	b.body = append(b.body, sb.String())
	return b
}

// Drawing returns a run holding an anchored drawing with a text box of one paragraph per line.
func Drawing(lines ...string) string {
	var sb strings.Builder
	sb.WriteString(`<w:r><w:drawing><wp:anchor><a:graphic><a:graphicData><wps:wsp><wps:txbx><w:txbxContent>`)
	for _, line := range lines {
		sb.WriteString(Para(line))
	}
	sb.WriteString(`</w:txbxContent></wps:txbx></wps:wsp></a:graphicData></a:graphic></wp:anchor></w:drawing></w:r>`)
	return sb.String()
}

// TextBox adds a body paragraph holding a drawing with a text box.
func (b *Builder) TextBox(lines ...string) *Builder {
	b.body = append(b.body, "<w:p>"+Drawing(lines...)+"</w:p>")
	return b
}

// Header adds a header part with one paragraph per text.
func (b *Builder) Header(texts ...string) *Builder {
	b.headers = append(b.headers, texts)
	return b
}

// Footer adds a footer part with one paragraph per text.
func (b *Builder) Footer(texts ...string) *Builder {
	b.footers = append(b.footers, texts)
	return b
}

// Footnote adds a footnote with the given xml id.
func (b *Builder) Footnote(id int, text string) *Builder {
	b.footnotes = append(b.footnotes, footnote{id: id, text: text})
	return b
}

// Comment adds an existing comment definition with the given id.
func (b *Builder) Comment(id string) *Builder {
	b.comments = append(b.comments, id)
	return b
}

// Styles replaces the defined style ids.
func (b *Builder) Styles(ids ...string) *Builder {
	b.styles = ids
	return b
}

// Settings replaces the raw children of w:settings.
func (b *Builder) Settings(xml string) *Builder {
	b.settings = xml
	return b
}

// Without drops a part from the package together with its relationship and override.
func (b *Builder) Without(part string) *Builder {
	b.without[part] = true
	return b
}

// Part adds an arbitrary part.
func (b *Builder) Part(name, content string) *Builder {
	b.extra[name] = content
	return b
}

type entry struct {
	name, content, relType, ctype string
}

// Bytes returns the package zip bytes.
func (b *Builder) Bytes() []byte {
	var parts []entry
	add := func(name, content, relType, ctype string) {
		if b.without[name] {
			return
		}
		parts = append(parts, entry{name, content, relType, ctype})
	}

	add(docx.DocumentPart, header+`<w:document `+nsDecl+`><w:body>`+strings.Join(b.body, "")+
		`<w:sectPr/></w:body></w:document>`, "", docx.TypeDocument)
	add(docx.StylesPart, header+`<w:styles `+nsDecl+`>`+b.styleXML()+`</w:styles>`, docx.RelStyles, docx.TypeStyles)
	add(docx.SettingsPart, header+`<w:settings `+nsDecl+`>`+b.settings+`</w:settings>`, docx.RelSettings, docx.TypeSettings)
	add(docx.FontTablePart, header+`<w:fonts `+nsDecl+`/>`, docx.RelFontTable, docx.TypeFontTable)
	add(docx.WebSettingsPart, header+`<w:webSettings `+nsDecl+`/>`, docx.RelWebSettings, docx.TypeWebSettings)
	add(docx.CommentsPart, header+`<w:comments `+nsDecl+`>`+b.commentXML()+`</w:comments>`, docx.RelComments, docx.TypeComments)
	for i, texts := range b.headers {
		add(fmt.Sprintf("word/header%d.xml", i+1), header+`<w:hdr `+nsDecl+`>`+paras(texts)+`</w:hdr>`, docx.RelHeader, docx.TypeHeader)
	}
	for i, texts := range b.footers {
		add(fmt.Sprintf("word/footer%d.xml", i+1), header+`<w:ftr `+nsDecl+`>`+paras(texts)+`</w:ftr>`, docx.RelFooter, docx.TypeFooter)
	}
	if len(b.footnotes) > 0 {
		add(docx.FootnotesPart, header+`<w:footnotes `+nsDecl+`>`+b.footnoteXML()+`</w:footnotes>`, docx.RelFootnotes, docx.TypeFootnotes)
	}
	names := make([]string, 0, len(b.extra))
	for name := range b.extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(name, b.extra[name], "", "")
	}

	var types, docRels strings.Builder
	types.WriteString(header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	types.WriteString(`<Default Extension="rels" ContentType="` + docx.TypeRels + `"/>`)
	types.WriteString(`<Default Extension="xml" ContentType="` + docx.TypeXML + `"/>`)
	docRels.WriteString(header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, p := range parts {
		if p.ctype != "" {
			types.WriteString(`<Override PartName="/` + p.name + `" ContentType="` + p.ctype + `"/>`)
		}
		if p.relType != "" {
			fmt.Fprintf(&docRels, `<Relationship Id="rId%d" Type="%s" Target="%s"/>`, i+1, p.relType, strings.TrimPrefix(p.name, "word/"))
		}
	}
	types.WriteString(`</Types>`)
	docRels.WriteString(`</Relationships>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if !b.without[docx.ContentTypesPart] {
		write(docx.ContentTypesPart, types.String())
	}
	write(docx.PackageRelsPart, header+`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="`+docx.RelOfficeDocument+`" Target="word/document.xml"/></Relationships>`)
	write("word/_rels/document.xml.rels", docRels.String())
	for _, p := range parts {
		write(p.name, p.content)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Package returns the built package opened with docx.FromBytes.
func (b *Builder) Package() *docx.Package {
	pkg, err := docx.FromBytes(b.Bytes())
	if err != nil {
		panic(err)
	}
	return pkg
}

func (b *Builder) styleXML() string {
	var sb strings.Builder
	for _, id := range b.styles {
		kind := "paragraph"
		switch id {
		case "DefaultParagraphFont", "InsertedText", "DeletedText":
			kind = "character"
		case "TableNormal":
			kind = "table"
		}
		fmt.Fprintf(&sb, `<w:style w:type="%s" w:styleId="%s"><w:name w:val="%s"/></w:style>`, kind, id, id)
	}
	return sb.String()
}

func (b *Builder) commentXML() string {
	var sb strings.Builder
	for _, id := range b.comments {
		fmt.Fprintf(&sb, `<w:comment w:id="%s" w:author="Fixture"><w:p>%s</w:p></w:comment>`, id, Run("note"))
	}
	return sb.String()
}

func (b *Builder) footnoteXML() string {
	var sb strings.Builder
	sb.WriteString(`<w:footnote w:type="separator" w:id="-1"><w:p><w:r><w:separator/></w:r></w:p></w:footnote>`)
	sb.WriteString(`<w:footnote w:type="continuationSeparator" w:id="0"><w:p><w:r><w:continuationSeparator/></w:r></w:p></w:footnote>`)
	for _, fn := range b.footnotes {
		fmt.Fprintf(&sb, `<w:footnote w:id="%d">%s</w:footnote>`, fn.id, Para(fn.text))
	}
	return sb.String()
}

func paras(texts []string) string {
	var sb strings.Builder
	for _, t := range texts {
		sb.WriteString(Para(t))
	}
	return sb.String()
}
