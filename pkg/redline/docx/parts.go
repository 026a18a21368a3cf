package docx

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Well-known part names.
const (
	ContentTypesPart  = "[Content_Types].xml"
	PackageRelsPart   = "_rels/.rels"
	DocumentPart      = "word/document.xml"
	StylesPart        = "word/styles.xml"
	SettingsPart      = "word/settings.xml"
	CommentsPart      = "word/comments.xml"
	FootnotesPart     = "word/footnotes.xml"
	EndnotesPart      = "word/endnotes.xml"
	FontTablePart     = "word/fontTable.xml"
	WebSettingsPart   = "word/webSettings.xml"
	NumberingPart     = "word/numbering.xml"
	ThemePart         = "word/theme/theme1.xml"
	CorePropsPart     = "docProps/core.xml"
	AppPropsPart      = "docProps/app.xml"
	relsPrefixBase    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	contentTypeMain   = "application/vnd.openxmlformats-officedocument.wordprocessingml."
	contentTypeDrawML = "application/vnd.openxmlformats-officedocument."
)

// Relationship types.
const (
	RelOfficeDocument = relsPrefixBase + "officeDocument"
	RelStyles         = relsPrefixBase + "styles"
	RelSettings       = relsPrefixBase + "settings"
	RelComments       = relsPrefixBase + "comments"
	RelFootnotes      = relsPrefixBase + "footnotes"
	RelEndnotes       = relsPrefixBase + "endnotes"
	RelFontTable      = relsPrefixBase + "fontTable"
	RelWebSettings    = relsPrefixBase + "webSettings"
	RelNumbering      = relsPrefixBase + "numbering"
	RelTheme          = relsPrefixBase + "theme"
	RelHeader         = relsPrefixBase + "header"
	RelFooter         = relsPrefixBase + "footer"
)

// Content types for the parts the pipeline may create or repair.
const (
	TypeDocument    = contentTypeMain + "document.main+xml"
	TypeStyles      = contentTypeMain + "styles+xml"
	TypeSettings    = contentTypeMain + "settings+xml"
	TypeComments    = contentTypeMain + "comments+xml"
	TypeFootnotes   = contentTypeMain + "footnotes+xml"
	TypeEndnotes    = contentTypeMain + "endnotes+xml"
	TypeFontTable   = contentTypeMain + "fontTable+xml"
	TypeWebSettings = contentTypeMain + "webSettings+xml"
	TypeNumbering   = contentTypeMain + "numbering+xml"
	TypeHeader      = contentTypeMain + "header+xml"
	TypeFooter      = contentTypeMain + "footer+xml"
	TypeTheme       = contentTypeDrawML + "theme+xml"
	TypeRels        = "application/vnd.openxmlformats-package.relationships+xml"
	TypeXML         = "application/xml"
	TypeCoreProps   = "application/vnd.openxmlformats-package.core-properties+xml"
	TypeAppProps    = contentTypeDrawML + "extended-properties+xml"
)

var (
	headerPartPattern = regexp.MustCompile(`^word/header(\d+)\.xml$`)
	footerPartPattern = regexp.MustCompile(`^word/footer(\d+)\.xml$`)
	themePartPattern  = regexp.MustCompile(`^word/theme/theme\d+\.xml$`)
)

var extensionTypes = map[string]string{
	"rels": TypeRels,
	"xml":  TypeXML,
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
	"svg":  "image/svg+xml",
	"bin":  "application/vnd.openxmlformats-officedocument.oleObject",
}

// KnownContentType returns the override content type Word expects for a part name.
func KnownContentType(name string) (string, bool) {
	switch name {
	case DocumentPart:
		return TypeDocument, true
	case StylesPart:
		return TypeStyles, true
	case SettingsPart:
		return TypeSettings, true
	case CommentsPart:
		return TypeComments, true
	case FootnotesPart:
		return TypeFootnotes, true
	case EndnotesPart:
		return TypeEndnotes, true
	case FontTablePart:
		return TypeFontTable, true
	case WebSettingsPart:
		return TypeWebSettings, true
	case NumberingPart:
		return TypeNumbering, true
	case CorePropsPart:
		return TypeCoreProps, true
	case AppPropsPart:
		return TypeAppProps, true
	}
	switch {
	case headerPartPattern.MatchString(name):
		return TypeHeader, true
	case footerPartPattern.MatchString(name):
		return TypeFooter, true
	case themePartPattern.MatchString(name):
		return TypeTheme, true
	}
	return "", false
}

// DefaultContentType returns the Default content type for an extension.
func DefaultContentType(ext string) (string, bool) {
	ct, ok := extensionTypes[strings.ToLower(ext)]
	return ct, ok
}

// MainDocument returns the name of the main document part, following the package
// relationship when present.
func (p *Package) MainDocument() string {
	rels, err := p.Relationships("")
	if err == nil {
		for _, rel := range rels.ByType(RelOfficeDocument) {
			if target := rels.Resolve(rel); p.Has(target) {
				return target
			}
		}
	}
	return DocumentPart
}

type orderedPart struct {
	Name  string
	Index int
}

// HeaderParts returns header part names ordered by their numeric suffix.
func (p *Package) HeaderParts() []string {
	return p.numberedParts(headerPartPattern)
}

// FooterParts returns footer part names ordered by their numeric suffix.
func (p *Package) FooterParts() []string {
	return p.numberedParts(footerPartPattern)
}

func (p *Package) numberedParts(pattern *regexp.Regexp) []string {
	parts := make([]orderedPart, 0)
	for _, name := range p.order {
		if matches := pattern.FindStringSubmatch(name); len(matches) == 2 {
			idx, err := strconv.Atoi(matches[1])
			if err == nil {
				parts = append(parts, orderedPart{Name: name, Index: idx})
			}
		}
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].Index == parts[j].Index {
			return parts[i].Name < parts[j].Name
		}
		return parts[i].Index < parts[j].Index
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, part.Name)
	}
	return out
}

// IsXMLPart reports whether a part name carries XML content.
func IsXMLPart(name string) bool {
	ext := path.Ext(name)
	return ext == ".xml" || ext == ".rels"
}

// StoryParts returns the parts holding document text: the main document followed by headers,
// footers, footnotes and endnotes.
func (p *Package) StoryParts() []string {
	out := []string{p.MainDocument()}
	out = append(out, p.HeaderParts()...)
	out = append(out, p.FooterParts()...)
	for _, name := range []string{FootnotesPart, EndnotesPart} {
		if p.Has(name) {
			out = append(out, name)
		}
	}
	return out
}
