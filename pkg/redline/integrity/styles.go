package integrity

// RequiredStyles are the base style ids every output package defines.
var RequiredStyles = []string{"Normal", "DefaultParagraphFont", "TableNormal", "CommentText", "InsertedText", "DeletedText"}

// StyleTranslations maps localised style ids written by Swedish Word installations to the base
// ids they stand for.
var StyleTranslations = map[string]string{
	"Standard":                    "Normal",
	"Standardstycketeckensnitt":   "DefaultParagraphFont",
	"Normaltabell":                "TableNormal",
	"Rubrik":                      "Title",
	"Rubrik1":                     "heading 1",
	"Rubrik2":                     "heading 2",
	"Rubrik3":                     "heading 3",
	"Rubrik4":                     "heading 4",
	"Rubrik5":                     "heading 5",
	"Rubrik6":                     "heading 6",
	"Rubrik7":                     "heading 7",
	"Rubrik8":                     "heading 8",
	"Rubrik9":                     "heading 9",
	"Underrubrik":                 "Subtitle",
	"Brödtext":                    "Body Text",
	"Fotnotstext":                 "footnote text",
	"Sidhuvud":                    "header",
	"Sidfot":                      "footer",
	"Citat":                       "Quote",
	"Ballongtext":                 "Balloon Text",
	"Beskrivning":                 "caption",
	"Slutkommentar":               "endnote text",
	"Tabellrubrik":                "Table Heading",
	"Innehåll1":                   "toc 1",
	"Innehåll2":                   "toc 2",
	"Innehåll3":                   "toc 3",
	"Innehållsförteckningsrubrik": "TOC Heading",
	"Rubrik1Char":                 "heading 1 Char",
	"Rubrik2Char":                 "heading 2 Char",
	"Rubrik3Char":                 "heading 3 Char",
	"RubrikChar":                  "Title Char",
	"UnderrubrikChar":             "Subtitle Char",
	"BrdtextChar":                 "Body Text Char",
	"BallongtextChar":             "Balloon Text Char",
	"Doldtext":                    "Hidden Text",
	"Hyperlnk":                    "Hyperlink",
	"FotnotstextChar":             "Footnote Text Char",
	"SlutkommentarChar":           "Endnote Text Char",
	"SidhuvudChar":                "Header Char",
	"SidfotChar":                  "Footer Char",
	"CitatChar":                   "Quote Char",
	"Platshållartext":             "Placeholder Text",
	"Ingenlista":                  "No List",
	"Punktlista":                  "List Bullet",
	"Punktlista2":                 "List Bullet 2",
	"Punktlista3":                 "List Bullet 3",
	"Numreradlista":               "List Number",
	"Numreradlista2":              "List Number 2",
	"Numreradlista3":              "List Number 3",
	"Sidnummer":                   "page number",
	"Tabellrutnät":                "Table Grid",
}

// styleDef describes a minimal definition injected for a missing base style.
type styleDef struct {
	kind      string
	name      string
	byDefault bool
	qFormat   bool
	table     bool
}

var baseStyles = map[string]styleDef{
	"Normal":               {kind: "paragraph", name: "Normal", byDefault: true, qFormat: true},
	"DefaultParagraphFont": {kind: "character", name: "Default Paragraph Font", byDefault: true},
	"TableNormal":          {kind: "table", name: "Normal Table", byDefault: true, table: true},
	"CommentText":          {kind: "paragraph", name: "annotation text"},
	"InsertedText":         {kind: "character", name: "Inserted Text"},
	"DeletedText":          {kind: "character", name: "Deleted Text"},
}

// canonical returns the base id a style id stands for.
func canonical(id string, translations map[string]string) string {
	if base, ok := translations[id]; ok {
		return base
	}
	return id
}
