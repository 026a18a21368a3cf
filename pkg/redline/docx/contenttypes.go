package docx

import (
	"path"
	"strings"

	"github.com/beevik/etree"
)

// ContentTypes wraps the [Content_Types].xml part.
type ContentTypes struct {
	pkg *Package
	doc *etree.Document
}

// ContentTypes returns the content type table, creating an empty one when the package lacks it.
func (p *Package) ContentTypes() (*ContentTypes, error) {
	if !p.Has(ContentTypesPart) {
		root := etree.NewElement("Types")
		root.CreateAttr("xmlns", "http://schemas.openxmlformats.org/package/2006/content-types")
		doc := NewXMLDocument(root)
		p.SetXML(ContentTypesPart, doc)
		return &ContentTypes{pkg: p, doc: doc}, nil
	}
	doc, err := p.XML(ContentTypesPart)
	if err != nil {
		return nil, err
	}
	return &ContentTypes{pkg: p, doc: doc}, nil
}

// TypeOf returns the content type a part resolves to, or "" when none applies.
func (c *ContentTypes) TypeOf(part string) string {
	if ct := c.Override(part); ct != "" {
		return ct
	}
	return c.Default(strings.TrimPrefix(path.Ext(part), "."))
}

// Override returns the override content type of a part.
func (c *ContentTypes) Override(part string) string {
	want := "/" + strings.TrimPrefix(part, "/")
	for _, el := range c.doc.Root().ChildElements() {
		if el.Tag == "Override" && strings.EqualFold(el.SelectAttrValue("PartName", ""), want) {
			return el.SelectAttrValue("ContentType", "")
		}
	}
	return ""
}

// Default returns the default content type registered for an extension.
func (c *ContentTypes) Default(ext string) string {
	for _, el := range c.doc.Root().ChildElements() {
		if el.Tag == "Default" && strings.EqualFold(el.SelectAttrValue("Extension", ""), ext) {
			return el.SelectAttrValue("ContentType", "")
		}
	}
	return ""
}

// AddOverride registers a content type for a part.
func (c *ContentTypes) AddOverride(part, contentType string) {
	el := c.doc.Root().CreateElement("Override")
	el.CreateAttr("PartName", "/"+strings.TrimPrefix(part, "/"))
	el.CreateAttr("ContentType", contentType)
	c.pkg.Touch(ContentTypesPart)
}

// AddDefault registers a content type for an extension. Defaults precede overrides.
func (c *ContentTypes) AddDefault(ext, contentType string) {
	el := etree.NewElement("Default")
	el.CreateAttr("Extension", ext)
	el.CreateAttr("ContentType", contentType)
	root := c.doc.Root()
	idx := len(root.Child)
	for _, child := range root.ChildElements() {
		if child.Tag == "Override" {
			idx = child.Index()
			break
		}
	}
	root.InsertChildAt(idx, el)
	c.pkg.Touch(ContentTypesPart)
}
