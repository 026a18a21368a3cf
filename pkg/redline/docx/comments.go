package docx

import (
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// Comment is the metadata of a new comment.
type Comment struct {
	Author   string
	Initials string
	Date     time.Time
	Text     string
}

// Comments is the comment store of the main document.
type Comments struct {
	pkg  *Package
	name string
	doc  *etree.Document
}

// Comments returns the existing comment store, or nil when the package has none.
func (p *Package) Comments() (*Comments, error) {
	name := p.commentsPart()
	if name == "" {
		return nil, nil
	}
	doc, err := p.XML(name)
	if err != nil {
		return nil, err
	}
	return &Comments{pkg: p, name: name, doc: doc}, nil
}

// EnsureComments returns the comment store, creating an empty one together with its
// relationship and content type override when missing. created reports whether it did so.
func (p *Package) EnsureComments() (c *Comments, created bool, err error) {
	if c, err = p.Comments(); err != nil || c != nil {
		return c, false, err
	}

	root := etree.NewElement("w:comments")
	root.CreateAttr("xmlns:w", wml.NSMain)
	root.CreateAttr("xmlns:r", wml.NSRelationships)
	doc := NewXMLDocument(root)
	p.SetXML(CommentsPart, doc)

	main := p.MainDocument()
	rels, err := p.Relationships(main)
	if err != nil {
		return nil, false, err
	}
	if len(rels.ByType(RelComments)) == 0 {
		rels.Add(RelComments, Target(main, CommentsPart))
	}
	types, err := p.ContentTypes()
	if err != nil {
		return nil, false, err
	}
	if types.Override(CommentsPart) == "" {
		types.AddOverride(CommentsPart, TypeComments)
	}
	return &Comments{pkg: p, name: CommentsPart, doc: doc}, true, nil
}

func (p *Package) commentsPart() string {
	main := p.MainDocument()
	if rels, err := p.Relationships(main); err == nil {
		for _, rel := range rels.ByType(RelComments) {
			if target := rels.Resolve(rel); p.Has(target) {
				return target
			}
		}
	}
	if p.Has(CommentsPart) {
		return CommentsPart
	}
	return ""
}

// Part returns the comment part name.
func (c *Comments) Part() string {
	return c.name
}

// IDs returns the ids of every defined comment.
func (c *Comments) IDs() map[string]bool {
	ids := make(map[string]bool)
	for _, el := range wml.Children(c.doc.Root(), "comment") {
		ids[wml.ID(el)] = true
	}
	return ids
}

// UsedIDs returns every comment id that is defined or referenced by a comment marker in a
// story part. Markers without a definition still claim their id.
func (c *Comments) UsedIDs() map[string]bool {
	ids := c.IDs()
	for _, name := range c.pkg.StoryParts() {
		doc, err := c.pkg.XML(name)
		if err != nil {
			continue
		}
		for _, tag := range []string{"commentRangeStart", "commentRangeEnd", "commentReference"} {
			for _, el := range wml.Descendants(doc.Root(), tag) {
				ids[wml.ID(el)] = true
			}
		}
	}
	return ids
}

// Add appends a comment and returns its id, one past the highest id in use.
func (c *Comments) Add(cm Comment) string {
	next := 0
	for id := range c.UsedIDs() {
		if n, err := strconv.Atoi(id); err == nil && n >= next {
			next = n + 1
		}
	}
	id := strconv.Itoa(next)

	el := c.doc.Root().CreateElement("w:comment")
	el.CreateAttr("w:id", id)
	el.CreateAttr("w:author", cm.Author)
	if !cm.Date.IsZero() {
		el.CreateAttr("w:date", cm.Date.Format(time.RFC3339))
	}
	if cm.Initials != "" {
		el.CreateAttr("w:initials", cm.Initials)
	}
	for i, line := range strings.Split(cm.Text, "\n") {
		p := el.CreateElement("w:p")
		p.CreateElement("w:pPr").CreateElement("w:pStyle").CreateAttr("w:val", "CommentText")
		if i == 0 {
			p.CreateElement("w:r").CreateElement("w:annotationRef")
		}
		p.AddChild(wml.NewRun(nil, line, false))
	}
	c.pkg.Touch(c.name)
	return id
}
