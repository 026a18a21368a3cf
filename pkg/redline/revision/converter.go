// Package revision turns the visual markup written by the markup stage into native WordprocessingML
// revisions (w:ins and w:del), and gives the package the settings and editing-session identifiers
// a word processor expects from a document that was edited with change tracking on.
package revision

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// ErrNested is returned when a revision wrapper ends up inside another one.
var ErrNested = errors.New("nested revision")

// DefaultAuthor is written on revisions when no author is configured.
const DefaultAuthor = "Redline"

// restorable lists the infrastructure parts copied back from the original package when the
// marked-up package lost them.
var restorable = []string{
	docx.StylesPart,
	docx.SettingsPart,
	docx.FontTablePart,
	docx.WebSettingsPart,
	"word/_rels/document.xml.rels",
	docx.ThemePart,
}

// Converter converts markup runs into native revisions.
type Converter struct {
	Author string
	// Now supplies revision timestamps; the caller fixes the time zone.
	Now func() time.Time
	// Rand drives paraId, textId and rsid generation. Nil seeds a generator from a random UUID.
	Rand *rand.Rand
	// UpdateFields asks the consumer to refresh fields on open.
	UpdateFields bool
}

// NewConverter returns a converter with the default author and the wall clock.
func NewConverter(author string) *Converter {
	if author == "" {
		author = DefaultAuthor
	}
	return &Converter{Author: author, Now: time.Now, UpdateFields: true}
}

// Report summarises one conversion.
type Report struct {
	Insertions int      `json:"insertions"`
	Deletions  int      `json:"deletions"`
	Restored   []string `json:"restored,omitempty"`
	Paragraphs int      `json:"paragraphs"`
	Rsids      int      `json:"rsids"`
	Parts      []string `json:"parts,omitempty"`
}

// Convert rewrites pkg in place. original is the unmodified source package used to restore lost
// infrastructure parts; it may be nil.
func (c *Converter) Convert(pkg, original *docx.Package) (*Report, error) {
	rep := &Report{}
	rng := c.Rand
	if rng == nil {
		rng = seeded()
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	author := c.Author
	if author == "" {
		author = DefaultAuthor
	}

	if original != nil {
		restored, err := restore(pkg, original)
		if err != nil {
			return nil, err
		}
		rep.Restored = restored
	}
	if err := ensureThemeRel(pkg); err != nil {
		return nil, err
	}

	main := pkg.MainDocument()
	doc, err := pkg.XML(main)
	if err != nil {
		return nil, fmt.Errorf("failed to read main document: %w", err)
	}
	body := wml.Child(doc.Root(), "body")
	if body == nil {
		return nil, fmt.Errorf("%s: no body element", main)
	}

	stories := pkg.StoryParts()
	docs := make(map[string]*etree.Document, len(stories))
	for _, name := range stories {
		d, err := pkg.XML(name)
		if err != nil {
			return nil, err
		}
		docs[name] = d
	}

	paragraphs := wml.Descendants(body, "p")
	rep.Paragraphs = len(paragraphs)

	settings, err := ensureSettings(pkg, main)
	if err != nil {
		return nil, err
	}
	gen := newGenerator(rng)
	pool, session := settings.pool(gen, poolSize(len(paragraphs)))
	rep.Rsids = len(pool)

	tr := &tracker{
		author: author,
		date:   now().Format(time.RFC3339),
		rsid:   session,
		next:   nextRevisionID(pkg, stories),
	}
	for _, name := range stories {
		root := docs[name].Root()
		ins, del := tr.convert(root)
		if ins+del == 0 {
			continue
		}
		rep.Insertions += ins
		rep.Deletions += del
		rep.Parts = append(rep.Parts, name)
		pkg.Touch(name)
	}
	for _, name := range stories {
		if err := checkNesting(docs[name].Root()); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	settings.apply(c.UpdateFields)
	pkg.Touch(settings.name)

	ids := newParaIDs(gen)
	for _, name := range stories {
		ids.collect(docs[name].Root())
	}
	for _, name := range stories {
		root := docs[name].Root()
		wml.EnsureIgnorable(root, "w14", wml.NSW14)
		var paras []*etree.Element
		if name == main {
			paras = paragraphs
		} else {
			paras = wml.Descendants(root, "p")
		}
		ids.assign(paras, pool)
		pkg.Touch(name)
	}

	canonicalStyle(body, defaultParagraphStyle(pkg))
	for _, name := range stories {
		cleanup(docs[name].Root())
	}
	return rep, nil
}

// seeded returns a generator seeded from a random UUID.
func seeded() *rand.Rand {
	u := uuid.New()
	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(u[:8]), binary.BigEndian.Uint64(u[8:])))
}

// poolSize grows the rsid pool with the paragraph count.
func poolSize(paragraphs int) int {
	switch {
	case paragraphs < 20:
		return 50
	case paragraphs < 100:
		return 100
	}
	return 200
}

// restore copies missing infrastructure parts and custom XML from the original package.
func restore(pkg, original *docx.Package) ([]string, error) {
	var names []string
	for _, name := range restorable {
		if !pkg.Has(name) && original.Has(name) {
			names = append(names, name)
		}
	}
	for _, name := range original.PartsMatching(func(n string) bool { return strings.HasPrefix(n, "customXml/") }) {
		if !pkg.Has(name) {
			names = append(names, name)
		}
	}
	for _, name := range names {
		data, err := original.Raw(name)
		if err != nil {
			return nil, err
		}
		pkg.SetRaw(name, data)
	}
	return names, nil
}

// ensureThemeRel links the theme part from the main document when nothing does.
func ensureThemeRel(pkg *docx.Package) error {
	if !pkg.Has(docx.ThemePart) {
		return nil
	}
	main := pkg.MainDocument()
	rels, err := pkg.Relationships(main)
	if err != nil {
		return err
	}
	if len(rels.ByType(docx.RelTheme)) == 0 {
		rels.Add(docx.RelTheme, docx.Target(main, docx.ThemePart))
	}
	return nil
}

// nextRevisionID returns one more than the largest numeric annotation id in the package.
func nextRevisionID(pkg *docx.Package, stories []string) int {
	names := append([]string(nil), stories...)
	if c, err := pkg.Comments(); err == nil && c != nil {
		names = append(names, c.Part())
	}
	highest := -1
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			if !wml.IsAny(c, "footnote", "endnote", "footnoteReference", "endnoteReference") {
				if n, err := strconv.Atoi(wml.ID(c)); err == nil && n > highest {
					highest = n
				}
			}
			walk(c)
		}
	}
	for _, name := range names {
		if doc, err := pkg.XML(name); err == nil {
			walk(doc.Root())
		}
	}
	return highest + 1
}

// checkNesting fails when a revision wrapper sits inside another one.
func checkNesting(root *etree.Element) error {
	for _, outer := range revisions(root) {
		if inner := revisions(outer); len(inner) > 0 {
			return fmt.Errorf("w:%s %s inside w:%s %s: %w", inner[0].Tag, wml.ID(inner[0]), outer.Tag, wml.ID(outer), ErrNested)
		}
	}
	return nil
}

func revisions(el *etree.Element) []*etree.Element {
	out := wml.Descendants(el, "ins")
	return append(out, wml.Descendants(el, "del")...)
}

// defaultParagraphStyle returns the id of the default paragraph style, or Normal.
func defaultParagraphStyle(pkg *docx.Package) string {
	doc, err := pkg.XML(docx.StylesPart)
	if err != nil {
		return "Normal"
	}
	for _, st := range wml.Children(doc.Root(), "style") {
		if st.SelectAttrValue("w:type", "") != "paragraph" {
			continue
		}
		switch st.SelectAttrValue("w:default", "") {
		case "1", "true", "on":
			if id := st.SelectAttrValue("w:styleId", ""); id != "" {
				return id
			}
		}
	}
	return "Normal"
}

// canonicalStyle gives body paragraphs without a paragraph style the default one.
func canonicalStyle(body *etree.Element, styleID string) {
	for _, p := range wml.Children(body, "p") {
		props := wml.Child(p, "pPr")
		if props == nil {
			props = etree.NewElement("w:pPr")
			p.InsertChildAt(0, props)
		}
		if wml.Child(props, "pStyle") != nil {
			continue
		}
		st := etree.NewElement("w:pStyle")
		st.CreateAttr("w:val", styleID)
		wml.InsertOrdered(props, st, wml.ParagraphPropsOrder)
	}
}

// cleanup drops proofing marks, leftover kept run properties and empty run properties.
func cleanup(root *etree.Element) {
	wml.ClearKept(root)
	for _, el := range wml.Descendants(root, "proofErr") {
		el.Parent().RemoveChild(el)
	}
	for _, el := range wml.Descendants(root, "noProof") {
		el.Parent().RemoveChild(el)
	}
	for _, props := range wml.Descendants(root, "rPr") {
		if len(props.ChildElements()) == 0 && len(props.Attr) == 0 {
			props.Parent().RemoveChild(props)
		}
	}
}
