package integrity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// ErrUnrepairable is returned when the main document cannot be read.
var ErrUnrepairable = errors.New("package cannot be repaired")

// syntheticRsids is the size of the session id pool written into settings that record none.
const syntheticRsids = 10

// Repair injects missing infrastructure into pkg and removes orphaned comment references. It
// returns a description of every mutation.
func Repair(pkg *docx.Package, opts Options) ([]string, error) {
	main := pkg.MainDocument()
	if !pkg.Has(main) {
		return nil, fmt.Errorf("%s: %w", main, ErrUnrepairable)
	}
	if _, err := pkg.XML(main); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrepairable, err)
	}
	r := &repairer{pkg: pkg, opts: opts, main: main}
	steps := []func() error{r.infrastructure, r.styles, r.settings, r.comments, r.contentTypes}
	for _, step := range steps {
		if err := step(); err != nil {
			return r.log, err
		}
	}
	return r.log, nil
}

type repairer struct {
	pkg  *docx.Package
	opts Options
	main string
	log  []string
}

func (r *repairer) logf(format string, args ...any) {
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

// infrastructure creates missing infrastructure parts and links unreferenced ones.
func (r *repairer) infrastructure() error {
	rels, err := r.pkg.Relationships(r.main)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnrepairable, err)
	}
	for _, in := range infrastructure {
		name, linked := locate(r.pkg, rels, in)
		if linked {
			continue
		}
		if name == "" {
			if in.part == docx.CommentsPart {
				if _, _, err := r.pkg.EnsureComments(); err != nil {
					return err
				}
				r.logf("created %s", docx.CommentsPart)
				continue
			}
			r.pkg.SetXML(in.part, docx.NewXMLDocument(emptyPart(in.part)))
			r.logf("created %s", in.part)
			name = in.part
		}
		id := rels.Add(in.relType, docx.Target(r.main, name))
		r.logf("added relationship %s to %s", id, name)
	}
	return nil
}

// emptyPart returns the root element of a minimal infrastructure part.
func emptyPart(name string) *etree.Element {
	tag := map[string]string{
		docx.StylesPart:      "w:styles",
		docx.SettingsPart:    "w:settings",
		docx.FontTablePart:   "w:fonts",
		docx.WebSettingsPart: "w:webSettings",
	}[name]
	root := etree.NewElement(tag)
	root.CreateAttr("xmlns:w", wml.NSMain)
	return root
}

// part returns the parsed infrastructure part, or nil when it is unusable.
func (r *repairer) part(in infra) (string, *etree.Element) {
	rels, err := r.pkg.Relationships(r.main)
	if err != nil {
		return "", nil
	}
	name, _ := locate(r.pkg, rels, in)
	if name == "" {
		return "", nil
	}
	doc, err := r.pkg.XML(name)
	if err != nil {
		return "", nil
	}
	return name, doc.Root()
}

// styles adds definitions for missing base styles.
func (r *repairer) styles() error {
	name, root := r.part(infrastructure[0])
	if root == nil {
		return nil
	}
	ids := styleIDs(root, r.opts.Translations)
	defaults := make(map[string]bool)
	for _, st := range wml.Children(root, "style") {
		if toggle(st.SelectAttrValue("w:default", "")) {
			defaults[st.SelectAttrValue("w:type", "")] = true
		}
	}
	added := 0
	for _, id := range r.opts.RequiredStyles {
		if ids[id] {
			continue
		}
		def, ok := baseStyles[id]
		if !ok {
			def = styleDef{kind: "paragraph", name: id}
		}
		st := root.CreateElement("w:style")
		st.CreateAttr("w:type", def.kind)
		if def.byDefault && !defaults[def.kind] {
			st.CreateAttr("w:default", "1")
			defaults[def.kind] = true
		}
		st.CreateAttr("w:styleId", id)
		st.CreateElement("w:name").CreateAttr("w:val", def.name)
		if def.qFormat {
			st.CreateElement("w:qFormat")
		}
		if def.table {
			tblPr := st.CreateElement("w:tblPr")
			tblPr.CreateElement("w:tblInd").CreateAttr("w:w", "0")
		}
		ids[id] = true
		added++
		r.logf("added style %s", id)
	}
	if added > 0 {
		r.pkg.Touch(name)
	}
	return nil
}

func toggle(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on":
		return true
	}
	return false
}

// settings switches revision tracking on and records a session id pool for tracked output.
func (r *repairer) settings() error {
	if !r.opts.Tracked {
		return nil
	}
	name, root := r.part(infrastructure[1])
	if root == nil {
		return nil
	}
	changed := false
	if !tracking(root) {
		if track := wml.Child(root, "trackRevisions"); track != nil {
			track.RemoveAttr("w:val")
		} else {
			wml.InsertOrdered(root, etree.NewElement("w:trackRevisions"), wml.SettingsOrder)
		}
		r.logf("switched on revision tracking in %s", name)
		changed = true
	}
	if len(rsids(root)) == 0 {
		pool := wml.Child(root, "rsids")
		if pool == nil {
			pool = etree.NewElement("w:rsids")
			wml.InsertOrdered(root, pool, wml.SettingsOrder)
		}
		seen := make(map[string]bool)
		var first string
		for len(seen) < syntheticRsids {
			v := newRsid()
			if seen[v] {
				continue
			}
			seen[v] = true
			if first == "" {
				first = v
			}
			pool.CreateElement("w:rsid").CreateAttr("w:val", v)
		}
		if wml.Child(pool, "rsidRoot") == nil {
			el := etree.NewElement("w:rsidRoot")
			el.CreateAttr("w:val", first)
			pool.InsertChildAt(0, el)
		}
		r.logf("added %d revision session ids to %s", syntheticRsids, name)
		changed = true
	}
	if changed {
		r.pkg.Touch(name)
	}
	return nil
}

func newRsid() string {
	u := uuid.New()
	return fmt.Sprintf("%08X", binary.BigEndian.Uint32(u[:4])|1)
}

// comments removes comment markers that point at no comment.
func (r *repairer) comments() error {
	defined := commentIDs(r.pkg)
	for _, name := range r.pkg.StoryParts() {
		doc, err := r.pkg.XML(name)
		if err != nil {
			continue
		}
		found := orphans(doc.Root(), defined)
		for _, el := range found {
			parent := el.Parent()
			parent.RemoveChild(el)
			if wml.Is(parent, "r") && empty(parent) {
				parent.Parent().RemoveChild(parent)
			}
			r.logf("removed orphan %s id=%s from %s", el.Tag, wml.ID(el), name)
		}
		if len(found) > 0 {
			r.pkg.Touch(name)
		}
	}
	return nil
}

// empty reports whether a run holds nothing but properties.
func empty(run *etree.Element) bool {
	for _, c := range run.ChildElements() {
		if !wml.Is(c, "rPr") {
			return false
		}
	}
	return true
}

// contentTypes registers a content type for every part that lacks one.
func (r *repairer) contentTypes() error {
	types, err := r.pkg.ContentTypes()
	if err != nil {
		return nil
	}
	for _, name := range r.pkg.Names() {
		if name == docx.ContentTypesPart || !missingType(types, name) {
			continue
		}
		if ct, ok := docx.KnownContentType(name); ok {
			types.AddOverride(name, ct)
			r.logf("added content type override for %s", name)
			continue
		}
		ext := strings.TrimPrefix(path.Ext(name), ".")
		if ct, ok := docx.DefaultContentType(ext); ok {
			types.AddDefault(ext, ct)
			r.logf("added default content type for .%s", ext)
		}
	}
	return nil
}

// Outcome is the result of one validate, repair, re-validate round.
type Outcome struct {
	Before    *Report  `json:"before"`
	Mutations []string `json:"mutations,omitempty"`
	After     *Report  `json:"after"`
}

// Fixed reports whether repair left no errors behind.
func (o *Outcome) Fixed() bool {
	return o.After.Valid
}

// ValidateRepair validates pkg, repairs it when anything was found and validates again.
func ValidateRepair(pkg *docx.Package, opts Options) (*Outcome, error) {
	out := &Outcome{Before: Validate(pkg, opts)}
	if out.Before.Clean() {
		out.After = out.Before
		return out, nil
	}
	mutations, err := Repair(pkg, opts)
	out.Mutations = mutations
	if err != nil {
		return out, err
	}
	out.After = Validate(pkg, opts)
	return out, nil
}
