package docx

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Relationship represents a relationship in the package.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// External reports whether the relationship points outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships is the relationship part of a source part.
type Relationships struct {
	pkg    *Package
	source string
	name   string
	doc    *etree.Document
}

// RelsPath returns the relationship part name of a source part. The empty source denotes the
// package itself.
func RelsPath(source string) string {
	if source == "" {
		return PackageRelsPart
	}
	dir, base := path.Split(source)
	return dir + "_rels/" + base + ".rels"
}

// Relationships returns the relationships of source. A missing relationship part yields an
// empty set that is written to the package on the first Add.
func (p *Package) Relationships(source string) (*Relationships, error) {
	name := RelsPath(source)
	rels := &Relationships{pkg: p, source: source, name: name}
	if !p.Has(name) {
		root := etree.NewElement("Relationships")
		root.CreateAttr("xmlns", "http://schemas.openxmlformats.org/package/2006/relationships")
		rels.doc = NewXMLDocument(root)
		return rels, nil
	}
	doc, err := p.XML(name)
	if err != nil {
		return nil, err
	}
	rels.doc = doc
	return rels, nil
}

// Part returns the relationship part name.
func (r *Relationships) Part() string {
	return r.name
}

// All returns every relationship in document order.
func (r *Relationships) All() []Relationship {
	var out []Relationship
	for _, el := range r.doc.Root().ChildElements() {
		if el.Tag != "Relationship" {
			continue
		}
		out = append(out, Relationship{
			ID:         el.SelectAttrValue("Id", ""),
			Type:       el.SelectAttrValue("Type", ""),
			Target:     el.SelectAttrValue("Target", ""),
			TargetMode: el.SelectAttrValue("TargetMode", ""),
		})
	}
	return out
}

// ByType returns the relationships of the given type.
func (r *Relationships) ByType(relType string) []Relationship {
	var out []Relationship
	for _, rel := range r.All() {
		if rel.Type == relType {
			out = append(out, rel)
		}
	}
	return out
}

// ByID looks up a relationship by id.
func (r *Relationships) ByID(id string) (Relationship, bool) {
	for _, rel := range r.All() {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// Resolve returns the package part name a relationship targets, or "" for external targets.
func (r *Relationships) Resolve(rel Relationship) string {
	if rel.External() {
		return ""
	}
	if strings.HasPrefix(rel.Target, "/") {
		return strings.TrimPrefix(rel.Target, "/")
	}
	return path.Join(path.Dir(r.source), rel.Target)
}

// Add appends a relationship and returns its new id.
func (r *Relationships) Add(relType, target string) string {
	used := make(map[string]bool)
	next := 1
	for _, rel := range r.All() {
		used[rel.ID] = true
		if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && n >= next {
			next = n + 1
		}
	}
	id := fmt.Sprintf("rId%d", next)
	for used[id] {
		next++
		id = fmt.Sprintf("rId%d", next)
	}

	el := r.doc.Root().CreateElement("Relationship")
	el.CreateAttr("Id", id)
	el.CreateAttr("Type", relType)
	el.CreateAttr("Target", target)

	if r.pkg.Has(r.name) {
		r.pkg.Touch(r.name)
	} else {
		r.pkg.SetXML(r.name, r.doc)
	}
	return id
}

// Target returns a relationship target for part as seen from source.
func Target(source, part string) string {
	rel, err := relativePath(path.Dir(source), part)
	if err != nil {
		return "/" + part
	}
	return rel
}

func relativePath(base, target string) (string, error) {
	if base == "." || base == "" {
		return target, nil
	}
	if strings.HasPrefix(target, base+"/") {
		return strings.TrimPrefix(target, base+"/"), nil
	}
	return "", errors.New("target outside source directory")
}
