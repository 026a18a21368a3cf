package wml

import (
	"strings"

	"github.com/beevik/etree"
)

// Namespace URIs used by the redline stages.
const (
	NSMain          = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSW14           = "http://schemas.microsoft.com/office/word/2010/wordml"
	NSMC            = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	NSPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
)

// Is reports whether el is the w:<tag> element.
func Is(el *etree.Element, tag string) bool {
	if el == nil || el.Tag != tag {
		return false
	}
	if el.Space == "w" {
		return true
	}
	return el.NamespaceURI() == NSMain
}

// IsAny reports whether el is any of the given w: elements.
func IsAny(el *etree.Element, tags ...string) bool {
	for _, tag := range tags {
		if Is(el, tag) {
			return true
		}
	}
	return false
}

// Child returns the first w:<tag> child of el.
func Child(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if Is(c, tag) {
			return c
		}
	}
	return nil
}

// Children returns every w:<tag> child of el.
func Children(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	if el == nil {
		return out
	}
	for _, c := range el.ChildElements() {
		if Is(c, tag) {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every w:<tag> element below el in document order.
func Descendants(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if Is(c, tag) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if el != nil {
		walk(el)
	}
	return out
}

// Val returns the w:val attribute of el, or "" when absent.
func Val(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("w:val", "")
}

// ID returns the w:id attribute of el.
func ID(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("w:id", "")
}

// EnsureNamespace declares xmlns:prefix on root when it is missing.
func EnsureNamespace(root *etree.Element, prefix, uri string) bool {
	if root.SelectAttr("xmlns:"+prefix) != nil {
		return false
	}
	root.CreateAttr("xmlns:"+prefix, uri)
	return true
}

// EnsureIgnorable declares prefix and lists it in mc:Ignorable so consumers that do not know the
// namespace skip its attributes instead of rejecting the part.
func EnsureIgnorable(root *etree.Element, prefix, uri string) bool {
	changed := EnsureNamespace(root, prefix, uri)
	if EnsureNamespace(root, "mc", NSMC) {
		changed = true
	}
	current := root.SelectAttrValue("mc:Ignorable", "")
	for _, p := range strings.Fields(current) {
		if p == prefix {
			return changed
		}
	}
	root.CreateAttr("mc:Ignorable", strings.TrimSpace(current+" "+prefix))
	return true
}
