// Package integrity checks and repairs the cross-part consistency of a WordprocessingML package:
// relationships, content types, comment id closure, base styles and revision settings.
//
// Validate never mutates the package. Repair is additive: it injects missing infrastructure and
// only removes comment references that point at no comment. Running Repair on a package it
// already repaired changes nothing.
package integrity

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// Severity indicates how serious an issue is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies the kind of an issue.
type Code string

const (
	CodeMalformedXML         Code = "MALFORMED_XML"
	CodeMissingPart          Code = "MISSING_PART"
	CodeMissingRelationship  Code = "MISSING_RELATIONSHIP"
	CodeDanglingRelationship Code = "DANGLING_RELATIONSHIP"
	CodeMissingContentType   Code = "MISSING_CONTENT_TYPE"
	CodeOrphanComment        Code = "ORPHAN_COMMENT_REFERENCE"
	CodeMissingStyle         Code = "MISSING_STYLE"
	CodeTrackingDisabled     Code = "TRACKING_DISABLED"
	CodeEmptyRsidPool        Code = "EMPTY_RSID_POOL"
)

// Issue is one finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Part     string   `json:"part,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Part == "" {
		return fmt.Sprintf("%s %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("%s %s %s: %s", i.Severity, i.Code, i.Part, i.Message)
}

// Report collects the issues of one validation.
type Report struct {
	Valid        bool    `json:"valid"`
	ErrorCount   int     `json:"error_count"`
	WarningCount int     `json:"warning_count"`
	Issues       []Issue `json:"issues"`
}

// Errors returns the issues of error severity.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Has reports whether the report contains an issue with the given code.
func (r *Report) Has(code Code) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

// Clean reports whether the report has no issues at all.
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// Options tunes validation and repair.
type Options struct {
	// Tracked requires the revision tracking flag and a session id pool in settings.
	Tracked        bool
	RequiredStyles []string
	Translations   map[string]string
}

// DefaultOptions returns options checking the base styles with the Swedish translation map.
func DefaultOptions(tracked bool) Options {
	return Options{Tracked: tracked, RequiredStyles: RequiredStyles, Translations: StyleTranslations}
}

// infra is a part the main document must reach through a relationship.
type infra struct {
	part     string
	relType  string
	severity Severity
}

var infrastructure = []infra{
	{docx.StylesPart, docx.RelStyles, SeverityError},
	{docx.SettingsPart, docx.RelSettings, SeverityError},
	{docx.CommentsPart, docx.RelComments, SeverityWarning},
	{docx.FontTablePart, docx.RelFontTable, SeverityWarning},
	{docx.WebSettingsPart, docx.RelWebSettings, SeverityWarning},
}

type validator struct {
	pkg       *docx.Package
	opts      Options
	report    *Report
	malformed map[string]bool
}

// Validate checks pkg and returns every issue found.
func Validate(pkg *docx.Package, opts Options) *Report {
	v := &validator{pkg: pkg, opts: opts, report: &Report{}, malformed: make(map[string]bool)}
	v.wellFormed()

	main := pkg.MainDocument()
	switch {
	case !pkg.Has(main):
		v.add(SeverityError, CodeMissingPart, main, "main document part is missing")
	case !v.malformed[main]:
		v.relationships(main)
		v.comments()
		v.styles(main)
		v.settings(main)
	}
	v.contentTypes()
	return v.finish()
}

func (v *validator) add(sev Severity, code Code, part, format string, args ...any) {
	v.report.Issues = append(v.report.Issues, Issue{Severity: sev, Code: code, Part: part, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) finish() *Report {
	issues := v.report.Issues
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Part != issues[j].Part {
			return issues[i].Part < issues[j].Part
		}
		if issues[i].Code != issues[j].Code {
			return issues[i].Code < issues[j].Code
		}
		return issues[i].Message < issues[j].Message
	})
	for _, i := range issues {
		if i.Severity == SeverityError {
			v.report.ErrorCount++
		} else {
			v.report.WarningCount++
		}
	}
	v.report.Valid = v.report.ErrorCount == 0
	return v.report
}

// xml returns the parsed part, or nil when it is missing or malformed.
func (v *validator) xml(name string) *etree.Element {
	if !v.pkg.Has(name) || v.malformed[name] {
		return nil
	}
	doc, err := v.pkg.XML(name)
	if err != nil {
		return nil
	}
	return doc.Root()
}

func (v *validator) wellFormed() {
	for _, name := range v.pkg.Names() {
		if !docx.IsXMLPart(name) {
			continue
		}
		if _, err := v.pkg.XML(name); err != nil {
			v.malformed[name] = true
			v.add(SeverityError, CodeMalformedXML, name, "%v", err)
		}
	}
}

func (v *validator) relationships(main string) {
	rels := v.rels(main)
	if rels == nil {
		return
	}
	for _, in := range infrastructure {
		name, linked := locate(v.pkg, rels, in)
		switch {
		case name == "":
			v.add(in.severity, CodeMissingPart, in.part, "part is missing")
		case !linked:
			v.add(in.severity, CodeMissingRelationship, rels.Part(), "no %s relationship to %s", path.Base(in.relType), name)
		}
	}
	for _, source := range []string{"", main} {
		r := v.rels(source)
		if r == nil {
			continue
		}
		for _, rel := range r.All() {
			if target := r.Resolve(rel); target != "" && !v.pkg.Has(target) {
				v.add(SeverityWarning, CodeDanglingRelationship, r.Part(), "%s points at missing %s", rel.ID, target)
			}
		}
	}
}

func (v *validator) rels(source string) *docx.Relationships {
	if v.malformed[docx.RelsPath(source)] {
		return nil
	}
	rels, err := v.pkg.Relationships(source)
	if err != nil {
		return nil
	}
	return rels
}

// locate finds an infrastructure part. linked reports whether the main document reaches it
// through a relationship.
func locate(pkg *docx.Package, rels *docx.Relationships, in infra) (name string, linked bool) {
	for _, rel := range rels.ByType(in.relType) {
		if target := rels.Resolve(rel); pkg.Has(target) {
			return target, true
		}
	}
	if pkg.Has(in.part) {
		return in.part, false
	}
	return "", false
}

func (v *validator) contentTypes() {
	if !v.pkg.Has(docx.ContentTypesPart) {
		v.add(SeverityError, CodeMissingPart, docx.ContentTypesPart, "content type table is missing")
		return
	}
	if v.malformed[docx.ContentTypesPart] {
		return
	}
	types, err := v.pkg.ContentTypes()
	if err != nil {
		return
	}
	for _, name := range v.pkg.Names() {
		if name == docx.ContentTypesPart {
			continue
		}
		if missingType(types, name) {
			v.add(SeverityError, CodeMissingContentType, name, "no content type registered")
		}
	}
}

// missingType reports whether a part lacks a usable content type. Parts Word knows by name need
// an override unless the extension default already names the right type.
func missingType(types *docx.ContentTypes, name string) bool {
	if types.Override(name) != "" {
		return false
	}
	def := types.Default(strings.TrimPrefix(path.Ext(name), "."))
	if want, ok := docx.KnownContentType(name); ok {
		return def != want
	}
	return def == ""
}

// commentIDs returns the ids defined in the comment store, or nil when there is none.
func commentIDs(pkg *docx.Package) map[string]bool {
	c, err := pkg.Comments()
	if err != nil || c == nil {
		return nil
	}
	return c.IDs()
}

var commentMarkers = []string{"commentReference", "commentRangeStart", "commentRangeEnd"}

// orphans returns the comment markers below root that point at no comment.
func orphans(root *etree.Element, defined map[string]bool) []*etree.Element {
	var out []*etree.Element
	for _, tag := range commentMarkers {
		for _, el := range wml.Descendants(root, tag) {
			if !defined[wml.ID(el)] {
				out = append(out, el)
			}
		}
	}
	return out
}

func (v *validator) comments() {
	defined := commentIDs(v.pkg)
	for _, name := range v.pkg.StoryParts() {
		root := v.xml(name)
		if root == nil {
			continue
		}
		for _, el := range orphans(root, defined) {
			v.add(SeverityError, CodeOrphanComment, name, "%s id=%s has no comment", el.Tag, wml.ID(el))
		}
	}
}

// styleIDs returns the canonical ids defined in a styles part.
func styleIDs(root *etree.Element, translations map[string]string) map[string]bool {
	ids := make(map[string]bool)
	for _, st := range wml.Children(root, "style") {
		if id := st.SelectAttrValue("w:styleId", ""); id != "" {
			ids[canonical(id, translations)] = true
		}
	}
	return ids
}

func (v *validator) styles(main string) {
	rels := v.rels(main)
	if rels == nil {
		return
	}
	name, _ := locate(v.pkg, rels, infrastructure[0])
	root := v.xml(name)
	if root == nil {
		return
	}
	ids := styleIDs(root, v.opts.Translations)
	for _, id := range v.opts.RequiredStyles {
		if !ids[id] {
			v.add(SeverityWarning, CodeMissingStyle, name, "style %s is not defined", id)
		}
	}
}

func (v *validator) settings(main string) {
	if !v.opts.Tracked {
		return
	}
	rels := v.rels(main)
	if rels == nil {
		return
	}
	name, _ := locate(v.pkg, rels, infrastructure[1])
	root := v.xml(name)
	if root == nil {
		return
	}
	if !tracking(root) {
		v.add(SeverityWarning, CodeTrackingDisabled, name, "revision tracking is not switched on")
	}
	if len(rsids(root)) == 0 {
		v.add(SeverityWarning, CodeEmptyRsidPool, name, "no revision session ids recorded")
	}
}

// tracking reports whether settings switch revision tracking on.
func tracking(settings *etree.Element) bool {
	track := wml.Child(settings, "trackRevisions")
	if track == nil {
		return false
	}
	switch strings.ToLower(wml.Val(track)) {
	case "0", "false", "off":
		return false
	}
	return true
}

// rsids returns the session ids recorded in settings.
func rsids(settings *etree.Element) []string {
	var out []string
	for _, el := range wml.Children(wml.Child(settings, "rsids"), "rsid") {
		if v := wml.Val(el); v != "" {
			out = append(out, v)
		}
	}
	return out
}
