package wml

import (
	"strings"

	"github.com/beevik/etree"
)

// Markup colours written by the markup stage and recognised by the revision converter.
const (
	ColorDeleted  = "FF0000"
	ColorInserted = "008000"
)

// Mark classifies a run by its visual markup.
type Mark int

const (
	MarkNone Mark = iota
	MarkDeleted
	MarkInserted
)

func (m Mark) String() string {
	switch m {
	case MarkDeleted:
		return "deleted"
	case MarkInserted:
		return "inserted"
	default:
		return "none"
	}
}

// InsertStyle selects how inserted text is painted.
type InsertStyle int

const (
	// InsertGreen paints insertions green; used for plain markup output.
	InsertGreen InsertStyle = iota
	// InsertUnderlined paints insertions red and underlined; used ahead of native revision conversion.
	InsertUnderlined
)

// IsTextRun reports whether r is a w:r whose content is only editable text.
// Runs holding references, drawings, fields or page breaks are payload and are never rewritten.
func IsTextRun(r *etree.Element) bool {
	if !Is(r, "r") {
		return false
	}
	for _, c := range r.ChildElements() {
		switch {
		case IsAny(c, "rPr", "t", "tab", "cr", "lastRenderedPageBreak"):
		case Is(c, "br"):
			if t := c.SelectAttrValue("w:type", ""); t != "" && t != "textWrapping" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// RunText returns the editable text of a run.
func RunText(r *etree.Element) string {
	var sb strings.Builder
	for _, c := range r.ChildElements() {
		switch {
		case Is(c, "t"):
			sb.WriteString(c.Text())
		case Is(c, "tab"):
			sb.WriteByte('\t')
		case IsAny(c, "br", "cr"):
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParagraphText returns the text of the text runs that are direct children of p.
func ParagraphText(p *etree.Element) string {
	var sb strings.Builder
	for _, c := range p.ChildElements() {
		if IsTextRun(c) {
			sb.WriteString(RunText(c))
		}
	}
	return sb.String()
}

// RunProps returns the w:rPr of r, or nil.
func RunProps(r *etree.Element) *etree.Element {
	return Child(r, "rPr")
}

// NewRun builds a w:r carrying a copy of props and text. Tabs and newlines become w:tab and
// w:br. When deleted is set the text is written as w:delText.
func NewRun(props *etree.Element, text string, deleted bool) *etree.Element {
	r := etree.NewElement("w:r")
	if props != nil && len(props.ChildElements()) > 0 {
		r.AddChild(props.Copy())
	}
	textTag := "w:t"
	if deleted {
		textTag = "w:delText"
	}
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		t := r.CreateElement(textTag)
		s := buf.String()
		if strings.TrimSpace(s) != s {
			t.CreateAttr("xml:space", "preserve")
		}
		t.SetText(s)
		buf.Reset()
	}
	for _, ch := range text {
		switch ch {
		case '\t':
			flush()
			r.CreateElement("w:tab")
		case '\n':
			flush()
			r.CreateElement("w:br")
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return r
}

// Attributes that carry a run's own colour and underline on a painted rPr until RestoreProps
// puts them back. They only live between the markup stage and revision conversion.
const (
	keptColor     = "redline-color"
	keptUnderline = "redline-u"
)

// PlainProps returns a copy of props without strike-through and without markup colours. The
// run's own colour and underline are kept. An empty rPr is returned when props is nil.
func PlainProps(props *etree.Element) *etree.Element {
	out := etree.NewElement("w:rPr")
	if props == nil {
		return out
	}
	out = props.Copy()
	for _, c := range out.ChildElements() {
		switch {
		case IsAny(c, "strike", "dstrike"):
			out.RemoveChild(c)
		case Is(c, "color") && isMarkupColor(Val(c)):
			out.RemoveChild(c)
		}
	}
	return out
}

// KeepProps records the colour and underline of src on painted so RestoreProps can put them
// back once the markup is replaced by revision marks.
func KeepProps(painted, src *etree.Element) *etree.Element {
	if src == nil {
		return painted
	}
	if c := Child(src, "color"); c != nil && Val(c) != "" {
		painted.CreateAttr(keptColor, Val(c))
	}
	if u := Child(src, "u"); u != nil {
		v := Val(u)
		if v == "" {
			v = "single"
		}
		painted.CreateAttr(keptUnderline, v)
	}
	return painted
}

// PaintDeleted paints props as a deletion: red and struck through.
func PaintDeleted(props *etree.Element) *etree.Element {
	SetProp(props, "strike", "")
	SetProp(props, "color", ColorDeleted)
	return props
}

// PaintInserted paints props as an insertion in the given style.
func PaintInserted(props *etree.Element, style InsertStyle) *etree.Element {
	if style == InsertUnderlined {
		SetProp(props, "u", "single")
		SetProp(props, "color", ColorDeleted)
		return props
	}
	SetProp(props, "color", ColorInserted)
	return props
}

// SetProp sets w:<tag> in a rPr in schema order. An empty val writes a bare toggle element.
func SetProp(props *etree.Element, tag, val string) *etree.Element {
	el := Child(props, tag)
	if el == nil {
		el = etree.NewElement("w:" + tag)
		InsertOrdered(props, el, RunPropsOrder)
	}
	if val != "" {
		el.CreateAttr("w:val", val)
	}
	return el
}

// Signature classifies a run by the markup the markup stage writes.
func Signature(r *etree.Element) Mark {
	props := RunProps(r)
	if props == nil {
		return MarkNone
	}
	color := strings.ToUpper(Val(Child(props, "color")))
	strike := toggleOn(Child(props, "strike"))
	u := Child(props, "u")
	underlined := u != nil && Val(u) != "none"
	switch {
	case strike && color == ColorDeleted:
		return MarkDeleted
	case color == ColorInserted:
		return MarkInserted
	case underlined && color == ColorDeleted:
		return MarkInserted
	}
	return MarkNone
}

// StripMarkup removes the markup colour, strike and underline from a run's rPr, restores the
// colour and underline recorded by KeepProps, and drops the rPr when it ends up empty.
func StripMarkup(r *etree.Element) {
	props := RunProps(r)
	if props == nil {
		return
	}
	for _, c := range props.ChildElements() {
		if IsAny(c, "strike", "u") {
			props.RemoveChild(c)
		}
		if Is(c, "color") && isMarkupColor(Val(c)) {
			props.RemoveChild(c)
		}
	}
	RestoreProps(props)
	if len(props.ChildElements()) == 0 && len(props.Attr) == 0 {
		r.RemoveChild(props)
	}
}

// RestoreProps writes back the colour and underline recorded by KeepProps and removes the
// record. It reports whether props carried one.
func RestoreProps(props *etree.Element) bool {
	color := props.SelectAttr(keptColor)
	u := props.SelectAttr(keptUnderline)
	if color == nil && u == nil {
		return false
	}
	if color != nil {
		SetProp(props, "color", color.Value)
		props.RemoveAttr(keptColor)
	}
	if u != nil {
		SetProp(props, "u", u.Value)
		props.RemoveAttr(keptUnderline)
	}
	return true
}

// ClearKept removes every KeepProps record below root without restoring it.
func ClearKept(root *etree.Element) int {
	n := 0
	for _, props := range Descendants(root, "rPr") {
		c := props.RemoveAttr(keptColor)
		u := props.RemoveAttr(keptUnderline)
		if c != nil || u != nil {
			n++
		}
	}
	return n
}

func isMarkupColor(v string) bool {
	v = strings.ToUpper(v)
	return v == ColorDeleted || v == ColorInserted
}

func toggleOn(el *etree.Element) bool {
	if el == nil {
		return false
	}
	switch strings.ToLower(Val(el)) {
	case "0", "false", "off":
		return false
	}
	return true
}
