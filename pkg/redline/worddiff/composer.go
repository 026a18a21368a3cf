package worddiff

// Composer accumulates the changes applied to the paragraphs of one unit. Offsets are always
// expressed in the paragraph's original text; only text still covered by an unchanged span can
// be replaced, so later changes see the effect of earlier ones.
type Composer struct {
	paras [][]Span
	// Granularity selects how a replaced range is diffed against its new text.
	Granularity Granularity
}

// NewComposer starts a composer over the original paragraph texts.
func NewComposer(texts []string) *Composer {
	c := &Composer{paras: make([][]Span, len(texts))}
	for i, t := range texts {
		if t != "" {
			c.paras[i] = []Span{{Kind: Unchanged, Text: t}}
		}
	}
	return c
}

// Len returns the number of paragraphs.
func (c *Composer) Len() int {
	return len(c.paras)
}

// Spans returns the spans of paragraph p.
func (c *Composer) Spans(p int) []Span {
	return c.paras[p]
}

// Changed reports whether paragraph p carries any deletion or insertion.
func (c *Composer) Changed(p int) bool {
	for _, s := range c.paras[p] {
		if s.Kind != Unchanged {
			return true
		}
	}
	return false
}

// Free reports whether [start, end) of paragraph p lies inside a single unchanged span.
func (c *Composer) Free(p, start, end int) bool {
	if p < 0 || p >= len(c.paras) {
		return false
	}
	if len(c.paras[p]) == 0 {
		return start == 0 && end == 0
	}
	_, ok := c.locate(p, start, end)
	return ok
}

func (c *Composer) locate(p, start, end int) (int, bool) {
	pos := 0
	for i, s := range c.paras[p] {
		if s.Kind == Inserted {
			continue
		}
		next := pos + len(s.Text)
		if s.Kind == Unchanged && start >= pos && end <= next && start <= end {
			return i, true
		}
		pos = next
	}
	return -1, false
}

// Replace rewrites [start, end) of paragraph p to new. It fails when the range is no longer
// untouched.
func (c *Composer) Replace(p, start, end int, new string, ref int) bool {
	if p < 0 || p >= len(c.paras) {
		return false
	}
	if len(c.paras[p]) == 0 {
		if start != 0 || end != 0 {
			return false
		}
		c.paras[p] = tag(c.Granularity.Diff("", new), ref)
		return true
	}
	i, ok := c.locate(p, start, end)
	if !ok {
		return false
	}
	offset := 0
	for _, s := range c.paras[p][:i] {
		if s.Kind != Inserted {
			offset += len(s.Text)
		}
	}
	text := c.paras[p][i].Text
	lo, hi := start-offset, end-offset

	var repl []Span
	repl = append(repl, Span{Kind: Unchanged, Text: text[:lo]})
	repl = append(repl, tag(c.Granularity.Diff(text[lo:hi], new), ref)...)
	repl = append(repl, Span{Kind: Unchanged, Text: text[hi:]})

	spans := make([]Span, 0, len(c.paras[p])+len(repl))
	spans = append(spans, c.paras[p][:i]...)
	spans = append(spans, repl...)
	spans = append(spans, c.paras[p][i+1:]...)
	c.paras[p] = Merge(spans)
	return true
}

func tag(spans []Span, ref int) []Span {
	for i := range spans {
		if spans[i].Kind != Unchanged {
			spans[i].Ref = ref
		}
	}
	return spans
}
