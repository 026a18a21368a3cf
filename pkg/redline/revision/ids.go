package revision

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// generator hands out unique 8-digit hex identifiers.
type generator struct {
	rng  *rand.Rand
	seen map[string]bool
}

func newGenerator(rng *rand.Rand) *generator {
	return &generator{rng: rng, seen: make(map[string]bool)}
}

func (g *generator) reserve(v string) {
	g.seen[strings.ToUpper(v)] = true
}

// rsid returns an unused revision session id.
func (g *generator) rsid() string {
	for {
		v := fmt.Sprintf("%08X", g.rng.Uint32())
		if v != "00000000" && !g.seen[v] {
			g.seen[v] = true
			return v
		}
	}
}

// local returns an unused id below 0x80000000, the range paraId and textId allow.
func (g *generator) local() string {
	for {
		v := fmt.Sprintf("%08X", g.rng.Uint32N(0x7FFFFFFF)+1)
		if !g.seen[v] {
			g.seen[v] = true
			return v
		}
	}
}

// paraIDs stamps paragraphs with w14 ids and rsids that change every few paragraphs.
type paraIDs struct {
	gen     *generator
	session string
	left    int
}

func newParaIDs(gen *generator) *paraIDs {
	return &paraIDs{gen: gen}
}

// collect reserves the ids paragraphs below root already carry.
func (ids *paraIDs) collect(root *etree.Element) {
	for _, p := range wml.Descendants(root, "p") {
		for _, key := range []string{"w14:paraId", "w14:textId"} {
			if v := p.SelectAttrValue(key, ""); v != "" {
				ids.gen.reserve(v)
			}
		}
	}
}

// assign fills in missing identifiers. Existing values are left alone.
func (ids *paraIDs) assign(paragraphs []*etree.Element, pool []string) {
	for _, p := range paragraphs {
		if ids.left == 0 {
			ids.session = pool[ids.gen.rng.IntN(len(pool))]
			ids.left = 2 + ids.gen.rng.IntN(3)
		}
		ids.left--

		if p.SelectAttr("w14:paraId") == nil {
			p.CreateAttr("w14:paraId", ids.gen.local())
		}
		if p.SelectAttr("w14:textId") == nil {
			p.CreateAttr("w14:textId", ids.gen.local())
		}
		for _, key := range []string{"w:rsidR", "w:rsidRPr", "w:rsidP"} {
			if p.SelectAttr(key) == nil {
				p.CreateAttr(key, ids.session)
			}
		}
	}
}
