package revision

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// compatURI qualifies the compatibilityMode setting.
const compatURI = "http://schemas.microsoft.com/office/word"

type settingsPart struct {
	name string
	root *etree.Element
}

// ensureSettings returns the settings part of main, creating a minimal one with its relationship
// and content type override when the package has none.
func ensureSettings(pkg *docx.Package, main string) (*settingsPart, error) {
	rels, err := pkg.Relationships(main)
	if err != nil {
		return nil, err
	}
	name := ""
	for _, rel := range rels.ByType(docx.RelSettings) {
		if target := rels.Resolve(rel); pkg.Has(target) {
			name = target
			break
		}
	}
	if name == "" && pkg.Has(docx.SettingsPart) {
		name = docx.SettingsPart
	}
	if name != "" {
		doc, err := pkg.XML(name)
		if err != nil {
			return nil, err
		}
		if len(rels.ByType(docx.RelSettings)) == 0 {
			rels.Add(docx.RelSettings, docx.Target(main, name))
		}
		return &settingsPart{name: name, root: doc.Root()}, nil
	}

	root := etree.NewElement("w:settings")
	root.CreateAttr("xmlns:w", wml.NSMain)
	pkg.SetXML(docx.SettingsPart, docx.NewXMLDocument(root))
	rels.Add(docx.RelSettings, docx.Target(main, docx.SettingsPart))
	types, err := pkg.ContentTypes()
	if err != nil {
		return nil, err
	}
	if types.Override(docx.SettingsPart) == "" {
		types.AddOverride(docx.SettingsPart, docx.TypeSettings)
	}
	return &settingsPart{name: docx.SettingsPart, root: root}, nil
}

// pool keeps the recorded rsids, adds a fresh one for this editing session and tops the list up
// to size. It returns the whole pool and the session rsid.
func (s *settingsPart) pool(gen *generator, size int) (pool []string, session string) {
	rsids := wml.Child(s.root, "rsids")
	if rsids == nil {
		rsids = etree.NewElement("w:rsids")
		wml.InsertOrdered(s.root, rsids, wml.SettingsOrder)
	}
	for _, el := range rsids.ChildElements() {
		if v := strings.ToUpper(wml.Val(el)); v != "" {
			gen.reserve(v)
			if wml.Is(el, "rsid") {
				pool = append(pool, v)
			}
		}
	}

	add := func() string {
		v := gen.rsid()
		el := rsids.CreateElement("w:rsid")
		el.CreateAttr("w:val", v)
		pool = append(pool, v)
		return v
	}
	session = add()
	for len(pool) < size {
		add()
	}

	if wml.Child(rsids, "rsidRoot") == nil {
		root := etree.NewElement("w:rsidRoot")
		root.CreateAttr("w:val", pool[0])
		rsids.InsertChildAt(0, root)
	}
	return pool, session
}

// apply switches revision tracking on and ensures the compatibility and field settings.
func (s *settingsPart) apply(updateFields bool) {
	if track := wml.Child(s.root, "trackRevisions"); track != nil {
		track.RemoveAttr("w:val")
	} else {
		wml.InsertOrdered(s.root, etree.NewElement("w:trackRevisions"), wml.SettingsOrder)
	}

	if wml.Child(s.root, "compat") == nil {
		compat := etree.NewElement("w:compat")
		setting := compat.CreateElement("w:compatSetting")
		setting.CreateAttr("w:name", "compatibilityMode")
		setting.CreateAttr("w:uri", compatURI)
		setting.CreateAttr("w:val", "15")
		wml.InsertOrdered(s.root, compat, wml.SettingsOrder)
	}

	if updateFields && wml.Child(s.root, "updateFields") == nil {
		el := etree.NewElement("w:updateFields")
		el.CreateAttr("w:val", "true")
		wml.InsertOrdered(s.root, el, wml.SettingsOrder)
	}
}
