package integrity

import (
	"sort"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
)

// SparseRsids is the session id count below which the editing history looks synthetic.
const SparseRsids = 10

// QualityReport summarises how natural a tracked output looks to a word processor.
type QualityReport struct {
	MissingStyles  []string `json:"missing_styles"`
	TrackRevisions bool     `json:"track_revisions"`
	Rsids          int      `json:"rsids"`
	Sparse         bool     `json:"sparse"`
}

// Quality inspects the styles and settings of pkg. Style ids are compared literally.
func Quality(pkg *docx.Package) QualityReport {
	var q QualityReport
	missing := make(map[string]bool, len(RequiredStyles))
	for _, id := range RequiredStyles {
		missing[id] = true
	}
	if doc, err := pkg.XML(docx.StylesPart); err == nil {
		for id := range styleIDs(doc.Root(), nil) {
			delete(missing, id)
		}
	}
	for id := range missing {
		q.MissingStyles = append(q.MissingStyles, id)
	}
	sort.Strings(q.MissingStyles)

	if doc, err := pkg.XML(docx.SettingsPart); err == nil {
		q.TrackRevisions = tracking(doc.Root())
		seen := make(map[string]bool)
		for _, v := range rsids(doc.Root()) {
			seen[v] = true
		}
		q.Rsids = len(seen)
	}
	q.Sparse = q.Rsids < SparseRsids
	return q
}
