package redline

import (
	"github.com/benjaminschreck/go-redline/pkg/redline/integrity"
	"github.com/benjaminschreck/go-redline/pkg/redline/revision"
)

// Status is the reported outcome of one change record.
type Status string

const (
	StatusApplied Status = "applied"
	StatusFuzzy   Status = "fuzzy_match"
	StatusNoMatch Status = "no_match"
	StatusInvalid Status = "skipped_invalid_record"
)

// Outcome reports what happened to one change record.
type Outcome struct {
	// Index is the position of the record in the input.
	Index  int    `json:"index"`
	UnitID string `json:"unit_id,omitempty"`
	Page   int    `json:"page,omitempty"`
	// Line is the PDF line the change was found on.
	Line       int    `json:"line,omitempty"`
	Old        string `json:"old"`
	Status     Status `json:"status"`
	Score      int    `json:"score,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Err        error  `json:"-"`
}

// Applied reports whether the change landed in the output.
func (o Outcome) Applied() bool {
	return o.Status == StatusApplied || o.Status == StatusFuzzy
}

// Strategy is a way of producing the output document.
type Strategy string

const (
	StrategyNativeRevision  Strategy = "native_revision"
	StrategyPlainMarkup     Strategy = "plain_markup"
	StrategyAnnotationsOnly Strategy = "annotations_only"
	StrategyPDFAnnotations  Strategy = "pdf_annotations"
)

// Strategies returns the fallback chain for a mode, most preferred first.
func Strategies(mode Mode) []Strategy {
	if mode == ModeTracked {
		return []Strategy{StrategyNativeRevision, StrategyPlainMarkup, StrategyAnnotationsOnly}
	}
	return []Strategy{StrategyPlainMarkup, StrategyAnnotationsOnly}
}

// Attempt records one strategy that was tried.
type Attempt struct {
	Strategy Strategy `json:"strategy"`
	Error    string   `json:"error,omitempty"`
}

// Result is everything a run produced.
type Result struct {
	Document string `json:"document"`
	Output   string `json:"output"`
	// Sidecar is the JSON copy of the PDF highlights, when one was written.
	Sidecar string `json:"sidecar,omitempty"`
	// Strategy is the strategy whose output was delivered.
	Strategy  Strategy                 `json:"strategy"`
	Attempts  []Attempt                `json:"attempts"`
	Outcomes  []Outcome                `json:"outcomes"`
	Integrity *integrity.Outcome       `json:"integrity,omitempty"`
	Quality   *integrity.QualityReport `json:"quality,omitempty"`
	Revisions *revision.Report         `json:"revisions,omitempty"`
	// Removed counts PDF highlights dropped as duplicates.
	Removed  int      `json:"removed,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Applied returns the number of changes that landed in the output.
func (r *Result) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Applied() {
			n++
		}
	}
	return n
}

// Unresolved returns the outcomes of changes that did not land.
func (r *Result) Unresolved() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Applied() {
			out = append(out, o)
		}
	}
	return out
}

// Complete reports whether every change landed.
func (r *Result) Complete() bool {
	return len(r.Unresolved()) == 0
}

// Fallback reports whether the delivered output is not the first choice of the chain.
func (r *Result) Fallback() bool {
	return len(r.Attempts) > 1
}
