package redline

import (
	"context"
	"fmt"
	"os"

	"github.com/benjaminschreck/go-redline/pkg/redline/pdfmark"
)

// applyPDF matches changes against page text and writes a copy of the PDF carrying one highlight
// annotation per match. The highlights are also written to a JSON sidecar when configured.
func (e *Editor) applyPDF(ctx context.Context, log *Logger, docPath string, changes []ChangeRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := pdfmark.Load(docPath)
	if err != nil {
		return nil, &UnrecoverablePackageError{Path: docPath, Cause: err}
	}
	output, err := e.outputPath(docPath, "_annotated", ".pdf")
	if err != nil {
		return nil, err
	}

	res := &Result{
		Document: docPath,
		Output:   output,
		Strategy: StrategyPDFAnnotations,
		Attempts: []Attempt{{Strategy: StrategyPDFAnnotations}},
		Outcomes: make([]Outcome, len(changes)),
	}
	var valid []int
	var requests []pdfmark.Change
	for i, c := range changes {
		res.Outcomes[i] = Outcome{Index: i, Page: c.Page, Old: c.OldText()}
		if err := c.Validate(true); err != nil {
			res.Outcomes[i] = invalid(res.Outcomes[i], err)
			continue
		}
		valid = append(valid, i)
		requests = append(requests, pdfmark.Change{Page: c.Page, Line: c.Line, Old: *c.Old, New: c.New, Motivation: c.Motivation})
	}

	annotator := pdfmark.Annotator{Radius: e.config.NeighborRadius, Motivation: e.config.IncludeComments}
	highlights, outcomes := annotator.Annotate(doc, requests)
	highlights, res.Removed = pdfmark.Dedupe(highlights, e.config.DedupeTolerance)
	if res.Removed > 0 {
		log.Debug("dropped %d duplicate highlights", res.Removed)
	}

	for k, i := range valid {
		o := res.Outcomes[i]
		ch := requests[k]
		switch outcomes[k].Status {
		case pdfmark.Matched:
			o.Status = StatusApplied
			o.Line = outcomes[k].Line
		case pdfmark.Neighbor:
			o.Status = StatusFuzzy
			o.Line = outcomes[k].Line
			o.Suggestion = fmt.Sprintf("line %d", outcomes[k].Line)
		case pdfmark.NoMatch:
			o.Status = StatusNoMatch
			o.Err = &AnchorNotFoundError{UnitID: fmt.Sprintf("page %d line %d", ch.Page, ch.Line), Old: ch.Old, Reason: "text not found"}
			o.Reason = "text not found"
		default:
			o = invalid(o, fmt.Errorf("%w: page %d does not exist", ErrInvalidRecord, ch.Page))
		}
		res.Outcomes[i] = o
	}

	if err := pdfmark.AnnotateFile(docPath, output, highlights, e.config.Author); err != nil {
		return nil, &UnrecoverablePackageError{Path: output, Cause: err}
	}
	if e.config.PDFSidecar {
		if res.Sidecar, err = e.writeSidecar(docPath, highlights); err != nil {
			return nil, &UnrecoverablePackageError{Path: res.Sidecar, Cause: err}
		}
	}

	for _, o := range res.Unresolved() {
		log.Warn("change %d on page %d not applied: %s %s", o.Index, o.Page, o.Status, o.Reason)
	}
	log.Info("wrote %d highlights to %s: %d of %d changes applied", len(highlights), output, res.Applied(), len(changes))
	return res, nil
}

func (e *Editor) writeSidecar(docPath string, highlights []pdfmark.Highlight) (string, error) {
	path, err := e.outputPath(docPath, "_annotations", ".json")
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return path, err
	}
	if err := pdfmark.WriteSidecar(f, docPath, highlights); err != nil {
		f.Close()
		return path, err
	}
	return path, f.Close()
}
