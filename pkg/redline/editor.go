package redline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/index"
	"github.com/benjaminschreck/go-redline/pkg/redline/integrity"
	"github.com/benjaminschreck/go-redline/pkg/redline/markup"
	"github.com/benjaminschreck/go-redline/pkg/redline/revision"
	"github.com/benjaminschreck/go-redline/pkg/redline/wml"
)

// Editor applies change records to documents. It holds no per-document state and may be shared
// between goroutines.
type Editor struct {
	config *Config
	logger *Logger
	loc    *time.Location
	now    func() time.Time
	seed   *[2]uint64
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger; the default is the package logger.
func WithLogger(l *Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithClock sets the source of revision and comment dates.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// WithSeed makes the generated revision session ids and paragraph ids reproducible.
func WithSeed(seed1, seed2 uint64) Option {
	return func(e *Editor) { e.seed = &[2]uint64{seed1, seed2} }
}

// NewEditor returns an editor for config. A nil config uses the global configuration.
func NewEditor(config *Config, opts ...Option) (*Editor, error) {
	if config == nil {
		config = GetGlobalConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, _ := config.Location()
	e := &Editor{config: config, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = GetLogger()
	}
	return e, nil
}

// Config returns the editor's configuration.
func (e *Editor) Config() *Config {
	return e.config
}

func (e *Editor) clock() time.Time {
	return e.now().In(e.loc)
}

// Apply applies changes to the document at docPath and writes the result. The returned error is
// non-nil only when the document cannot be processed at all or ctx is done; every other problem
// is reported in the Result.
func (e *Editor) Apply(ctx context.Context, docPath string, changes []ChangeRecord) (*Result, error) {
	log := e.logger.WithField("document", docPath)
	switch ext := strings.ToLower(filepath.Ext(docPath)); ext {
	case ".docx":
		return e.applyDocx(ctx, log, docPath, changes)
	case ".pdf":
		return e.applyPDF(ctx, log, docPath, changes)
	default:
		return nil, &UnrecoverablePackageError{Path: docPath, Cause: fmt.Errorf("unsupported file type %q", ext)}
	}
}

// outputPath names the result file for docPath, creating the output directory when needed.
func (e *Editor) outputPath(docPath, suffix, ext string) (string, error) {
	dir := e.config.OutputDir
	if dir == "" {
		dir = filepath.Dir(docPath)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	base := filepath.Base(docPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+suffix+ext), nil
}

// attempt is the product of one successful strategy.
type attempt struct {
	pkg       *docx.Package
	results   []markup.Result
	integrity *integrity.Outcome
	quality   *integrity.QualityReport
	revisions *revision.Report
	warnings  []string
}

func (e *Editor) applyDocx(ctx context.Context, log *Logger, docPath string, changes []ChangeRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Info("applying %d changes in %s mode", len(changes), e.config.Mode)

	original, err := docx.Open(docPath)
	if err != nil {
		return nil, &UnrecoverablePackageError{Path: docPath, Cause: err}
	}
	idx, err := index.Build(original)
	if err != nil {
		return nil, &UnrecoverablePackageError{Path: docPath, Cause: err}
	}
	output, err := e.outputPath(docPath, "_edited", ".docx")
	if err != nil {
		return nil, err
	}

	res := &Result{Document: docPath, Output: output, Outcomes: make([]Outcome, len(changes))}
	var valid []int
	var requests []markup.Change
	for i, c := range changes {
		res.Outcomes[i] = Outcome{Index: i, UnitID: c.UnitID, Old: c.OldText()}
		if err := c.Validate(false); err != nil {
			res.Outcomes[i] = invalid(res.Outcomes[i], err)
			continue
		}
		unitID := c.UnitID
		if unitID == "" {
			if unitID = footnoteUnit(idx, c.FootnoteID); unitID == "" {
				err := &AnchorNotFoundError{UnitID: "footnote " + c.FootnoteID, Old: c.OldText(), Reason: "footnote not found"}
				res.Outcomes[i].Status, res.Outcomes[i].Reason, res.Outcomes[i].Err = StatusNoMatch, err.Reason, err
				continue
			}
			res.Outcomes[i].UnitID = unitID
		}
		valid = append(valid, i)
		requests = append(requests, markup.Change{
			UnitID:     unitID,
			Old:        *c.Old,
			New:        c.New,
			Motivation: c.Motivation,
			FootnoteID: c.FootnoteID,
		})
	}

	err = docx.WithScratch(e.config.ScratchDir, func(s *docx.Scratch) error {
		var last error
		for _, strategy := range Strategies(e.config.Mode) {
			if err := ctx.Err(); err != nil {
				return err
			}
			stage := log.WithField("strategy", string(strategy))
			stage.Debug("strategy started")
			out, err := e.run(strategy, s, original, requests, stage)
			if err != nil {
				res.Attempts = append(res.Attempts, Attempt{Strategy: strategy, Error: err.Error()})
				stage.Warn("strategy failed, falling back: %v", err)
				last = err
				continue
			}
			res.Attempts = append(res.Attempts, Attempt{Strategy: strategy})
			res.Strategy = strategy
			res.Integrity = out.integrity
			res.Quality = out.quality
			res.Revisions = out.revisions
			res.Warnings = out.warnings
			for k, i := range valid {
				res.Outcomes[i] = e.outcome(res.Outcomes[i], out.results[k])
			}
			if err := out.pkg.Save(output); err != nil {
				return &UnrecoverablePackageError{Path: output, Cause: err}
			}
			return nil
		}
		return &UnrecoverablePackageError{Path: docPath, Cause: last}
	})
	if err != nil {
		return nil, err
	}

	for _, o := range res.Unresolved() {
		log.Warn("change %d on %s not applied: %s %s", o.Index, o.UnitID, o.Status, o.Reason)
	}
	log.Info("wrote %s with %s: %d of %d changes applied", output, res.Strategy, res.Applied(), len(changes))
	return res, nil
}

func footnoteUnit(idx *index.Index, footnoteID string) string {
	for _, u := range idx.Units() {
		if u.Kind == index.KindFootnote && u.FootnoteID == footnoteID {
			return u.ID
		}
	}
	return ""
}

// run produces one candidate output. Snapshots go through the scratch directory so that the
// delivered package is the one that round-trips through the container format.
func (e *Editor) run(strategy Strategy, s *docx.Scratch, original *docx.Package, changes []markup.Change, log *Logger) (*attempt, error) {
	fail := func(stage string, err error) error {
		return &ConversionFailure{Strategy: strategy, Cause: WithContext(err, stage, map[string]any{"changes": len(changes)})}
	}

	pkg, err := original.Clone()
	if err != nil {
		return nil, fail("clone", err)
	}
	// The clone has the same parts, so unit ids taken from the original stay valid.
	idx, err := index.Build(pkg)
	if err != nil {
		return nil, fail("index", err)
	}

	opts := markup.Options{
		Granularity: e.config.granularity(),
		Comments:    e.config.IncludeComments,
		Author:      e.config.Author,
		Initials:    e.config.CommentInitials,
		Now:         e.clock,
		Resolver:    e.config.Resolver(),
	}
	switch strategy {
	case StrategyNativeRevision:
		opts.Insert = wml.InsertUnderlined
		opts.KeepProps = true
	case StrategyPlainMarkup:
		opts.Insert = wml.InsertGreen
	case StrategyAnnotationsOnly:
		opts.AnnotateOnly = true
		opts.Comments = true
	}
	applier := markup.NewApplier(pkg, idx, opts)
	results := applier.Apply(changes)
	applier.Patch(changes, results)
	out := &attempt{results: results, warnings: applier.Warnings()}

	if pkg, err = snapshot(s, pkg, string(strategy)+"_markup.docx"); err != nil {
		return nil, fail("snapshot markup", err)
	}

	tracked := strategy == StrategyNativeRevision
	if tracked {
		conv := revision.NewConverter(e.config.Author)
		conv.Now = e.clock
		if e.seed != nil {
			conv.Rand = rand.New(rand.NewPCG(e.seed[0], e.seed[1]))
		}
		report, err := conv.Convert(pkg, original)
		if err != nil {
			return nil, fail("convert", err)
		}
		out.revisions = report
		log.Info("converted %d insertions and %d deletions", report.Insertions, report.Deletions)
		if pkg, err = snapshot(s, pkg, string(strategy)+"_tracked.docx"); err != nil {
			return nil, fail("snapshot revisions", err)
		}
	}

	check, err := integrity.ValidateRepair(pkg, integrity.DefaultOptions(tracked))
	if err != nil {
		return nil, fail("validate", errors.Join(&PackageIntegrityError{Issues: check.Before.Errors()}, err))
	}
	for _, m := range check.Mutations {
		log.Debug("repair: %s", m)
	}
	if !check.Before.Valid && check.After.Valid {
		log.Info("repaired %d integrity errors", check.Before.ErrorCount)
	}
	for _, issue := range check.After.Errors() {
		out.warnings = append(out.warnings, issue.String())
		log.Warn("integrity issue left after repair: %s", issue)
	}
	out.integrity = check

	if tracked {
		q := integrity.Quality(pkg)
		out.quality = &q
		if len(q.MissingStyles) > 0 || !q.TrackRevisions || q.Sparse {
			log.Warn("quality: missing styles %v, track revisions %t, %d rsids", q.MissingStyles, q.TrackRevisions, q.Rsids)
		}
	}
	out.pkg = pkg
	return out, nil
}

func snapshot(s *docx.Scratch, pkg *docx.Package, name string) (*docx.Package, error) {
	path, err := s.Snapshot(pkg, name)
	if err != nil {
		return nil, err
	}
	return docx.Open(path)
}

func invalid(o Outcome, err error) Outcome {
	o.Status = StatusInvalid
	o.Reason = err.Error()
	o.Err = err
	return o
}

func (e *Editor) outcome(o Outcome, r markup.Result) Outcome {
	o.Score = r.Score
	o.Suggestion = r.Suggestion
	o.Reason = r.Reason
	switch r.Status {
	case markup.Applied:
		o.Status = StatusApplied
	case markup.FuzzyApplied:
		o.Status = StatusFuzzy
	case markup.Duplicate:
		o.Status = StatusInvalid
		o.Err = fmt.Errorf("%w: %s", ErrInvalidRecord, r.Reason)
	case markup.Unsupported:
		o.Status = StatusNoMatch
		o.Err = &UnsupportedContentTypeError{UnitID: o.UnitID, Reason: r.Reason}
	default:
		o.Status = StatusNoMatch
		if r.Score > 0 && r.Score < e.config.SimilarityThreshold {
			o.Err = &FuzzyMatchBelowThresholdError{UnitID: o.UnitID, Old: o.Old, Score: r.Score, Threshold: e.config.SimilarityThreshold}
		} else {
			o.Err = &AnchorNotFoundError{UnitID: o.UnitID, Old: o.Old, Suggestion: r.Suggestion, Reason: r.Reason}
		}
	}
	return o
}
