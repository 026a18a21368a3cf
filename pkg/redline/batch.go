package redline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-redline/pkg/redline/jobs"
)

// Job is one document and the changes to apply to it.
type Job struct {
	Document string         `json:"document"`
	Changes  []ChangeRecord `json:"changes"`
}

// Batch processes documents concurrently, one worker per document, and keeps a status record
// per document in a job store.
type Batch struct {
	Editor      *Editor
	Store       jobs.Store
	Concurrency int
}

// NewBatch returns a batch using the editor's concurrency and an in-memory store when store is nil.
func NewBatch(editor *Editor, store jobs.Store) *Batch {
	if store == nil {
		store = jobs.NewMemoryStore(0, editor.config.JobTTL)
	}
	return &Batch{Editor: editor, Store: store, Concurrency: editor.config.Concurrency}
}

// Run processes every job and returns their final records in input order. A document that fails
// is recorded as failed and does not stop the others; the failures are returned together as the
// error, each naming its job and document. When the store fails or ctx is done Run stops and
// returns no records.
func (b *Batch) Run(ctx context.Context, batch []Job) ([]*jobs.Record, error) {
	records := make([]*jobs.Record, len(batch))
	for i, job := range batch {
		records[i] = jobs.NewRecord(job.Document)
		if err := b.Store.Put(ctx, records[i]); err != nil {
			return nil, err
		}
	}

	failures := NewMultiError()
	g, gctx := errgroup.WithContext(ctx)
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}
	for i, job := range batch {
		rec := records[i]
		g.Go(func() error {
			return b.process(gctx, job, rec, failures)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, failures.Err()
}

func (b *Batch) process(ctx context.Context, job Job, rec *jobs.Record, failures *MultiError) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := b.Editor.logger.WithFields(Fields{"job": rec.ID, "document": job.Document})
	rec.State = jobs.Running
	rec.UpdatedAt = time.Now().UTC()
	if err := b.Store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to record job %s: %w", rec.ID, err)
	}

	res, err := b.Editor.Apply(ctx, job.Document, job.Changes)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		rec.State = jobs.Failed
		rec.Error = err.Error()
		failures.Add(WithContext(err, "apply", map[string]any{"job": rec.ID, "document": job.Document}))
		log.Error("job failed: %v", err)
	} else {
		rec.State = jobs.Done
		rec.Strategy = string(res.Strategy)
		rec.Output = res.Output
		rec.Applied = res.Applied()
		rec.Unresolved = len(res.Unresolved())
	}
	rec.UpdatedAt = time.Now().UTC()
	if err := b.Store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to record job %s: %w", rec.ID, err)
	}
	return nil
}

