// Package pipeline orchestrates ingestion: fetch records from sources,
// merge them into the ledger, then update the vector index. The ledger
// is persisted before the index is touched, so a crash mid-ingest loses
// at most index rows that the next run re-adds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pkorolev/factscan/internal/connector"
	"github.com/pkorolev/factscan/internal/index"
	"github.com/pkorolev/factscan/internal/ledger"
	"github.com/pkorolev/factscan/internal/model"
	"github.com/pkorolev/factscan/internal/worker"
)

// Result summarizes one ingest run.
type Result struct {
	// Fetched is the number of raw records all connectors returned.
	Fetched int
	// Added is the number of records new to the ledger.
	Added int
	// Skipped is the number of raw records dropped during normalization.
	Skipped int
	// Total is the ledger size after the merge.
	Total int
	// FailedSources names connectors that returned an error. A failed
	// source does not fail the run.
	FailedSources []string
}

// Pipeline runs ingestion end to end.
type Pipeline struct {
	connectors []connector.Connector
	ledger     *ledger.Ledger
	index      *index.Index
	workers    int
	verbose    bool
}

// New assembles a pipeline from ready-made components. workers bounds
// how many connectors fetch concurrently; values below 1 mean 1.
func New(connectors []connector.Connector, led *ledger.Ledger, ix *index.Index, workers int, verbose bool) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		connectors: connectors,
		ledger:     led,
		index:      ix,
		workers:    workers,
		verbose:    verbose,
	}
}

// Ingest fetches from every connector, merges the results into the
// ledger and updates the index. With rebuild set the index is rebuilt
// from the full ledger instead of extended with the new records.
//
// Connector failures are logged and skipped; ledger or index failures
// abort the run.
func (p *Pipeline) Ingest(ctx context.Context, rebuild bool) (*Result, error) {
	raws, failed := p.fetchAll(ctx)

	res, err := p.ledger.MergeAndSave(raws)
	if err != nil {
		return nil, fmt.Errorf("update ledger: %w", err)
	}

	out := &Result{
		Fetched:       len(raws),
		Added:         len(res.Added),
		Skipped:       res.Skipped,
		Total:         len(res.Merged),
		FailedSources: failed,
	}

	if rebuild {
		if err := p.rebuildIndex(ctx, res.Merged); err != nil {
			return nil, err
		}
		return out, nil
	}
	if len(res.Added) == 0 {
		return out, nil
	}
	ids, texts, metas := batch(res.Added)
	if err := p.index.Add(ctx, ids, texts, metas); err != nil {
		return nil, fmt.Errorf("extend index: %w", err)
	}
	return out, nil
}

// errNotFetched marks connectors never launched because the ingest
// context expired first.
var errNotFetched = errors.New("ingest cancelled before fetch")

// fetchAll runs every connector, at most p.workers at a time. Results
// keep connector order so repeated runs merge deterministically. A
// connector skipped because the context expired counts as failed, not
// as an empty success.
func (p *Pipeline) fetchAll(ctx context.Context) ([]model.RawRecord, []string) {
	type slot struct {
		records []model.RawRecord
		err     error
	}
	slots := make([]slot, len(p.connectors))
	for i := range slots {
		slots[i].err = errNotFetched
	}
	worker.ForEach(ctx, p.workers, len(p.connectors), func(ctx context.Context, i int) {
		records, err := p.connectors[i].Fetch(ctx)
		slots[i] = slot{records: records, err: err}
	})

	var raws []model.RawRecord
	var failed []string
	for i, s := range slots {
		if s.err != nil {
			failed = append(failed, p.connectors[i].Name())
			p.warnf("source %s failed: %v", p.connectors[i].Name(), s.err)
			continue
		}
		raws = append(raws, s.records...)
	}
	return raws, failed
}

func (p *Pipeline) rebuildIndex(ctx context.Context, merged []model.Record) error {
	var indexable []model.Record
	for _, r := range merged {
		if r.Indexable() {
			indexable = append(indexable, r)
		}
	}
	if len(indexable) == 0 {
		p.warnf("ledger has no indexable records, leaving index unchanged")
		return nil
	}
	ids, texts, metas := batch(indexable)
	if err := p.index.Build(ctx, ids, texts, metas); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	return nil
}

func batch(records []model.Record) (ids, texts []string, metas []model.Metadata) {
	ids = make([]string, len(records))
	texts = make([]string, len(records))
	metas = make([]model.Metadata, len(records))
	for i, r := range records {
		ids[i] = r.ID
		texts[i] = r.Text
		metas[i] = r.Meta()
	}
	return ids, texts, metas
}

func (p *Pipeline) warnf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
	}
}
