package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pkorolev/factscan/internal/embed"
	"github.com/pkorolev/factscan/internal/model"
)

// State describes which storage path the index is operating on.
type State int

const (
	// StateUninitialized is the state before Open succeeds.
	StateUninitialized State = iota
	// StatePersistent means operations go through the on-disk snapshot.
	StatePersistent
	// StateMemory means the persistent path has been abandoned for the
	// rest of the process and operations run against an ephemeral
	// in-memory store.
	StateMemory
)

// Index is the durable nearest-neighbor index over fact-check
// embeddings. It owns the snapshot bundle exclusively and self-heals on
// structural failure: one delete-and-retry against fresh persistent
// storage, then a permanent switch to an in-memory store when
// fallback is permitted.
type Index struct {
	dir         string
	provider    embed.Provider
	insertBatch int
	fallback    bool
	verbose     bool

	state State
	store *Store

	// save is swappable so tests can simulate storage failure.
	save func(dir string, s *Store) error
}

// Options configures Open.
type Options struct {
	Dir             string // snapshot bundle directory
	InsertBatchSize int    // items per snapshot insert chunk
	MemoryFallback  bool   // permit the ephemeral in-memory fallback
	Verbose         bool
}

// Open opens (or initializes) the index at opts.Dir. A missing or
// partial snapshot reads as an empty persistent index. Any other
// failure falls back to an in-memory index when permitted, or returns
// ErrStorageUnavailable.
func Open(provider embed.Provider, opts Options) (*Index, error) {
	ix := &Index{
		dir:         opts.Dir,
		provider:    provider,
		insertBatch: opts.InsertBatchSize,
		fallback:    opts.MemoryFallback,
		verbose:     opts.Verbose,
		save:        saveSnapshot,
	}
	if ix.insertBatch <= 0 {
		ix.insertBatch = 256
	}

	store, err := loadSnapshot(ix.dir)
	switch {
	case err == nil:
		ix.state, ix.store = StatePersistent, store
	case errors.Is(err, errSnapshotMissing):
		ix.state, ix.store = StatePersistent, NewStore()
	case ix.fallback:
		ix.warnf("cannot open index snapshot (%v); using in-memory index", err)
		ix.state, ix.store = StateMemory, NewStore()
	default:
		return nil, fmt.Errorf("open index snapshot: %v: %w", err, model.ErrStorageUnavailable)
	}
	return ix, nil
}

// State returns the current storage state.
func (ix *Index) State() State { return ix.state }

// Len returns the number of indexed items.
func (ix *Index) Len() int { return ix.store.Len() }

// Dim returns the index dimension, or 0 while empty.
func (ix *Index) Dim() int { return ix.store.Dim() }

// Build embeds all texts and replaces the index wholesale with a brand
// new snapshot. Linear in corpus size; meant to run as a batch job.
func (ix *Index) Build(ctx context.Context, ids, texts []string, metas []model.Metadata) error {
	if len(ids) == 0 || len(ids) != len(texts) || len(ids) != len(metas) {
		return fmt.Errorf("build requires equal, non-empty ids/texts/metas (%d/%d/%d): %w",
			len(ids), len(texts), len(metas), model.ErrValidation)
	}

	vectors, err := ix.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	release, err := acquireLock(ix.dir)
	if err != nil {
		return err
	}
	defer release()

	return ix.commit(func(st *Store) error {
		return st.Insert(ids, vectors, metas)
	}, true)
}

// Add appends new items to the existing index. Items whose text is
// empty after trimming are skipped (each skip is logged). If the active
// model's dimension differs from the stored one, the snapshot is
// discarded and rebuilt from the given items alone; previously indexed
// records are lost until the next full build from the ledger.
func (ix *Index) Add(ctx context.Context, ids, texts []string, metas []model.Metadata) error {
	if len(ids) != len(texts) || len(ids) != len(metas) {
		return fmt.Errorf("add requires equal ids/texts/metas (%d/%d/%d): %w",
			len(ids), len(texts), len(metas), model.ErrValidation)
	}

	var keepIDs, keepTexts []string
	var keepMetas []model.Metadata
	for i := range ids {
		if strings.TrimSpace(texts[i]) == "" {
			ix.warnf("skipping %q: empty text", ids[i])
			continue
		}
		keepIDs = append(keepIDs, ids[i])
		keepTexts = append(keepTexts, texts[i])
		keepMetas = append(keepMetas, metas[i])
	}
	if len(keepIDs) == 0 {
		return nil
	}

	vectors, err := ix.embedAll(ctx, keepTexts)
	if err != nil {
		return err
	}

	release, err := acquireLock(ix.dir)
	if err != nil {
		return err
	}
	defer release()

	rebuild := false
	if ix.store.Len() > 0 && ix.store.Dim() != len(vectors[0]) {
		ix.warnf("index dimension changed (%d -> %d for model %s); rebuilding from %d new items",
			ix.store.Dim(), len(vectors[0]), ix.provider.ModelID(), len(keepIDs))
		rebuild = true
	}

	return ix.commit(func(st *Store) error {
		for start := 0; start < len(keepIDs); start += ix.insertBatch {
			end := start + ix.insertBatch
			if end > len(keepIDs) {
				end = len(keepIDs)
			}
			if err := st.Insert(keepIDs[start:end], vectors[start:end], keepMetas[start:end]); err != nil {
				return err
			}
		}
		return nil
	}, rebuild)
}

// Search returns up to topK nearest neighbors of the query vector by
// raw inner product. Safe for concurrent use against a stable snapshot.
func (ix *Index) Search(query []float32, topK int) ([]Hit, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d: %w", topK, model.ErrValidation)
	}
	if dim := ix.store.Dim(); dim != 0 && len(query) != dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d: %w",
			len(query), dim, model.ErrDimensionMismatch)
	}
	return ix.store.Search(query, topK), nil
}

// embedAll embeds texts in the provider's native batches and
// unit-normalizes every vector.
func (ix *Index) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := ix.provider.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts: %w",
			len(vectors), len(texts), model.ErrEmbedding)
	}
	for _, v := range vectors {
		Normalize(v)
	}
	return vectors, nil
}

// commit applies the mutation and persists it, running the recovery
// state machine on storage failure. fresh=true starts from an empty
// store (build, or a dimension-mismatch rebuild); fresh=false appends
// to the current contents.
func (ix *Index) commit(mutate func(*Store) error, fresh bool) error {
	attempt := func(discardFirst bool) error {
		if ix.state == StatePersistent && discardFirst {
			if err := os.RemoveAll(ix.dir); err != nil {
				return fmt.Errorf("discard snapshot: %w", err)
			}
		}
		st := NewStore()
		if !fresh && !discardFirst {
			st = ix.store.clone()
		}
		if err := mutate(st); err != nil {
			return err
		}
		if ix.state == StatePersistent {
			if fresh || discardFirst {
				// A wholesale replacement must not inherit stale files.
				if err := os.RemoveAll(ix.dir); err != nil {
					return fmt.Errorf("discard snapshot: %w", err)
				}
			}
			if err := ix.save(ix.dir, st); err != nil {
				return err
			}
		}
		ix.store = st
		return nil
	}

	err := attempt(false)
	if err == nil {
		return nil
	}
	// Validation and dimension problems are the caller's, not storage's;
	// discarding the snapshot would not help.
	if errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrDimensionMismatch) {
		return err
	}
	if ix.state == StateMemory {
		// No further fallback available.
		return err
	}

	// Single recovery: drop the snapshot, recreate empty, retry once.
	ix.warnf("index write failed (%v); discarding snapshot and retrying", err)
	retryErr := attempt(true)
	if retryErr == nil {
		return nil
	}
	if errors.Is(retryErr, model.ErrValidation) {
		return retryErr
	}

	if !ix.fallback {
		return fmt.Errorf("index recovery failed: %v: %w", retryErr, model.ErrStorageUnavailable)
	}

	// Permanent switch: the persistent path is abandoned for the rest
	// of the process.
	ix.warnf("index recovery failed (%v); switching to in-memory index", retryErr)
	ix.state = StateMemory
	st := NewStore()
	if err := mutate(st); err != nil {
		return err
	}
	ix.store = st
	return nil
}

func (ix *Index) warnf(format string, args ...interface{}) {
	if ix.verbose {
		fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
	}
}
