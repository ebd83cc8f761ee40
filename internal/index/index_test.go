package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkorolev/factscan/internal/model"
)

// fakeProvider maps each distinct text to a distinct near-orthogonal
// unit vector, so self-similarity is 1 and cross-similarity is low.
type fakeProvider struct {
	dim   int
	calls int
	fail  bool
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) ModelID() string { return fmt.Sprintf("fake-d%d", f.dim) }
func (f *fakeProvider) BatchSize() int  { return 16 }

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("provider down: %w", model.ErrEmbedding)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		var h uint32 = 2166136261
		for _, b := range []byte(text) {
			h = (h ^ uint32(b)) * 16777619
		}
		for j := range v {
			h = h*1664525 + 1013904223
			v[j] = float32(h%1000)/1000 - 0.5
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func testMetas(n int) []model.Metadata {
	metas := make([]model.Metadata, n)
	for i := range metas {
		metas[i] = model.Metadata{Title: fmt.Sprintf("title %d", i), URL: fmt.Sprintf("https://x/%d", i)}
	}
	return metas
}

func openTestIndex(t *testing.T, provider *fakeProvider, dir string) *Index {
	t.Helper()
	ix, err := Open(provider, Options{Dir: dir, MemoryFallback: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return ix
}

func TestIndex_BuildSearchRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	provider := &fakeProvider{dim: 32}

	ix := openTestIndex(t, provider, dir)
	ids := []string{"https://x/0", "https://x/1", "https://x/2"}
	texts := []string{"Claim one", "Claim two", "Claim three"}
	if err := ix.Build(context.Background(), ids, texts, testMetas(3)); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Reopen from disk and search with the embedding of an original text.
	reopened := openTestIndex(t, provider, dir)
	if reopened.State() != StatePersistent {
		t.Fatalf("Expected persistent state after reopen, got %v", reopened.State())
	}
	if reopened.Len() != 3 {
		t.Fatalf("Expected 3 entries after reopen, got %d", reopened.Len())
	}

	query, err := provider.EmbedOne(context.Background(), "Claim two")
	if err != nil {
		t.Fatalf("EmbedOne failed: %v", err)
	}
	Normalize(query)

	hits, err := reopened.Search(query, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "https://x/1" {
		t.Errorf("Expected self-match first, got %q", hits[0].ID)
	}
	if hits[0].Raw < 0.99 {
		t.Errorf("Expected self-match inner product > 0.99, got %f", hits[0].Raw)
	}
	if hits[0].Meta.Title != "title 1" {
		t.Errorf("Expected metadata round trip, got %+v", hits[0].Meta)
	}
}

func TestIndex_BuildValidation(t *testing.T) {
	ix := openTestIndex(t, &fakeProvider{dim: 8}, filepath.Join(t.TempDir(), "index"))

	cases := []struct {
		name  string
		ids   []string
		texts []string
		metas []model.Metadata
	}{
		{"empty", nil, nil, nil},
		{"length mismatch", []string{"a", "b"}, []string{"one"}, testMetas(2)},
	}
	for _, tc := range cases {
		err := ix.Build(context.Background(), tc.ids, tc.texts, tc.metas)
		if !errors.Is(err, model.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestIndex_SearchRejectsMismatchedQueryDimension(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ix := openTestIndex(t, &fakeProvider{dim: 16}, dir)
	ids := []string{"https://x/0", "https://x/1"}
	texts := []string{"Claim one", "Claim two"}
	if err := ix.Build(context.Background(), ids, texts, testMetas(2)); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Reopen the snapshot with a provider of a different dimension, as
	// happens after an embedding.model config change, and query with it.
	for _, queryDim := range []int{8, 24} {
		smaller := &fakeProvider{dim: queryDim}
		reopened := openTestIndex(t, smaller, dir)

		query, err := smaller.EmbedOne(context.Background(), "Claim one")
		if err != nil {
			t.Fatalf("EmbedOne failed: %v", err)
		}
		Normalize(query)

		if _, err := reopened.Search(query, 3); !errors.Is(err, model.ErrDimensionMismatch) {
			t.Errorf("dim %d: expected ErrDimensionMismatch, got %v", queryDim, err)
		}
	}
}

func TestIndex_EmbeddingFailurePropagates(t *testing.T) {
	provider := &fakeProvider{dim: 8, fail: true}
	ix := openTestIndex(t, provider, filepath.Join(t.TempDir(), "index"))

	err := ix.Build(context.Background(), []string{"a"}, []string{"text"}, testMetas(1))
	if !errors.Is(err, model.ErrEmbedding) {
		t.Errorf("Expected ErrEmbedding, got %v", err)
	}
}

func TestIndex_AddSkipsEmptyTexts(t *testing.T) {
	ix := openTestIndex(t, &fakeProvider{dim: 8}, filepath.Join(t.TempDir(), "index"))

	err := ix.Add(context.Background(),
		[]string{"a", "b", "c"},
		[]string{"first", "   ", "third"},
		testMetas(3))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if ix.Len() != 2 {
		t.Errorf("Expected 2 indexed entries (empty text skipped), got %d", ix.Len())
	}
}

func TestIndex_AddRecoversFromStorageFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	provider := &fakeProvider{dim: 16}

	ix := openTestIndex(t, provider, dir)
	if err := ix.Build(context.Background(), []string{"a"}, []string{"existing claim"}, testMetas(1)); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// First save fails, the retry after snapshot recreation succeeds.
	failures := 1
	ix.save = func(dir string, s *Store) error {
		if failures > 0 {
			failures--
			return fmt.Errorf("disk full")
		}
		return saveSnapshot(dir, s)
	}

	if err := ix.Add(context.Background(), []string{"b"}, []string{"new claim"}, testMetas(1)); err != nil {
		t.Fatalf("Add failed despite recovery: %v", err)
	}
	if ix.State() != StatePersistent {
		t.Errorf("Expected persistent state after successful retry, got %v", ix.State())
	}

	query, _ := provider.EmbedOne(context.Background(), "new claim")
	Normalize(query)
	hits, err := ix.Search(query, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Fatalf("Expected added item searchable after recovery, got %v", hits)
	}
}

func TestIndex_AddFallsBackToMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	provider := &fakeProvider{dim: 16}

	ix := openTestIndex(t, provider, dir)
	ix.save = func(string, *Store) error { return fmt.Errorf("device error") }

	err := ix.Add(context.Background(), []string{"b"}, []string{"new claim"}, testMetas(1))
	if err != nil {
		t.Fatalf("Add failed despite fallback: %v", err)
	}
	if ix.State() != StateMemory {
		t.Fatalf("Expected in-memory state after exhausted retry, got %v", ix.State())
	}

	query, _ := provider.EmbedOne(context.Background(), "new claim")
	Normalize(query)
	hits, err := ix.Search(query, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Fatalf("Expected added item searchable in memory, got %v", hits)
	}

	// Failure on the in-memory path is terminal.
	provider.fail = true
	err = ix.Add(context.Background(), []string{"c"}, []string{"another"}, testMetas(1))
	if err == nil {
		t.Error("Expected error to propagate on in-memory index")
	}
}

func TestIndex_AddFallbackDisabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ix, err := Open(&fakeProvider{dim: 16}, Options{Dir: dir, MemoryFallback: false})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ix.save = func(string, *Store) error { return fmt.Errorf("device error") }

	err = ix.Add(context.Background(), []string{"b"}, []string{"claim"}, testMetas(1))
	if !errors.Is(err, model.ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable with fallback disabled, got %v", err)
	}
}

func TestIndex_DimensionChangeRebuilds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")

	ix := openTestIndex(t, &fakeProvider{dim: 16}, dir)
	if err := ix.Build(context.Background(),
		[]string{"old-1", "old-2"}, []string{"old one", "old two"}, testMetas(2)); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Same snapshot, new model with a different output dimension.
	provider := &fakeProvider{dim: 24}
	ix2 := openTestIndex(t, provider, dir)
	if err := ix2.Add(context.Background(), []string{"new-1"}, []string{"brand new"}, testMetas(1)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Only the new item survives; prior entries are expected data loss.
	if ix2.Len() != 1 {
		t.Fatalf("Expected rebuild with only new items, got %d entries", ix2.Len())
	}
	if ix2.Dim() != 24 {
		t.Errorf("Expected new dimension 24, got %d", ix2.Dim())
	}

	reopened := openTestIndex(t, provider, dir)
	if reopened.Len() != 1 || reopened.Dim() != 24 {
		t.Errorf("Expected rebuilt snapshot on disk (1 entry, dim 24), got %d entries dim %d",
			reopened.Len(), reopened.Dim())
	}
}

func TestSnapshot_PartialBundleReadsAsMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	provider := &fakeProvider{dim: 8}

	ix := openTestIndex(t, provider, dir)
	if err := ix.Build(context.Background(), []string{"a"}, []string{"claim"}, testMetas(1)); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Remove one component: the bundle must read as "no snapshot".
	if err := os.Remove(filepath.Join(dir, idsFile)); err != nil {
		t.Fatalf("Failed to remove ids file: %v", err)
	}
	if _, err := loadSnapshot(dir); !errors.Is(err, errSnapshotMissing) {
		t.Errorf("Expected errSnapshotMissing for partial bundle, got %v", err)
	}

	reopened := openTestIndex(t, provider, dir)
	if reopened.Len() != 0 || reopened.State() != StatePersistent {
		t.Errorf("Expected empty persistent index from partial bundle, got %d entries state %v",
			reopened.Len(), reopened.State())
	}
}

func TestStore_SearchStableOrder(t *testing.T) {
	s := NewStore()
	unit := []float32{1, 0}
	err := s.Insert(
		[]string{"first", "second", "third"},
		[][]float32{unit, {0, 1}, unit},
		testMetas(3))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	hits := s.Search(unit, 3)
	if hits[0].ID != "first" || hits[1].ID != "third" {
		t.Errorf("Expected ties in insertion order, got %q then %q", hits[0].ID, hits[1].ID)
	}
	if hits[2].ID != "second" {
		t.Errorf("Expected orthogonal vector last, got %q", hits[2].ID)
	}
}

func TestNormalizeUnit(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Expected unit vector (0.6, 0.8), got %v", v)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("Expected zero vector unchanged, got %v", zero)
	}
}
