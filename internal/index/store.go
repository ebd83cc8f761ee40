package index

import (
	"fmt"
	"sort"

	"github.com/pkorolev/factscan/internal/model"
)

// Store is the low-level vector-search primitive: parallel arrays of
// ids, unit-normalized vectors and metadata, searched by brute-force
// inner product. It has no durability of its own; the Index layers
// snapshot persistence and recovery on top.
type Store struct {
	dim     int
	ids     []string
	vectors [][]float32
	metas   []model.Metadata
}

// NewStore creates an empty store. The dimension is fixed by the first
// insert.
func NewStore() *Store { return &Store{} }

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.ids) }

// Dim returns the vector dimension, or 0 while the store is empty.
func (s *Store) Dim() int { return s.dim }

// Insert appends entries. All vectors must share the store's dimension;
// the first insert into an empty store fixes it.
func (s *Store) Insert(ids []string, vectors [][]float32, metas []model.Metadata) error {
	if len(ids) != len(vectors) || len(ids) != len(metas) {
		return fmt.Errorf("ids/vectors/metas length mismatch (%d/%d/%d): %w",
			len(ids), len(vectors), len(metas), model.ErrValidation)
	}
	if len(ids) == 0 {
		return nil
	}

	dim := s.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, store has %d: %w",
				i, len(v), dim, model.ErrDimensionMismatch)
		}
	}

	s.dim = dim
	s.ids = append(s.ids, ids...)
	s.vectors = append(s.vectors, vectors...)
	s.metas = append(s.metas, metas...)
	return nil
}

// Hit is a single nearest-neighbor result. Raw is the native index
// metric: inner product on unit vectors, in [-1, 1].
type Hit struct {
	ID   string
	Meta model.Metadata
	Raw  float32
}

// Search returns up to topK nearest neighbors by descending inner
// product. Ties keep insertion order (stable sort). No side effects.
func (s *Store) Search(query []float32, topK int) []Hit {
	if s.Len() == 0 || topK <= 0 {
		return nil
	}

	hits := make([]Hit, s.Len())
	for i, v := range s.vectors {
		hits[i] = Hit{ID: s.ids[i], Meta: s.metas[i], Raw: dot(v, query)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Raw > hits[j].Raw })

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK]
}

// clone returns an independent copy, so a failed mutation never leaves
// the live store half-updated.
func (s *Store) clone() *Store {
	c := &Store{dim: s.dim}
	c.ids = append([]string(nil), s.ids...)
	c.metas = append([]model.Metadata(nil), s.metas...)
	c.vectors = make([][]float32, len(s.vectors))
	copy(c.vectors, s.vectors)
	return c
}
