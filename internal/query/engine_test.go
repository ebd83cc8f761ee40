package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pkorolev/factscan/internal/index"
	"github.com/pkorolev/factscan/internal/model"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.vec...), nil
}

type fixedSearcher struct {
	hits []index.Hit
}

func (f *fixedSearcher) Search(_ []float32, topK int) ([]index.Hit, error) {
	if topK > len(f.hits) {
		topK = len(f.hits)
	}
	return f.hits[:topK], nil
}

type fixedAugmenter struct {
	matches []model.Match
	err     error
}

func (f *fixedAugmenter) Lookup(context.Context, string) ([]model.Match, error) {
	return f.matches, f.err
}

func hitsWithRaw(raws ...float32) []index.Hit {
	hits := make([]index.Hit, len(raws))
	for i, raw := range raws {
		hits[i] = index.Hit{
			ID:   fmt.Sprintf("id-%d", i),
			Meta: model.Metadata{Title: fmt.Sprintf("title %d", i), URL: fmt.Sprintf("https://x/%d", i)},
			Raw:  raw,
		}
	}
	return hits
}

func TestEngine_MatchedDecision(t *testing.T) {
	// Raw inner products 0.9, 0.5, -0.2 -> scores 0.95, 0.75, 0.4.
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, &fixedSearcher{hits: hitsWithRaw(0.9, 0.5, -0.2)}, nil, false)

	res, err := e.Query(context.Background(), "some claim", 3, 0.7)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Decision != model.DecisionMatched {
		t.Fatalf("Expected matched_fact, got %s", res.Decision)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("Expected 2 matches above 0.7, got %d", len(res.Matches))
	}
	if res.Matches[0].Score < res.Matches[1].Score {
		t.Error("Expected matches sorted by descending score")
	}
	if res.Matches[0].URL != "https://x/0" {
		t.Errorf("Expected best match url https://x/0, got %s", res.Matches[0].URL)
	}
}

func TestEngine_NoMatchKeepsFullCandidateList(t *testing.T) {
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, &fixedSearcher{hits: hitsWithRaw(0.1, -0.3)}, nil, false)

	res, err := e.Query(context.Background(), "claim", 2, 0.9)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Decision != model.DecisionNoMatch {
		t.Fatalf("Expected no_match, got %s", res.Decision)
	}
	if len(res.Matches) != 2 {
		t.Errorf("Expected full candidate list on no_match, got %d", len(res.Matches))
	}
}

func TestEngine_ThresholdMonotonicity(t *testing.T) {
	e := New(&fixedEmbedder{vec: []float32{1, 0}},
		&fixedSearcher{hits: hitsWithRaw(0.9, 0.6, 0.4, 0.1, -0.5)}, nil, false)

	prev := -1
	for _, threshold := range []float64{0.0, 0.3, 0.5, 0.7, 0.9, 1.0} {
		res, err := e.Query(context.Background(), "claim", 5, threshold)
		if err != nil {
			t.Fatalf("Query failed at threshold %g: %v", threshold, err)
		}
		if res.Decision != model.DecisionMatched {
			continue
		}
		if prev >= 0 && len(res.Matches) > prev {
			t.Errorf("Raising threshold to %g grew matches from %d to %d", threshold, prev, len(res.Matches))
		}
		prev = len(res.Matches)
	}
}

func TestEngine_Validation(t *testing.T) {
	e := New(&fixedEmbedder{vec: []float32{1}}, &fixedSearcher{}, nil, false)

	if _, err := e.Query(context.Background(), "claim", 0, 0.5); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected ErrValidation for top_k 0, got %v", err)
	}
	if _, err := e.Query(context.Background(), "claim", 1, 1.5); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected ErrValidation for threshold 1.5, got %v", err)
	}
	if _, err := e.Query(context.Background(), "claim", 1, -0.1); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected ErrValidation for negative threshold, got %v", err)
	}
}

func TestEngine_EmbeddingFailurePropagates(t *testing.T) {
	e := New(&fixedEmbedder{err: fmt.Errorf("api down: %w", model.ErrEmbedding)},
		&fixedSearcher{hits: hitsWithRaw(0.9)}, nil, false)

	_, err := e.Query(context.Background(), "claim", 1, 0.5)
	if !errors.Is(err, model.ErrEmbedding) {
		t.Fatalf("Expected ErrEmbedding to propagate, got %v", err)
	}
}

func TestEngine_AugmenterMergedAndSoftFails(t *testing.T) {
	hits := hitsWithRaw(0.5) // score 0.75
	exact := model.Match{Title: "exact", URL: "https://factcheck/1", Score: 1.0}

	e := New(&fixedEmbedder{vec: []float32{1, 0}}, &fixedSearcher{hits: hits},
		&fixedAugmenter{matches: []model.Match{exact}}, false)
	res, err := e.Query(context.Background(), "claim", 1, 0.7)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Matches) != 2 || res.Matches[0].URL != "https://factcheck/1" {
		t.Errorf("Expected exact match ranked first, got %+v", res.Matches)
	}

	// A failing augmenter must not fail the query.
	e = New(&fixedEmbedder{vec: []float32{1, 0}}, &fixedSearcher{hits: hits},
		&fixedAugmenter{err: fmt.Errorf("quota exceeded")}, false)
	res, err = e.Query(context.Background(), "claim", 1, 0.7)
	if err != nil {
		t.Fatalf("Expected soft failure, got %v", err)
	}
	if len(res.Matches) != 1 {
		t.Errorf("Expected local match only, got %d", len(res.Matches))
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	cases := []struct {
		raw  float32
		want float64
	}{
		{1, 1.0},
		{0, 0.5},
		{-1, 0.0},
	}
	for _, tc := range cases {
		if got := Similarity(tc.raw); got != tc.want {
			t.Errorf("Similarity(%g) = %g, want %g", tc.raw, got, tc.want)
		}
	}
}
