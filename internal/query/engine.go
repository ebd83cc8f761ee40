package query

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/pkorolev/factscan/internal/index"
	"github.com/pkorolev/factscan/internal/model"
)

// Embedder is the single-text embedding capability the engine needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the nearest-neighbor capability the engine needs.
type Searcher interface {
	Search(query []float32, topK int) ([]index.Hit, error)
}

// Augmenter contributes extra matches from an external fact-check
// lookup (the Google Fact Check Tools API). Augmenter failures are
// soft: the engine logs and continues with local matches only.
type Augmenter interface {
	Lookup(ctx context.Context, claim string) ([]model.Match, error)
}

// Engine turns a raw claim into a ranked, threshold-filtered set of
// fact-check matches and a binary decision.
//
// Metric convention: the index stores unit-normalized vectors and
// searches by inner product, so the raw metric lies in [-1, 1] and is
// mapped to a similarity score with (raw+1)/2. The distance convention
// (1/(1+d)) is deliberately not supported; one deployment uses exactly
// one convention.
type Engine struct {
	embedder  Embedder
	searcher  Searcher
	augmenter Augmenter // optional
	verbose   bool
}

// New creates a query engine. The embedder must use the same model
// identity the index was built with. augmenter may be nil.
func New(embedder Embedder, searcher Searcher, augmenter Augmenter, verbose bool) *Engine {
	return &Engine{embedder: embedder, searcher: searcher, augmenter: augmenter, verbose: verbose}
}

// Query embeds the claim, searches the index and applies the decision
// rule: if any match reaches scoreThreshold the decision is
// matched_fact with the filtered list; otherwise no_match with the full
// candidate list for diagnostics. Both lists are sorted by descending
// score, ties keeping original neighbor rank. An embedding failure
// propagates; it is never disguised as no_match.
func (e *Engine) Query(ctx context.Context, text string, topK int, scoreThreshold float64) (model.QueryResult, error) {
	if topK < 1 {
		return model.QueryResult{}, fmt.Errorf("top_k must be >= 1, got %d: %w", topK, model.ErrValidation)
	}
	if scoreThreshold < 0 || scoreThreshold > 1 {
		return model.QueryResult{}, fmt.Errorf("score_threshold must be in [0, 1], got %g: %w",
			scoreThreshold, model.ErrValidation)
	}

	vec, err := e.embedder.EmbedOne(ctx, text)
	if err != nil {
		return model.QueryResult{}, fmt.Errorf("embed query: %w", err)
	}
	index.Normalize(vec)

	hits, err := e.searcher.Search(vec, topK)
	if err != nil {
		return model.QueryResult{}, fmt.Errorf("search index: %w", err)
	}

	candidates := make([]model.Match, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, model.Match{
			Title:   hit.Meta.Title,
			Source:  hit.Meta.Source,
			Verdict: hit.Meta.Verdict,
			URL:     hit.Meta.URL,
			Score:   Similarity(hit.Raw),
		})
	}

	if e.augmenter != nil {
		extra, err := e.augmenter.Lookup(ctx, text)
		if err != nil {
			if e.verbose {
				fmt.Fprintf(os.Stderr, "Warning: fact-check lookup failed: %v\n", err)
			}
		} else {
			candidates = append(candidates, extra...)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var filtered []model.Match
	for _, m := range candidates {
		if m.Score >= scoreThreshold {
			filtered = append(filtered, m)
		}
	}

	if len(filtered) > 0 {
		return model.QueryResult{Decision: model.DecisionMatched, Matches: filtered}, nil
	}
	return model.QueryResult{Decision: model.DecisionNoMatch, Matches: candidates}, nil
}

// Similarity maps a raw inner product on unit vectors into (0, 1].
func Similarity(raw float32) float64 {
	return (float64(raw) + 1) / 2
}
