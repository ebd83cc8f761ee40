package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkorolev/factscan/internal/model"
)

// DefaultFactCheckEndpoint is the Google Fact Check Tools claim search
// API.
const DefaultFactCheckEndpoint = "https://factchecktools.googleapis.com/v1alpha1/claims:search"

// GoogleFactCheck talks to the Google Fact Check Tools API. As a
// Connector it ingests the latest published claim reviews; as a query
// augmenter it looks up exact fact-checks for a claim. A missing API
// key disables both silently.
type GoogleFactCheck struct {
	apiKey     string
	pageSize   int
	language   string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleFactCheck creates the client from configuration.
func NewGoogleFactCheck(cfg model.GoogleConfig, timeout time.Duration) *GoogleFactCheck {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &GoogleFactCheck{
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		language:   language,
		endpoint:   DefaultFactCheckEndpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an API key is configured.
func (g *GoogleFactCheck) Enabled() bool { return g.apiKey != "" }

// Name identifies the connector.
func (g *GoogleFactCheck) Name() string { return "google-factcheck" }

// Fetch returns the latest published claim reviews for ingestion.
// Without an API key it returns nothing.
func (g *GoogleFactCheck) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	if !g.Enabled() {
		return nil, nil
	}
	claims, err := g.search(ctx, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	records := make([]model.RawRecord, 0, len(claims))
	for _, c := range claims {
		review := c.firstReview()
		title := review.Title
		if title == "" {
			title = truncate(c.Text, 120)
		}
		records = append(records, model.RawRecord{
			Title:       title,
			Text:        c.Text,
			Source:      review.Publisher.Name,
			URL:         review.URL,
			Verdict:     review.TextualRating,
			PublishedAt: review.ReviewDate,
			RetrievedAt: now,
		})
	}
	return records, nil
}

// Lookup returns published fact-checks matching the claim as exact
// matches (score 1.0), for merging into query results.
func (g *GoogleFactCheck) Lookup(ctx context.Context, claim string) ([]model.Match, error) {
	if !g.Enabled() {
		return nil, nil
	}
	claims, err := g.search(ctx, claim)
	if err != nil {
		return nil, err
	}

	matches := make([]model.Match, 0, len(claims))
	for _, c := range claims {
		review := c.firstReview()
		title := review.Title
		if title == "" {
			title = truncate(c.Text, 120)
		}
		matches = append(matches, model.Match{
			Title:   title,
			Source:  review.Publisher.Name,
			Verdict: review.TextualRating,
			URL:     review.URL,
			Score:   1.0,
		})
	}
	return matches, nil
}

type claimReview struct {
	Publisher struct {
		Name string `json:"name"`
	} `json:"publisher"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	ReviewDate    string `json:"reviewDate"`
	TextualRating string `json:"textualRating"`
}

type apiClaim struct {
	Text    string        `json:"text"`
	Reviews []claimReview `json:"claimReview"`
}

func (c apiClaim) firstReview() claimReview {
	if len(c.Reviews) > 0 {
		return c.Reviews[0]
	}
	return claimReview{}
}

func (g *GoogleFactCheck) search(ctx context.Context, query string) ([]apiClaim, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("pageSize", strconv.Itoa(g.pageSize))
	params.Set("languageCode", g.language)
	if query != "" {
		params.Set("query", query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fact check API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fact check API: status %d", resp.StatusCode)
	}

	var out struct {
		Claims []apiClaim `json:"claims"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Claims, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
