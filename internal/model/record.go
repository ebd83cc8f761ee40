package model

// RawRecord is the shape produced by source connectors before
// normalization. Every field is optional; a record is usable as long as
// at least one of URL, Title, Text is non-empty.
type RawRecord struct {
	Title       string `json:"title,omitempty"`
	Text        string `json:"text,omitempty"`
	Source      string `json:"source,omitempty"`
	URL         string `json:"url,omitempty"`
	Verdict     string `json:"verdict,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	RetrievedAt string `json:"retrieved_at,omitempty"`
}

// Record is a canonical fact-check item accepted into the ledger.
// Immutable once accepted; identified by ID.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Verdict     string `json:"verdict"`
	PublishedAt string `json:"published_at,omitempty"`
	RetrievedAt string `json:"retrieved_at,omitempty"`
}

// Indexable reports whether the record carries text worth embedding.
// Non-indexable records stay in the ledger for audit but are skipped
// when building the vector index.
func (r Record) Indexable() bool {
	return r.Text != ""
}

// Metadata is the per-entry payload stored alongside each vector in the
// index and returned with search results.
type Metadata struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	URL     string `json:"url"`
	Verdict string `json:"verdict"`
}

// Meta extracts the index metadata for an accepted record.
func (r Record) Meta() Metadata {
	return Metadata{
		Title:   r.Title,
		Source:  r.Source,
		URL:     r.URL,
		Verdict: r.Verdict,
	}
}

// Decision is the binary outcome of a claim query.
type Decision string

const (
	DecisionMatched Decision = "matched_fact"
	DecisionNoMatch Decision = "no_match"
)

// Match is a single ranked result of a claim query.
type Match struct {
	Title   string  `json:"title"`
	Source  string  `json:"source"`
	Verdict string  `json:"verdict"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// QueryResult is the full response of a claim query.
type QueryResult struct {
	Decision Decision `json:"decision"`
	Matches  []Match  `json:"matches"`
}
