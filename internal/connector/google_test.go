package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkorolev/factscan/internal/model"
)

const sampleClaims = `{
  "claims": [
    {
      "text": "The earth is flat",
      "claimReview": [
        {
          "publisher": {"name": "Science Review"},
          "url": "https://sciencereview.example/flat-earth",
          "title": "No, the earth is not flat",
          "reviewDate": "2023-05-01T00:00:00Z",
          "textualRating": "False"
        }
      ]
    },
    {
      "text": "Claim with no review"
    }
  ]
}`

func newTestGoogle(t *testing.T, handler http.HandlerFunc) (*GoogleFactCheck, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	g := NewGoogleFactCheck(model.GoogleConfig{APIKey: "test-key", PageSize: 5}, 5*time.Second)
	g.endpoint = server.URL
	return g, server.Close
}

func TestGoogleFactCheck_Fetch(t *testing.T) {
	g, closeServer := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("Expected api key in query, got %q", r.URL.Query().Get("key"))
		}
		if r.URL.Query().Get("query") != "" {
			t.Error("Ingestion fetch must not set a query")
		}
		_, _ = w.Write([]byte(sampleClaims))
	})
	defer closeServer()

	records, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Verdict != "False" || records[0].URL != "https://sciencereview.example/flat-earth" {
		t.Errorf("Unexpected first record: %+v", records[0])
	}
	if records[1].Title != "Claim with no review" {
		t.Errorf("Expected claim text as title fallback, got %q", records[1].Title)
	}
}

func TestGoogleFactCheck_Lookup(t *testing.T) {
	g, closeServer := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "the earth is flat" {
			t.Errorf("Expected claim query, got %q", r.URL.Query().Get("query"))
		}
		_, _ = w.Write([]byte(sampleClaims))
	})
	defer closeServer()

	matches, err := g.Lookup(context.Background(), "the earth is flat")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Score != 1.0 {
			t.Errorf("Expected exact-match score 1.0, got %g", m.Score)
		}
	}
}

func TestGoogleFactCheck_DisabledWithoutKey(t *testing.T) {
	g := NewGoogleFactCheck(model.GoogleConfig{}, time.Second)
	if g.Enabled() {
		t.Fatal("Expected connector disabled without API key")
	}

	records, err := g.Fetch(context.Background())
	if err != nil || records != nil {
		t.Errorf("Expected silent no-op, got %v records err %v", records, err)
	}
	matches, err := g.Lookup(context.Background(), "claim")
	if err != nil || matches != nil {
		t.Errorf("Expected silent no-op, got %v matches err %v", matches, err)
	}
}

func TestGoogleFactCheck_APIError(t *testing.T) {
	g, closeServer := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	defer closeServer()

	if _, err := g.Fetch(context.Background()); err == nil {
		t.Error("Expected error on non-200 status")
	}
}
