package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkorolev/factscan/internal/model"
)

// maxTitleID is the rune length a title is truncated to when used as a
// record identity or display title.
const maxTitleID = 120

// Normalize converts a raw connector record into a canonical Record.
// Pure function: trims whitespace and derives a stable identity with
// the fallback chain URL -> truncated title -> content hash. Returns
// ErrValidation when the record has no usable identity at all.
func Normalize(raw model.RawRecord) (model.Record, error) {
	text := strings.TrimSpace(raw.Text)
	title := strings.TrimSpace(raw.Title)
	url := strings.TrimSpace(raw.URL)

	id := url
	if id == "" && title != "" {
		id = truncateRunes(title, maxTitleID)
	}
	if id == "" && text != "" {
		id = TextID(text)
	}
	if id == "" {
		return model.Record{}, fmt.Errorf("record has no url, title or text: %w", model.ErrValidation)
	}

	displayTitle := title
	if displayTitle == "" {
		displayTitle = truncateRunes(text, maxTitleID)
	}
	if displayTitle == "" {
		displayTitle = "Untitled"
	}

	return model.Record{
		ID:          id,
		Title:       displayTitle,
		Text:        text,
		Source:      strings.TrimSpace(raw.Source),
		URL:         url,
		Verdict:     strings.TrimSpace(raw.Verdict),
		PublishedAt: raw.PublishedAt,
		RetrievedAt: raw.RetrievedAt,
	}, nil
}

// TextID derives the fallback identity for a record that has neither a
// URL nor a title. SHA-256 keeps the id stable across process runs; the
// "sha256:" prefix versions the scheme so it can evolve without
// colliding with older ledgers.
func TextID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "sha256:" + hex.EncodeToString(sum[:16])
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
