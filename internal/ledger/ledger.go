package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkorolev/factscan/internal/model"
)

// Ledger is the durable record of every fact-check item ever accepted,
// stored as newline-delimited JSON. The file is rewritten wholesale on
// each merge; a single ingesting writer is assumed.
type Ledger struct {
	path string
}

// New creates a ledger backed by the given JSONL file path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// Load reads all previously accepted records in insertion order. A
// missing file is an empty ledger, not an error.
func (l *Ledger) Load() ([]model.Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []model.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec model.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}

// Save rewrites the whole ledger file with the given records. The
// content lands in a temp file first and is renamed over the ledger, so
// a crash mid-write leaves the previous complete ledger intact.
func (l *Ledger) Save(records []model.Record) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	var buf bytes.Buffer
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %q: %w", rec.ID, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// MergeResult reports the outcome of merging incoming raw records into
// an existing ledger sequence.
type MergeResult struct {
	Merged  []model.Record // full ledger after the merge, insertion order preserved
	Added   []model.Record // genuinely new records, in presentation order
	Skipped int            // raw records dropped for lacking any identity
}

// Merge normalizes incoming raw records and appends those whose id is
// not already present. Raw records without a usable identity are
// counted in Skipped and dropped; they never abort the merge. Pure
// function, no I/O.
func Merge(existing []model.Record, incoming []model.RawRecord) MergeResult {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec.ID] = struct{}{}
	}

	res := MergeResult{Merged: existing}
	for _, raw := range incoming {
		rec, err := Normalize(raw)
		if err != nil {
			res.Skipped++
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		res.Merged = append(res.Merged, rec)
		res.Added = append(res.Added, rec)
	}
	return res
}

// MergeAndSave loads the ledger, merges the incoming records and
// persists the result. The ledger file on disk reflects the merge
// before the function returns, so a crash after MergeAndSave leaves the
// ledger ahead of the index, never behind it.
func (l *Ledger) MergeAndSave(incoming []model.RawRecord) (MergeResult, error) {
	existing, err := l.Load()
	if err != nil {
		return MergeResult{}, err
	}
	res := Merge(existing, incoming)
	if err := l.Save(res.Merged); err != nil {
		return MergeResult{}, err
	}
	return res, nil
}
