package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkorolev/factscan/internal/model"
)

// Snapshot bundle layout. All four files must be present and mutually
// consistent for a successful load; anything less reads as "no
// snapshot", which triggers a rebuild instead of a partial load.
const (
	vectorsFile = "vectors.f32"
	idsFile     = "ids.json"
	metasFile   = "metas.json"
	dimFile     = "dim.txt"
)

// errSnapshotMissing marks a snapshot that is absent, partial or
// internally inconsistent. Callers treat it as an empty index.
var errSnapshotMissing = errors.New("snapshot not found")

// saveSnapshot rewrites the whole snapshot bundle under dir.
func saveSnapshot(dir string, s *Store) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	vecs := make([]byte, 0, s.Len()*s.Dim()*4)
	for _, v := range s.vectors {
		for _, x := range v {
			vecs = binary.LittleEndian.AppendUint32(vecs, math.Float32bits(x))
		}
	}
	if err := os.WriteFile(filepath.Join(dir, vectorsFile), vecs, 0644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	ids, err := json.Marshal(s.ids)
	if err != nil {
		return fmt.Errorf("marshal ids: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, idsFile), ids, 0644); err != nil {
		return fmt.Errorf("write ids: %w", err)
	}

	metas, err := json.Marshal(s.metas)
	if err != nil {
		return fmt.Errorf("marshal metas: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metasFile), metas, 0644); err != nil {
		return fmt.Errorf("write metas: %w", err)
	}

	dim := strconv.Itoa(s.Dim())
	if err := os.WriteFile(filepath.Join(dir, dimFile), []byte(dim), 0644); err != nil {
		return fmt.Errorf("write dim: %w", err)
	}
	return nil
}

// loadSnapshot reads the bundle under dir. Returns errSnapshotMissing
// when any component is absent, undecodable or mutually inconsistent.
func loadSnapshot(dir string) (*Store, error) {
	dimRaw, err := os.ReadFile(filepath.Join(dir, dimFile))
	if err != nil {
		return nil, missingOr(err)
	}
	dim, err := strconv.Atoi(strings.TrimSpace(string(dimRaw)))
	if err != nil || dim <= 0 {
		return nil, fmt.Errorf("bad dimension marker %q: %w", dimRaw, errSnapshotMissing)
	}

	idsRaw, err := os.ReadFile(filepath.Join(dir, idsFile))
	if err != nil {
		return nil, missingOr(err)
	}
	var ids []string
	if err := json.Unmarshal(idsRaw, &ids); err != nil {
		return nil, fmt.Errorf("decode ids: %v: %w", err, errSnapshotMissing)
	}

	metasRaw, err := os.ReadFile(filepath.Join(dir, metasFile))
	if err != nil {
		return nil, missingOr(err)
	}
	var metas []model.Metadata
	if err := json.Unmarshal(metasRaw, &metas); err != nil {
		return nil, fmt.Errorf("decode metas: %v: %w", err, errSnapshotMissing)
	}

	vecsRaw, err := os.ReadFile(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, missingOr(err)
	}
	if len(vecsRaw)%(4*dim) != 0 {
		return nil, fmt.Errorf("vector file size %d not a multiple of row size: %w",
			len(vecsRaw), errSnapshotMissing)
	}
	rows := len(vecsRaw) / (4 * dim)
	if rows != len(ids) || rows != len(metas) {
		return nil, fmt.Errorf("parallel lists disagree (%d vectors, %d ids, %d metas): %w",
			rows, len(ids), len(metas), errSnapshotMissing)
	}

	vectors := make([][]float32, rows)
	for i := 0; i < rows; i++ {
		row := make([]float32, dim)
		for j := 0; j < dim; j++ {
			off := (i*dim + j) * 4
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecsRaw[off : off+4]))
		}
		vectors[i] = row
	}

	return &Store{dim: dim, ids: ids, vectors: vectors, metas: metas}, nil
}

// missingOr maps file-not-found onto errSnapshotMissing, leaving real
// I/O failures (permissions, device errors) intact.
func missingOr(err error) error {
	if os.IsNotExist(err) {
		return errSnapshotMissing
	}
	return err
}
