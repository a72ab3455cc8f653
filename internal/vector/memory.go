package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/feedsearch/internal/models"
)

// MemoryIndex is an in-process VectorIndex using brute-force search. Insertion
// order is kept so equal scores rank deterministically.
type MemoryIndex struct {
	mu         sync.RWMutex
	created    bool
	dimensions int
	metric     Metric
	ids        []string
	points     map[string]*models.IndexPoint
	snapshot   string
}

// MemoryOption configures a MemoryIndex.
type MemoryOption func(*MemoryIndex)

// WithSnapshot loads the index from path on creation and writes it back on Close.
func WithSnapshot(path string) MemoryOption {
	return func(m *MemoryIndex) { m.snapshot = path }
}

// NewMemoryIndex creates an empty index, or loads its snapshot if configured.
func NewMemoryIndex(opts ...MemoryOption) (*MemoryIndex, error) {
	m := &MemoryIndex{points: make(map[string]*models.IndexPoint)}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Load(m.snapshot); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureCollection creates the collection. Repeating it with the same dimensions
// is a no-op; different dimensions are rejected.
func (m *MemoryIndex) EnsureCollection(_ context.Context, dimensions int, metric Metric) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	if metric == "" {
		metric = Cosine
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		if m.dimensions != dimensions {
			return fmt.Errorf("%w: collection has %d dimensions, requested %d", models.ErrDimensionMismatch, m.dimensions, dimensions)
		}
		return nil
	}
	m.created, m.dimensions, m.metric = true, dimensions, metric
	return nil
}

// DeleteAll removes every point.
func (m *MemoryIndex) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrCollectionNotFound
	}
	m.ids = nil
	m.points = make(map[string]*models.IndexPoint)
	return nil
}

// Upsert stores a copy of point, replacing any point with the same ID in place.
func (m *MemoryIndex) Upsert(_ context.Context, point *models.IndexPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrCollectionNotFound
	}
	if len(point.Vector) != m.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, len(point.Vector), m.dimensions)
	}
	vec := make([]float32, len(point.Vector))
	copy(vec, point.Vector)
	if _, ok := m.points[point.ID]; !ok {
		m.ids = append(m.ids, point.ID)
	}
	m.points[point.ID] = &models.IndexPoint{ID: point.ID, Vector: vec, Payload: point.Payload}
	return nil
}

// Search returns the top limit points. Hits carry payload only.
func (m *MemoryIndex) Search(_ context.Context, query []float32, limit int) ([]*Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil, ErrCollectionNotFound
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", models.ErrDimensionMismatch, len(query), m.dimensions)
	}
	hits := make([]*Hit, 0, len(m.ids))
	if limit <= 0 {
		return hits, nil
	}
	for _, id := range m.ids {
		p := m.points[id]
		hits = append(hits, &Hit{ID: id, Score: score(m.metric, query, p.Vector), Payload: p.Payload})
	}
	ascending := m.metric == Euclidean
	sort.SliceStable(hits, func(i, j int) bool {
		if ascending {
			return hits[i].Score < hits[j].Score
		}
		return hits[i].Score > hits[j].Score
	})
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

// Count returns the number of points.
func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return 0, ErrCollectionNotFound
	}
	return len(m.ids), nil
}

// Close writes the snapshot if one is configured.
func (m *MemoryIndex) Close() error {
	return m.Save(m.snapshot)
}

// Save writes the index to path, creating the directory if needed. Format, all
// little endian: metric, dimensions (4), n (4), then per point: id, title, url,
// vector (dimensions*4 bytes). Strings are a 4-byte length followed by bytes.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.write(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *MemoryIndex) write(w io.Writer) error {
	if err := writeString(w, string(m.metric)); err != nil {
		return fmt.Errorf("write metric: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	buf := make([]byte, m.dimensions*4)
	for _, id := range m.ids {
		p := m.points[id]
		for _, s := range []string{p.ID, p.Payload.Title, p.Payload.URL} {
			if err := writeString(w, s); err != nil {
				return fmt.Errorf("write point %s: %w", id, err)
			}
		}
		for i, v := range p.Vector {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load replaces the index contents with the snapshot at path. A missing file
// leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	metric, err := readString(r)
	if err != nil {
		return fmt.Errorf("read metric: %w", err)
	}
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	ids := make([]string, 0, n)
	points := make(map[string]*models.IndexPoint, n)
	buf := make([]byte, dim*4)
	for i := uint32(0); i < n; i++ {
		var fields [3]string
		for j := range fields {
			if fields[j], err = readString(r); err != nil {
				return fmt.Errorf("read point %d: %w", i, err)
			}
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		vec := make([]float32, dim)
		for k := range vec {
			vec[k] = math.Float32frombits(binary.LittleEndian.Uint32(buf[k*4:]))
		}
		ids = append(ids, fields[0])
		points[fields[0]] = &models.IndexPoint{
			ID:      fields[0],
			Vector:  vec,
			Payload: models.Payload{Title: fields[1], URL: fields[2]},
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.created, m.metric, m.dimensions = true, Metric(metric), int(dim)
	m.ids, m.points = ids, points
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
