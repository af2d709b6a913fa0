package memory

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"expensedash/internal/core"
	"expensedash/internal/store"

	"github.com/google/uuid"
)

// Store keeps collections in process memory. Documents are copied on the way
// in and out so callers never share maps with the store.
type Store struct {
	mu          sync.Mutex
	collections map[string][]core.RawRecord
	newID       func() string
}

var _ store.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string][]core.RawRecord),
		newID:       uuid.NewString,
	}
}

// NewFromFile creates a store and seeds collection with one JSON document per
// line of path. A missing file yields an empty store.
func NewFromFile(path, collection string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	docs, err := readLines(path)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if _, err := s.Insert(context.Background(), collection, doc); err != nil {
			return nil, err
		}
	}
	slog.Info("Seeded memory store", "component", "store", "collection", collection, "rows", len(docs))
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) FetchAll(ctx context.Context, collection string) ([]core.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.E(core.KindConnection, "memory.fetch_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.collections[collection]
	out := make([]core.RawRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, core.RawRecord{ID: r.ID, Fields: copyDoc(r.Fields)})
	}
	return out, nil
}

// Insert stores a copy of doc under a fresh uuid.
func (s *Store) Insert(ctx context.Context, collection string, doc core.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.E(core.KindWrite, "memory.insert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.collections[collection] = append(s.collections[collection], core.RawRecord{ID: id, Fields: copyDoc(doc)})
	return id, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, core.E(core.KindWrite, "memory.delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.collections[collection]
	for i, r := range recs {
		if r.ID == id {
			s.collections[collection] = append(recs[:i:i], recs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Close() error { return nil }

func copyDoc(doc core.Document) core.Document {
	out := make(core.Document, len(doc))
	for k, v := range doc {
		if items, ok := v.([]string); ok {
			v = append([]string(nil), items...)
		}
		out[k] = v
	}
	return out
}

func readLines(path string) ([]core.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	var out []core.Document
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		doc, err := store.DecodeDocument([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("seed file %s line %d: %w", path, n, err)
		}
		out = append(out, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, nil
}
