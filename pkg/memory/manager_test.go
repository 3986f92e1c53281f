package memory

import (
	"context"
	"testing"

	"github.com/nexuscore/agentkit/pkg/memory/embeddings"
)

func TestNewQueryCache(t *testing.T) {
	cache := newQueryCache(10)
	if cache == nil {
		t.Fatal("newQueryCache returned nil")
	}
	if cache.capacity != 10 {
		t.Errorf("capacity = %d, want 10", cache.capacity)
	}
}

func TestQueryCache_SetAndGet(t *testing.T) {
	cache := newQueryCache(10)
	cache.set("key1", []float32{0.1, 0.2, 0.3})

	got, ok := cache.get("key1")
	if !ok {
		t.Fatal("expected key1 to be found")
	}
	if len(got) != 3 {
		t.Errorf("got length %d, want 3", len(got))
	}
}

func TestQueryCache_GetMiss(t *testing.T) {
	cache := newQueryCache(10)
	if _, ok := cache.get("nonexistent"); ok {
		t.Error("expected miss for nonexistent key")
	}
}

func TestQueryCache_Eviction(t *testing.T) {
	cache := newQueryCache(2)
	cache.set("a", []float32{1})
	cache.set("b", []float32{2})
	cache.set("c", []float32{3})

	if _, ok := cache.get("a"); ok {
		t.Error("a should have been evicted")
	}
	if _, ok := cache.get("b"); !ok {
		t.Error("b should still exist")
	}
	if _, ok := cache.get("c"); !ok {
		t.Error("c should still exist")
	}
}

func TestQueryCache_UpdateDoesNotEvict(t *testing.T) {
	cache := newQueryCache(2)
	cache.set("a", []float32{1})
	cache.set("b", []float32{2})
	cache.set("a", []float32{99})

	if _, ok := cache.get("a"); !ok {
		t.Error("a should still exist after update")
	}
	if _, ok := cache.get("b"); !ok {
		t.Error("b should still exist")
	}
}

// fakeBackend is an in-memory Backend stub for exercising Manager without a real store.
type fakeBackend struct {
	dimension int
	indexed   []*Entry
}

func (f *fakeBackend) Index(ctx context.Context, entries []*Entry) error {
	f.indexed = append(f.indexed, entries...)
	return nil
}

func (f *fakeBackend) Search(ctx context.Context, queryEmbedding []float32, opts SearchOptions) ([]SearchResult, error) {
	var results []SearchResult
	for _, e := range f.indexed {
		results = append(results, SearchResult{Entry: e, Score: 1})
	}
	return results, nil
}

func (f *fakeBackend) Delete(ctx context.Context, ids []string) error { return nil }

func (f *fakeBackend) Count(ctx context.Context, collectionPath string) (int64, error) {
	return int64(len(f.indexed)), nil
}

func (f *fakeBackend) FindIDsBySource(ctx context.Context, source string) ([]string, error) {
	var ids []string
	for _, e := range f.indexed {
		if e.Source == source {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (f *fakeBackend) Compact(ctx context.Context) error { return nil }
func (f *fakeBackend) Dimension() int                    { return f.dimension }
func (f *fakeBackend) Close() error                      { return nil }

var _ Backend = (*fakeBackend)(nil)

// fakeEmbedder is a deterministic embeddings.Provider stub.
type fakeEmbedder struct{ dimension int }

func (f *fakeEmbedder) Name() string   { return "fake" }
func (f *fakeEmbedder) Dimension() int { return f.dimension }
func (f *fakeEmbedder) MaxBatchSize() int {
	return 10
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dimension), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dimension)
	}
	return out, nil
}

var _ embeddings.Provider = (*fakeEmbedder)(nil)

func TestNewManager_DimensionMismatch(t *testing.T) {
	_, err := NewManager(&fakeBackend{dimension: 1536}, &fakeEmbedder{dimension: 768}, ManagerConfig{})
	if err == nil {
		t.Fatal("expected a dimension mismatch error")
	}
}

func TestManager_IndexAndSearch(t *testing.T) {
	backend := &fakeBackend{dimension: 8}
	mgr, err := NewManager(backend, &fakeEmbedder{dimension: 8}, ManagerConfig{MinContentLength: 1})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	indexErr := mgr.Index(context.Background(), []*Entry{{Content: "hello world", Kind: KindKnowledge}})
	if indexErr != nil {
		t.Fatalf("Index error: %v", indexErr)
	}
	if len(backend.indexed) != 1 {
		t.Fatalf("expected 1 indexed entry, got %d", len(backend.indexed))
	}
	if len(backend.indexed[0].Embedding) != 8 {
		t.Errorf("expected entry to be embedded with dimension 8, got %d", len(backend.indexed[0].Embedding))
	}

	results, searchErr := mgr.Search(context.Background(), SearchRequest{Query: "hello"})
	if searchErr != nil {
		t.Fatalf("Search error: %v", searchErr)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestManager_IndexSkipsShortContent(t *testing.T) {
	backend := &fakeBackend{dimension: 8}
	mgr, err := NewManager(backend, &fakeEmbedder{dimension: 8}, ManagerConfig{MinContentLength: 100})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	if indexErr := mgr.Index(context.Background(), []*Entry{{Content: "short", Kind: KindKnowledge}}); indexErr != nil {
		t.Fatalf("Index error: %v", indexErr)
	}
	if len(backend.indexed[0].Embedding) != 0 {
		t.Error("expected short content to be stored without an embedding")
	}
}
