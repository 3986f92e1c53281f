package retrieval

import (
	"context"
	"testing"

	"github.com/nexuscore/agentkit/pkg/memory"
	"github.com/nexuscore/agentkit/pkg/memory/embeddings"
)

// fakeBackend is an in-memory memory.Backend stub, mirroring pkg/memory's own
// test double so the Pipeline can be exercised without a real store.
type fakeBackend struct {
	dimension int
	entries   map[string]*memory.Entry
}

func newFakeBackend(dimension int) *fakeBackend {
	return &fakeBackend{dimension: dimension, entries: make(map[string]*memory.Entry)}
}

func (f *fakeBackend) Index(ctx context.Context, entries []*memory.Entry) error {
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

func (f *fakeBackend) Search(ctx context.Context, queryEmbedding []float32, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	var results []memory.SearchResult
	for _, e := range f.entries {
		if opts.CollectionPath != "" && e.CollectionPath != opts.CollectionPath {
			continue
		}
		results = append(results, memory.SearchResult{Entry: e, Score: 1})
	}
	return results, nil
}

func (f *fakeBackend) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.entries, id)
	}
	return nil
}

func (f *fakeBackend) Count(ctx context.Context, collectionPath string) (int64, error) {
	return int64(len(f.entries)), nil
}

func (f *fakeBackend) FindIDsBySource(ctx context.Context, source string) ([]string, error) {
	var ids []string
	for id, e := range f.entries {
		if e.Source == source {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeBackend) Compact(ctx context.Context) error { return nil }
func (f *fakeBackend) Dimension() int                    { return f.dimension }
func (f *fakeBackend) Close() error                      { return nil }

var _ memory.Backend = (*fakeBackend)(nil)

// fakeEmbedder is a deterministic embeddings.Provider stub.
type fakeEmbedder struct{ dimension int }

func (f *fakeEmbedder) Name() string      { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return f.dimension }
func (f *fakeEmbedder) MaxBatchSize() int { return 10 }

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

func newTestPipeline(t *testing.T) (*Pipeline, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend(4)
	mgr, err := memory.NewManager(backend, &fakeEmbedder{dimension: 4}, memory.ManagerConfig{MinContentLength: 1})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return NewPipeline(mgr, NewTree(nil), Config{Chunker: NewSimpleChunker(20, 0)}), backend
}

func TestPipeline_IngestChunksAndIndexes(t *testing.T) {
	pipeline, backend := newTestPipeline(t)
	doc := &Document{ID: "doc1", Content: "this is a moderately long piece of content to chunk"}

	n, err := pipeline.Ingest(context.Background(), doc, "/docs")
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one chunk indexed")
	}
	if len(backend.entries) != n {
		t.Errorf("expected %d entries in the backend, got %d", n, len(backend.entries))
	}
	for _, e := range backend.entries {
		if e.Source != "doc1" {
			t.Errorf("entry has wrong Source: %q", e.Source)
		}
		if e.CollectionPath != "/docs" {
			t.Errorf("entry has wrong CollectionPath: %q", e.CollectionPath)
		}
		if e.Metadata["contentHash"] == "" {
			t.Error("expected contentHash to be populated in entry metadata")
		}
	}
}

func TestPipeline_IngestEmptyContentIsNoop(t *testing.T) {
	pipeline, backend := newTestPipeline(t)
	n, err := pipeline.Ingest(context.Background(), &Document{ID: "doc1", Content: "   "}, "/docs")
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 chunks for blank content, got %d", n)
	}
	if len(backend.entries) != 0 {
		t.Errorf("expected no entries indexed, got %d", len(backend.entries))
	}
}

func TestPipeline_SearchFiltersByVisibility(t *testing.T) {
	pipeline, backend := newTestPipeline(t)
	pipeline.tree = NewTree([]*Collection{
		{Path: "/docs/secret", QueryableBy: map[PrincipalID]struct{}{"7": {}}},
	})

	backend.entries["chunk1"] = &memory.Entry{
		ID: "chunk1", Content: "secret stuff", Source: "docA",
		CollectionPath: "/docs/secret", Kind: memory.KindKnowledge,
	}

	results, err := pipeline.Search(context.Background(), SearchRequest{
		Query: "secret", CollectionPath: "/docs/secret", TopK: 10,
		Auth: UserAuthorization{PrincipalIDs: []PrincipalID{"9"}},
	})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("principal 9 should not see results under /docs/secret, got %d", len(results))
	}

	results, err = pipeline.Search(context.Background(), SearchRequest{
		Query: "secret", CollectionPath: "/docs/secret", TopK: 10,
		Auth: UserAuthorization{PrincipalIDs: []PrincipalID{"7"}},
	})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("principal 7 should see 1 result, got %d", len(results))
	}
}

func TestPipeline_SearchTruncatesToTopK(t *testing.T) {
	pipeline, backend := newTestPipeline(t)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		backend.entries[id] = &memory.Entry{ID: id, Content: "x", Source: id, Kind: memory.KindKnowledge}
	}

	results, err := pipeline.Search(context.Background(), SearchRequest{Query: "x", TopK: 2})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected results truncated to TopK=2, got %d", len(results))
	}
}

func TestPipeline_SyncAddsUpdatesAndDeletes(t *testing.T) {
	pipeline, backend := newTestPipeline(t)

	// Seed an existing document so Sync sees it as stored.
	if _, err := pipeline.Ingest(context.Background(), &Document{ID: "doc1", Content: "original content here"}, "/docs"); err != nil {
		t.Fatalf("seed Ingest error: %v", err)
	}
	originalHash := HashContent("original content here")

	loader := &fakeLoader{results: []LoadResult{
		{Kind: LoadSuccess, Document: &Document{ID: "doc1", Content: "changed content here now"}},
		{Kind: LoadSuccess, Document: &Document{ID: "doc2", Content: "a brand new document"}},
	}}

	stats, err := pipeline.Sync(context.Background(), loader, []StoredVersion{
		{DocID: "doc1", ContentHash: originalHash, CollectionPath: "/docs"},
		{DocID: "doc3", ContentHash: "stale", CollectionPath: "/docs"},
	}, "/docs", true)
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if stats.Updated != 1 {
		t.Errorf("expected 1 updated document, got %d", stats.Updated)
	}
	if stats.Added != 1 {
		t.Errorf("expected 1 added document, got %d", stats.Added)
	}
	if stats.Deleted != 1 {
		t.Errorf("expected 1 deleted document (doc3, absent from loader), got %d", stats.Deleted)
	}

	for _, e := range backend.entries {
		if e.Source == "doc3" {
			t.Error("doc3's entries should have been deleted")
		}
	}
}

func TestPipeline_SyncUnchangedSkipsReindex(t *testing.T) {
	pipeline, backend := newTestPipeline(t)
	content := "stable content that never changes"
	hash := HashContent(content)

	loader := &fakeLoader{results: []LoadResult{
		{Kind: LoadSuccess, Document: &Document{ID: "doc1", Content: content}},
	}}

	stats, err := pipeline.Sync(context.Background(), loader, []StoredVersion{
		{DocID: "doc1", ContentHash: hash, CollectionPath: "/docs"},
	}, "/docs", false)
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if stats.Unchanged != 1 {
		t.Errorf("expected 1 unchanged document, got %d", stats.Unchanged)
	}
	if stats.Added != 0 || stats.Updated != 0 {
		t.Errorf("expected no add/update for an unchanged document, got %+v", stats)
	}
	if len(backend.entries) != 0 {
		t.Error("an unchanged document should not be re-ingested")
	}
}
