package sqlitevec

import (
	"context"
	"testing"

	"github.com/nexuscore/agentkit/pkg/memory"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{Dimension: 4})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return b
}

func TestNew_DefaultsToMemoryAndDimension(t *testing.T) {
	b, err := New(Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer b.Close()

	if b.Dimension() != 1536 {
		t.Errorf("dimension = %d, want 1536", b.Dimension())
	}
}

func TestBackend_IndexAssignsIDAndRoundTrips(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	e := &memory.Entry{Content: "the quick brown fox", Kind: memory.KindKnowledge, Embedding: []float32{1, 0, 0, 0}}
	if err := b.Index(context.Background(), []*memory.Entry{e}); err != nil {
		t.Fatalf("Index error: %v", err)
	}
	if e.ID == "" {
		t.Error("expected an ID to be assigned")
	}

	n, err := b.Count(context.Background(), "")
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestBackend_IndexRejectsWrongDimension(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	e := &memory.Entry{Content: "mismatched", Embedding: []float32{1, 2}}
	if err := b.Index(context.Background(), []*memory.Entry{e}); err == nil {
		t.Fatal("expected a dimension mismatch error")
	}
}

func TestBackend_SearchRanksBySimilarity(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	entries := []*memory.Entry{
		{Content: "aligned", Embedding: []float32{1, 0, 0, 0}},
		{Content: "orthogonal", Embedding: []float32{0, 1, 0, 0}},
	}
	if err := b.Index(context.Background(), entries); err != nil {
		t.Fatalf("Index error: %v", err)
	}

	results, err := b.Search(context.Background(), []float32{1, 0, 0, 0}, memory.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Entry.Content != "aligned" {
		t.Errorf("expected aligned entry to rank first, got %q", results[0].Entry.Content)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted descending: %v", results)
	}
}

func TestBackend_SearchFiltersByCollectionPath(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	entries := []*memory.Entry{
		{Content: "in scope", CollectionPath: "docs/team-a", Embedding: []float32{1, 0, 0, 0}},
		{Content: "out of scope", CollectionPath: "docs/team-b", Embedding: []float32{1, 0, 0, 0}},
	}
	if err := b.Index(context.Background(), entries); err != nil {
		t.Fatalf("Index error: %v", err)
	}

	results, err := b.Search(context.Background(), []float32{1, 0, 0, 0}, memory.SearchOptions{CollectionPath: "docs/team-a", Limit: 10})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 1 || results[0].Entry.Content != "in scope" {
		t.Fatalf("expected only the in-scope entry, got %+v", results)
	}
}

func TestBackend_DeleteRemovesEntries(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	e := &memory.Entry{Content: "to delete", Embedding: []float32{1, 0, 0, 0}}
	if err := b.Index(context.Background(), []*memory.Entry{e}); err != nil {
		t.Fatalf("Index error: %v", err)
	}

	if err := b.Delete(context.Background(), []string{e.ID}); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	n, err := b.Count(context.Background(), "")
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0 after delete", n)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical vectors", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal vectors", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "mismatched lengths", a: []float32{1, 2}, b: []float32{1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff < -0.001 || diff > 0.001 {
				t.Errorf("cosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeEmbeddingRoundTrip(t *testing.T) {
	original := []float32{0.1, -0.5, 3.25, 0}
	decoded := decodeEmbedding(encodeEmbedding(original))
	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: got %d, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("decoded[%d] = %v, want %v", i, decoded[i], original[i])
		}
	}
}

func TestLexicalScore(t *testing.T) {
	score := lexicalScore("the quick brown fox", []string{"quick", "missing"})
	if score != 0.5 {
		t.Errorf("lexicalScore = %v, want 0.5", score)
	}
}
