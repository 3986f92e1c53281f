// Package memory implements the Memory Store: an append/search store over Memory
// entries with vector similarity and metadata filtering, unified with the Retrieval
// Pipeline's document storage under one Backend interface. Grounded on
// internal/memory/manager.go, generalized from its session/channel/agent scoping to
// the spec's path-addressed Collection model.
package memory

import (
	"context"

	"github.com/nexuscore/agentkit/pkg/errs"
)

// Kind tags what a Memory entry represents.
type Kind string

const (
	KindKnowledge    Kind = "knowledge"
	KindConversation Kind = "conversation"
	KindUserFact     Kind = "user_fact"
	KindEntityFact   Kind = "entity_fact"
)

// Entry is one Memory entry. If Embedding is non-nil, its length must equal the
// owning Backend's declared Dimension(); Backend.Index enforces this.
type Entry struct {
	ID             string
	Content        string
	Kind           Kind
	Source         string
	ChunkIndex     *int
	CollectionPath string
	Metadata       map[string]string
	Importance     float64
	Embedding      []float32
}

// SearchMode selects how a Backend ranks entries against a query.
type SearchMode string

const (
	// SearchModeVector ranks purely by embedding cosine similarity (the default).
	SearchModeVector SearchMode = "vector"
	// SearchModeLexical ranks purely by text relevance (BM25-like), ignoring the
	// query embedding entirely.
	SearchModeLexical SearchMode = "lexical"
	// SearchModeHybrid fuses vector and lexical rankings; the Retrieval Pipeline
	// uses this when asked for hybrid search instead of re-deriving fusion itself.
	SearchModeHybrid SearchMode = "hybrid"
)

// SearchRequest asks a Backend for the entries most relevant to Query.
type SearchRequest struct {
	Query          string
	Mode           SearchMode
	HybridWeight   float32 // vector weight in [0,1]; lexical gets 1-HybridWeight
	CollectionPath string
	Limit          int
	Threshold      float32
	Filters        map[string]any
	Principal      Authorization
}

// Authorization is the caller's identity for permission-filtered search, mirrored
// from spec.md §4.4's UserAuthorization{principalIds, isAdmin}.
type Authorization struct {
	PrincipalIDs []string
	IsAdmin      bool
}

// SearchResult pairs a stored Entry with its similarity score.
type SearchResult struct {
	Entry *Entry
	Score float32
}

// Backend is the storage contract shared by the Memory Store and the Retrieval
// Pipeline's document store (Document/Chunk entries are indexed as Entries with
// Kind=Knowledge and a populated ChunkIndex/Source).
type Backend interface {
	// Index upserts entries, assigning IDs/timestamps where absent.
	Index(ctx context.Context, entries []*Entry) error

	// Search returns entries ranked by similarity to queryEmbedding, filtered by
	// CollectionPath/Filters. The bundled backends do not apply opts.Principal.
	Search(ctx context.Context, queryEmbedding []float32, opts SearchOptions) ([]SearchResult, error)

	// Delete removes entries by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of entries under collectionPath ("" means all).
	Count(ctx context.Context, collectionPath string) (int64, error)

	// FindIDsBySource returns the IDs of all entries with the given Source
	// (typically a Document ID), for Sync's delete-then-reinsert path.
	FindIDsBySource(ctx context.Context, source string) ([]string, error)

	// Compact optimizes underlying storage (vacuum, reindex).
	Compact(ctx context.Context) error

	// Dimension returns the embedding dimensionality this Backend was created with.
	Dimension() int

	// Close releases backend resources.
	Close() error
}

// SearchOptions parameterizes Backend.Search.
type SearchOptions struct {
	// Query is the raw query text; required when Mode is Lexical or Hybrid.
	Query          string
	Mode           SearchMode
	HybridWeight   float32
	CollectionPath string
	Limit          int
	Threshold      float32
	Filters        map[string]any
	Principal      Authorization
}

// ValidateEmbedding enforces the spec's dimensionality invariant (§3 "Memory entry"):
// if an entry carries an embedding, its length must equal dimension.
func ValidateEmbedding(embedding []float32, dimension int) *errs.Error {
	if len(embedding) == 0 {
		return nil
	}
	if len(embedding) != dimension {
		return errs.New(errs.KindValidation, "memory.ValidateEmbedding",
			"embedding dimension does not match store dimension")
	}
	return nil
}
