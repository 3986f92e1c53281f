// Package retrieval implements the Retrieval Pipeline: load, chunk, embed, store,
// and hybrid-search documents under permission-scoped Collections. Grounded on
// internal/rag/{chunker,store,index}, generalized to SPEC_FULL.md's path-addressed
// Collection model and unified on top of pkg/memory.Backend.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Version identifies a specific revision of a Document's content for idempotent
// sync (spec.md §3 "Document/Chunk").
type Version struct {
	ContentHash string
	Timestamp   *time.Time
	ETag        string
}

// HashContent computes the ContentHash for a Document's content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Document is a source document prior to chunking.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
	Hints    map[string]string
	Version  Version
}

// Chunk is one bounded slice of a Document, the unit of embedding and retrieval.
type Chunk struct {
	ParentDocID string
	ChunkIndex  int
	Content     string
	Metadata    map[string]string
}
