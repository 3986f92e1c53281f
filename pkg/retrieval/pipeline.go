package retrieval

import (
	"context"
	"fmt"

	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/memory"
)

// Pipeline drives the Loading/Chunking/Embedding/Storage/Search stages of
// spec.md §4.4, built atop the unified pkg/memory.Manager rather than a separate
// document store (see DESIGN.md's "Memory/Retrieval unification" note).
type Pipeline struct {
	manager *memory.Manager
	chunker Chunker
	tree    *Tree
}

// Config configures a Pipeline.
type Config struct {
	Chunker Chunker // defaults to Simple(1000, 200)
}

// NewPipeline constructs a Pipeline over an already-configured memory.Manager.
func NewPipeline(manager *memory.Manager, tree *Tree, cfg Config) *Pipeline {
	if cfg.Chunker == nil {
		cfg.Chunker = NewSimpleChunker(1000, 200)
	}
	if tree == nil {
		tree = NewTree(nil)
	}
	return &Pipeline{manager: manager, chunker: cfg.Chunker, tree: tree}
}

// Ingest chunks and stores a Document, keyed by (docId, chunkIndex). It always
// re-chunks and re-indexes the document; skipping documents whose content hash is
// unchanged is done by Sync, not by Ingest.
func (p *Pipeline) Ingest(ctx context.Context, doc *Document, collectionPath string) (int, *errs.Error) {
	if doc.Version.ContentHash == "" {
		doc.Version.ContentHash = HashContent(doc.Content)
	}

	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return 0, errs.Wrap(errs.KindProcessing, "retrieval.Pipeline.Ingest", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	entries := make([]*memory.Entry, len(chunks))
	for i, c := range chunks {
		idx := c.ChunkIndex
		entries[i] = &memory.Entry{
			ID:             fmt.Sprintf("%s:%d", doc.ID, c.ChunkIndex),
			Content:        c.Content,
			Kind:           memory.KindKnowledge,
			Source:         doc.ID,
			ChunkIndex:     &idx,
			CollectionPath: collectionPath,
			Metadata:       mergeMetadata(doc.Metadata, c.Metadata, doc.Version.ContentHash),
		}
	}

	if indexErr := p.manager.Index(ctx, entries); indexErr != nil {
		return 0, indexErr
	}
	return len(entries), nil
}

func mergeMetadata(docMeta, chunkMeta map[string]string, contentHash string) map[string]string {
	merged := make(map[string]string, len(docMeta)+len(chunkMeta)+1)
	for k, v := range docMeta {
		merged[k] = v
	}
	for k, v := range chunkMeta {
		merged[k] = v
	}
	merged["contentHash"] = contentHash
	return merged
}

// SearchRequest configures Pipeline.Search.
type SearchRequest struct {
	Query          string
	CollectionPath string
	TopK           int
	Mode           FusionMode
	WeightVector   float32
	WeightKeyword  float32
	Auth           UserAuthorization
}

// Search runs stage 5 (Search): queries the unified Backend in the requested
// fusion mode and applies the Collection permission filter (spec.md §4.4's
// "Permission filter") before truncating to TopK.
func (p *Pipeline) Search(ctx context.Context, req SearchRequest) ([]FusedResult, *errs.Error) {
	mode := searchModeFor(req.Mode)

	results, err := p.manager.Search(ctx, memory.SearchRequest{
		Query:          req.Query,
		Mode:           mode,
		HybridWeight:   req.WeightVector,
		CollectionPath: req.CollectionPath,
		Limit:          req.TopK,
		Principal: memory.Authorization{
			PrincipalIDs: principalStrings(req.Auth.PrincipalIDs),
			IsAdmin:      req.Auth.IsAdmin,
		},
	})
	if err != nil {
		return nil, err
	}

	fused := make([]FusedResult, 0, len(results))
	for _, r := range results {
		if !p.tree.Visible(r.Entry.CollectionPath, req.Auth) {
			continue
		}
		chunkIndex := 0
		if r.Entry.ChunkIndex != nil {
			chunkIndex = *r.Entry.ChunkIndex
		}
		fused = append(fused, FusedResult{
			ChunkID:    r.Entry.ID,
			DocID:      r.Entry.Source,
			ChunkIndex: chunkIndex,
			Score:      r.Score,
		})
	}
	sortFused(fused)

	if req.TopK > 0 && len(fused) > req.TopK {
		fused = fused[:req.TopK]
	}
	return fused, nil
}

func searchModeFor(mode FusionMode) memory.SearchMode {
	switch mode {
	case FusionKeywordOnly:
		return memory.SearchModeLexical
	case FusionVectorOnly:
		return memory.SearchModeVector
	default:
		return memory.SearchModeHybrid
	}
}

func principalStrings(ids []PrincipalID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// SyncStats reports the outcome of a Sync pass (spec.md §4.4's "Sync").
type SyncStats struct {
	Added     int
	Updated   int
	Deleted   int
	Unchanged int
}

// StoredVersion is the minimal state Sync needs per previously-ingested document.
type StoredVersion struct {
	DocID          string
	ContentHash    string
	CollectionPath string
}

// Sync reconciles a loader's current document set against previously stored
// versions using the (docId, contentHash) change-detection key from spec.md §4.4:
// a hash match is Unchanged; a hash mismatch deletes the prior chunks and reinserts
// (Updated); a stored document absent from the loader is Deleted only if
// deleteMissing is set.
func (p *Pipeline) Sync(ctx context.Context, loader DocumentLoader, stored []StoredVersion, collectionPath string, deleteMissing bool) (SyncStats, *errs.Error) {
	docs, _, err := Drain(ctx, loader)
	if err != nil {
		return SyncStats{}, errs.Wrap(errs.KindProcessing, "retrieval.Pipeline.Sync", err)
	}

	storedByID := make(map[string]StoredVersion, len(stored))
	for _, s := range stored {
		storedByID[s.DocID] = s
	}

	var stats SyncStats
	seen := make(map[string]bool, len(docs))

	for _, doc := range docs {
		if doc.Version.ContentHash == "" {
			doc.Version.ContentHash = HashContent(doc.Content)
		}
		seen[doc.ID] = true

		prior, existed := storedByID[doc.ID]
		if existed && prior.ContentHash == doc.Version.ContentHash {
			stats.Unchanged++
			continue
		}

		if existed {
			if delErr := p.deleteDocument(ctx, doc.ID); delErr != nil {
				return stats, delErr
			}
		}
		if _, ingestErr := p.Ingest(ctx, doc, collectionPath); ingestErr != nil {
			return stats, ingestErr
		}
		if existed {
			stats.Updated++
		} else {
			stats.Added++
		}
	}

	if deleteMissing {
		for _, s := range stored {
			if !seen[s.DocID] {
				if delErr := p.deleteDocument(ctx, s.DocID); delErr != nil {
					return stats, delErr
				}
				stats.Deleted++
			}
		}
	}

	return stats, nil
}

func (p *Pipeline) deleteDocument(ctx context.Context, docID string) *errs.Error {
	ids, err := p.manager.FindIDsBySource(ctx, docID)
	if err != nil {
		return err
	}
	return p.manager.Delete(ctx, ids)
}
