package memory

import (
	"context"
	"sync"

	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/memory/embeddings"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MinContentLength skips embedding entries shorter than this (they are stored
	// without an embedding and are only reachable via metadata filters, not search).
	MinContentLength int

	// BatchSize caps how many entries are embedded per EmbedBatch call; it is
	// further capped by the embedder's own MaxBatchSize.
	BatchSize int

	// DefaultLimit/DefaultThreshold apply when a SearchRequest leaves them zero.
	DefaultLimit     int
	DefaultThreshold float32

	// QueryCacheSize bounds the query-embedding cache.
	QueryCacheSize int
}

func (c *ManagerConfig) applyDefaults() {
	if c.MinContentLength == 0 {
		c.MinContentLength = 10
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.DefaultThreshold == 0 {
		c.DefaultThreshold = 0.7
	}
	if c.QueryCacheSize == 0 {
		c.QueryCacheSize = 1000
	}
}

// Manager coordinates a Backend and an embeddings.Provider: it embeds entries on
// Index, caches query embeddings on Search, and enforces the dimension invariant
// between the two. Grounded on internal/memory/manager.go's Manager, generalized
// from session/channel/agent scoping to CollectionPath.
type Manager struct {
	backend  Backend
	embedder embeddings.Provider
	cfg      ManagerConfig
	cache    *queryCache
}

// NewManager constructs a Manager. backend.Dimension() must equal embedder.Dimension().
func NewManager(backend Backend, embedder embeddings.Provider, cfg ManagerConfig) (*Manager, *errs.Error) {
	cfg.applyDefaults()
	if backend.Dimension() != embedder.Dimension() {
		return nil, errs.New(errs.KindConfiguration, "memory.NewManager",
			"backend dimension does not match embedder dimension")
	}
	return &Manager{
		backend:  backend,
		embedder: embedder,
		cfg:      cfg,
		cache:    newQueryCache(cfg.QueryCacheSize),
	}, nil
}

// Index embeds entries lacking an Embedding (when long enough to be worth embedding)
// and stores all of them via the Backend.
func (m *Manager) Index(ctx context.Context, entries []*Entry) *errs.Error {
	if len(entries) == 0 {
		return nil
	}

	var needsEmbedding []*Entry
	for _, e := range entries {
		if len(e.Embedding) == 0 && len(e.Content) >= m.cfg.MinContentLength {
			needsEmbedding = append(needsEmbedding, e)
		}
	}

	batchSize := m.embedder.MaxBatchSize()
	if m.cfg.BatchSize > 0 && m.cfg.BatchSize < batchSize {
		batchSize = m.cfg.BatchSize
	}
	if batchSize <= 0 {
		batchSize = len(needsEmbedding)
	}

	for i := 0; i < len(needsEmbedding); i += batchSize {
		end := i + batchSize
		if end > len(needsEmbedding) {
			end = len(needsEmbedding)
		}
		batch := needsEmbedding[i:end]

		texts := make([]string, len(batch))
		for j, e := range batch {
			texts[j] = e.Content
		}

		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return errs.Wrap(errs.KindProcessing, "memory.Manager.Index", err)
		}
		for j, e := range batch {
			e.Embedding = vectors[j]
		}
	}

	if err := m.backend.Index(ctx, entries); err != nil {
		return errs.Wrap(errs.KindProcessing, "memory.Manager.Index", err)
	}
	return nil
}

// Search embeds req.Query (using a cache keyed by collection+query) and delegates to
// the Backend.
func (m *Manager) Search(ctx context.Context, req SearchRequest) ([]SearchResult, *errs.Error) {
	if req.Limit == 0 {
		req.Limit = m.cfg.DefaultLimit
	}
	if req.Threshold == 0 {
		req.Threshold = m.cfg.DefaultThreshold
	}

	mode := req.Mode
	if mode == "" {
		mode = SearchModeVector
	}

	var queryEmbedding []float32
	if mode != SearchModeLexical {
		cacheKey := req.CollectionPath + "\x00" + req.Query
		cached, ok := m.cache.get(cacheKey)
		if !ok {
			v, err := m.embedder.Embed(ctx, req.Query)
			if err != nil {
				return nil, errs.Wrap(errs.KindProcessing, "memory.Manager.Search", err)
			}
			cached = v
			m.cache.set(cacheKey, v)
		}
		queryEmbedding = cached
	}

	results, err := m.backend.Search(ctx, queryEmbedding, SearchOptions{
		Query:          req.Query,
		Mode:           mode,
		HybridWeight:   req.HybridWeight,
		CollectionPath: req.CollectionPath,
		Limit:          req.Limit,
		Threshold:      req.Threshold,
		Filters:        req.Filters,
		Principal:      req.Principal,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "memory.Manager.Search", err)
	}
	return results, nil
}

// FindIDsBySource returns the IDs of all entries with the given Source.
func (m *Manager) FindIDsBySource(ctx context.Context, source string) ([]string, *errs.Error) {
	ids, err := m.backend.FindIDsBySource(ctx, source)
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "memory.Manager.FindIDsBySource", err)
	}
	return ids, nil
}

// Delete removes entries by ID.
func (m *Manager) Delete(ctx context.Context, ids []string) *errs.Error {
	if err := m.backend.Delete(ctx, ids); err != nil {
		return errs.Wrap(errs.KindProcessing, "memory.Manager.Delete", err)
	}
	return nil
}

// Count returns the number of entries under collectionPath.
func (m *Manager) Count(ctx context.Context, collectionPath string) (int64, *errs.Error) {
	n, err := m.backend.Count(ctx, collectionPath)
	if err != nil {
		return 0, errs.Wrap(errs.KindProcessing, "memory.Manager.Count", err)
	}
	return n, nil
}

// Compact optimizes the underlying Backend.
func (m *Manager) Compact(ctx context.Context) *errs.Error {
	if err := m.backend.Compact(ctx); err != nil {
		return errs.Wrap(errs.KindProcessing, "memory.Manager.Compact", err)
	}
	return nil
}

// Close releases the Backend's resources.
func (m *Manager) Close() error { return m.backend.Close() }

// queryCache is a small bounded cache for query embeddings, grounded on
// internal/memory/manager.go's embeddingCache. When full it evicts the entry that was
// inserted first; get does not refresh an entry's position.
type queryCache struct {
	mu       sync.RWMutex
	items    map[string][]float32
	order    []string
	capacity int
}

func newQueryCache(capacity int) *queryCache {
	return &queryCache{items: make(map[string][]float32), capacity: capacity}
}

func (c *queryCache) get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *queryCache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
		if len(c.order) > c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
	}
	c.items[key] = value
}
