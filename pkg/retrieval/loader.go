package retrieval

import "context"

// LoadKind tags a LoadResult's variant, grounded on spec.md §4.4's
// LoadResult ∈ {Success(Document), Failure(source, error, recoverable), Skipped(source, reason)}.
type LoadKind string

const (
	LoadSuccess LoadKind = "success"
	LoadFailure LoadKind = "failure"
	LoadSkipped LoadKind = "skipped"
)

// LoadResult is one outcome from a DocumentLoader's lazy sequence.
type LoadResult struct {
	Kind LoadKind

	// Document is populated when Kind is LoadSuccess.
	Document *Document

	// Source identifies the input (path, URI) when Kind is LoadFailure or LoadSkipped.
	Source string

	// Error is populated when Kind is LoadFailure.
	Error error

	// Recoverable indicates a LoadFailure the caller may retry or skip past rather
	// than aborting the whole load.
	Recoverable bool

	// Reason is populated when Kind is LoadSkipped.
	Reason string
}

// LoadStats aggregates the outcomes of one DocumentLoader.Load call.
type LoadStats struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// DocumentLoader yields documents from an external source (filesystem, object
// storage, web crawl) as a lazy sequence. Out of scope per spec.md's Non-goals is
// implementing any concrete source; DocumentLoader is the seam the retrieval
// subsystem consumes.
type DocumentLoader interface {
	// Load streams LoadResults on the returned channel until the source is
	// exhausted or ctx is cancelled, then closes it.
	Load(ctx context.Context) (<-chan LoadResult, error)
}

// Drain consumes a DocumentLoader fully, separating successes from the aggregate
// LoadStats.
func Drain(ctx context.Context, loader DocumentLoader) ([]*Document, LoadStats, error) {
	ch, err := loader.Load(ctx)
	if err != nil {
		return nil, LoadStats{}, err
	}

	var docs []*Document
	var stats LoadStats
	for result := range ch {
		switch result.Kind {
		case LoadSuccess:
			docs = append(docs, result.Document)
			stats.Succeeded++
		case LoadFailure:
			stats.Failed++
		case LoadSkipped:
			stats.Skipped++
		}
	}
	return docs, stats, nil
}
