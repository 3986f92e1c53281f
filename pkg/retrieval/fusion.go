package retrieval

import "sort"

// FusionMode selects how vector and keyword candidate lists are combined, per
// spec.md §4.4's "Hybrid fusion".
type FusionMode string

const (
	FusionRRF         FusionMode = "rrf"
	FusionWeighted    FusionMode = "weighted"
	FusionVectorOnly  FusionMode = "vector_only"
	FusionKeywordOnly FusionMode = "keyword_only"
)

// RankedCandidate is one entry in a scored candidate list, ordered by the
// producing method's own notion of rank (1-indexed, best first).
type RankedCandidate struct {
	ChunkID    string
	DocID      string
	ChunkIndex int
	Score      float32 // the method's native score (cosine similarity or BM25-like)
}

// FusedResult is one entry in a fused, ranked result list.
type FusedResult struct {
	ChunkID    string
	DocID      string
	ChunkIndex int
	Score      float32
}

// rrfK is the Reciprocal Rank Fusion constant from spec.md §4.4.
const rrfK = 60

// Fuse combines vector and keyword candidate lists per mode, breaking ties by
// ascending ChunkIndex then lexicographic DocID (spec.md §4.4).
func Fuse(vector, keyword []RankedCandidate, mode FusionMode, weightVector, weightKeyword float32) []FusedResult {
	switch mode {
	case FusionVectorOnly:
		return rankOnly(vector)
	case FusionKeywordOnly:
		return rankOnly(keyword)
	case FusionWeighted:
		return fuseWeighted(vector, keyword, weightVector, weightKeyword)
	default:
		return fuseRRF(vector, keyword)
	}
}

func rankOnly(candidates []RankedCandidate) []FusedResult {
	results := make([]FusedResult, len(candidates))
	for i, c := range candidates {
		results[i] = FusedResult{ChunkID: c.ChunkID, DocID: c.DocID, ChunkIndex: c.ChunkIndex, Score: c.Score}
	}
	sortFused(results)
	return results
}

// fuseRRF implements score(x) = Σᵢ 1/(k + rankᵢ(x)), where rankᵢ is 1-indexed
// position in candidate list i. A candidate absent from a list contributes 0 for
// that list.
func fuseRRF(vector, keyword []RankedCandidate) []FusedResult {
	scores := map[string]*FusedResult{}

	accumulate := func(candidates []RankedCandidate) {
		for i, c := range candidates {
			rank := i + 1
			r, ok := scores[c.ChunkID]
			if !ok {
				r = &FusedResult{ChunkID: c.ChunkID, DocID: c.DocID, ChunkIndex: c.ChunkIndex}
				scores[c.ChunkID] = r
			}
			r.Score += 1.0 / float32(rrfK+rank)
		}
	}
	accumulate(vector)
	accumulate(keyword)

	return collectSorted(scores)
}

// fuseWeighted min-max normalizes each list to [0,1] then combines
// score = wV·sV + wK·sK.
func fuseWeighted(vector, keyword []RankedCandidate, weightVector, weightKeyword float32) []FusedResult {
	vNorm := minMaxNormalize(vector)
	kNorm := minMaxNormalize(keyword)

	scores := map[string]*FusedResult{}
	for id, s := range vNorm {
		c := findByID(vector, id)
		r := &FusedResult{ChunkID: id, DocID: c.DocID, ChunkIndex: c.ChunkIndex, Score: weightVector * s}
		scores[id] = r
	}
	for id, s := range kNorm {
		c := findByID(keyword, id)
		if r, ok := scores[id]; ok {
			r.Score += weightKeyword * s
		} else {
			scores[id] = &FusedResult{ChunkID: id, DocID: c.DocID, ChunkIndex: c.ChunkIndex, Score: weightKeyword * s}
		}
	}

	return collectSorted(scores)
}

func findByID(candidates []RankedCandidate, id string) RankedCandidate {
	for _, c := range candidates {
		if c.ChunkID == id {
			return c
		}
	}
	return RankedCandidate{}
}

func minMaxNormalize(candidates []RankedCandidate) map[string]float32 {
	if len(candidates) == 0 {
		return nil
	}
	min, max := candidates[0].Score, candidates[0].Score
	for _, c := range candidates {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}

	normalized := make(map[string]float32, len(candidates))
	spread := max - min
	for _, c := range candidates {
		if spread == 0 {
			normalized[c.ChunkID] = 1
			continue
		}
		normalized[c.ChunkID] = (c.Score - min) / spread
	}
	return normalized
}

func collectSorted(scores map[string]*FusedResult) []FusedResult {
	results := make([]FusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, *r)
	}
	sortFused(results)
	return results
}

// sortFused orders by descending score, then ascending ChunkIndex, then
// lexicographic DocID, per spec.md §4.4's tie-break rule.
func sortFused(results []FusedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].DocID < results[j].DocID
	})
}
