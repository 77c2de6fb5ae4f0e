package retriever

import (
	"math"
	"sort"

	"biorag/internal/domain"
)

// SimilarityRanker scores stored chunks against a query vector with an exact
// linear scan.
type SimilarityRanker struct{}

func NewSimilarityRanker() *SimilarityRanker {
	return &SimilarityRanker{}
}

// Rank returns at most topK chunks ordered by descending dot product with
// query. Chunks without an embedding, with an embedding of another length, or
// whose condition tag is rejected by filter are not candidates. Equal scores
// keep the order of candidates.
func (r *SimilarityRanker) Rank(query []float32, candidates []domain.Chunk, topK int, filter *domain.TagFilter) []domain.RankedMatch {
	if topK <= 0 || len(query) == 0 {
		return nil
	}

	matches := make([]domain.RankedMatch, 0, len(candidates))
	for _, chunk := range candidates {
		if !chunk.HasEmbedding() || len(chunk.Embedding) != len(query) {
			continue
		}
		if !filter.Match(chunk.Source.Condition) {
			continue
		}
		matches = append(matches, domain.RankedMatch{
			Chunk: chunk,
			Score: Dot(query, chunk.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches
}

// Dot returns the raw dot product of a and b, or 0 when their lengths differ.
// Embedding models emit near-unit vectors, so no normalisation is applied.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine returns the cosine similarity of a and b. Ranking does not use it;
// the benchmark reports it next to Dot.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
