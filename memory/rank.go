package memory

import (
	"fmt"
	"sort"
)

// Dot returns the inner product of two equal-length vectors.
// Embeddings are expected to be close to unit norm, so this approximates
// cosine similarity without normalising.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// rank scores every record against q and returns the best k, highest score
// first. sort.SliceStable keeps storage order between equal scores.
func rank(q []float32, records []*Record, k int) ([]Result, error) {
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) != len(q) {
			return nil, fmt.Errorf("record %s has %d dimensions, query has %d", rec.ID, len(rec.Embedding), len(q))
		}
		results = append(results, Result{
			ID:    rec.ID,
			Text:  rec.Text,
			Score: Dot(q, rec.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}
