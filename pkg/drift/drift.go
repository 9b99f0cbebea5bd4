package drift

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mkarlin/driftscan/internal/models"
)

// Centroid computes the elementwise mean of a batch of embeddings.
// Accumulation runs in float64 to keep large batches stable.
func Centroid(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no vectors to average")
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("zero-dimensional embedding")
	}

	sums := make([]float64, dim)
	for _, vector := range vectors {
		if len(vector) != dim {
			return nil, fmt.Errorf("ragged embedding batch: got %d and %d dimensions", dim, len(vector))
		}
		for i, v := range vector {
			sums[i] += float64(v)
		}
	}

	centroid := make([]float32, dim)
	n := float64(len(vectors))
	for i, sum := range sums {
		centroid[i] = float32(sum / n)
	}
	return centroid, nil
}

// CosineSimilarity is dot(a,b) / (norm(a) * norm(b)). It fails explicitly
// on zero-norm input rather than returning 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, errors.New("cosine similarity undefined for zero-norm vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Norm returns the Euclidean norm of a vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Round4 rounds a similarity to 4 decimal places so the output artifact
// is reproducible across floating-point environments.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// DecadeCentroid is one decade's aggregate usage of a term, ready for
// drift computation.
type DecadeCentroid struct {
	Decade      string
	Centroid    []float32
	NumContexts int
	Examples    []models.Example
}

// Compute derives the drift records for a term. Decades are sorted
// chronologically; the earliest becomes the reference, with similarity
// to origin fixed at exactly 1.0. Every later record also carries the
// similarity to the record immediately before it in the filtered list.
func Compute(decades []DecadeCentroid) ([]models.DriftRecord, error) {
	if len(decades) == 0 {
		return nil, nil
	}

	sorted := make([]DecadeCentroid, len(decades))
	copy(sorted, decades)
	sort.Slice(sorted, func(i, j int) bool {
		return decadeYear(sorted[i].Decade) < decadeYear(sorted[j].Decade)
	})

	reference := sorted[0]
	records := make([]models.DriftRecord, 0, len(sorted))

	for i, dc := range sorted {
		record := models.DriftRecord{
			Decade:      dc.Decade,
			NumContexts: dc.NumContexts,
			Examples:    dc.Examples,
		}
		if record.Examples == nil {
			record.Examples = []models.Example{}
		}

		if i == 0 {
			record.SimilarityToOrigin = 1.0
		} else {
			simOrigin, err := CosineSimilarity(dc.Centroid, reference.Centroid)
			if err != nil {
				return nil, fmt.Errorf("similarity to origin for %s: %v", dc.Decade, err)
			}
			record.SimilarityToOrigin = Round4(simOrigin)

			simPrev, err := CosineSimilarity(dc.Centroid, sorted[i-1].Centroid)
			if err != nil {
				return nil, fmt.Errorf("similarity to previous for %s: %v", dc.Decade, err)
			}
			rounded := Round4(simPrev)
			record.SimilarityToPrevious = &rounded
		}

		records = append(records, record)
	}

	return records, nil
}

// decadeYear parses the leading year out of a decade label ("1880s").
// Labels that don't parse sort last.
func decadeYear(label string) int {
	year, err := strconv.Atoi(strings.TrimSuffix(label, "s"))
	if err != nil {
		return math.MaxInt
	}
	return year
}
