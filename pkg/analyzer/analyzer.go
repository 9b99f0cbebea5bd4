package analyzer

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"sort"

	"github.com/mkarlin/driftscan/internal/models"
	"github.com/mkarlin/driftscan/internal/types"
	"github.com/mkarlin/driftscan/pkg/corpus"
	"github.com/mkarlin/driftscan/pkg/drift"
	"github.com/mkarlin/driftscan/pkg/terms"
)

// Exclusion reasons surfaced in the report.
const (
	ReasonTooFewContexts  = "insufficient contexts"
	ReasonEmbeddingFailed = "embedding failed"
	ReasonZeroNorm        = "zero-norm centroid"
)

type AnalyzerConfig struct {
	MinContexts   int  // contexts required before a decade gets a centroid
	MaxSample     int  // per-decade cap on contexts sent to the embedder
	ShuffleSample bool // seeded shuffle instead of the prefix sample

	// OnTermStart fires before a term's document scan begins; OnTermDone
	// fires after the term completes, with the report built so far (used
	// for checkpointing long batches).
	OnTermStart func(term string)
	OnTermDone  func(term string, report models.Report)
}

// Analyzer runs the extraction → aggregation → embedding → drift pipeline,
// one term at a time. Per-decade failures are isolated: a failed embedding
// call costs that decade its centroid, never the run.
type Analyzer struct {
	config     AnalyzerConfig
	aggregator *corpus.Aggregator
	embedder   types.Embedder
	cache      types.EmbeddingCache // optional, may be nil
}

func New(config AnalyzerConfig, aggregator *corpus.Aggregator, embedder types.Embedder, cache types.EmbeddingCache) Analyzer {
	if config.MinContexts <= 0 {
		config.MinContexts = 2
	}
	if config.MaxSample <= 0 {
		config.MaxSample = 100
	}

	return Analyzer{
		config:     config,
		aggregator: aggregator,
		embedder:   embedder,
		cache:      cache,
	}
}

// Run analyzes each requested term against the corpus and assembles the
// final report. Terms with zero contexts are reported, not errors.
func (a *Analyzer) Run(ctx context.Context, docs []models.Document, table terms.Table, termList []string) (models.Report, error) {
	report := models.Report{
		Model: a.embedder.Model(),
		Terms: make(map[string]models.TermReport),
	}
	report.Stats.DocumentsScanned = len(docs)

	allDecades := make(map[string]struct{})

	for _, term := range termList {
		if a.config.OnTermStart != nil {
			a.config.OnTermStart(term)
		}
		variants := table.Variants(term)

		termReport, decades, err := a.analyzeTerm(ctx, docs, term, variants)
		if err != nil {
			return report, fmt.Errorf("analyzing %q: %v", term, err)
		}

		for _, decade := range decades {
			allDecades[decade] = struct{}{}
		}
		report.Stats.DecadesExcluded += len(termReport.Excluded)
		report.Terms[term] = termReport
		report.Timeline = sortedDecades(allDecades)

		if a.config.OnTermDone != nil {
			a.config.OnTermDone(term, report)
		}
	}

	return report, nil
}

// analyzeTerm runs the full pipeline for one term. The decade buckets are
// local to this call and dropped when it returns, so memory stays bounded
// across a long term list.
func (a *Analyzer) analyzeTerm(ctx context.Context, docs []models.Document, term string, variants []string) (models.TermReport, []string, error) {
	buckets := a.aggregator.Collect(docs, variants)

	termReport := models.TermReport{
		Variants:      variants,
		TotalContexts: buckets.TotalContexts(),
	}

	if termReport.TotalContexts == 0 {
		termReport.Message = fmt.Sprintf("No documents found discussing '%s'", term)
		termReport.Drift = []models.DriftRecord{}
		return termReport, nil, nil
	}

	var centroids []drift.DecadeCentroid

	for _, decade := range sortedKeys(buckets.Contexts) {
		contexts := buckets.Contexts[decade]

		if len(contexts) < a.config.MinContexts {
			termReport.Excluded = append(termReport.Excluded, models.ExcludedDecade{
				Decade:      decade,
				NumContexts: len(contexts),
				Reason:      ReasonTooFewContexts,
			})
			continue
		}

		sample := a.sample(term, decade, contexts)
		vectors, err := a.embed(ctx, sample)
		if err != nil {
			log.Printf("analyzer: %s %s: %v", term, decade, err)
			termReport.Excluded = append(termReport.Excluded, models.ExcludedDecade{
				Decade:      decade,
				NumContexts: len(contexts),
				Reason:      ReasonEmbeddingFailed,
			})
			continue
		}

		centroid, err := drift.Centroid(vectors)
		if err != nil {
			log.Printf("analyzer: %s %s: %v", term, decade, err)
			termReport.Excluded = append(termReport.Excluded, models.ExcludedDecade{
				Decade:      decade,
				NumContexts: len(contexts),
				Reason:      ReasonEmbeddingFailed,
			})
			continue
		}
		if drift.Norm(centroid) == 0 {
			termReport.Excluded = append(termReport.Excluded, models.ExcludedDecade{
				Decade:      decade,
				NumContexts: len(contexts),
				Reason:      ReasonZeroNorm,
			})
			continue
		}

		centroids = append(centroids, drift.DecadeCentroid{
			Decade:      decade,
			Centroid:    centroid,
			NumContexts: len(contexts),
			Examples:    buckets.Examples[decade],
		})
	}

	records, err := drift.Compute(centroids)
	if err != nil {
		return termReport, buckets.Decades(), err
	}
	if records == nil {
		records = []models.DriftRecord{}
	}

	termReport.DecadesCovered = len(centroids)
	termReport.Drift = records

	return termReport, buckets.Decades(), nil
}

// sample caps a decade's contexts before embedding. The default is the
// deterministic prefix in document-scan order, matching checkpointed runs
// byte for byte; ShuffleSample draws a seeded shuffle instead to avoid
// scan-order bias while staying reproducible.
func (a *Analyzer) sample(term, decade string, contexts []models.Context) []string {
	picked := contexts
	if len(contexts) > a.config.MaxSample {
		if a.config.ShuffleSample {
			shuffled := make([]models.Context, len(contexts))
			copy(shuffled, contexts)
			rng := rand.New(rand.NewSource(sampleSeed(term, decade)))
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			picked = shuffled[:a.config.MaxSample]
		} else {
			picked = contexts[:a.config.MaxSample]
		}
	}

	texts := make([]string, len(picked))
	for i, c := range picked {
		texts[i] = c.Text
	}
	return texts
}

func sampleSeed(term, decade string) int64 {
	h := fnv.New64a()
	h.Write([]byte(term))
	h.Write([]byte{0})
	h.Write([]byte(decade))
	return int64(h.Sum64())
}

// embed encodes a batch, consulting the cache first when one is wired.
// Cache failures degrade to a direct embedding call.
func (a *Analyzer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if a.cache == nil {
		return a.embedder.EmbedBatch(ctx, texts)
	}

	model := a.embedder.Model()
	vectors, missing, err := a.cache.Fetch(ctx, model, texts)
	if err != nil {
		log.Printf("analyzer: embedding cache fetch failed, embedding directly: %v", err)
		return a.embedder.EmbedBatch(ctx, texts)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	missingTexts := make([]string, len(missing))
	for i, idx := range missing {
		missingTexts[i] = texts[idx]
	}

	fresh, err := a.embedder.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, err
	}
	for i, idx := range missing {
		vectors[idx] = fresh[i]
	}

	if err := a.cache.Store(ctx, model, missingTexts, fresh); err != nil {
		log.Printf("analyzer: embedding cache store failed: %v", err)
	}

	return vectors, nil
}

func sortedKeys(m map[string][]models.Context) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDecades(set map[string]struct{}) []string {
	decades := make([]string, 0, len(set))
	for d := range set {
		decades = append(decades, d)
	}
	sort.Strings(decades)
	return decades
}
