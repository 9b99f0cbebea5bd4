package analyzer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlin/driftscan/internal/models"
	"github.com/mkarlin/driftscan/pkg/analyzer"
	"github.com/mkarlin/driftscan/pkg/corpus"
	"github.com/mkarlin/driftscan/pkg/extract"
	"github.com/mkarlin/driftscan/pkg/terms"
)

// fakeEmbedder maps each text to a deterministic non-zero vector so runs
// are reproducible without a live model server. A batch containing
// failMarker errors out; one containing zeroMarker comes back all zeros.
type fakeEmbedder struct {
	calls       int
	failMarker  string
	zeroMarker  string
	batchInputs [][]string
}

func (f *fakeEmbedder) Model() string { return "fake-embedder" }

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batchInputs = append(f.batchInputs, texts)

	zero := false
	for _, text := range texts {
		if f.zeroMarker != "" && strings.Contains(text, f.zeroMarker) {
			zero = true
		}
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failMarker != "" && strings.Contains(text, f.failMarker) {
			return nil, errors.New("model server unavailable")
		}
		if zero {
			vectors[i] = []float32{0, 0, 0}
			continue
		}
		var vowels float32
		for _, r := range text {
			if strings.ContainsRune("aeiou", r) {
				vowels++
			}
		}
		vectors[i] = []float32{
			float32(len(text)%13) + 1,
			vowels + 1,
			float32(len(strings.Fields(text))%7) + 1,
		}
	}
	return vectors, nil
}

// fakeCache is an in-memory EmbeddingCache.
type fakeCache struct {
	entries map[string][]float32
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]float32)}
}

func (c *fakeCache) Fetch(ctx context.Context, model string, texts []string) ([][]float32, []int, error) {
	vectors := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if v, ok := c.entries[model+"\x00"+text]; ok {
			vectors[i] = v
		} else {
			missing = append(missing, i)
		}
	}
	return vectors, missing, nil
}

func (c *fakeCache) Store(ctx context.Context, model string, texts []string, vectors [][]float32) error {
	for i, text := range texts {
		c.entries[model+"\x00"+text] = vectors[i]
	}
	return nil
}

func (c *fakeCache) Close() {}

func newPipeline(cfg analyzer.AnalyzerConfig, emb *fakeEmbedder, cache *fakeCache) analyzer.Analyzer {
	extractor := extract.NewWithConfig(extract.ExtractorConfig{WindowChars: 50})
	aggregator := corpus.NewAggregator(corpus.AggregatorConfig{}, &extractor)
	if cache == nil {
		return analyzer.New(cfg, &aggregator, emb, nil)
	}
	return analyzer.New(cfg, &aggregator, emb, cache)
}

// engineCorpus is the canonical three-document scenario: 1850 with two
// occurrences, 1860 with one, 1950 with five.
func engineCorpus() []models.Document {
	return []models.Document{
		{
			ID: "doc-1850", Year: 1850, Title: "The Exhibition of 1850",
			Text: "The difference engine was exhibited before the society with great ceremony that spring. " +
				"Many learned men pronounced the engine the most remarkable invention of the age, and its wheels turned without error.",
		},
		{
			ID: "doc-1860", Year: 1860, Title: "A Decade of Stillness",
			Text: "No improvement upon the calculating engine has been produced in the past ten years, " +
				"though several gentlemen of science have proposed refinements of the carriage mechanism itself.",
		},
		{
			ID: "doc-1950", Year: 1950, Title: "The Electronic Age",
			Text: "The analytical engine of the modern laboratory is electronic and fills an entire room with its racks. " +
				"Every such engine performs arithmetic at a rate no human computer could hope to approach in a lifetime. " +
				"An engine of this kind consumes the power of a small village when its valves are warm. " +
				"The engine at the national laboratory completed in one afternoon a table that had once taken years. " +
				"Critics reply that an engine cannot be said to think merely because it can be made to count.",
		},
	}
}

func TestRunEngineScenario(t *testing.T) {
	emb := &fakeEmbedder{}
	pipeline := newPipeline(analyzer.AnalyzerConfig{}, emb, nil)

	table := terms.New(map[string][]string{"engine": {"engine"}})
	report, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
	require.NoError(t, err)

	assert.Equal(t, "fake-embedder", report.Model)
	tr, ok := report.Terms["engine"]
	require.True(t, ok)

	assert.Equal(t, 8, tr.TotalContexts)
	assert.Equal(t, 2, tr.DecadesCovered)

	// Exactly two records: 1850s (2 contexts, the threshold) and 1950s
	// (5 contexts). 1860s has one context and is excluded entirely.
	require.Len(t, tr.Drift, 2)

	first := tr.Drift[0]
	assert.Equal(t, "1850s", first.Decade)
	assert.Equal(t, 1.0, first.SimilarityToOrigin)
	assert.Nil(t, first.SimilarityToPrevious)
	assert.Equal(t, 2, first.NumContexts)

	second := tr.Drift[1]
	assert.Equal(t, "1950s", second.Decade)
	assert.Equal(t, 5, second.NumContexts)
	require.NotNil(t, second.SimilarityToPrevious)
	// 1850s is both the reference and the immediate predecessor, so the
	// two similarities coincide.
	assert.Equal(t, second.SimilarityToOrigin, *second.SimilarityToPrevious)

	require.Len(t, tr.Excluded, 1)
	assert.Equal(t, "1860s", tr.Excluded[0].Decade)
	assert.Equal(t, 1, tr.Excluded[0].NumContexts)
	assert.Equal(t, analyzer.ReasonTooFewContexts, tr.Excluded[0].Reason)

	// Timeline is the union of all decades with contexts, excluded ones
	// included.
	assert.Equal(t, []string{"1850s", "1860s", "1950s"}, report.Timeline)
	assert.Equal(t, 1, report.Stats.DecadesExcluded)
}

func TestRunIsIdempotent(t *testing.T) {
	table := terms.New(map[string][]string{"engine": {"engine"}})

	run := func() models.Report {
		pipeline := newPipeline(analyzer.AnalyzerConfig{}, &fakeEmbedder{}, nil)
		report, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
		require.NoError(t, err)
		return report
	}

	assert.Equal(t, run(), run())
}

func TestRunZeroContextTerm(t *testing.T) {
	pipeline := newPipeline(analyzer.AnalyzerConfig{}, &fakeEmbedder{}, nil)

	report, err := pipeline.Run(context.Background(), engineCorpus(), terms.DefaultTable(), []string{"phlogiston"})
	require.NoError(t, err)

	tr := report.Terms["phlogiston"]
	assert.Equal(t, 0, tr.TotalContexts)
	assert.Equal(t, "No documents found discussing 'phlogiston'", tr.Message)
	assert.Empty(t, tr.Drift)
	// The term falls back to itself as its sole variant.
	assert.Equal(t, []string{"phlogiston"}, tr.Variants)
}

func TestRunIsolatesEmbeddingFailures(t *testing.T) {
	// Only the 1950s batch contains "electronic"; failing on that marker
	// kills only that decade's centroid.
	emb := &fakeEmbedder{failMarker: "electronic"}
	pipeline := newPipeline(analyzer.AnalyzerConfig{}, emb, nil)

	table := terms.New(map[string][]string{"engine": {"engine"}})
	report, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
	require.NoError(t, err)

	tr := report.Terms["engine"]
	require.Len(t, tr.Drift, 1)
	assert.Equal(t, "1850s", tr.Drift[0].Decade)
	assert.Equal(t, 1.0, tr.Drift[0].SimilarityToOrigin)

	reasons := make(map[string]string)
	for _, ex := range tr.Excluded {
		reasons[ex.Decade] = ex.Reason
	}
	assert.Equal(t, analyzer.ReasonEmbeddingFailed, reasons["1950s"])
	assert.Equal(t, analyzer.ReasonTooFewContexts, reasons["1860s"])
}

func TestRunExcludesZeroNormCentroids(t *testing.T) {
	// Only the 1950s batch mentions "electronic"; zeroing its vectors
	// leaves a degenerate centroid that must cost the decade, not the run.
	emb := &fakeEmbedder{zeroMarker: "electronic"}
	pipeline := newPipeline(analyzer.AnalyzerConfig{}, emb, nil)

	table := terms.New(map[string][]string{"engine": {"engine"}})
	report, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
	require.NoError(t, err)

	tr := report.Terms["engine"]
	require.Len(t, tr.Drift, 1)
	assert.Equal(t, "1850s", tr.Drift[0].Decade)
	assert.Equal(t, 1.0, tr.Drift[0].SimilarityToOrigin)

	reasons := make(map[string]string)
	contexts := make(map[string]int)
	for _, ex := range tr.Excluded {
		reasons[ex.Decade] = ex.Reason
		contexts[ex.Decade] = ex.NumContexts
	}
	assert.Equal(t, analyzer.ReasonZeroNorm, reasons["1950s"])
	assert.Equal(t, 5, contexts["1950s"])
	assert.Equal(t, analyzer.ReasonTooFewContexts, reasons["1860s"])
	assert.Equal(t, 2, report.Stats.DecadesExcluded)

	// Excluded decades still count toward the timeline.
	assert.Equal(t, []string{"1850s", "1860s", "1950s"}, report.Timeline)
}

func TestRunNonPositiveSampleCapFallsBack(t *testing.T) {
	// A non-positive cap must fall back to the default, not slice out of
	// range on the 1950s bucket.
	emb := &fakeEmbedder{}
	pipeline := newPipeline(analyzer.AnalyzerConfig{MaxSample: -1}, emb, nil)

	table := terms.New(map[string][]string{"engine": {"engine"}})
	report, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
	require.NoError(t, err)
	require.Len(t, report.Terms["engine"].Drift, 2)
}

func TestRunSampleCap(t *testing.T) {
	emb := &fakeEmbedder{}
	pipeline := newPipeline(analyzer.AnalyzerConfig{MaxSample: 3}, emb, nil)

	table := terms.New(map[string][]string{"engine": {"engine"}})
	report, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
	require.NoError(t, err)

	// The 1950s bucket holds 5 contexts but only the 3-context prefix is
	// embedded; the record still reports the full bucket size.
	for _, batch := range emb.batchInputs {
		assert.LessOrEqual(t, len(batch), 3)
	}
	assert.Equal(t, 5, report.Terms["engine"].Drift[1].NumContexts)
}

func TestRunShuffleSampleIsDeterministic(t *testing.T) {
	table := terms.New(map[string][]string{"engine": {"engine"}})

	run := func() models.Report {
		pipeline := newPipeline(analyzer.AnalyzerConfig{MaxSample: 3, ShuffleSample: true}, &fakeEmbedder{}, nil)
		report, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
		require.NoError(t, err)
		return report
	}

	assert.Equal(t, run(), run())
}

func TestRunUsesEmbeddingCache(t *testing.T) {
	table := terms.New(map[string][]string{"engine": {"engine"}})
	cache := newFakeCache()

	first := &fakeEmbedder{}
	pipeline := newPipeline(analyzer.AnalyzerConfig{}, first, cache)
	firstReport, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
	require.NoError(t, err)
	assert.Greater(t, first.calls, 0)

	// A second run over a warm cache never reaches the embedder.
	second := &fakeEmbedder{}
	pipeline = newPipeline(analyzer.AnalyzerConfig{}, second, cache)
	secondReport, err := pipeline.Run(context.Background(), engineCorpus(), table, []string{"engine"})
	require.NoError(t, err)

	assert.Equal(t, 0, second.calls)
	assert.Equal(t, firstReport, secondReport)
}

func TestRunMultipleTermsIndependent(t *testing.T) {
	docs := append(engineCorpus(), models.Document{
		ID: "doc-soul", Year: 1700, Title: "Of the Soul",
		Text: "Philosophers have long held that the soul is not divisible, and that no part " +
			"of it can perish while the whole endures in contemplation. " +
			"Others answer that the soul is but a name for the motions of the body itself.",
	})

	table := terms.New(map[string][]string{
		"engine": {"engine"},
		"soul":   {"soul"},
	})

	var order []string
	pipeline := newPipeline(analyzer.AnalyzerConfig{
		OnTermDone: func(term string, partial models.Report) {
			order = append(order, term)
		},
	}, &fakeEmbedder{}, nil)

	report, err := pipeline.Run(context.Background(), docs, table, []string{"engine", "soul"})
	require.NoError(t, err)

	assert.Equal(t, []string{"engine", "soul"}, order)

	// Each term picks its own reference decade: soul's earliest centroid
	// decade is 1700s, independent of engine's 1850s.
	soul := report.Terms["soul"]
	require.NotEmpty(t, soul.Drift)
	assert.Equal(t, "1700s", soul.Drift[0].Decade)
	assert.Equal(t, 1.0, soul.Drift[0].SimilarityToOrigin)

	// The timeline spans both terms' decades.
	assert.Equal(t, []string{"1700s", "1850s", "1860s", "1950s"}, report.Timeline)
}
