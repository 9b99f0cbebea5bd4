package corpus

import (
	"fmt"
	"unicode/utf8"

	"github.com/mkarlin/driftscan/internal/models"
	"github.com/mkarlin/driftscan/pkg/extract"
)

type AggregatorConfig struct {
	MaxExamples       int                       // examples kept per decade
	ExamplesPerDoc    int                       // examples one document may contribute
	ExampleTextLimit  int                       // example excerpt cap, in runes
	ExampleTitleLimit int                       // example title cap, in runes
	OnDocument        func(doc models.Document) // progress callback
}

// Aggregator groups extracted contexts by publication decade across a
// document collection.
type Aggregator struct {
	config    AggregatorConfig
	extractor *extract.Extractor
}

func NewAggregator(config AggregatorConfig, extractor *extract.Extractor) Aggregator {
	if config.MaxExamples == 0 {
		config.MaxExamples = 5
	}
	if config.ExamplesPerDoc == 0 {
		config.ExamplesPerDoc = 3
	}
	if config.ExampleTextLimit == 0 {
		config.ExampleTextLimit = 300
	}
	if config.ExampleTitleLimit == 0 {
		config.ExampleTitleLimit = 50
	}

	return Aggregator{
		config:    config,
		extractor: extractor,
	}
}

// Buckets holds one term's contexts grouped by decade, in document-scan
// order, plus the representative examples retained for the report.
type Buckets struct {
	Contexts map[string][]models.Context
	Examples map[string][]models.Example
	Scanned  int
	Skipped  int
}

// TotalContexts counts contexts across all decades.
func (b *Buckets) TotalContexts() int {
	total := 0
	for _, contexts := range b.Contexts {
		total += len(contexts)
	}
	return total
}

// Decades returns every decade label that collected at least one context.
func (b *Buckets) Decades() []string {
	decades := make([]string, 0, len(b.Contexts))
	for decade := range b.Contexts {
		decades = append(decades, decade)
	}
	return decades
}

// Collect scans each document for the variants and buckets the extracted
// contexts by decade. Documents without text or year are skipped and
// counted. Buckets are final once Collect returns.
func (a *Aggregator) Collect(docs []models.Document, variants []string) Buckets {
	buckets := Buckets{
		Contexts: make(map[string][]models.Context),
		Examples: make(map[string][]models.Example),
	}

	for _, doc := range docs {
		if a.config.OnDocument != nil {
			a.config.OnDocument(doc)
		}
		if doc.Text == "" || doc.Year == 0 {
			buckets.Skipped++
			continue
		}
		buckets.Scanned++

		decade := DecadeOf(doc.Year)
		fromDoc := 0

		for excerpt := range a.extractor.Scan(doc.Text, variants) {
			buckets.Contexts[decade] = append(buckets.Contexts[decade], models.Context{
				DocumentID: doc.ID,
				Year:       doc.Year,
				Text:       excerpt,
			})

			if fromDoc < a.config.ExamplesPerDoc && len(buckets.Examples[decade]) < a.config.MaxExamples {
				buckets.Examples[decade] = append(buckets.Examples[decade], a.example(doc, excerpt))
				fromDoc++
			}
		}
	}

	return buckets
}

func (a *Aggregator) example(doc models.Document, excerpt string) models.Example {
	text := excerpt
	if utf8.RuneCountInString(text) > a.config.ExampleTextLimit {
		text = string([]rune(text)[:a.config.ExampleTextLimit]) + "..."
	}
	title := doc.Title
	if utf8.RuneCountInString(title) > a.config.ExampleTitleLimit {
		title = string([]rune(title)[:a.config.ExampleTitleLimit])
	}

	return models.Example{
		Text:  text,
		Year:  doc.Year,
		Title: title,
		DocID: doc.ID,
	}
}

// DecadeOf formats a publication year as its decade label: 1887 is
// "1880s", 1900 is "1900s".
func DecadeOf(year int) string {
	return fmt.Sprintf("%ds", year/10*10)
}
