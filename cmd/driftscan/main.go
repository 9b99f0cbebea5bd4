package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mkarlin/driftscan/internal/models"
	"github.com/mkarlin/driftscan/internal/types"
	"github.com/mkarlin/driftscan/pkg/analyzer"
	cfgPkg "github.com/mkarlin/driftscan/pkg/config"
	"github.com/mkarlin/driftscan/pkg/corpus"
	"github.com/mkarlin/driftscan/pkg/extract"
	"github.com/mkarlin/driftscan/pkg/llm"
	"github.com/mkarlin/driftscan/pkg/report"
	"github.com/mkarlin/driftscan/pkg/store"
	"github.com/mkarlin/driftscan/pkg/terms"
	"github.com/schollz/progressbar/v3"
)

type Config struct {
	Terms         string
	TermsFile     string
	CorpusDir     string
	MetadataFile  string
	OutPath       string
	BaseURL       string
	DBUrl         string
	CacheTable    string
	VectorDim     int
	Model         string
	RateLimit     float64
	WindowChars   int
	MaxSample     int
	ShuffleSample bool
	Checkpoint    bool
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config
	var configPath string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&config.Terms, "terms", "", "Comma-separated list of terms to analyze")
	flag.StringVar(&config.TermsFile, "terms-file", "", "YAML file mapping terms to variant lists")
	flag.StringVar(&config.CorpusDir, "corpus", "", "Corpus directory (metadata.json + raw_texts)")
	flag.StringVar(&config.OutPath, "out", "", "Output path for the drift report")
	flag.StringVar(&config.BaseURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string for the embedding cache")
	flag.StringVar(&config.Model, "model", "", "Embedding model to use")
	flag.Float64Var(&config.RateLimit, "rate-limit", 0, "Embedding batch calls per second")
	flag.IntVar(&config.WindowChars, "window", 0, "Context window size in characters")
	flag.IntVar(&config.MaxSample, "max-sample", 0, "Max contexts embedded per decade")
	flag.BoolVar(&config.ShuffleSample, "shuffle-sample", false, "Seeded shuffle instead of prefix sampling")
	flag.BoolVar(&config.Checkpoint, "checkpoint", false, "Write the report after each term")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		// A config file named explicitly must load; defaults cover the rest.
		log.Fatal(err)
	}

	// Flags override file values when provided.
	if config.BaseURL == "" {
		config.BaseURL = cfg.Embedding.BaseURL
	}
	if config.Model == "" {
		config.Model = cfg.Embedding.Model
	}
	if config.RateLimit == 0 {
		config.RateLimit = cfg.Embedding.RateLimit
	}
	if config.DBUrl == "" {
		config.DBUrl = cfg.Database.URL
	}
	config.CacheTable = cfg.Database.TableName
	config.VectorDim = cfg.Database.VectorDim
	if config.CorpusDir == "" {
		config.CorpusDir = cfg.Corpus.Dir
	}
	config.MetadataFile = cfg.Corpus.MetadataFile
	if config.OutPath == "" {
		config.OutPath = cfg.Output.Path
	}
	if config.TermsFile == "" {
		config.TermsFile = cfg.Terms.File
	}
	if config.Terms == "" {
		config.Terms = strings.Join(cfg.Terms.Default, ",")
	}
	if config.WindowChars == 0 {
		config.WindowChars = cfg.Analysis.WindowChars
	}
	if config.MaxSample == 0 {
		config.MaxSample = cfg.Analysis.MaxSample
	}
	if cfg.Analysis.ShuffleSample {
		config.ShuffleSample = true
	}
	if cfg.Output.Checkpoint {
		config.Checkpoint = true
	}

	// Validation runs on the effective values, flag overrides included.
	cfg.Embedding.BaseURL = config.BaseURL
	cfg.Embedding.Model = config.Model
	cfg.Embedding.RateLimit = config.RateLimit
	cfg.Database.URL = config.DBUrl
	cfg.Corpus.Dir = config.CorpusDir
	cfg.Analysis.WindowChars = config.WindowChars
	cfg.Analysis.MaxSample = config.MaxSample
	cfg.Output.Path = config.OutPath

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	return config
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	table := terms.DefaultTable()
	if config.TermsFile != "" {
		loaded, err := terms.Load(config.TermsFile)
		if err != nil {
			return fmt.Errorf("failed to load term variants: %v", err)
		}
		table = loaded
	}

	termList := splitTerms(config.Terms)
	if len(termList) == 0 {
		return fmt.Errorf("no terms to analyze")
	}

	embedder, err := llm.NewWithConfig(llm.EmbedderConfig{
		Model:     config.Model,
		BaseURL:   config.BaseURL,
		RateLimit: config.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	var cache types.EmbeddingCache
	if config.DBUrl != "" {
		c, err := store.NewWithConfig(store.CacheConfig{
			ConnString: config.DBUrl,
			TableName:  config.CacheTable,
			VectorDim:  config.VectorDim,
		})
		if err != nil {
			color.Yellow("Embedding cache unavailable, embedding directly: %v", err)
		} else {
			cache = c
			defer cache.Close()
		}
	}

	loader := corpus.NewWithConfig(corpus.LoaderConfig{
		Dir:          config.CorpusDir,
		MetadataFile: config.MetadataFile,
	})
	var source types.DocumentSource = &loader

	color.Blue("\nLoading corpus from %s", config.CorpusDir)
	docs, skipped, err := source.Documents()
	if err != nil {
		return err
	}
	color.Green("✓ Loaded %d documents (%d skipped)\n", len(docs), skipped)

	extractor := extract.NewWithConfig(extract.ExtractorConfig{
		WindowChars: config.WindowChars,
	})

	var bar *progressbar.ProgressBar
	aggregator := corpus.NewAggregator(corpus.AggregatorConfig{
		OnDocument: func(doc models.Document) {
			if bar != nil {
				bar.Add(1)
			}
		},
	}, &extractor)

	writer := report.NewWithConfig(report.WriterConfig{
		Path: config.OutPath,
	})

	pipeline := analyzer.New(analyzer.AnalyzerConfig{
		MaxSample:     config.MaxSample,
		ShuffleSample: config.ShuffleSample,
		OnTermStart: func(term string) {
			// One bar per term; the aggregator ticks it per document.
			bar = getProgressBar(len(docs), fmt.Sprintf("Scanning for %q", term))
		},
		OnTermDone: func(term string, partial models.Report) {
			if bar != nil {
				bar.Finish()
				bar = nil
			}
			printTermSummary(term, partial.Terms[term])
			if config.Checkpoint {
				if err := writer.Checkpoint(partial); err != nil {
					color.Red("Checkpoint failed: %v", err)
				}
			}
		},
	}, &aggregator, embedder, cache)

	color.Cyan("Analyzing %d terms with model %s\n", len(termList), embedder.Model())

	result, err := pipeline.Run(context.Background(), docs, table, termList)
	if err != nil {
		return err
	}

	result.Stats.DocumentsSkipped = skipped

	if err := writer.Write(result); err != nil {
		return err
	}

	color.Green("\n✓ Results saved to %s\n", writer.Path())
	return nil
}

func printTermSummary(term string, tr models.TermReport) {
	if tr.Message != "" {
		color.Yellow("\n%s", tr.Message)
		return
	}

	color.Green("\n✓ %s: %d contexts across %d decades", term, tr.TotalContexts, tr.DecadesCovered)
	for _, rec := range tr.Drift {
		line := fmt.Sprintf("  %s  origin=%.4f", rec.Decade, rec.SimilarityToOrigin)
		if rec.SimilarityToPrevious != nil {
			line += fmt.Sprintf("  previous=%.4f", *rec.SimilarityToPrevious)
		}
		line += fmt.Sprintf("  (%d contexts)", rec.NumContexts)
		fmt.Println(line)
	}
	for _, ex := range tr.Excluded {
		color.Yellow("  %s excluded: %s (%d contexts)", ex.Decade, ex.Reason, ex.NumContexts)
	}
}

func splitTerms(list string) []string {
	var out []string
	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
