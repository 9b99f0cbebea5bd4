package corpus

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mkarlin/driftscan/internal/models"
)

type LoaderConfig struct {
	Dir          string // corpus root, holding metadata.json and raw_texts/
	MetadataFile string // overrides <dir>/metadata.json when set
}

type Loader struct {
	config LoaderConfig
}

func NewWithConfig(config LoaderConfig) Loader {
	if config.Dir == "" {
		config.Dir = "corpus"
	}
	if config.MetadataFile == "" {
		config.MetadataFile = filepath.Join(config.Dir, "metadata.json")
	}

	return Loader{
		config: config,
	}
}

// metadataEntry mirrors the corpus builder's index format. Fields the
// analysis does not consume (creator, topic, source_url...) are ignored.
type metadataEntry struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Year       int    `json:"year"`
	Language   string `json:"language"`
	LocalPath  string `json:"local_path"`
}

// Documents loads every readable corpus document with a resolved year.
// Unreadable files and year-less entries are skipped and counted, never
// fatal; only a missing or unparsable metadata index aborts.
func (l *Loader) Documents() ([]models.Document, int, error) {
	data, err := os.ReadFile(l.config.MetadataFile)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read corpus metadata: %v", err)
	}

	var entries []metadataEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("failed to parse corpus metadata: %v", err)
	}

	var docs []models.Document
	skipped := 0

	for _, entry := range entries {
		if entry.Year == 0 {
			log.Printf("corpus: skipping %s: no resolvable year", entry.Identifier)
			skipped++
			continue
		}

		text, err := l.readText(entry)
		if err != nil {
			log.Printf("corpus: skipping %s: %v", entry.Identifier, err)
			skipped++
			continue
		}

		docs = append(docs, models.Document{
			ID:       entry.Identifier,
			Year:     entry.Year,
			Title:    entry.Title,
			Language: entry.Language,
			Text:     text,
		})
	}

	return docs, skipped, nil
}

func (l *Loader) readText(entry metadataEntry) (string, error) {
	if entry.LocalPath == "" {
		return "", fmt.Errorf("no local path")
	}

	path := entry.LocalPath
	data, err := os.ReadFile(path)
	if err != nil {
		// Index paths are often relative to wherever the builder ran;
		// fall back to the raw_texts directory by basename.
		path = filepath.Join(l.config.Dir, "raw_texts", filepath.Base(entry.LocalPath))
		data, err = os.ReadFile(path)
		if err != nil {
			return "", err
		}
	}

	text := string(data)
	if isHTMLPath(path) {
		return flattenHTML(text), nil
	}
	return text, nil
}

func isHTMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// flattenHTML strips markup from HTML-dumped corpus items, keeping only
// the rendered text. On parse failure the raw content is used as-is.
func flattenHTML(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}
