package extract

import (
	"iter"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ExtractorConfig struct {
	WindowChars   int // raw window on each side of a match
	MaxExcerptLen int // excerpt cap, in runes
	MinExcerptLen int // excerpts at or below this length are discarded
}

type Extractor struct {
	config ExtractorConfig
}

func NewWithConfig(config ExtractorConfig) Extractor {
	if config.WindowChars <= 0 {
		config.WindowChars = 150
	}
	if config.MaxExcerptLen <= 0 {
		config.MaxExcerptLen = 500
	}
	if config.MinExcerptLen <= 0 {
		config.MinExcerptLen = 50
	}

	return Extractor{
		config: config,
	}
}

type occurrence struct {
	start int
	end   int
}

// Scan locates every whole-word occurrence of any variant in text and
// yields one excerpt per occurrence, in document order. Excerpts are
// windowed lazily as the sequence is consumed; ranging over the sequence
// again re-windows the same matches.
func (e *Extractor) Scan(text string, variants []string) iter.Seq[string] {
	matches := findOccurrences(text, variants)

	return func(yield func(string) bool) {
		for _, m := range matches {
			excerpt, ok := e.window(text, m)
			if !ok {
				continue
			}
			if !yield(excerpt) {
				return
			}
		}
	}
}

// ExtractContexts collects the excerpts from Scan into a slice.
func (e *Extractor) ExtractContexts(text string, variants []string) []string {
	var contexts []string
	for excerpt := range e.Scan(text, variants) {
		contexts = append(contexts, excerpt)
	}
	return contexts
}

// findOccurrences matches each variant case-insensitively and keeps only
// whole-word hits. Two nearby hits from different variants both count;
// overlap is acceptable signal, not an error. Results are sorted by
// position so excerpts come out in document order.
func findOccurrences(text string, variants []string) []occurrence {
	var matches []occurrence

	for _, variant := range variants {
		if variant == "" {
			continue
		}
		pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(variant))
		if err != nil {
			continue
		}
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			if !wholeWord(text, loc[0], loc[1]) {
				continue
			}
			matches = append(matches, occurrence{start: loc[0], end: loc[1]})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end < matches[j].end
	})

	return matches
}

// wholeWord reports whether text[start:end] is delimited by non-word
// runes or text bounds. RE2's \b is ASCII-only, so the boundary check is
// done by hand to keep multilingual variants (âme, maschine) matching.
func wholeWord(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// window expands a match to its surrounding context: a fixed window on
// each side, then extended outward until both ends sit on a sentence
// delimiter or a text bound. Expansion only ever lengthens the slice.
func (e *Extractor) window(text string, m occurrence) (string, bool) {
	start := m.start - e.config.WindowChars
	if start < 0 {
		start = 0
	}
	end := m.end + e.config.WindowChars
	if end > len(text) {
		end = len(text)
	}

	// The delimiters are all single-byte, so stepping bytewise never
	// leaves a slice boundary inside a UTF-8 sequence.
	for start > 0 && !isSentenceDelim(text[start]) {
		start--
	}
	for end < len(text) && !isSentenceDelim(text[end]) {
		end++
	}

	excerpt := strings.TrimSpace(text[start:end])
	excerpt = strings.Join(strings.Fields(excerpt), " ")
	excerpt = truncateRunes(excerpt, e.config.MaxExcerptLen)

	if utf8.RuneCountInString(excerpt) <= e.config.MinExcerptLen {
		return "", false
	}
	if IsBoilerplate(excerpt) {
		return "", false
	}
	return excerpt, true
}

func isSentenceDelim(b byte) bool {
	return b == '.' || b == '!' || b == '?' || b == '\n'
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
