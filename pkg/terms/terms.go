package terms

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table maps a canonical term to its ordered multilingual surface-form
// variants. It is loaded once per run and immutable afterwards; callers
// receive copies, never the backing slices.
type Table struct {
	variants map[string][]string
}

// DefaultTable covers the corpus's recurring concepts across English,
// German, French and Latin spellings.
func DefaultTable() Table {
	return New(map[string][]string{
		"intelligence": {
			"intelligence", "intelligenz", "intelligentia", "intellect",
			"understanding", "verstand", "entendement", "reason",
		},
		"automaton": {
			"automaton", "automata", "automate", "automat", "automaten",
			"android", "mechanical man", "machine man", "robot",
		},
		"engine": {
			"engine", "engin", "machine", "maschine", "machina", "mechanick",
			"mechanic", "mechanism", "mechanismus", "device", "apparatus",
		},
		"learning": {
			"learning", "lernen", "apprendre", "study", "education",
			"instruction", "training", "habit", "memory",
		},
		"soul": {
			"soul", "seele", "âme", "anima", "spirit", "geist", "esprit",
			"mind", "psyche",
		},
	})
}

// New builds a table from a canonical-term → variants mapping. Terms are
// stored lowercased; variant order is preserved.
func New(mapping map[string][]string) Table {
	variants := make(map[string][]string, len(mapping))
	for term, forms := range mapping {
		copied := make([]string, len(forms))
		copy(copied, forms)
		variants[strings.ToLower(term)] = copied
	}
	return Table{variants: variants}
}

// Load reads a term-variant table from a yaml file mapping each term to
// a list of variants.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read terms file: %v", err)
	}

	var mapping map[string][]string
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return Table{}, fmt.Errorf("failed to parse terms file: %v", err)
	}

	return New(mapping), nil
}

// Variants returns the registered variants for a term. A term with no
// mapping falls back to itself as its sole variant; lookups are never a
// hard failure.
func (t Table) Variants(term string) []string {
	if forms, ok := t.variants[strings.ToLower(term)]; ok {
		copied := make([]string, len(forms))
		copy(copied, forms)
		return copied
	}
	return []string{term}
}

// Terms lists the canonical terms the table knows about.
func (t Table) Terms() []string {
	names := make([]string, 0, len(t.variants))
	for term := range t.variants {
		names = append(names, term)
	}
	return names
}
