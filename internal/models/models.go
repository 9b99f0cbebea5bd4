package models

// Document is one corpus text with resolved publication metadata. The
// corpus loader owns it; the analysis pipeline only reads it.
type Document struct {
	ID       string
	Year     int
	Title    string
	Language string
	Text     string
}

// Context is a single excerpt extracted around one term occurrence,
// already extended to sentence boundaries and cleaned.
type Context struct {
	DocumentID string
	Year       int
	Text       string
}

// Example is a representative excerpt carried into the report for human
// review. Examples never participate in drift computation.
type Example struct {
	Text  string `json:"text"`
	Year  int    `json:"year"`
	Title string `json:"title"`
	DocID string `json:"doc_id"`
}

// DriftRecord holds the similarity metrics for one decade of a term.
// SimilarityToPrevious is nil for the first record in the drift list.
type DriftRecord struct {
	Decade               string    `json:"decade"`
	SimilarityToOrigin   float64   `json:"similarity_to_origin"`
	SimilarityToPrevious *float64  `json:"similarity_to_previous,omitempty"`
	NumContexts          int       `json:"num_contexts"`
	Examples             []Example `json:"examples"`
}

// ExcludedDecade records a decade that produced contexts but no drift
// record, and why.
type ExcludedDecade struct {
	Decade      string `json:"decade"`
	NumContexts int    `json:"num_contexts"`
	Reason      string `json:"reason"`
}

// TermReport is the per-term unit of the output artifact.
type TermReport struct {
	Variants       []string         `json:"variants"`
	TotalContexts  int              `json:"total_contexts"`
	DecadesCovered int              `json:"decades_covered"`
	Drift          []DriftRecord    `json:"drift"`
	Excluded       []ExcludedDecade `json:"excluded_decades,omitempty"`
	Message        string           `json:"message,omitempty"`
}

// RunStats summarizes what the run skipped so exclusions stay queryable.
type RunStats struct {
	DocumentsScanned int `json:"documents_scanned"`
	DocumentsSkipped int `json:"documents_skipped"`
	DecadesExcluded  int `json:"decades_excluded"`
}

// Report is the single externally consumed output of a run.
type Report struct {
	Model    string                `json:"model"`
	Terms    map[string]TermReport `json:"terms"`
	Timeline []string              `json:"timeline"`
	Stats    RunStats              `json:"stats"`
}
