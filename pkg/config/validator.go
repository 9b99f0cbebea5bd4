package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate embedding config
	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding server URL is required",
		})
	} else if _, err := url.Parse(c.Embedding.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid embedding server URL",
		})
	}

	if c.Embedding.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate analysis config
	if c.Analysis.WindowChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.window_chars",
			Message: "window_chars must be positive",
		})
	}

	if c.Analysis.MinExcerptLen < 0 || c.Analysis.MinExcerptLen >= c.Analysis.MaxExcerptLen {
		errors = append(errors, ValidationError{
			Field:   "analysis.min_excerpt_len",
			Message: "min_excerpt_len must be non-negative and less than max_excerpt_len",
		})
	}

	if c.Analysis.MaxSample < 2 {
		errors = append(errors, ValidationError{
			Field:   "analysis.max_sample",
			Message: "max_sample must be at least 2 (a centroid needs two contexts)",
		})
	}

	if c.Output.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "output.path",
			Message: "output path is required",
		})
	}

	return errors
}
