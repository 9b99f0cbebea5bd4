package extract

import "regexp"

// Digitization-artifact phrases left behind by Google Books, HathiTrust
// and similar scanning pipelines. Matched in order, first hit wins.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)google book search`),
	regexp.MustCompile(`(?i)automated querying`),
	regexp.MustCompile(`(?i)automated queries`),
	regexp.MustCompile(`(?i)non-commercial use`),
	regexp.MustCompile(`(?i)public domain`),
	regexp.MustCompile(`(?i)copyright law`),
	regexp.MustCompile(`(?i)generated from`),
	regexp.MustCompile(`(?i)hathitrust`),
	regexp.MustCompile(`(?i)digitized by`),
	regexp.MustCompile(`(?i)scanned from`),
	regexp.MustCompile(`(?i)this is a digital copy`),
	regexp.MustCompile(`(?i)terms of service`),
	regexp.MustCompile(`(?i)google's mission`),
}

// IsBoilerplate reports whether text looks like scanner or digitization
// notice text rather than genuine content.
func IsBoilerplate(text string) bool {
	for _, pattern := range boilerplatePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
