package analyzer

import (
	"regexp"
	"strings"
)

// maxModeratedLen is the longest content moderation will pass.
const maxModeratedLen = 10000

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[\w._%+-]+@[\w.-]+\.[A-Za-z]{2,}\b`), // email
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                // SSN
	regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),                // phone
	regexp.MustCompile(`\b\d{16}\b`),                           // credit card
}

var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "private_key",
	"confidential", "classified", "restricted",
}

// Moderation is the outcome of a content safety check.
type Moderation struct {
	Safe   bool
	Issues []string
}

// Reason joins the found issues into one line.
func (m Moderation) Reason() string {
	if m.Safe {
		return "content approved"
	}
	return strings.Join(m.Issues, "; ")
}

// Moderate checks text for PII, sensitive keywords, and excessive
// length. Anything flagged here must not be published.
func Moderate(content string) Moderation {
	var issues []string

	for _, pattern := range piiPatterns {
		if pattern.MatchString(content) {
			issues = append(issues, "contains potential PII")
			break
		}
	}

	lower := strings.ToLower(content)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			issues = append(issues, "contains sensitive keyword: "+keyword)
		}
	}

	if len(content) > maxModeratedLen {
		issues = append(issues, "content too long")
	}

	return Moderation{Safe: len(issues) == 0, Issues: issues}
}
