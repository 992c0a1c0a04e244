// Package filter implements keyword matching of job postings against the
// user's interest list.
package filter

import (
	"strings"

	"github.com/Prakashmaheshwaran/handshook/internal/model"
)

// Config is the keyword interest list. Substring matching (not token-exact)
// is deliberate: titles vary in phrasing between employers and a missed
// match loses an opportunity with no feedback loop.
type Config struct {
	// Keywords accept a job when any of them is a case-insensitive
	// substring of the title. Empty means accept everything.
	Keywords []string
	// SkipKeywords discard a job when any of them appears in the title,
	// regardless of Keywords. Checked first.
	SkipKeywords []string
}

// Matches reports whether the job passes the keyword filter. Pure function:
// same inputs always produce the same output.
func Matches(job model.JobRecord, cfg Config) bool {
	title := strings.ToLower(job.Title)

	if containsAny(title, cfg.SkipKeywords) {
		return false
	}
	if len(cfg.Keywords) == 0 {
		return true
	}
	return containsAny(title, cfg.Keywords)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
