package services

import (
	"regexp"
)

// Terms that send a comment to the pending queue instead of publishing it.
var flaggedTerms = []string{
	"fuck", "shit", "bitch", "cunt", "asshole", "bastard",
	"nigger", "faggot", "retard",
	"porn", "nudes",
	"spam", "scam", "phishing", "malware",
}

// ContentFilter decides whether a comment body can publish immediately or
// needs moderation. It is a heuristic gate, not a verdict: flagged
// comments are stored with pending status, never rejected.
type ContentFilter struct {
	termPatterns []*regexp.Regexp
	urlPattern   *regexp.Regexp
}

func NewContentFilter() *ContentFilter {
	f := &ContentFilter{
		urlPattern: regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`),
	}
	f.termPatterns = make([]*regexp.Regexp, 0, len(flaggedTerms))
	for _, term := range flaggedTerms {
		f.termPatterns = append(f.termPatterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(term)+`\b`))
	}
	return f
}

// NeedsReview reports whether body should be held for moderation, with a
// short reason for the log line.
func (f *ContentFilter) NeedsReview(body string) (bool, string) {
	if f.urlPattern.MatchString(body) {
		return true, "contains link"
	}
	if longestRun(body) >= 8 {
		return true, "repeated characters"
	}
	for _, re := range f.termPatterns {
		if re.MatchString(body) {
			return true, "flagged term"
		}
	}
	if len(body) > 40 {
		letters := 0
		uppers := 0
		for _, r := range body {
			if r >= 'a' && r <= 'z' {
				letters++
			}
			if r >= 'A' && r <= 'Z' {
				letters++
				uppers++
			}
		}
		if letters > 20 && uppers*10 >= letters*8 {
			return true, "mostly uppercase"
		}
	}
	return false, ""
}

// longestRun is the length of the longest run of one repeated rune.
// Go's regexp has no backreferences, so this stays a plain loop.
func longestRun(s string) int {
	var prev rune
	run, best := 0, 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}
