package monitor

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	similarTitleThreshold  = 0.85
	restreamTitleThreshold = 0.7
)

// restreamKeywords mark a title as a rebroadcast of earlier material.
// Korean channels dominate the watch list, hence the Hangul entries.
var restreamKeywords = []string{
	"다시보기",
	"재방송",
	"replay",
	"rerun",
	"재송",
	"encore",
	"앙코르",
	"리플레이",
	"restream",
	"재업로드",
	"reupload",
}

// stopWords carry no signal for title comparison.
var stopWords = map[string]struct{}{
	"live":      {},
	"stream":    {},
	"streaming": {},
	"라이브":       {},
	"방송":        {},
	"the":       {},
	"a":         {},
	"an":        {},
	"and":       {},
	"or":        {},
}

// nonWordPattern strips everything except word characters, whitespace
// and Hangul syllables.
var nonWordPattern = regexp.MustCompile(`[^\w\s가-힣]`)

// tokenizeTitle normalizes a title into a set of comparison tokens:
// NFKC fold, lowercase, punctuation stripped, stop words and
// single-character tokens dropped.
func tokenizeTitle(title string) map[string]struct{} {
	normalized := norm.NFKC.String(title)
	normalized = strings.ToLower(normalized)
	normalized = nonWordPattern.ReplaceAllString(normalized, " ")

	tokens := make(map[string]struct{})
	for _, word := range strings.Fields(normalized) {
		if len([]rune(word)) <= 1 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens[word] = struct{}{}
	}
	return tokens
}

// TitleSimilarity is the Jaccard coefficient of the two token sets.
// Two empty titles compare as identical.
func TitleSimilarity(a, b string) float64 {
	setA := tokenizeTitle(a)
	setB := tokenizeTitle(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// ContainsRestreamKeyword reports whether the title carries any of the
// rebroadcast markers, and which one matched.
func ContainsRestreamKeyword(title string) (string, bool) {
	lowered := strings.ToLower(norm.NFKC.String(title))
	for _, keyword := range restreamKeywords {
		if strings.Contains(lowered, keyword) {
			return keyword, true
		}
	}
	return "", false
}

// StripRestreamKeywords removes the rebroadcast markers so the
// remaining title can be compared against the original broadcast.
// Works on the lowered fold throughout; ToLower can change byte
// lengths, so offsets into it must never be applied to the original.
// Comparison downstream lowercases anyway.
func StripRestreamKeywords(title string) string {
	cleaned := strings.ToLower(norm.NFKC.String(title))
	for _, keyword := range restreamKeywords {
		cleaned = strings.ReplaceAll(cleaned, keyword, "")
	}
	return strings.TrimSpace(cleaned)
}
