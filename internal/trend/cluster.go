package trend

import (
	"strings"
	"unicode"

	"TrendPress/internal/ingest"
)

// Clustering uses shared-keyword Jaccard similarity over normalized
// tokens. A post joins the best-matching topic at or above joinThreshold,
// otherwise it seeds a new one. Topics are compared in stable ID order and
// ties go to the earlier topic, so replaying the same inputs reproduces
// the same clusters.
const joinThreshold = 0.25

const maxSignatureTokens = 30

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "this": {}, "that": {},
	"with": {}, "they": {}, "from": {}, "will": {}, "what": {}, "when": {},
	"been": {}, "were": {}, "their": {}, "there": {}, "about": {},
	"would": {}, "which": {}, "just": {}, "like": {}, "more": {},
	"some": {}, "into": {}, "than": {}, "them": {}, "then": {}, "its": {},
	"his": {}, "she": {}, "him": {}, "your": {}, "who": {}, "how": {},
	"why": {}, "over": {}, "after": {}, "before": {}, "because": {},
}

// Tokens normalizes post content to its keyword set: lowercased,
// punctuation-split, stopwords and short tokens removed, first-seen order
// preserved.
func Tokens(content string) []string {
	text := strings.ToLower(ingest.PlainText(content))
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	var tokens []string
	for _, field := range fields {
		if len([]rune(field)) < 3 {
			continue
		}
		if _, stop := stopwords[field]; stop {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		tokens = append(tokens, field)
	}

	return tokens
}

// Jaccard computes |a∩b| / |a∪b| over two token sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}

	intersection := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, tok := range b {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}

// MergeSignature unions new tokens into a topic signature, capped so old
// topics do not absorb every passing keyword.
func MergeSignature(signature, tokens []string) []string {
	seen := make(map[string]struct{}, len(signature))
	for _, tok := range signature {
		seen[tok] = struct{}{}
	}

	for _, tok := range tokens {
		if len(signature) >= maxSignatureTokens {
			break
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		signature = append(signature, tok)
	}

	return signature
}

// Label derives a human-readable topic label from its leading keywords.
func Label(tokens []string) string {
	n := len(tokens)
	if n > 3 {
		n = 3
	}
	if n == 0 {
		return "untitled"
	}
	return strings.Join(tokens[:n], " ")
}
