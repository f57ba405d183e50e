package service

import (
	"strconv"
	"strings"

	"github.com/coursegen/worldmodel/internal/domain"
)

// DefaultNegationTokenThreshold is the minimum count of shared non-trivial
// tokens before a one-sided negation counts as a contradiction.
const DefaultNegationTokenThreshold = 3

// negationMarkers are single-token negations. "no longer" is handled as a
// bigram in hasNegation.
var negationMarkers = map[string]struct{}{
	"not":     {},
	"never":   {},
	"cannot":  {},
	"nor":     {},
	"neither": {},
}

// stopwords are trivial tokens ignored by the overlap and keyword checks.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "of": {}, "to": {}, "in": {}, "on": {}, "at": {},
	"by": {}, "for": {}, "with": {}, "and": {}, "or": {}, "it": {}, "its": {},
	"that": {}, "this": {}, "as": {}, "from": {},
}

// DefaultAntonyms seeds the antonym-pair heuristic with the indicator pairs
// the world model has always used plus systems vocabulary.
func DefaultAntonyms() map[string]string {
	return map[string]string{
		"increases":   "decreases",
		"improves":    "worsens",
		"higher":      "lower",
		"more":        "less",
		"positive":    "negative",
		"better":      "worse",
		"centralized": "distributed",
		"synchronous": "asynchronous",
		"mutable":     "immutable",
		"guarantees":  "violates",
	}
}

// Detector judges whether two claims on the same subject are semantically
// opposed. It is pure and deterministic, and deliberately conservative:
// over-flagging would poison resolution, so every heuristic requires the
// bodies to overlap before it fires.
type Detector struct {
	// TokenThreshold is the shared non-trivial token count required by the
	// negation heuristic.
	TokenThreshold int
	antonyms       map[string]string
}

// NewDetector builds a detector. The antonym table is normalized so lookup
// works from either term of a pair; nil antonyms selects the default table.
func NewDetector(tokenThreshold int, antonyms map[string]string) *Detector {
	if tokenThreshold <= 0 {
		tokenThreshold = DefaultNegationTokenThreshold
	}
	if antonyms == nil {
		antonyms = DefaultAntonyms()
	}
	table := make(map[string]string, len(antonyms)*2)
	for term, opposite := range antonyms {
		table[strings.ToLower(term)] = strings.ToLower(opposite)
		table[strings.ToLower(opposite)] = strings.ToLower(term)
	}
	return &Detector{TokenThreshold: tokenThreshold, antonyms: table}
}

// Compare reports whether a and b contradict each other. Symmetric:
// Compare(a, b) == Compare(b, a).
func (d *Detector) Compare(a, b *domain.Claim) bool {
	if a.SubjectID == "" || a.SubjectID != b.SubjectID {
		return false
	}

	ta := tokenize(a.Body)
	tb := tokenize(b.Body)

	if d.negationConflict(ta, tb) {
		return true
	}
	if d.numericConflict(ta, tb) {
		return true
	}
	return d.antonymConflict(ta, tb)
}

// negationConflict fires when the bodies share enough substance and exactly
// one of them is negated.
func (d *Detector) negationConflict(a, b []string) bool {
	if hasNegation(a) == hasNegation(b) {
		return false
	}
	return sharedContent(a, b) >= d.TokenThreshold
}

// numericConflict fires when both bodies put a number next to the same
// keyword but the numbers differ.
func (d *Detector) numericConflict(a, b []string) bool {
	na := numbersInContext(a)
	nb := numbersInContext(b)
	for keyword, va := range na {
		if vb, ok := nb[keyword]; ok && va != vb {
			return true
		}
	}
	return false
}

// antonymConflict fires when one body uses a term whose configured opposite
// appears in the other.
func (d *Detector) antonymConflict(a, b []string) bool {
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	for _, t := range a {
		opposite, ok := d.antonyms[t]
		if !ok {
			continue
		}
		if _, present := inB[opposite]; present {
			return true
		}
	}
	return false
}

// tokenize case-folds and strips punctuation, keeping word and number
// tokens in order.
func tokenize(body string) []string {
	lower := strings.ToLower(body)
	raw := strings.FieldsFunc(lower, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '.' || r == '-':
			// Keep decimals and hyphenated terms together.
			return false
		}
		return true
	})
	tokens := raw[:0]
	for _, t := range raw {
		t = strings.Trim(t, ".-")
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func hasNegation(tokens []string) bool {
	for i, t := range tokens {
		if _, ok := negationMarkers[t]; ok {
			return true
		}
		if t == "no" && i+1 < len(tokens) && tokens[i+1] == "longer" {
			return true
		}
	}
	return false
}

// sharedContent counts distinct non-trivial tokens present in both bodies.
func sharedContent(a, b []string) int {
	seen := make(map[string]struct{}, len(a))
	for _, t := range a {
		if isContentToken(t) {
			seen[t] = struct{}{}
		}
	}
	shared := 0
	counted := make(map[string]struct{}, len(b))
	for _, t := range b {
		if !isContentToken(t) {
			continue
		}
		if _, dup := counted[t]; dup {
			continue
		}
		if _, ok := seen[t]; ok {
			shared++
			counted[t] = struct{}{}
		}
	}
	return shared
}

func isContentToken(t string) bool {
	if len(t) < 2 {
		return false
	}
	if _, ok := stopwords[t]; ok {
		return false
	}
	if _, ok := negationMarkers[t]; ok {
		return false
	}
	return true
}

// numbersInContext maps each nearby content keyword to the numeric value it
// appears with. The window of two tokens on either side matches how claims
// phrase figures ("latency of 5 ms", "published in 1970").
func numbersInContext(tokens []string) map[string]float64 {
	const window = 2
	out := make(map[string]float64)
	for i, t := range tokens {
		value, err := strconv.ParseFloat(t, 64)
		if err != nil {
			continue
		}
		for j := i - window; j <= i+window; j++ {
			if j < 0 || j >= len(tokens) || j == i {
				continue
			}
			keyword := tokens[j]
			if !isContentToken(keyword) {
				continue
			}
			if _, numErr := strconv.ParseFloat(keyword, 64); numErr == nil {
				continue
			}
			out[keyword] = value
		}
	}
	return out
}
