// Package lexical holds the shared text utilities: tokenization,
// stop-word filtering, keyword extraction and the fingerprint hash.
// Everything here is deterministic and allocation-only; no I/O.
package lexical

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tsawler/prose/v3"
)

// stopWords are filtered out of keyword extraction. Same table the
// retrieval seeding uses, so fingerprints and fuzzy matching agree on
// what counts as signal.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true, "can": true,
	"i": true, "me": true, "my": true, "we": true, "our": true,
	"you": true, "your": true, "he": true, "she": true, "it": true,
	"they": true, "them": true, "their": true, "this": true, "that": true,
	"these": true, "those": true, "there": true, "here": true,
	"what": true, "which": true, "who": true, "whom": true, "whose": true,
	"where": true, "when": true, "why": true, "how": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"than": true, "so": true, "as": true, "of": true, "at": true,
	"by": true, "for": true, "with": true, "about": true, "into": true,
	"to": true, "from": true, "in": true, "on": true, "up": true,
	"out": true, "off": true, "over": true, "under": true, "not": true,
	"no": true, "yes": true, "its": true, "also": true, "just": true,
	"very": true, "some": true, "any": true, "all": true, "each": true,
}

// IsStopWord reports whether a lowercase word is in the stop list
func IsStopWord(w string) bool {
	return stopWords[w]
}

// actionableMarkers signal that a piece of text tells the reader what
// to do rather than just describing a situation.
var actionableMarkers = []string{
	"always", "never", "use", "avoid", "check", "ensure", "prefer",
	"run", "verify", "before", "after", "must", "don't", "do not",
}

// ActionableLanguage reports whether text contains directive wording
func ActionableLanguage(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range actionableMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Tokenize lowercases text and splits it on word boundaries into a
// deduplicated token set. Order is irrelevant to every consumer, so a
// set is all we return.
func Tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range splitWords(text) {
		tokens[w] = true
	}
	return tokens
}

// Keywords extracts the normalized, stop-word-filtered, deduplicated
// keyword list from text, sorted for deterministic output. Tokens
// shorter than 3 runes are dropped.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	for _, w := range splitWords(text) {
		if len(w) < 3 || stopWords[w] {
			continue
		}
		seen[w] = true
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// KeywordSet is Keywords returned as a set for overlap math
func KeywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range Keywords(text) {
		set[w] = true
	}
	return set
}

// splitWords runs the prose tokenizer over the lowercased text and
// keeps word-like tokens. prose handles contractions and punctuation
// better than a Fields split; if it fails we fall back to a manual
// boundary split so extraction never returns an error.
func splitWords(text string) []string {
	text = strings.ToLower(text)
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false))
	if err != nil {
		return fieldSplit(text)
	}
	var words []string
	for _, tok := range doc.Tokens() {
		w := strings.Trim(tok.Text, "'\"`-_.")
		if w == "" || !isWordLike(w) {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return fieldSplit(text)
	}
	return words
}

// fieldSplit is the boundary-split fallback: every run of letters and
// digits becomes a token.
func fieldSplit(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isWordLike(w string) bool {
	for _, r := range w {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Jaccard computes set overlap: |a∩b| / |a∪b|. Two empty sets are
// treated as no overlap, not perfect overlap.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SharedCount returns |a∩b|
func SharedCount(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// Fingerprint hashes the normalized keyword content of a title and
// content pair. Title keywords are counted twice for weight. Two
// independent hash passes (FNV-1a and DJB2) are concatenated to widen
// the output and keep collisions rare without reaching for crypto.
func Fingerprint(title, content string) string {
	titleKw := Keywords(title)
	contentKw := Keywords(content)

	parts := make([]string, 0, len(titleKw)*2+len(contentKw))
	parts = append(parts, titleKw...)
	parts = append(parts, titleKw...)
	parts = append(parts, contentKw...)
	joined := strings.Join(parts, " ")

	return fmt.Sprintf("%08x%08x", fnv1a(joined), djb2(joined))
}

func fnv1a(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func djb2(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}
