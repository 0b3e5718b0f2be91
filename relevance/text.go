package relevance

import (
	"strings"
	"unicode"
)

// Stop words dropped before building keyphrase candidates.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "were": true, "to": true, "of": true, "and": true, "or": true,
	"in": true, "that": true, "have": true, "has": true, "had": true, "it": true,
	"its": true, "for": true, "not": true, "on": true, "with": true, "as": true,
	"you": true, "do": true, "does": true, "at": true, "this": true, "these": true,
	"those": true, "but": true, "by": true, "from": true, "i": true, "we": true,
	"they": true, "he": true, "she": true, "his": true, "her": true, "their": true,
	"our": true, "your": true, "my": true, "me": true, "them": true, "us": true,
	"which": true, "who": true, "whom": true, "what": true, "when": true,
	"where": true, "why": true, "how": true, "will": true, "would": true,
	"can": true, "could": true, "should": true, "may": true, "might": true,
	"been": true, "being": true, "if": true, "then": true, "than": true,
	"so": true, "such": true, "there": true, "here": true, "also": true,
	"into": true, "about": true, "over": true, "after": true, "before": true,
	"all": true, "any": true, "each": true, "more": true, "most": true,
	"other": true, "some": true, "no": true, "nor": true, "only": true,
	"own": true, "same": true, "too": true, "very": true, "just": true,
}

// tokenize splits text into lowercase words, dropping punctuation.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '-'
	})
}

// tokenizeAndFilter tokenizes text and removes stop words.
func tokenizeAndFilter(text string) []string {
	words := tokenize(text)
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.Trim(word, "'-")
		if word != "" && !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// tokenCount is the number of words in a term, at least 1.
func tokenCount(term string) int {
	return max(len(tokenize(term)), 1)
}

// ngramCandidates returns the distinct n-grams of the stop-word-filtered
// text for n in [minN, maxN], in order of first appearance, up to limit.
func ngramCandidates(text string, minN, maxN, limit int) []string {
	words := tokenizeAndFilter(text)
	seen := make(map[string]bool)
	var candidates []string

	for i := range words {
		for n := minN; n <= maxN; n++ {
			if i+n > len(words) {
				break
			}
			gram := strings.Join(words[i:i+n], " ")
			if seen[gram] {
				continue
			}
			seen[gram] = true
			candidates = append(candidates, gram)
			if len(candidates) >= limit {
				return candidates
			}
		}
	}
	return candidates
}
