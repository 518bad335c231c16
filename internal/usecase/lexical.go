package usecase

import (
	"regexp"
	"sort"
	"strings"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// unitTokens are measurement suffixes that get glued onto a preceding number
// during tokenization, so "100 g" and "100g" produce the same token.
var unitTokens = map[string]bool{
	"ml": true, "l": true, "g": true, "kg": true, "oz": true,
	"gram": true, "grams": true, "litre": true, "litres": true,
	"pcs": true, "pack": true, "packs": true, "bars": true, "tabs": true,
}

// titleStopWords includes basic English stop words plus retail-listing noise.
var titleStopWords = map[string]bool{
	// Basic English stop words
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	// Packaging terms
	"box": true, "bag": true, "bottle": true, "jar": true, "tub": true,
	"pouch": true, "carton": true, "sleeve": true,
	// Marketing/generic terms
	"new": true, "value": true, "bonus": true, "improved": true,
	"each": true, "per": true, "approx": true,
}

// tokenize splits a cleaned title into normalized lowercase tokens.
// Removes punctuation and stop words, and canonicalizes number+unit pairs
// into a single token.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	words := strings.Fields(cleaned)

	var tokens []string
	for i := 0; i < len(words); i++ {
		word := words[i]
		if len(word) <= 1 && !isNumeric(word) {
			continue
		}
		if titleStopWords[word] {
			continue
		}
		// Glue "100 g" into "100g" so spacing differences don't split tokens.
		if isNumeric(word) && i+1 < len(words) && unitTokens[words[i+1]] {
			tokens = append(tokens, strings.TrimSuffix(word, ".0")+words[i+1])
			i++
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// isNumeric checks if a string contains only digits and at most one dot
func isNumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	dots := 0
	for _, c := range s {
		if c == '.' {
			dots++
			if dots > 1 {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// jaccardSimilarity returns the token Jaccard overlap scaled to [0, 100].
// Works well for retail titles where word order is noisy.
func jaccardSimilarity(tokens1, tokens2 []string) float64 {
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}
	set1 := make(map[string]bool, len(tokens1))
	for _, t := range tokens1 {
		set1[t] = true
	}
	set2 := make(map[string]bool, len(tokens2))
	for _, t := range tokens2 {
		set2[t] = true
	}

	inter := 0
	for t := range set1 {
		if set2[t] {
			inter++
		}
	}
	union := len(set1) + len(set2) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union) * 100
}

// tokenSetRatio computes an order-insensitive edit ratio over token sets,
// scaled to [0, 100]. The intersection string is compared against each
// side's full sorted token string and the best ratio wins, so a title that
// is a strict subset of another still scores 100.
func tokenSetRatio(tokens1, tokens2 []string) float64 {
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}

	set1 := uniqueSorted(tokens1)
	set2 := uniqueSorted(tokens2)

	var inter, diff1, diff2 []string
	lookup2 := make(map[string]bool, len(set2))
	for _, t := range set2 {
		lookup2[t] = true
	}
	lookup1 := make(map[string]bool, len(set1))
	for _, t := range set1 {
		lookup1[t] = true
	}
	for _, t := range set1 {
		if lookup2[t] {
			inter = append(inter, t)
		} else {
			diff1 = append(diff1, t)
		}
	}
	for _, t := range set2 {
		if !lookup1[t] {
			diff2 = append(diff2, t)
		}
	}

	base := strings.Join(inter, " ")
	combined1 := strings.TrimSpace(base + " " + strings.Join(diff1, " "))
	combined2 := strings.TrimSpace(base + " " + strings.Join(diff2, " "))

	best := editRatio(combined1, combined2)
	if base != "" {
		if r := editRatio(base, combined1); r > best {
			best = r
		}
		if r := editRatio(base, combined2); r > best {
			best = r
		}
	}
	return best
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// editRatio is the normalized edit similarity of two strings in [0, 100].
func editRatio(s1, s2 string) float64 {
	if s1 == s2 {
		return 100
	}
	longest := len([]rune(s1))
	if n := len([]rune(s2)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 100
	}
	dist := levenshteinDistance(s1, s2)
	return (1 - float64(dist)/float64(longest)) * 100
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of a full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
