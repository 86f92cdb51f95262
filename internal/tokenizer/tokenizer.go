// Package tokenizer normalizes text and splits it into lexical tokens.
//
// The same functions are used when building the BM25 index and when scoring
// a query, so both sides always share one vocabulary.
package tokenizer

import "strings"

// Normalize collapses all whitespace runs (including line breaks) into single
// spaces, trims the result and lowercases it.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Tokenize returns the whitespace-separated tokens of the normalized text.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

// TokenizeAll tokenizes every text, preserving order.
func TokenizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, t := range texts {
		out[i] = Tokenize(t)
	}
	return out
}
