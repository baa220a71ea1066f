package model

import (
	"sort"
	"unicode/utf8"
)

// WordCount is a word with its number of occurrences.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// PopularWords ranks counts and returns at most top entries.
// top <= 0 returns every word.
//
// Ordering:
//  1. Higher count first
//  2. On equal counts, the longer word first (length in runes)
//  3. On equal length, alphabetical order
//
// The ordering is total, so the result does not depend on map iteration.
func PopularWords(counts map[string]int, top int) []WordCount {
	words := make([]WordCount, 0, len(counts))
	for word, n := range counts {
		words = append(words, WordCount{Word: word, Count: n})
	}

	sort.Slice(words, func(i, j int) bool {
		a, b := words[i], words[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		la, lb := utf8.RuneCountInString(a.Word), utf8.RuneCountInString(b.Word)
		if la != lb {
			return la > lb
		}
		return a.Word < b.Word
	})

	if top > 0 && len(words) > top {
		words = words[:top]
	}
	return words
}
