package search

import (
	"unicode"

	"contactbook_backend/internal/model"
)

// Annotate sets MatchCount and MatchPositions on every conversation of every
// contact. Positions are rune offsets of non-overlapping, case-insensitive
// literal occurrences of term. Conversations without a transcript get zero.
func Annotate(contacts []model.Contact, term string) {
	needle := foldRunes(term)
	if len(needle) == 0 {
		return
	}

	for i := range contacts {
		for j := range contacts[i].Conversations {
			conv := &contacts[i].Conversations[j]
			positions := []int{}
			if conv.Transcript != nil {
				positions = matchPositions(foldRunes(*conv.Transcript), needle)
			}
			count := len(positions)
			conv.MatchCount = &count
			conv.MatchPositions = &positions
		}
	}
}

// MatchPositions returns the rune offsets in text where term begins,
// ignoring case.
func MatchPositions(text, term string) []int {
	needle := foldRunes(term)
	if len(needle) == 0 {
		return []int{}
	}
	return matchPositions(foldRunes(text), needle)
}

func matchPositions(hay, needle []rune) []int {
	positions := []int{}
	n := len(needle)
	for i := 0; i+n <= len(hay); {
		if equalRunes(hay[i:i+n], needle) {
			positions = append(positions, i)
			i += n
			continue
		}
		i++
	}
	return positions
}

func foldRunes(s string) []rune {
	out := []rune(s)
	for i, r := range out {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
