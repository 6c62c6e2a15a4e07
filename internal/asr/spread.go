package asr

import "strings"

// SpreadText splits text on whitespace and distributes the tokens across
// [start, end] in proportion to their length. Backends use it when a segment
// carries no word-level timing.
func SpreadText(text string, start, end float64) []Word {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	if end < start {
		end = start
	}
	total := 0
	for _, tok := range tokens {
		total += len([]rune(tok))
	}
	span := end - start
	words := make([]Word, 0, len(tokens))
	cursor := start
	for i, tok := range tokens {
		share := span * float64(len([]rune(tok))) / float64(total)
		wordEnd := cursor + share
		if i == len(tokens)-1 {
			wordEnd = end
		}
		words = append(words, Word{Text: tok, Start: cursor, End: wordEnd})
		cursor = wordEnd
	}
	return words
}
