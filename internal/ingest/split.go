package ingest

import "strings"

// splitLong splits pieces longer than MaxLen at sentence boundaries,
// packing sentences greedily up to the limit. A single sentence longer
// than MaxLen stays whole.
func (c *Chunker) splitLong(pieces []string) []string {
	var out []string
	for _, piece := range pieces {
		if runeLen(piece) <= c.MaxLen {
			out = append(out, piece)
			continue
		}

		var cur string
		for _, sentence := range splitSentences(piece) {
			switch {
			case cur == "":
				cur = sentence
			case runeLen(cur)+1+runeLen(sentence) > c.MaxLen:
				out = append(out, cur)
				cur = sentence
			default:
				cur += " " + sentence
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

// splitSentences breaks text at sentence punctuation followed by a space,
// a newline or end of text. The CJK full stop counts as punctuation.
func splitSentences(text string) []string {
	isEnder := func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '。'
	}

	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if !isEnder(r) {
			continue
		}
		if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
