package ingest

// mergeShort folds paragraphs shorter than MinLen into their neighbours.
// Consecutive short paragraphs accumulate until they reach MinLen together
// or a long paragraph flushes them.
func (c *Chunker) mergeShort(paragraphs []string) []string {
	var out []string
	var pending string

	for _, p := range paragraphs {
		if runeLen(p) < c.MinLen {
			pending = joinPieces(pending, p)
			continue
		}
		if pending != "" {
			switch {
			case runeLen(pending) >= c.MinLen:
				out = append(out, pending)
			case len(out) > 0:
				out[len(out)-1] = joinPieces(out[len(out)-1], pending)
			default:
				// Nothing before the accumulated shorts, so they lead
				// the first long paragraph.
				p = joinPieces(pending, p)
			}
			pending = ""
		}
		out = append(out, p)
	}

	if pending != "" {
		if runeLen(pending) < c.MinLen && len(out) > 0 {
			out[len(out)-1] = joinPieces(out[len(out)-1], pending)
		} else {
			out = append(out, pending)
		}
	}
	return out
}

// mergeRuns is a second pass over the first pass output. It collapses runs
// of short pieces that remain, then folds a still-short piece into the next
// piece, or failing that the previous one.
func (c *Chunker) mergeRuns(pieces []string) []string {
	if len(pieces) <= 1 {
		return pieces
	}

	var out []string
	for i := 0; i < len(pieces); i++ {
		cur := pieces[i]
		for runeLen(cur) < c.MinLen && i+1 < len(pieces) && runeLen(pieces[i+1]) < c.MinLen {
			i++
			cur = joinPieces(cur, pieces[i])
		}

		switch {
		case runeLen(cur) >= c.MinLen:
			out = append(out, cur)
		case i+1 < len(pieces):
			pieces[i+1] = joinPieces(cur, pieces[i+1])
		case len(out) > 0:
			out[len(out)-1] = joinPieces(out[len(out)-1], cur)
		default:
			out = append(out, cur)
		}
	}
	return out
}

func joinPieces(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n\n" + b
}
