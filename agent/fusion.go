package agent

import "sort"

// FuseRRF combines a semantic ranking and a full-text ranking over the same
// candidate set into one ordering using reciprocal rank fusion:
//
//	rrf(chunk) = semanticWeight/(k + semanticRank) + fulltextWeight/(k + fulltextRank)
//
// with 1-based ranks and a chunk absent from a ranking contributing nothing
// for that term. Rank position is the fusion input, not raw score magnitude,
// which keeps the fusion robust to differently scaled underlying metrics.
//
// Fused scores are normalized into (0, 1] against the maximum attainable raw
// score, so a chunk ranked first in both rankings scores exactly 1.0. Each
// fused chunk keeps its raw per-ranking scores in SemanticScore and
// FulltextScore. Ties break deterministically: better best-rank first, then
// lexicographic chunk ID.
func FuseRRF(semantic, fulltext []Chunk, cfg FusionConfig) []Chunk {
	if cfg.K <= 0 || cfg.SemanticWeight+cfg.FulltextWeight <= 0 {
		cfg = DefaultFusionConfig()
	}

	type fused struct {
		chunk    Chunk
		score    float64
		bestRank int
	}
	byID := make(map[string]*fused)
	order := make([]string, 0, len(semantic)+len(fulltext))

	absorb := func(ranking []Chunk, weight float64, setRaw func(*Chunk, float64)) {
		for i, ch := range ranking {
			rank := i + 1
			entry, ok := byID[ch.ID]
			if !ok {
				entry = &fused{chunk: ch, bestRank: rank}
				entry.chunk.SemanticScore = 0
				entry.chunk.FulltextScore = 0
				byID[ch.ID] = entry
				order = append(order, ch.ID)
			}
			if rank < entry.bestRank {
				entry.bestRank = rank
			}
			entry.score += weight / (cfg.K + float64(rank))
			setRaw(&entry.chunk, ch.Score)
		}
	}

	absorb(semantic, cfg.SemanticWeight, func(ch *Chunk, s float64) { ch.SemanticScore = s })
	absorb(fulltext, cfg.FulltextWeight, func(ch *Chunk, s float64) { ch.FulltextScore = s })

	// Maximum attainable raw score: first place in every ranking.
	maxScore := (cfg.SemanticWeight + cfg.FulltextWeight) / (cfg.K + 1)

	out := make([]Chunk, 0, len(order))
	for _, id := range order {
		entry := byID[id]
		entry.chunk.Score = entry.score / maxScore
		out = append(out, entry.chunk)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, rj := byID[out[i].ID].bestRank, byID[out[j].ID].bestRank
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
