package pipeline

import "sort"

// DefaultMaxUnitsPerCommunity bounds the chunks grouped into one community.
const DefaultMaxUnitsPerCommunity = 10

// partition groups chunks into communities of at most
// method_params.max_units_per_community. When judgements exist, the chunks the
// trainee understood worst come first.
func partition(chunks []Chunk, judgements []Judgement, cfg Config) [][]Chunk {
	size := cfg.Section("method_params").Int("max_units_per_community", DefaultMaxUnitsPerCommunity)
	if size <= 0 {
		size = DefaultMaxUnitsPerCommunity
	}

	ordered := append([]Chunk(nil), chunks...)
	if len(judgements) > 0 {
		loss := make(map[string]float64, len(judgements))
		for _, j := range judgements {
			loss[j.ChunkID] = j.Loss
		}
		sort.SliceStable(ordered, func(a, b int) bool {
			return loss[ordered[a].ID] > loss[ordered[b].ID]
		})
	}

	var communities [][]Chunk
	for start := 0; start < len(ordered); start += size {
		end := start + size
		if end > len(ordered) {
			end = len(ordered)
		}
		communities = append(communities, ordered[start:end])
	}
	return communities
}
