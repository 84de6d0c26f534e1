package pipeline

import (
	"sort"

	"tripscout/internal/poi"
)

// mergeKey prefers the strongest identity available: resolved poi id,
// then source URL, then title.
func mergeKey(c poi.SearchCandidate) string {
	if c.POIID != "" {
		return "poi:" + c.POIID
	}
	if c.URL != "" {
		return "url:" + c.URL
	}
	return "title:" + c.Title
}

// mergeResults fuses the web-reranked and embedding-reranked lists with
// source weighting. Candidates found by both sources accumulate their
// weighted scores — the sum can exceed 1.0 and is ordinal, not a
// probability. Duplicate observations land in stats; web-to-embedding
// duplicates also come back so the caller can register alias names.
func mergeResults(web, embedding []poi.SearchCandidate, webWeight, embWeight float64, stats *Stats) ([]poi.SearchCandidate, []MergeDupPair) {
	scored := make(map[string]*poi.SearchCandidate)
	var order []string
	var embDupPairs []MergeDupPair

	for _, c := range web {
		key := mergeKey(c)
		weighted := c.Score * webWeight
		if existing, ok := scored[key]; ok {
			existing.Score += weighted
			stats.MergeWebDupCount++
			stats.MergeWebDupNames = append(stats.MergeWebDupNames, c.Title)
			if existing.POIID != "" {
				stats.MergeDupPairs = append(stats.MergeDupPairs, MergeDupPair{Title: c.Title, POIID: existing.POIID})
			}
			continue
		}
		copied := c
		copied.Score = weighted
		scored[key] = &copied
		order = append(order, key)
	}

	for _, c := range embedding {
		key := mergeKey(c)
		weighted := c.Score * embWeight
		if existing, ok := scored[key]; ok {
			existing.Score += weighted
			if c.POIID != "" {
				existing.POIID = c.POIID
			}
			stats.MergeEmbDupCount++
			stats.MergeEmbDupNames = append(stats.MergeEmbDupNames, c.Title)
			if existing.POIID != "" {
				pair := MergeDupPair{Title: c.Title, POIID: existing.POIID}
				stats.MergeDupPairs = append(stats.MergeDupPairs, pair)
				embDupPairs = append(embDupPairs, pair)
			}
			continue
		}
		copied := c
		copied.Score = weighted
		scored[key] = &copied
		order = append(order, key)
	}

	merged := make([]poi.SearchCandidate, 0, len(order))
	for _, key := range order {
		merged = append(merged, *scored[key])
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged, embDupPairs
}
