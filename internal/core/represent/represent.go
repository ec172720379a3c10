// Package represent picks one candidate per cluster
package represent

import (
	"sort"

	"t2/internal/core/candidate"
	"t2/internal/core/dbscan"
	perr "t2/internal/platform/errors"
)

// Select keeps the highest-significance member of every non-noise cluster. On an exact
// tie the member seen first wins. The result is ordered by cluster label
func Select(cs []candidate.Candidate, labels dbscan.Assignment) ([]candidate.Candidate, error) {
	if len(cs) != len(labels) {
		return nil, perr.Clusteringf("have %d candidates but %d labels", len(cs), len(labels))
	}

	best := make(map[int]int)
	for i, l := range labels {
		if l == dbscan.Noise {
			continue
		}
		j, ok := best[l]
		if !ok || cs[i].Significance > cs[j].Significance {
			best[l] = i
		}
	}

	keys := make([]int, 0, len(best))
	for l := range best {
		keys = append(keys, l)
	}
	sort.Ints(keys)

	out := make([]candidate.Candidate, 0, len(keys))
	for _, l := range keys {
		out = append(out, cs[best[l]])
	}
	return out, nil
}
