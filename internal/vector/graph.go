package vector

import "sort"

// Edge is an undirected similarity link between two record keys. Source and
// Target are ordered by the records' positions in the input, so a given input
// always produces the same edge orientation.
type Edge struct {
	Source     string
	Target     string
	Similarity float64
}

// BuildGraph links every record to its k most similar peers and returns the
// node keys (in input order) plus the deduplicated undirected edge set.
//
// Nodes are processed in input order; for each node the k best other records
// are taken by descending score, breaking score ties by lower input index.
// Each selected pair is canonicalized to (min index, max index) and inserted
// once: when both endpoints pick each other, the score recorded by the
// first-processed direction wins. Fewer than 2 records yields an empty graph.
// Cost is O(n²·D): a dense scan with no index structure.
func BuildGraph(entries []Candidate, k int) ([]string, []Edge) {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	if len(entries) < 2 || k <= 0 {
		return keys, []Edge{}
	}

	// Full pairwise similarity matrix. Symmetric, so only the upper triangle
	// is computed.
	n := len(entries)
	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := InnerProduct(entries[i].Vector, entries[j].Vector)
			sims[i][j] = s
			sims[j][i] = s
		}
	}

	type pairKey struct{ lo, hi int }
	seen := make(map[pairKey]struct{})
	edges := make([]Edge, 0, n*k)

	type neighbor struct {
		index int
		score float64
	}
	for i := 0; i < n; i++ {
		neighbors := make([]neighbor, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			neighbors = append(neighbors, neighbor{index: j, score: sims[i][j]})
		}
		sort.Slice(neighbors, func(a, b int) bool {
			if neighbors[a].score != neighbors[b].score {
				return neighbors[a].score > neighbors[b].score
			}
			return neighbors[a].index < neighbors[b].index
		})
		top := k
		if top > len(neighbors) {
			top = len(neighbors)
		}
		for _, nb := range neighbors[:top] {
			pk := pairKey{lo: i, hi: nb.index}
			if pk.lo > pk.hi {
				pk.lo, pk.hi = pk.hi, pk.lo
			}
			if _, dup := seen[pk]; dup {
				continue
			}
			seen[pk] = struct{}{}
			edges = append(edges, Edge{
				Source:     entries[pk.lo].Key,
				Target:     entries[pk.hi].Key,
				Similarity: nb.score,
			})
		}
	}
	return keys, edges
}
