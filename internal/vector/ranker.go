package vector

import "sort"

// Candidate is a record key paired with its embedding.
type Candidate struct {
	Key    string
	Vector []float32
}

// Scored is a ranked search hit.
type Scored struct {
	Key   string
	Score float64
}

// Rank scores every candidate against query by inner product and returns the
// candidates sorted by descending score. Both sides are expected to be
// unit-normalized so the score is the cosine similarity; Rank does not
// normalize its inputs. Ties keep the input candidate order (stable sort), so
// repeated calls with the same input produce identical output. An empty
// candidate slice yields an empty result.
func Rank(query []float32, candidates []Candidate) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Key: c.Key, Score: InnerProduct(query, c.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}
