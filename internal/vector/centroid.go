package vector

import "sort"

// ComputeCentroids returns, for each tag not in skip, the L2-normalized mean
// of its member vectors. Tags with no vectors are omitted. A mean with zero
// norm is left un-normalized (the zero vector) so it simply scores as
// non-matching downstream, rather than dividing by zero.
func ComputeCentroids(tagged map[string][][]float32, skip map[string]struct{}) map[string][]float32 {
	centroids := make(map[string][]float32, len(tagged))
	for tag, members := range tagged {
		if _, skipped := skip[tag]; skipped {
			continue
		}
		if len(members) == 0 {
			continue
		}
		mean := make([]float32, len(members[0]))
		for _, vec := range members {
			for i, v := range vec {
				mean[i] += v
			}
		}
		n := float32(len(members))
		for i := range mean {
			mean[i] /= n
		}
		NormalizeL2(mean)
		centroids[tag] = mean
	}
	return centroids
}

// SuggestTags returns the tags whose centroid scores at least threshold
// (inclusive) against vec by inner product, ordered by descending score with
// ascending tag name as the tie-break, truncated to maxTags. An empty
// centroid map yields an empty result. Read-only: whether to persist the
// suggestions is the caller's decision.
func SuggestTags(vec []float32, centroids map[string][]float32, threshold float64, maxTags int) []string {
	type scoredTag struct {
		tag   string
		score float64
	}
	scored := make([]scoredTag, 0, len(centroids))
	for tag, centroid := range centroids {
		if score := InnerProduct(vec, centroid); score >= threshold {
			scored = append(scored, scoredTag{tag: tag, score: score})
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].tag < scored[j].tag
	})
	if maxTags >= 0 && len(scored) > maxTags {
		scored = scored[:maxTags]
	}
	tags := make([]string, len(scored))
	for i, s := range scored {
		tags[i] = s.tag
	}
	return tags
}
