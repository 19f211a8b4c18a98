package reconcile

import "strings"

// similarityRatio computes a Gestalt pattern-matching ratio between two
// strings: twice the total length of all longest matching blocks divided by
// the combined length. The result is in [0,1]; comparison is
// case-insensitive, and an empty side always scores 0.
func similarityRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	matched := matchingTotal(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchingTotal sums the lengths of the longest matching blocks: find the
// longest common substring, then recurse on the pieces to its left and right.
func matchingTotal(a, b string) int {
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingTotal(a[:i], b[:j]) + matchingTotal(a[i+k:], b[j+k:])
}

// longestMatch finds the leftmost longest common substring of a and b,
// returning its start in a, start in b, and length.
func longestMatch(a, b string) (besti, bestj, bestk int) {
	// j2len[j] is the length of the common suffix ending at a[i], b[j].
	j2len := make(map[int]int)
	for i := 0; i < len(a); i++ {
		next := make(map[int]int)
		for j := 0; j < len(b); j++ {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestk
}
