package dedup

import "strings"

// similarity returns a sequence-similarity ratio in [0, 1] between two
// normalized prefixes: twice the length of the longest common word
// subsequence over the combined word count.
func similarity(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	total := len(wordsA) + len(wordsB)
	if total == 0 {
		return 1
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	return 2 * float64(lcsWords(wordsA, wordsB)) / float64(total)
}

func lcsWords(a, b []string) int {
	// Two-row dynamic program; prefixes are bounded so the table stays small.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	return prev[len(b)]
}
