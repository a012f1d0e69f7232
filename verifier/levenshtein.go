package verifier

// levenshtein computes the edit distance between two strings using two
// rolling rows, so memory stays O(min(m,n)).
func levenshtein(s, t string) int {
	sr := []rune(s)
	tr := []rune(t)

	if len(sr) == 0 {
		return len(tr)
	}
	if len(tr) == 0 {
		return len(sr)
	}
	if len(sr) > len(tr) {
		sr, tr = tr, sr
	}

	prev := make([]int, len(sr)+1)
	curr := make([]int, len(sr)+1)
	for i := range prev {
		prev[i] = i
	}

	for j, tc := range tr {
		curr[0] = j + 1
		for i, sc := range sr {
			cost := 1
			if sc == tc {
				cost = 0
			}
			curr[i+1] = min(curr[i]+1, prev[i+1]+1, prev[i]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(sr)]
}
