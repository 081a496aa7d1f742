package similarity

// Levenshtein computes the edit distance between two strings over runes,
// using the two-row dynamic programming formulation.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// FuzzyScore rates the similarity of two contents in [0, 1] based on the
// Levenshtein distance of their normalized forms. Two empty normalized
// strings score 1.0. Symmetric by construction.
func FuzzyScore(a, b string) float64 {
	na := []rune(NormalizeContent(a))
	nb := []rune(NormalizeContent(b))

	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 1.0
	}

	dist := Levenshtein(string(na), string(nb))
	return 1.0 - float64(dist)/float64(maxLen)
}
