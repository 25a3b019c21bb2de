package mutate

// firstCombination sets p to 0, 1, ..., len(p)-1.
func firstCombination(p []int) {
	for i := range p {
		p[i] = i
	}
}

// nextCombination advances p, a strictly increasing subset of [0, n), to the next
// subset in lexicographic order. It returns false after the last one.
func nextCombination(p []int, n int) bool {
	k := len(p)
	i := k - 1
	for i >= 0 && p[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	p[i]++
	for j := i + 1; j < k; j++ {
		p[j] = p[j-1] + 1
	}
	return true
}

// nextMultiset advances p, a non-decreasing sequence over [0, n], to the next one in
// lexicographic order. It returns false after the last one.
func nextMultiset(p []int, n int) bool {
	i := len(p) - 1
	for i >= 0 && p[i] == n {
		i--
	}
	if i < 0 {
		return false
	}
	p[i]++
	for j := i + 1; j < len(p); j++ {
		p[j] = p[i]
	}
	return true
}
