package model

import (
	"sort"
)

// ROCAUC computes the area under the ROC curve from labels and predicted
// probabilities, via the rank-sum formulation with average ranks for ties.
// Returns 0.5 when either class is absent.
func ROCAUC(y []int, probs []float64) float64 {
	n := len(y)
	pos := 0
	for _, label := range y {
		pos += label
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return 0.5
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return probs[order[a]] < probs[order[b]]
	})

	// Sum the ranks of positive samples, averaging ranks within tie groups.
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[order[j]] == probs[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	var rankSum float64
	for i, label := range y {
		if label == 1 {
			rankSum += ranks[i]
		}
	}

	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}
