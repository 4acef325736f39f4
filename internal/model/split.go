package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/opensource-retail/heron/internal/domain"
)

// StratifiedSplit partitions sample indices into train and test sets,
// preserving the class balance of y. The shuffle is seeded, so the same
// inputs always produce the same split.
func StratifiedSplit(y []int, testSize float64, seed int64) (train, test []int, err error) {
	if len(y) == 0 {
		return nil, nil, fmt.Errorf("%w: no samples to split", domain.ErrInvalidInput)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: testSize %v out of (0,1)", domain.ErrInvalidInput, testSize)
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(a, b int) {
			idx[a], idx[b] = idx[b], idx[a]
		})

		nTest := int(math.Round(float64(len(idx)) * testSize))
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
