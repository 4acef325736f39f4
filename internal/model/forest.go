package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/opensource-retail/heron/internal/domain"
)

// RandomForest is a bagged ensemble of CART trees split on gini impurity.
// A fixed seed makes fitting reproducible.
type RandomForest struct {
	Trees []*TreeNode `json:"trees"`

	NumTrees        int   `json:"numTrees"`
	MaxDepth        int   `json:"maxDepth"`
	MinSamplesSplit int   `json:"minSamplesSplit"`
	Seed            int64 `json:"seed"`
}

// TreeNode is one node of a decision tree. Leaves carry the positive-class
// fraction of the training samples that reached them.
type TreeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Leaf      bool      `json:"leaf,omitempty"`
	Proba     float64   `json:"proba"`
}

// NewRandomForest returns a forest with the defaults used by the training
// pipeline.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		NumTrees:        200,
		MaxDepth:        10,
		MinSamplesSplit: 10,
		Seed:            seed,
	}
}

func (f *RandomForest) Name() string       { return "forest" }
func (f *RandomForest) NeedsScaling() bool { return false }

// Fit grows NumTrees trees, each on a bootstrap sample of the rows with
// sqrt(cols) candidate features per split.
func (f *RandomForest) Fit(X *mat.Dense, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("%w: no training samples", domain.ErrInvalidInput)
	}
	if len(y) != rows {
		return fmt.Errorf("%w: %d labels for %d samples", domain.ErrInvalidInput, len(y), rows)
	}

	rng := rand.New(rand.NewSource(f.Seed))
	featuresPerSplit := int(math.Sqrt(float64(cols)))
	if featuresPerSplit < 1 {
		featuresPerSplit = 1
	}

	f.Trees = make([]*TreeNode, 0, f.NumTrees)
	for t := 0; t < f.NumTrees; t++ {
		sample := make([]int, rows)
		for i := range sample {
			sample[i] = rng.Intn(rows)
		}
		tree := f.grow(X, y, sample, 0, featuresPerSplit, rng)
		f.Trees = append(f.Trees, tree)
	}

	return nil
}

func (f *RandomForest) grow(X *mat.Dense, y []int, idx []int, depth, featuresPerSplit int, rng *rand.Rand) *TreeNode {
	pos := 0
	for _, i := range idx {
		pos += y[i]
	}
	proba := float64(pos) / float64(len(idx))

	if depth >= f.MaxDepth || len(idx) < f.MinSamplesSplit || pos == 0 || pos == len(idx) {
		return &TreeNode{Leaf: true, Proba: proba}
	}

	feature, threshold, ok := f.bestSplit(X, y, idx, featuresPerSplit, rng)
	if !ok {
		return &TreeNode{Leaf: true, Proba: proba}
	}

	var left, right []int
	for _, i := range idx {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Leaf: true, Proba: proba}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Proba:     proba,
		Left:      f.grow(X, y, left, depth+1, featuresPerSplit, rng),
		Right:     f.grow(X, y, right, depth+1, featuresPerSplit, rng),
	}
}

// bestSplit searches a random feature subset for the threshold with the
// lowest weighted gini impurity.
func (f *RandomForest) bestSplit(X *mat.Dense, y []int, idx []int, featuresPerSplit int, rng *rand.Rand) (int, float64, bool) {
	_, cols := X.Dims()
	candidates := rng.Perm(cols)[:featuresPerSplit]
	sort.Ints(candidates)

	bestGini := math.Inf(1)
	bestFeature := -1
	bestThreshold := 0.0

	vals := make([]float64, 0, len(idx))
	for _, feature := range candidates {
		vals = vals[:0]
		for _, i := range idx {
			vals = append(vals, X.At(i, feature))
		}
		sort.Float64s(vals)

		for k := 0; k+1 < len(vals); k++ {
			if vals[k] == vals[k+1] {
				continue
			}
			threshold := (vals[k] + vals[k+1]) / 2

			var nLeft, posLeft, nRight, posRight int
			for _, i := range idx {
				if X.At(i, feature) <= threshold {
					nLeft++
					posLeft += y[i]
				} else {
					nRight++
					posRight += y[i]
				}
			}

			g := weightedGini(nLeft, posLeft, nRight, posRight)
			if g < bestGini {
				bestGini = g
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func weightedGini(nLeft, posLeft, nRight, posRight int) float64 {
	total := float64(nLeft + nRight)
	return float64(nLeft)/total*gini(nLeft, posLeft) + float64(nRight)/total*gini(nRight, posRight)
}

func gini(n, pos int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

// PredictProba averages the leaf probabilities across all trees.
func (f *RandomForest) PredictProba(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var total float64
	for _, tree := range f.Trees {
		total += tree.predict(x)
	}
	return total / float64(len(f.Trees))
}

func (n *TreeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if n.Left == nil || n.Right == nil {
			break
		}
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Proba
}
