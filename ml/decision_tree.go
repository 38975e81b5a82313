package ml

import (
	"errors"
	"math/rand"
	"sort"
)

// DecisionTree is a CART classifier using gini impurity.
type DecisionTree struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MaxFeatures     int // features tried per split, 0 means all
	Seed            int64

	classes []int
	nodes   []TreeNode
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Probas     []float64 `json:"probas"`
	IsLeaf     bool      `json:"is_leaf"`
}

func (dt *DecisionTree) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	sample := make([]int, len(features))
	for i := range sample {
		sample[i] = i
	}
	rnd := rand.New(rand.NewSource(dt.Seed))
	return dt.fitSample(features, labels, sample, uniqueLabels(labels), rnd)
}

// fitSample grows the tree on the rows listed in sample, which may repeat.
// Leaf probabilities are aligned with classes.
func (dt *DecisionTree) fitSample(features [][]float64, labels []int, sample []int, classes []int, rnd *rand.Rand) error {
	if len(sample) == 0 {
		return errors.New("empty sample")
	}
	dt.classes = append([]int(nil), classes...)
	dt.nodes = nil

	classIdx := make(map[int]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}
	encoded := make([]int, len(labels))
	for i, label := range labels {
		ci, ok := classIdx[label]
		if !ok {
			return errors.New("label outside class set")
		}
		encoded[i] = ci
	}

	b := &treeBuilder{
		tree:     dt,
		features: features,
		labels:   encoded,
		nClasses: len(classes),
		nFeature: len(features[0]),
		rnd:      rnd,
	}
	b.build(append([]int(nil), sample...), 0)
	return nil
}

func (dt *DecisionTree) Classes() []int {
	return append([]int(nil), dt.classes...)
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return append([]float64(nil), node.Probas...), nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

type treeBuilder struct {
	tree     *DecisionTree
	features [][]float64
	labels   []int
	nClasses int
	nFeature int
	rnd      *rand.Rand
}

func (b *treeBuilder) build(sample []int, depth int) int {
	counts := make([]int, b.nClasses)
	for _, i := range sample {
		counts[b.labels[i]]++
	}

	nodeIdx := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Probas:     countsToProbas(counts),
		IsLeaf:     true,
	})

	minSplit := b.tree.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	if isPure(counts) || len(sample) < minSplit {
		return nodeIdx
	}
	if b.tree.MaxDepth > 0 && depth >= b.tree.MaxDepth {
		return nodeIdx
	}

	featureIdx, threshold, ok := b.findBestSplit(sample)
	if !ok {
		return nodeIdx
	}

	left := make([]int, 0, len(sample))
	right := make([]int, 0, len(sample))
	for _, i := range sample {
		if b.features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	node := &b.tree.nodes[nodeIdx]
	node.FeatureIdx = featureIdx
	node.Threshold = threshold
	node.LeftChild = leftIdx
	node.RightChild = rightIdx
	node.IsLeaf = false
	return nodeIdx
}

func (b *treeBuilder) candidateFeatures() []int {
	candidates := make([]int, b.nFeature)
	for i := range candidates {
		candidates[i] = i
	}
	k := b.tree.MaxFeatures
	if k <= 0 || k >= b.nFeature {
		return candidates
	}
	for i := 0; i < k; i++ {
		j := i + b.rnd.Intn(b.nFeature-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:k]
}

type valueLabel struct {
	value float64
	label int
}

// findBestSplit scans every midpoint between distinct sorted values of each candidate
// feature and keeps the lowest weighted gini. The first candidate wins ties.
func (b *treeBuilder) findBestSplit(sample []int) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := 0.0
	n := float64(len(sample))

	pairs := make([]valueLabel, len(sample))
	leftCounts := make([]int, b.nClasses)
	rightCounts := make([]int, b.nClasses)

	for _, featureIdx := range b.candidateFeatures() {
		for i, row := range sample {
			pairs[i] = valueLabel{value: b.features[row][featureIdx], label: b.labels[row]}
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })
		if pairs[0].value == pairs[len(pairs)-1].value {
			continue
		}

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = 0
		}
		for _, p := range pairs {
			rightCounts[p.label]++
		}

		for s := 1; s < len(pairs); s++ {
			moved := pairs[s-1].label
			leftCounts[moved]++
			rightCounts[moved]--
			if pairs[s].value == pairs[s-1].value {
				continue
			}
			nl := float64(s)
			nr := n - nl
			impurity := (nl*giniFromCounts(leftCounts, s) + nr*giniFromCounts(rightCounts, len(pairs)-s)) / n
			if bestFeature == -1 || impurity < bestImpurity {
				bestFeature = featureIdx
				bestImpurity = impurity
				bestThreshold = midpoint(pairs[s-1].value, pairs[s].value)
			}
		}
	}

	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func midpoint(lo, hi float64) float64 {
	mid := lo/2 + hi/2
	if mid >= hi {
		return lo
	}
	return mid
}

func giniFromCounts(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func countsToProbas(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	probas := make([]float64, len(counts))
	if total == 0 {
		return probas
	}
	for i, c := range counts {
		probas[i] = float64(c) / float64(total)
	}
	return probas
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func uniqueLabels(labels []int) []int {
	seen := make(map[int]bool)
	classes := make([]int, 0)
	for _, label := range labels {
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	sort.Ints(classes)
	return classes
}

func checkTrainingSet(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("feature rows are empty")
	}
	for _, row := range features {
		if len(row) != width {
			return errors.New("inconsistent number of features in rows")
		}
	}
	return nil
}
