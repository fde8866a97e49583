package ml

import (
	"errors"
	"math"
	"sort"
)

// GBDTConfig holds the boosting hyperparameters.
type GBDTConfig struct {
	Trees        int     // boosting rounds
	MaxDepth     int     // depth per regression tree
	LearningRate float64 // shrinkage per round
	MinLeaf      int     // minimum samples per leaf
}

// DefaultGBDTConfig returns the production hyperparameters.
func DefaultGBDTConfig() GBDTConfig {
	return GBDTConfig{Trees: 60, MaxDepth: 4, LearningRate: 0.1, MinLeaf: 20}
}

// GBDT is a multiclass gradient boosted tree ensemble with a softmax
// link. One regression tree per class per round fits the probability
// residuals, Friedman-style.
type GBDT struct {
	cfg     GBDTConfig
	classes int
	base    []float64     // log-prior per class
	rounds  [][]*treeNode // [round][class]
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// NewGBDT builds an untrained ensemble for the given class count.
func NewGBDT(cfg GBDTConfig, classes int) *GBDT {
	if cfg.Trees <= 0 {
		cfg.Trees = 60
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 4
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 20
	}
	return &GBDT{cfg: cfg, classes: classes}
}

// Fit trains the ensemble. X rows must all share one width and y must
// hold a class index per row.
func (g *GBDT) Fit(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 || n != len(y) {
		return errors.New("ml: empty or mismatched training set")
	}
	if n < g.cfg.MinLeaf*2 {
		return errors.New("ml: too few samples for the leaf floor")
	}
	width := len(X[0])
	for _, row := range X {
		if len(row) != width {
			return errors.New("ml: ragged feature matrix")
		}
	}
	for _, label := range y {
		if label < 0 || label >= g.classes {
			return errors.New("ml: label out of class range")
		}
	}

	// Start every class at its log prior.
	g.base = make([]float64, g.classes)
	counts := make([]float64, g.classes)
	for _, label := range y {
		counts[label]++
	}
	for k := 0; k < g.classes; k++ {
		p := counts[k] / float64(n)
		if p < 1e-9 {
			p = 1e-9
		}
		g.base[k] = math.Log(p)
	}

	// F[k][i] is the raw score of sample i for class k.
	F := make([][]float64, g.classes)
	for k := range F {
		F[k] = make([]float64, n)
		for i := range F[k] {
			F[k][i] = g.base[k]
		}
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	probs := make([]float64, g.classes)
	g.rounds = make([][]*treeNode, 0, g.cfg.Trees)

	for round := 0; round < g.cfg.Trees; round++ {
		classTrees := make([]*treeNode, g.classes)
		for k := 0; k < g.classes; k++ {
			for i := 0; i < n; i++ {
				softmaxInto(probs, F, i)
				target := 0.0
				if y[i] == k {
					target = 1
				}
				grad[i] = target - probs[k]
				hess[i] = probs[k] * (1 - probs[k])
			}
			idx := allIndices(n)
			tree := g.buildTree(X, grad, hess, idx, 0)
			classTrees[k] = tree
			for i := 0; i < n; i++ {
				F[k][i] += g.cfg.LearningRate * predictTree(tree, X[i])
			}
		}
		g.rounds = append(g.rounds, classTrees)
	}
	return nil
}

// PredictProba returns softmax class probabilities for one row.
func (g *GBDT) PredictProba(x []float64) ([]float64, error) {
	if len(g.rounds) == 0 {
		return nil, errors.New("ml: model not fitted")
	}
	scores := make([]float64, g.classes)
	copy(scores, g.base)
	for _, classTrees := range g.rounds {
		for k, tree := range classTrees {
			scores[k] += g.cfg.LearningRate * predictTree(tree, x)
		}
	}
	return softmax(scores), nil
}

// Trained reports whether Fit has completed.
func (g *GBDT) Trained() bool { return len(g.rounds) > 0 }

func (g *GBDT) buildTree(X [][]float64, grad, hess []float64, idx []int, depth int) *treeNode {
	if depth >= g.cfg.MaxDepth || len(idx) < 2*g.cfg.MinLeaf {
		return g.leaf(grad, hess, idx)
	}

	feature, threshold, ok := g.bestSplit(X, grad, idx)
	if !ok {
		return g.leaf(grad, hess, idx)
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < g.cfg.MinLeaf || len(right) < g.cfg.MinLeaf {
		return g.leaf(grad, hess, idx)
	}
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      g.buildTree(X, grad, hess, left, depth+1),
		right:     g.buildTree(X, grad, hess, right, depth+1),
	}
}

// leaf computes the Newton step value for the samples it holds.
func (g *GBDT) leaf(grad, hess []float64, idx []int) *treeNode {
	sumG, sumH := 0.0, 0.0
	for _, i := range idx {
		sumG += grad[i]
		sumH += hess[i]
	}
	k := float64(g.classes)
	value := (k - 1) / k * sumG / (sumH + 1e-9)
	// Clip so one leaf cannot swamp the ensemble.
	if value > 4 {
		value = 4
	}
	if value < -4 {
		value = -4
	}
	return &treeNode{leaf: true, value: value}
}

// bestSplit scans every feature for the threshold with the largest
// squared-gradient gain.
func (g *GBDT) bestSplit(X [][]float64, grad []float64, idx []int) (feature int, threshold float64, ok bool) {
	total := 0.0
	for _, i := range idx {
		total += grad[i]
	}
	n := float64(len(idx))
	baseScore := total * total / n

	bestGain := 1e-12
	width := len(X[idx[0]])
	order := make([]int, len(idx))

	for f := 0; f < width; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		leftSum, leftCount := 0.0, 0.0
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += grad[i]
			leftCount++
			if X[order[pos]][f] == X[order[pos+1]][f] {
				continue // cannot split between equal values
			}
			if int(leftCount) < g.cfg.MinLeaf || len(order)-int(leftCount) < g.cfg.MinLeaf {
				continue
			}
			rightSum := total - leftSum
			rightCount := n - leftCount
			gain := leftSum*leftSum/leftCount + rightSum*rightSum/rightCount - baseScore
			if gain > bestGain {
				bestGain = gain
				feature = f
				threshold = (X[order[pos]][f] + X[order[pos+1]][f]) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func predictTree(node *treeNode, x []float64) float64 {
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func softmaxInto(out []float64, F [][]float64, i int) {
	max := F[0][i]
	for k := 1; k < len(F); k++ {
		if F[k][i] > max {
			max = F[k][i]
		}
	}
	sum := 0.0
	for k := range F {
		out[k] = math.Exp(F[k][i] - max)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
