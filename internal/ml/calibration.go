package ml

import (
	"errors"
	"sort"
)

// Isotonic is a monotone non-decreasing mapping from raw probability to
// calibrated probability, fitted with pool adjacent violators.
type Isotonic struct {
	x []float64 // breakpoints, ascending
	y []float64 // calibrated values at breakpoints
}

// FitIsotonic fits raw scores against binary outcomes. Scores need not
// be sorted; outcomes are 0 or 1.
func FitIsotonic(scores []float64, outcomes []float64) (*Isotonic, error) {
	n := len(scores)
	if n == 0 || n != len(outcomes) {
		return nil, errors.New("ml: empty or mismatched calibration set")
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	// Pool adjacent violators over the sorted outcomes.
	type block struct {
		sum    float64
		weight float64
		xLast  float64
	}
	var blocks []block
	for _, i := range order {
		blocks = append(blocks, block{sum: outcomes[i], weight: 1, xLast: scores[i]})
		for len(blocks) > 1 {
			last := len(blocks) - 1
			if blocks[last-1].sum/blocks[last-1].weight <= blocks[last].sum/blocks[last].weight {
				break
			}
			blocks[last-1].sum += blocks[last].sum
			blocks[last-1].weight += blocks[last].weight
			blocks[last-1].xLast = blocks[last].xLast
			blocks = blocks[:last]
		}
	}

	iso := &Isotonic{
		x: make([]float64, len(blocks)),
		y: make([]float64, len(blocks)),
	}
	for i, b := range blocks {
		iso.x[i] = b.xLast
		iso.y[i] = b.sum / b.weight
	}
	return iso, nil
}

// Transform maps a raw probability through the fitted step function.
// Inputs beyond the fitted range clamp to the edge values.
func (iso *Isotonic) Transform(score float64) float64 {
	if len(iso.x) == 0 {
		return score
	}
	pos := sort.SearchFloat64s(iso.x, score)
	if pos >= len(iso.y) {
		return iso.y[len(iso.y)-1]
	}
	return iso.y[pos]
}
