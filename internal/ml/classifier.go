package ml

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

const numClasses = 3

// Classifier is the trained model the directional classifier blends
// with its rule table. Probabilities come out in Label order.
type Classifier struct {
	gbdt        *GBDT
	calibrators [numClasses]*Isotonic
	calibrated  bool
	log         zerolog.Logger
}

// NewClassifier builds an untrained classifier.
func NewClassifier(cfg GBDTConfig, log zerolog.Logger) *Classifier {
	return &Classifier{gbdt: NewGBDT(cfg, numClasses), log: log}
}

// Fit trains on the feature matrix and barrier labels. The trailing
// calibrationSplit fraction is held out of boosting and used to fit the
// per-class isotonic maps; rows must be in time order so the holdout is
// always the most recent slice.
func (c *Classifier) Fit(X [][]float64, y []Label, calibrationSplit float64) error {
	if len(X) != len(y) {
		return errors.New("ml: features and labels differ in length")
	}
	if calibrationSplit < 0 || calibrationSplit >= 1 {
		return fmt.Errorf("ml: calibration split %v out of [0,1)", calibrationSplit)
	}

	cut := len(X) - int(float64(len(X))*calibrationSplit)
	labels := make([]int, cut)
	for i := 0; i < cut; i++ {
		labels[i] = int(y[i])
	}
	if err := c.gbdt.Fit(X[:cut], labels); err != nil {
		return err
	}

	holdout := len(X) - cut
	if holdout < numClasses*10 {
		// Too little data to calibrate; serve raw softmax output.
		c.calibrated = false
		c.log.Debug().Int("holdout", holdout).Msg("skipping calibration, holdout too small")
		return nil
	}

	for k := 0; k < numClasses; k++ {
		scores := make([]float64, 0, holdout)
		outcomes := make([]float64, 0, holdout)
		for i := cut; i < len(X); i++ {
			proba, err := c.gbdt.PredictProba(X[i])
			if err != nil {
				return err
			}
			scores = append(scores, proba[k])
			if int(y[i]) == k {
				outcomes = append(outcomes, 1)
			} else {
				outcomes = append(outcomes, 0)
			}
		}
		iso, err := FitIsotonic(scores, outcomes)
		if err != nil {
			return err
		}
		c.calibrators[k] = iso
	}
	c.calibrated = true
	return nil
}

// PredictProba returns calibrated class probabilities for one feature
// vector, in Label order.
func (c *Classifier) PredictProba(features []float64) ([3]float64, error) {
	var out [3]float64
	raw, err := c.gbdt.PredictProba(features)
	if err != nil {
		return out, err
	}

	sum := 0.0
	for k := 0; k < numClasses; k++ {
		p := raw[k]
		if c.calibrated {
			p = c.calibrators[k].Transform(p)
		}
		out[k] = p
		sum += p
	}
	if sum <= 0 {
		return [3]float64{0, 1, 0}, nil
	}
	for k := range out {
		out[k] /= sum
	}
	return out, nil
}

// Trained reports whether Fit has completed.
func (c *Classifier) Trained() bool { return c.gbdt.Trained() }
