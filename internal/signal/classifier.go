package signal

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Model is the probabilistic side of the classifier. PredictProba
// returns calibrated class probabilities indexed by Label order:
// sell-win, no-trade, buy-win.
type Model interface {
	PredictProba(features []float64) ([3]float64, error)
	Trained() bool
}

// Classifier blends the rule table's call with a trained model. The
// rule direction is authoritative; the model only moves confidence.
type Classifier struct {
	table       *Table
	model       Model
	ruleWeight  float64
	modelWeight float64
	log         zerolog.Logger
}

// NewClassifier wires a table and an optional model. A nil model means
// rule-only operation at full rule weight.
func NewClassifier(table *Table, model Model, ruleWeight, modelWeight float64, log zerolog.Logger) (*Classifier, error) {
	sum := ruleWeight + modelWeight
	if sum < 0.99 || sum > 1.01 {
		return nil, fmt.Errorf("signal: rule and model weights must sum to 1.0, got %.2f", sum)
	}
	return &Classifier{
		table:       table,
		model:       model,
		ruleWeight:  ruleWeight,
		modelWeight: modelWeight,
		log:         log,
	}, nil
}

// Classify evaluates the rule table, blends the model's probability for
// the rule's direction into the confidence, and halves confidence when
// the model actively disagrees.
func (c *Classifier) Classify(symbol, timeframe string, price float64, at time.Time, ctx Context, features []float64) Signal {
	outcome, ruleName := c.table.Evaluate(ctx)

	sig := Signal{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Direction:   outcome.Direction,
		Confidence:  outcome.Confidence,
		Price:       price,
		Time:        at,
		Rule:        ruleName,
		ModelAgrees: true,
	}
	if ctx.Confluence != nil {
		sig.Reasons = append(sig.Reasons, ctx.Confluence.Reasoning...)
	}

	if sig.Direction == Wait || c.model == nil || !c.model.Trained() || len(features) == 0 {
		return sig
	}

	proba, err := c.model.PredictProba(features)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("model predict failed, using rule confidence")
		return sig
	}

	modelDir := argmaxDirection(proba)
	modelConf := proba[directionIndex(sig.Direction)] * 100

	blended := c.ruleWeight*sig.Confidence + c.modelWeight*modelConf
	if modelDir != Wait && modelDir != sig.Direction {
		sig.ModelAgrees = false
		halved := sig.Confidence / 2
		if blended > halved {
			blended = halved
		}
		sig.Reasons = append(sig.Reasons, "Model disagrees with rule direction")
	}
	sig.Confidence = clampConfidence(blended)
	return sig
}

func argmaxDirection(proba [3]float64) Direction {
	best := 0
	for i := 1; i < 3; i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	switch best {
	case 0:
		return Sell
	case 2:
		return Buy
	default:
		return Wait
	}
}

func directionIndex(d Direction) int {
	switch d {
	case Sell:
		return 0
	case Buy:
		return 2
	default:
		return 1
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
