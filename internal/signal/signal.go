// Package signal turns structural and indicator reads into directional
// trade signals. An ordered rule table produces the base call; a
// calibrated model blends into the confidence without ever overriding
// the rule's direction.
package signal

import (
	"time"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/indicator"
)

// Direction is the trade call of a signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Wait Direction = "WAIT"
)

// Signal is a directional call for one symbol at one evaluation bar.
// Confidence runs 0..100.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Direction   Direction `json:"direction"`
	Confidence  float64   `json:"confidence"`
	Price       float64   `json:"price"`
	Time        time.Time `json:"time"`
	Rule        string    `json:"rule"` // the rule that fired
	ModelAgrees bool      `json:"modelAgrees"`
	Reasons     []string  `json:"reasons,omitempty"`
}

// Context carries every input the rule table can read for one bar.
type Context struct {
	Snapshot   indicator.Snapshot
	Confluence *confluence.Score
	Structure  analysis.MarketStructure
	Delta      analysis.DeltaRead
	DeltaReady bool
}

// Outcome is what a rule emits when it matches.
type Outcome struct {
	Direction  Direction
	Confidence float64
}

// Rule pairs a predicate with its outcome. Rules are evaluated in
// order; the first match wins and later rules never run.
type Rule struct {
	Name string
	When func(Context) bool
	Then Outcome
}

// Table is an ordered rule set.
type Table struct {
	rules []Rule
}

// NewTable builds a table from rules in evaluation order.
func NewTable(rules []Rule) *Table {
	return &Table{rules: rules}
}

// Evaluate runs the rules in order and returns the first match. When
// nothing matches the table abstains with a WAIT at zero confidence.
func (t *Table) Evaluate(ctx Context) (Outcome, string) {
	for _, r := range t.rules {
		if r.When(ctx) {
			return r.Then, r.Name
		}
	}
	return Outcome{Direction: Wait, Confidence: 0}, "no_rule"
}
