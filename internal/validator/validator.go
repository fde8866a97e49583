// Package validator sanity-checks classifier output against raw
// indicator state and corrects contradictions instead of dropping the
// signal. Checks run in a fixed order; each correction stamps the
// signal, so validating an already-corrected signal changes nothing.
package validator

import (
	"fmt"
	"strings"

	"smc-signal-engine/internal/indicator"
	"smc-signal-engine/internal/signal"
)

// Stable prefixes for applied corrections. They double as idempotence
// stamps: a correction whose prefix is already on the signal is skipped.
const (
	noteInvertedSell    = "inverted SELL to BUY"
	noteInvertedBuy     = "inverted BUY to SELL"
	noteMACDPenaltySell = "penalized SELL against positive MACD momentum"
	noteMACDPenaltyBuy  = "penalized BUY against negative MACD momentum"
	noteNeutralCap      = "capped confidence"
	noteForcedWait      = "forced WAIT"
	noteLowVolume       = "scaled confidence for thin volume"
)

// ValidatedSignal is the validator's full output: the classifier's raw
// signal, the corrected signal, and what changed between the two.
type ValidatedSignal struct {
	Raw          signal.Signal `json:"raw"`
	Signal       signal.Signal `json:"signal"`
	WasCorrected bool          `json:"wasCorrected"`
	Issues       []string      `json:"issues"`
}

// Config holds the correction thresholds.
type Config struct {
	OversoldRSI        float64 // selling below this is contradicted
	OverboughtRSI      float64 // buying above this is contradicted
	InversionPenalty   float64 // confidence cost of an inversion
	InversionFloor     float64 // inverted signals never drop below this
	MACDPenalty        float64 // cost of fighting MACD momentum
	MACDEpsilon        float64 // histogram magnitude that counts as momentum
	NeutralRSILow      float64 // neutral band lower edge
	NeutralRSIHigh     float64 // neutral band upper edge
	NeutralCeiling     float64 // confidence cap inside the neutral band
	NeutralTrigger     float64 // confidence above this gets capped
	ExtremeMovePercent float64 // 24h crash size that forces WAIT
	LowVolumeRatio     float64 // volume ratio below this scales confidence
	LowVolumeScale     float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		OversoldRSI:        35,
		OverboughtRSI:      75,
		InversionPenalty:   20,
		InversionFloor:     30,
		MACDPenalty:        20,
		MACDEpsilon:        0.0005,
		NeutralRSILow:      50,
		NeutralRSIHigh:     55,
		NeutralCeiling:     50,
		NeutralTrigger:     70,
		ExtremeMovePercent: 30,
		LowVolumeRatio:     0.3,
		LowVolumeScale:     0.5,
	}
}

// Validator applies the correction rules. It is stateless; one instance
// serves any number of goroutines.
type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs every check in order and returns the record of what it
// did: the raw input, the corrected signal, and a note per correction
// applied this pass. The input is never mutated.
func (v *Validator) Validate(sig signal.Signal, snap indicator.Snapshot) ValidatedSignal {
	var notes []string
	out := sig
	out.Reasons = append([]string(nil), sig.Reasons...)

	if !snap.Ready {
		return ValidatedSignal{Raw: sig, Signal: out}
	}
	apply := func(stamp, note string, fn func()) {
		if stamped(out.Reasons, stamp) {
			return
		}
		fn()
		notes = append(notes, note)
		out.Reasons = append(out.Reasons, note)
	}

	// Contradiction inversions come first: a sell into oversold, or a
	// buy into overbought, is read as the opposite setup.
	if out.Direction == signal.Sell && snap.RSI < v.cfg.OversoldRSI {
		apply(noteInvertedSell, fmt.Sprintf("%s: RSI %.1f oversold", noteInvertedSell, snap.RSI), func() {
			out.Direction = signal.Buy
			out.Confidence = maxf(out.Confidence-v.cfg.InversionPenalty, v.cfg.InversionFloor)
		})
	} else if out.Direction == signal.Buy && snap.RSI > v.cfg.OverboughtRSI {
		apply(noteInvertedBuy, fmt.Sprintf("%s: RSI %.1f overbought", noteInvertedBuy, snap.RSI), func() {
			out.Direction = signal.Sell
			out.Confidence = maxf(out.Confidence-v.cfg.InversionPenalty, v.cfg.InversionFloor)
		})
	}

	// Trading into confirmed opposing momentum costs confidence but
	// does not flip the call, in either direction.
	if out.Direction == signal.Sell && snap.MACDHist > v.cfg.MACDEpsilon {
		apply(noteMACDPenaltySell, noteMACDPenaltySell, func() {
			out.Confidence -= v.cfg.MACDPenalty
		})
	} else if out.Direction == signal.Buy && snap.MACDHist < -v.cfg.MACDEpsilon {
		apply(noteMACDPenaltyBuy, noteMACDPenaltyBuy, func() {
			out.Confidence -= v.cfg.MACDPenalty
		})
	}

	// High conviction with a dead-neutral RSI is overconfidence.
	if out.Confidence > v.cfg.NeutralTrigger &&
		snap.RSI >= v.cfg.NeutralRSILow && snap.RSI <= v.cfg.NeutralRSIHigh {
		apply(noteNeutralCap, fmt.Sprintf("%s at %.0f: RSI neutral", noteNeutralCap, v.cfg.NeutralCeiling), func() {
			out.Confidence = v.cfg.NeutralCeiling
		})
	}

	// A crash of this size invalidates every directional read.
	if snap.PriceChange24h < -v.cfg.ExtremeMovePercent && out.Direction != signal.Wait {
		apply(noteForcedWait, fmt.Sprintf("%s: %.1f%% move in 24h", noteForcedWait, snap.PriceChange24h), func() {
			out.Direction = signal.Wait
			out.Confidence = 0
		})
	}

	if snap.VolumeRatio > 0 && snap.VolumeRatio < v.cfg.LowVolumeRatio {
		apply(noteLowVolume, fmt.Sprintf("%s (%.2fx average)", noteLowVolume, snap.VolumeRatio), func() {
			out.Confidence *= v.cfg.LowVolumeScale
		})
	}

	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 100 {
		out.Confidence = 100
	}
	return ValidatedSignal{
		Raw:          sig,
		Signal:       out,
		WasCorrected: len(notes) > 0,
		Issues:       notes,
	}
}

func stamped(reasons []string, stamp string) bool {
	for _, r := range reasons {
		if strings.HasPrefix(r, stamp) {
			return true
		}
	}
	return false
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
