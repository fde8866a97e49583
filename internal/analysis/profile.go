package analysis

import (
	"smc-signal-engine/internal/market"
)

// ProfileConfig controls volume profile binning.
type ProfileConfig struct {
	Bins             int     // number of price buckets
	ValueAreaPercent float64 // share of total volume inside the value area
	HVNMultiplier    float64 // bin volume >= HVN x mean qualifies as a high volume node
	LVNMultiplier    float64 // bin volume <= LVN x mean (and nonzero) is a low volume node
}

// VolumeProfile is the distribution of traded volume across price.
type VolumeProfile struct {
	POC           float64 // price of the heaviest bin
	ValueAreaLow  float64
	ValueAreaHigh float64
	BinWidth      float64
	Nodes         []StructuralZone // HVN and LVN zones
}

// ProfileBuilder bins traded volume by price level. Each candle's
// volume is spread evenly across the bins its high-low range covers.
type ProfileBuilder struct {
	cfg ProfileConfig
}

func NewProfileBuilder(cfg ProfileConfig) *ProfileBuilder {
	if cfg.Bins <= 0 {
		cfg.Bins = 70
	}
	if cfg.ValueAreaPercent <= 0 || cfg.ValueAreaPercent > 1 {
		cfg.ValueAreaPercent = 0.70
	}
	if cfg.HVNMultiplier <= 0 {
		cfg.HVNMultiplier = 1.5
	}
	if cfg.LVNMultiplier <= 0 {
		cfg.LVNMultiplier = 0.5
	}
	return &ProfileBuilder{cfg: cfg}
}

// Build computes the profile for the full series window.
func (b *ProfileBuilder) Build(series market.Series) (VolumeProfile, bool) {
	n := series.Len()
	if n == 0 {
		return VolumeProfile{}, false
	}

	hi, lo := extremes(series, 0, n-1)
	if hi <= lo {
		return VolumeProfile{}, false
	}
	width := (hi - lo) / float64(b.cfg.Bins)

	bins := make([]float64, b.cfg.Bins)
	total := 0.0
	for i := 0; i < n; i++ {
		c := series.At(i)
		if c.Volume <= 0 {
			continue
		}
		total += c.Volume
		first := b.binIndex(c.Low, lo, width)
		last := b.binIndex(c.High, lo, width)
		share := c.Volume / float64(last-first+1)
		for j := first; j <= last; j++ {
			bins[j] += share
		}
	}
	if total <= 0 {
		return VolumeProfile{}, false
	}

	poc := 0
	for i := range bins {
		if bins[i] > bins[poc] {
			poc = i
		}
	}

	valLow, valHigh := b.valueArea(bins, poc, total)

	profile := VolumeProfile{
		POC:           lo + (float64(poc)+0.5)*width,
		ValueAreaLow:  lo + float64(valLow)*width,
		ValueAreaHigh: lo + float64(valHigh+1)*width,
		BinWidth:      width,
	}
	profile.Nodes = b.nodes(series, bins, lo, width, total)
	return profile, true
}

func (b *ProfileBuilder) binIndex(price, lo, width float64) int {
	idx := int((price - lo) / width)
	if idx < 0 {
		idx = 0
	}
	if idx >= b.cfg.Bins {
		idx = b.cfg.Bins - 1
	}
	return idx
}

// valueArea expands from the POC, always absorbing the heavier of the
// two adjacent bins, until the target share of volume is covered.
func (b *ProfileBuilder) valueArea(bins []float64, poc int, total float64) (low, high int) {
	low, high = poc, poc
	covered := bins[poc]
	target := total * b.cfg.ValueAreaPercent
	for covered < target {
		below, above := -1.0, -1.0
		if low > 0 {
			below = bins[low-1]
		}
		if high < len(bins)-1 {
			above = bins[high+1]
		}
		if below < 0 && above < 0 {
			break
		}
		if above >= below {
			high++
			covered += above
		} else {
			low--
			covered += below
		}
	}
	return low, high
}

func (b *ProfileBuilder) nodes(series market.Series, bins []float64, lo, width, total float64) []StructuralZone {
	mean := total / float64(len(bins))
	lastBar := series.Len() - 1
	var nodes []StructuralZone
	for i, v := range bins {
		var side ZoneSide
		var strength float64
		switch {
		case v >= mean*b.cfg.HVNMultiplier:
			side = SideBullish // HVN acts as support/acceptance
			strength = clamp01(v / (mean * b.cfg.HVNMultiplier * 2))
		case v > 0 && v <= mean*b.cfg.LVNMultiplier:
			side = SideBearish // LVN tends to reject price
			strength = clamp01(1 - v/(mean*b.cfg.LVNMultiplier))
		default:
			continue
		}
		nodes = append(nodes, StructuralZone{
			ID:         zoneID(KindProfileNode, series.Symbol(), series.Timeframe(), i),
			Kind:       KindProfileNode,
			Side:       side,
			Timeframe:  series.Timeframe(),
			Low:        lo + float64(i)*width,
			High:       lo + float64(i+1)*width,
			OriginTime: series.At(lastBar).Time(),
			OriginBar:  lastBar,
			Strength:   strength,
			State:      StateActive,
		})
	}
	return nodes
}
