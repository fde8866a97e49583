package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config is the root configuration tree for the signal engine. Every
// free-form threshold of the pipeline lives here as a named, validated
// field; nothing is looked up by string key at runtime. Construction
// fails fast on out-of-range values.
type Config struct {
	Indicators IndicatorConfig  `json:"indicators"`
	Confluence ConfluenceConfig `json:"confluence"`
	Classifier ClassifierConfig `json:"classifier"`
	Validator  ValidatorConfig  `json:"validator"`
	Risk       RiskConfig       `json:"risk"`
	Backtest   BacktestConfig   `json:"backtest"`
	Cache      CacheConfig      `json:"cache"`
	Store      StoreConfig      `json:"store"`
	Server     ServerConfig     `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// IndicatorConfig holds lookbacks and thresholds for the structural
// primitives of the indicator engine.
type IndicatorConfig struct {
	// Order blocks
	OBMinCandles      int     `json:"ob_min_candles" default:"3" validate:"min=2"`
	OBMaxCandles      int     `json:"ob_max_candles" default:"5" validate:"min=2"`
	OBImpulsePercent  float64 `json:"ob_impulse_percent" default:"1.5" validate:"gt=0"`
	OBLookback        int     `json:"ob_lookback" default:"20" validate:"min=5"`
	OBRangeMultiplier float64 `json:"ob_range_multiplier" default:"1.5" validate:"gt=0"`

	// Fair value gaps
	FVGMinGapPercent float64 `json:"fvg_min_gap_percent" default:"0.1" validate:"gt=0"`
	FVGMaxAgeBars    int     `json:"fvg_max_age_bars" default:"50" validate:"min=1"`

	// Market structure
	SwingLookback int `json:"swing_lookback" default:"5" validate:"min=2"`

	// Volume profile
	ProfileBins       int     `json:"profile_bins" default:"70" validate:"min=10,max=500"`
	ValueAreaPercent  float64 `json:"value_area_percent" default:"0.70" validate:"gt=0,lt=1"`
	HVNMultiplier     float64 `json:"hvn_multiplier" default:"1.5" validate:"gt=1"`
	LVNMultiplier     float64 `json:"lvn_multiplier" default:"0.5" validate:"gt=0,lt=1"`
	ProfileWindowBars int     `json:"profile_window_bars" default:"96" validate:"min=10"`

	// Order flow delta
	DeltaThresholdPct float64 `json:"delta_threshold_pct" default:"10" validate:"gt=0"`
	DeltaLookback     int     `json:"delta_lookback" default:"5" validate:"min=2"`

	// Oscillators / volatility
	RSIPeriod int `json:"rsi_period" default:"14" validate:"min=2"`
	ATRPeriod int `json:"atr_period" default:"14" validate:"min=2"`
	MACDFast  int `json:"macd_fast" default:"12" validate:"min=2"`
	MACDSlow  int `json:"macd_slow" default:"26" validate:"min=3"`
	MACDSig   int `json:"macd_signal" default:"9" validate:"min=2"`
	BBPeriod  int `json:"bb_period" default:"20" validate:"min=2"`
}

// ConfluenceConfig controls zone clustering and scoring.
type ConfluenceConfig struct {
	ProximityPercent float64 `json:"proximity_percent" default:"0.5" validate:"gt=0,lt=10"`
	MinTypeCount     int     `json:"min_type_count" default:"2" validate:"min=1"`
	HigherTFWeight   float64 `json:"higher_tf_weight" default:"1.5" validate:"gte=1"`
}

// ClassifierConfig controls the rule table, the statistical model and
// their blend.
type ClassifierConfig struct {
	RuleWeight  float64 `json:"rule_weight" default:"0.65" validate:"gt=0,lte=1"`
	ModelWeight float64 `json:"model_weight" default:"0.35" validate:"gte=0,lt=1"`

	Oversold          float64 `json:"oversold" default:"30" validate:"gt=0,lt=50"`
	Overbought        float64 `json:"overbought" default:"70" validate:"gt=50,lt=100"`
	ExtremeOversold   float64 `json:"extreme_oversold" default:"20" validate:"gt=0,lt=50"`
	ExtremeOverbought float64 `json:"extreme_overbought" default:"80" validate:"gt=50,lt=100"`

	// GBDT hyperparameters
	Trees        int     `json:"trees" default:"60" validate:"min=5,max=500"`
	MaxDepth     int     `json:"max_depth" default:"4" validate:"min=1,max=12"`
	LearningRate float64 `json:"learning_rate" default:"0.1" validate:"gt=0,lte=1"`
	MinLeaf      int     `json:"min_leaf" default:"20" validate:"min=1"`

	// Barrier labeling
	LabelTPATRMult   float64 `json:"label_tp_atr_mult" default:"2.5" validate:"gt=0"`
	LabelSLATRMult   float64 `json:"label_sl_atr_mult" default:"1.5" validate:"gt=0"`
	LabelHorizonBars int     `json:"label_horizon_bars" default:"4" validate:"min=1"`

	// Fraction of the training window held out for calibration.
	CalibrationSplit float64 `json:"calibration_split" default:"0.2" validate:"gt=0,lt=0.5"`
}

// ValidatorConfig holds the contradiction-detection thresholds.
type ValidatorConfig struct {
	OversoldRSI        float64 `json:"oversold_rsi" default:"35" validate:"gt=0,lt=50"`
	OverboughtRSI      float64 `json:"overbought_rsi" default:"75" validate:"gt=50,lt=100"`
	InversionPenalty   float64 `json:"inversion_penalty" default:"20" validate:"gt=0,lt=100"`
	InversionFloor     float64 `json:"inversion_floor" default:"30" validate:"gte=0,lt=100"`
	MACDPenalty        float64 `json:"macd_penalty" default:"20" validate:"gt=0,lt=100"`
	MACDEpsilon        float64 `json:"macd_epsilon" default:"0.0005" validate:"gt=0"`
	NeutralRSILow      float64 `json:"neutral_rsi_low" default:"50" validate:"gt=0,lt=100"`
	NeutralRSIHigh     float64 `json:"neutral_rsi_high" default:"55" validate:"gt=0,lt=100"`
	NeutralCeiling     float64 `json:"neutral_ceiling" default:"50" validate:"gt=0,lte=100"`
	NeutralTrigger     float64 `json:"neutral_trigger" default:"70" validate:"gt=0,lte=100"`
	ExtremeMovePercent float64 `json:"extreme_move_percent" default:"30" validate:"gt=0"`
	LowVolumeRatio     float64 `json:"low_volume_ratio" default:"0.3" validate:"gt=0,lt=1"`
	LowVolumeScale     float64 `json:"low_volume_scale" default:"0.5" validate:"gt=0,lt=1"`
}

// RiskConfig controls stop/target placement and position sizing.
type RiskConfig struct {
	RiskPerTrade      float64 `json:"risk_per_trade" default:"0.01" validate:"gt=0,lte=0.1"`
	MaxPositionFrac   float64 `json:"max_position_frac" default:"0.25" validate:"gt=0,lte=1"`
	MinRiskReward     float64 `json:"min_risk_reward" default:"1.5" validate:"gte=1"`
	StopATRMult       float64 `json:"stop_atr_mult" default:"1.5" validate:"gt=0"`
	TargetRRFallback  float64 `json:"target_rr_fallback" default:"2.0" validate:"gte=1"`
	StopBufferPercent float64 `json:"stop_buffer_percent" default:"0.1" validate:"gte=0,lt=5"`
}

// BacktestConfig controls the walk-forward harness.
type BacktestConfig struct {
	TrainBars      int     `json:"train_bars" default:"2160" validate:"min=100"`
	TestBars       int     `json:"test_bars" default:"720" validate:"min=20"`
	StepBars       int     `json:"step_bars" default:"720" validate:"min=1"`
	MaxHoldingBars int     `json:"max_holding_bars" default:"48" validate:"min=1"`
	InitialEquity  float64 `json:"initial_equity" default:"10000" validate:"gt=0"`
	FeePercent     float64 `json:"fee_percent" default:"0.1" validate:"gte=0,lt=5"`
	MinConfidence  float64 `json:"min_confidence" default:"50" validate:"gte=0,lte=100"`
	MinTrainBars   int     `json:"min_train_bars" default:"500" validate:"min=50"`
}

// CacheConfig bounds the indicator memoization cache.
type CacheConfig struct {
	MaxEntries int `json:"max_entries" default:"4096" validate:"min=16"`
}

// StoreConfig points the candle store at its backends. Both are optional;
// the in-memory store is always available.
type StoreConfig struct {
	PostgresDSN string `json:"postgres_dsn"`
	RedisAddr   string `json:"redis_addr"`
	RedisDB     int    `json:"redis_db" validate:"gte=0"`
	CacheTTLSec int    `json:"cache_ttl_sec" default:"300" validate:"min=1"`
}

// ServerConfig configures the backtest job API.
type ServerConfig struct {
	Addr string `json:"addr" default:":9985"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `json:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Pretty bool   `json:"pretty"`
}

// Default returns a Config populated with defaults and validated.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: applying defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a JSON config file, fills unset fields with defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: applying defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges plus the cross-field constraints the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Indicators.OBMinCandles > c.Indicators.OBMaxCandles {
		return fmt.Errorf("config: ob_min_candles (%d) exceeds ob_max_candles (%d)",
			c.Indicators.OBMinCandles, c.Indicators.OBMaxCandles)
	}
	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return fmt.Errorf("config: macd_fast (%d) must be below macd_slow (%d)",
			c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}
	if sum := c.Classifier.RuleWeight + c.Classifier.ModelWeight; sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("config: classifier weights must sum to 1.0, got %.2f", sum)
	}
	if c.Classifier.ExtremeOversold > c.Classifier.Oversold {
		return fmt.Errorf("config: extreme_oversold (%.1f) must not exceed oversold (%.1f)",
			c.Classifier.ExtremeOversold, c.Classifier.Oversold)
	}
	if c.Classifier.ExtremeOverbought < c.Classifier.Overbought {
		return fmt.Errorf("config: extreme_overbought (%.1f) must not be below overbought (%.1f)",
			c.Classifier.ExtremeOverbought, c.Classifier.Overbought)
	}
	if c.Validator.NeutralRSILow >= c.Validator.NeutralRSIHigh {
		return fmt.Errorf("config: neutral_rsi_low (%.1f) must be below neutral_rsi_high (%.1f)",
			c.Validator.NeutralRSILow, c.Validator.NeutralRSIHigh)
	}
	if c.Backtest.TestBars > c.Backtest.TrainBars {
		return fmt.Errorf("config: test_bars (%d) exceeds train_bars (%d)",
			c.Backtest.TestBars, c.Backtest.TrainBars)
	}
	return nil
}
