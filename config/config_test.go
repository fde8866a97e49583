package config

import (
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() returned error: %v", err)
	}
	if cfg.Indicators.ProfileBins != 70 {
		t.Errorf("expected 70 profile bins, got %d", cfg.Indicators.ProfileBins)
	}
	if cfg.Classifier.RuleWeight != 0.65 || cfg.Classifier.ModelWeight != 0.35 {
		t.Errorf("unexpected default blend weights: %.2f/%.2f",
			cfg.Classifier.RuleWeight, cfg.Classifier.ModelWeight)
	}
	if cfg.Indicators.ValueAreaPercent != 0.70 {
		t.Errorf("expected 70%% value area, got %.2f", cfg.Indicators.ValueAreaPercent)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "negative risk fraction",
			mutate: func(c *Config) { c.Risk.RiskPerTrade = -0.01 },
			want:   "RiskPerTrade",
		},
		{
			name:   "blend weights not summing to one",
			mutate: func(c *Config) { c.Classifier.RuleWeight = 0.9; c.Classifier.ModelWeight = 0.9 },
			want:   "weights must sum",
		},
		{
			name:   "macd fast above slow",
			mutate: func(c *Config) { c.Indicators.MACDFast = 30 },
			want:   "macd_fast",
		},
		{
			name:   "test window larger than train window",
			mutate: func(c *Config) { c.Backtest.TestBars = 5000 },
			want:   "test_bars",
		},
		{
			name:   "value area out of range",
			mutate: func(c *Config) { c.Indicators.ValueAreaPercent = 1.2 },
			want:   "ValueAreaPercent",
		},
		{
			name:   "inverted neutral band",
			mutate: func(c *Config) { c.Validator.NeutralRSILow = 60; c.Validator.NeutralRSIHigh = 55 },
			want:   "neutral_rsi_low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			if err != nil {
				t.Fatalf("Default() returned error: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}
