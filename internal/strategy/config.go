package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quantcore/internal/risk"
)

// FailureAction selects what happens to a strategy when one of its
// streams permanently fails.
type FailureAction string

const (
	FailureLogOnly      FailureAction = "log_only"
	FailureStopStrategy FailureAction = "stop_strategy"
	FailureStopEngine   FailureAction = "stop_engine"
)

func (a FailureAction) valid() bool {
	switch a {
	case FailureLogOnly, FailureStopStrategy, FailureStopEngine:
		return true
	}
	return false
}

// Config represents one strategy entry in YAML.
type Config struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	Type            string         `yaml:"type"`
	Symbols         []string       `yaml:"symbols"`
	Interval        string         `yaml:"interval"`
	Parameters      map[string]any `yaml:"parameters"`
	RiskOverrides   risk.Config    `yaml:"risk_overrides"`
	OnStreamFailure FailureAction  `yaml:"on_stream_failure"`
	SubscribeTrades bool           `yaml:"subscribe_trades"`
	SubscribeTicker bool           `yaml:"subscribe_ticker"`
	IsActive        bool           `yaml:"is_active"`
}

// File is the top-level YAML structure: the global risk block plus the
// strategy list.
type File struct {
	RiskManagement risk.Config `yaml:"risk_management"`
	Strategies     []Config    `yaml:"strategies"`
}

// LoadFile reads and validates the strategy/risk configuration.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := map[string]bool{}
	for i := range f.Strategies {
		c := &f.Strategies[i]
		if c.ID == "" {
			return nil, fmt.Errorf("strategy %d: id is required", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("strategy %q: duplicate id", c.ID)
		}
		seen[c.ID] = true
		if len(c.Symbols) == 0 {
			return nil, fmt.Errorf("strategy %q: at least one symbol is required", c.ID)
		}
		if c.Interval == "" {
			return nil, fmt.Errorf("strategy %q: interval is required", c.ID)
		}
		if c.OnStreamFailure == "" {
			c.OnStreamFailure = FailureStopStrategy
		}
		if !c.OnStreamFailure.valid() {
			return nil, fmt.Errorf("strategy %q: unknown on_stream_failure %q", c.ID, c.OnStreamFailure)
		}
	}
	return &f, nil
}

// Build instantiates the strategy named by cfg.Type.
func Build(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case "sma_cross":
		return NewSMACrossFromConfig(cfg)
	case "rsi_reversion":
		return NewRSIReversionFromConfig(cfg)
	case "stream_watcher":
		return NewStreamWatcher(cfg.ID, cfg.Symbols, cfg.Interval), nil
	default:
		return nil, fmt.Errorf("unknown strategy type %q", cfg.Type)
	}
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return def
}
