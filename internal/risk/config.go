package risk

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultKey is the per-symbol wildcard entry.
const DefaultKey = "DEFAULT"

// Well-known parameter names.
const (
	ParamMaxPositionPerSymbol    = "max_position_per_symbol"
	ParamMaxCapitalPerOrderRatio = "max_capital_per_order_ratio"
	ParamMinOrderValue           = "min_order_value"
)

// Hardcoded fallbacks used when a parameter is absent at every layer.
const (
	FallbackMaxPosition     = 0 // disabled
	FallbackMaxCapitalRatio = 0.1
	FallbackMinOrderValue   = 10.0
)

// Param is one risk parameter value: either a plain scalar or a
// per-symbol map that may carry a DEFAULT entry.
type Param struct {
	scalar    *float64
	perSymbol map[string]float64
}

// Scalar builds a scalar parameter.
func Scalar(v float64) Param {
	return Param{scalar: &v}
}

// PerSymbol builds a per-symbol parameter.
func PerSymbol(values map[string]float64) Param {
	return Param{perSymbol: values}
}

// UnmarshalYAML accepts either `param: 0.5` or a symbol map:
//
//	param:
//	  BTCUSDT: 0.5
//	  DEFAULT: 1.0
func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("risk parameter: %w", err)
		}
		p.scalar = &v
		p.perSymbol = nil
	case yaml.MappingNode:
		m := map[string]float64{}
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("risk parameter map: %w", err)
		}
		p.perSymbol = m
		p.scalar = nil
	default:
		return fmt.Errorf("risk parameter: unsupported YAML node kind %d", node.Kind)
	}
	return nil
}

// Config is a set of named risk parameters, either the global block or
// one strategy's overrides.
type Config map[string]Param

// lookup resolves name for symbol within this config alone. The
// per-symbol form is consulted first (exact symbol, then DEFAULT); a
// scalar value applies to all symbols.
func (c Config) lookup(name, symbol string) (float64, bool) {
	p, ok := c[name]
	if !ok {
		return 0, false
	}
	if p.perSymbol != nil {
		if v, ok := p.perSymbol[symbol]; ok {
			return v, true
		}
		if v, ok := p.perSymbol[DefaultKey]; ok {
			return v, true
		}
		return 0, false
	}
	if p.scalar != nil {
		return *p.scalar, true
	}
	return 0, false
}
