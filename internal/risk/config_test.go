package risk

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParamUnmarshalYAML(t *testing.T) {
	src := `
max_capital_per_order_ratio: 0.25
max_position_per_symbol:
  BTCUSDT: 0.5
  DEFAULT: 2
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if v, ok := cfg.lookup("max_capital_per_order_ratio", "ETHUSDT"); !ok || v != 0.25 {
		t.Fatalf("scalar lookup=(%v,%v), expected (0.25,true)", v, ok)
	}
	if v, ok := cfg.lookup("max_position_per_symbol", "BTCUSDT"); !ok || v != 0.5 {
		t.Fatalf("symbol lookup=(%v,%v), expected (0.5,true)", v, ok)
	}
	if v, ok := cfg.lookup("max_position_per_symbol", "ETHUSDT"); !ok || v != 2 {
		t.Fatalf("default lookup=(%v,%v), expected (2,true)", v, ok)
	}
}

func TestParamUnmarshalRejectsSequence(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("min_order_value: [1, 2]\n"), &cfg)
	if err == nil {
		t.Fatalf("expected error for sequence value")
	}
}
