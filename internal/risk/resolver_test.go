package risk

import "testing"

func TestResolveLayering(t *testing.T) {
	global := Config{
		"max_position_per_symbol": PerSymbol(map[string]float64{
			"BTCUSDT": 1,
			"DEFAULT": 2,
		}),
		"min_order_value": Scalar(25),
	}
	overrides := Config{
		"max_position_per_symbol": PerSymbol(map[string]float64{
			"DEFAULT": 5,
		}),
	}

	tests := []struct {
		name      string
		param     string
		symbol    string
		overrides Config
		want      float64
	}{
		{
			name:      "override DEFAULT shadows global exact symbol",
			param:     "max_position_per_symbol",
			symbol:    "BTCUSDT",
			overrides: overrides,
			want:      5,
		},
		{
			name:      "override DEFAULT shadows global DEFAULT",
			param:     "max_position_per_symbol",
			symbol:    "ETHUSDT",
			overrides: overrides,
			want:      5,
		},
		{
			name:   "global exact symbol without overrides",
			param:  "max_position_per_symbol",
			symbol: "BTCUSDT",
			want:   1,
		},
		{
			name:   "global DEFAULT without overrides",
			param:  "max_position_per_symbol",
			symbol: "ETHUSDT",
			want:   2,
		},
		{
			name:   "global scalar applies to any symbol",
			param:  "min_order_value",
			symbol: "SOLUSDT",
			want:   25,
		},
		{
			name:   "absent everywhere falls back",
			param:  "max_capital_per_order_ratio",
			symbol: "BTCUSDT",
			want:   FallbackMaxCapitalRatio,
		},
		{
			name:   "override exact symbol wins over override DEFAULT",
			param:  "max_position_per_symbol",
			symbol: "BTCUSDT",
			overrides: Config{
				"max_position_per_symbol": PerSymbol(map[string]float64{
					"BTCUSDT": 9,
					"DEFAULT": 5,
				}),
			},
			want: 9,
		},
		{
			name:   "override map without symbol or DEFAULT falls through to global",
			param:  "max_position_per_symbol",
			symbol: "BTCUSDT",
			overrides: Config{
				"max_position_per_symbol": PerSymbol(map[string]float64{
					"ETHUSDT": 3,
				}),
			},
			want: 1,
		},
		{
			name:   "override scalar beats global per-symbol",
			param:  "max_position_per_symbol",
			symbol: "BTCUSDT",
			overrides: Config{
				"max_position_per_symbol": Scalar(7),
			},
			want: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := FallbackMaxCapitalRatio
			got := Resolve(tt.param, tt.symbol, tt.overrides, global, fallback)
			if got != tt.want {
				t.Fatalf("Resolve(%q, %q)=%v, expected %v", tt.param, tt.symbol, got, tt.want)
			}
			// Resolution must not mutate either config.
			again := Resolve(tt.param, tt.symbol, tt.overrides, global, fallback)
			if again != got {
				t.Fatalf("second Resolve=%v, expected %v", again, got)
			}
		})
	}
}

func TestResolveNilConfigs(t *testing.T) {
	got := Resolve("min_order_value", "BTCUSDT", nil, nil, FallbackMinOrderValue)
	if got != FallbackMinOrderValue {
		t.Fatalf("Resolve with nil configs=%v, expected fallback %v", got, FallbackMinOrderValue)
	}
}
