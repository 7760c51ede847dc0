package risk

// Resolve returns the effective value of one risk parameter for one
// strategy/symbol pair. Strategy overrides always win over the global
// block, and within each block the per-symbol entry wins over its
// DEFAULT entry, which wins over a plain scalar. When the parameter is
// absent everywhere the hardcoded fallback is returned; resolution
// itself never fails.
//
// Note that a strategy override map with a DEFAULT entry shadows even
// an exact-symbol entry in the global block: the override block is a
// separate namespace, not a patch merged key-by-key into it.
func Resolve(name, symbol string, overrides, global Config, fallback float64) float64 {
	if v, ok := overrides.lookup(name, symbol); ok {
		return v
	}
	if v, ok := global.lookup(name, symbol); ok {
		return v
	}
	return fallback
}
