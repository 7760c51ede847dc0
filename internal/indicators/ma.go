// Package indicators holds the small set of technical indicators the
// built-in strategies compute on closed bars, plus the price window
// they feed from.
package indicators

// SMA calculates the simple moving average for the last period values.
// It returns 0 until enough values are present.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
