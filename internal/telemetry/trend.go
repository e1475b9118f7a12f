package telemetry

// TrendClass classifies a rolling TES trend.
type TrendClass string

const (
	TrendImproving TrendClass = "improving"
	TrendDeclining TrendClass = "declining"
	TrendStable    TrendClass = "stable"
)

// TrendThreshold is the ± band outside which a trend is no longer
// classified as stable.
const TrendThreshold = 2.0

// Trend derives rolling mean/velocity over a TES history and classifies
// it. History is oldest-first; only the last 20 entries are considered.
func Trend(history []float64) (mean, velocity float64, class TrendClass) {
	if len(history) > 20 {
		history = history[len(history)-20:]
	}
	mean = meanOf(history)

	last10 := lastN(history, 10)
	prev10 := prevN(history, 10)
	velocity = meanOf(last10) - meanOf(prev10)

	switch {
	case velocity >= TrendThreshold:
		class = TrendImproving
	case velocity <= -TrendThreshold:
		class = TrendDeclining
	default:
		class = TrendStable
	}
	return mean, velocity, class
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// prevN returns the n entries immediately before the last n (i.e. the
// window [-20,-10) when xs has 20 entries and n=10).
func prevN(xs []float64, n int) []float64 {
	last := lastN(xs, n)
	rest := xs[:len(xs)-len(last)]
	return lastN(rest, n)
}
