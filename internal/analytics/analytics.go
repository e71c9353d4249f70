// Package analytics provides rolling-window computations and value
// summaries over query results.
package analytics

import (
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/findata/internal/types"
)

// MovingAverage computes the simple moving average of values over the
// given window. The result has len(values)-window+1 entries; entry i is
// the mean of values[i : i+window].
func MovingAverage(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	if len(values) < window {
		return nil, fmt.Errorf("need at least %d values, have %d", window, len(values))
	}

	out := make([]float64, len(values)-window+1)

	sum := 0.0
	for _, v := range values[:window] {
		sum += v
	}
	out[0] = sum / float64(window)

	for i := window; i < len(values); i++ {
		sum += values[i] - values[i-window]
		out[i-window+1] = sum / float64(window)
	}

	return out, nil
}

// EMA computes the exponential moving average with smoothing factor
// alpha in [0, 1]. The first output is seeded with the first value.
func EMA(values []float64, alpha float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("need at least one value")
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha must be in [0, 1], got %v", alpha)
	}

	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}

	return out, nil
}

// RollingStdDev computes the population standard deviation over a
// rolling window. The result has len(values)-window+1 entries.
func RollingStdDev(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	if len(values) < window {
		return nil, fmt.Errorf("need at least %d values, have %d", window, len(values))
	}

	out := make([]float64, len(values)-window+1)
	for i := range out {
		slice := values[i : i+window]

		mean := 0.0
		for _, v := range slice {
			mean += v
		}
		mean /= float64(window)

		variance := 0.0
		for _, v := range slice {
			d := v - mean
			variance += d * d
		}

		out[i] = math.Sqrt(variance / float64(window))
	}

	return out, nil
}

// Summary holds running statistics over a set of points, with
// DDSketch-backed percentiles.
type Summary struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Avg   float64
	P50   float64
	P90   float64
	P95   float64
	P99   float64
}

// DefaultAccuracy is the relative accuracy used for percentile sketches.
const DefaultAccuracy = 0.01

// Summarize computes a Summary over the values of a point slice.
func Summarize(points []types.Point, accuracy float64) (*Summary, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to summarize")
	}
	if accuracy <= 0 {
		accuracy = DefaultAccuracy
	}

	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}

	s := &Summary{
		Min: math.MaxFloat64,
		Max: -math.MaxFloat64,
	}

	for _, p := range points {
		s.Count++
		s.Sum += p.Value
		if p.Value < s.Min {
			s.Min = p.Value
		}
		if p.Value > s.Max {
			s.Max = p.Value
		}
		if err := sketch.Add(p.Value); err != nil {
			return nil, fmt.Errorf("add to sketch: %w", err)
		}
	}
	s.Avg = s.Sum / float64(s.Count)

	quantiles := []struct {
		q   float64
		dst *float64
	}{
		{0.50, &s.P50},
		{0.90, &s.P90},
		{0.95, &s.P95},
		{0.99, &s.P99},
	}
	for _, q := range quantiles {
		v, err := sketch.GetValueAtQuantile(q.q)
		if err != nil {
			return nil, fmt.Errorf("quantile %v: %w", q.q, err)
		}
		*q.dst = v
	}

	return s, nil
}

// Values extracts the value column from a point slice.
func Values(points []types.Point) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}
