package timeseries

import "math"

// Direction selects the trend direction for consecutive-trend checks.
type Direction int

const (
	Increasing Direction = iota
	Decreasing
)

// PercentChange computes the lag-period percentage change for each point.
// The first lag outputs are NaN, as is any point whose base value is zero
// or missing.
func PercentChange(s Series, lag int) Series {
	values := PercentChangeValues(s.Values(), lag)
	return s.WithValues(values)
}

// AnnualizedPercentChange scales the lag-period percentage change by
// periodsPerYear/lag, e.g. 12/3 for a 3-month change on monthly data.
func AnnualizedPercentChange(s Series, lag, periodsPerYear int) Series {
	values := PercentChangeValues(s.Values(), lag)
	if lag > 0 {
		factor := float64(periodsPerYear) / float64(lag)
		for i := range values {
			values[i] *= factor
		}
	}
	return s.WithValues(values)
}

// PercentChangeValues is the slice form of PercentChange.
func PercentChangeValues(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}

	if lag <= 0 {
		return out
	}

	for i := lag; i < len(values); i++ {
		base := values[i-lag]
		if math.IsNaN(base) || math.IsNaN(values[i]) || base == 0 {
			continue
		}
		out[i] = (values[i] - base) / base * 100
	}

	return out
}

// RollingStd computes the trailing-window sample standard deviation at each
// point. If the preferred window produces no valid value anywhere, each
// fallback window is tried in turn; as a last resort the overall standard
// deviation is broadcast to every point. Remaining gaps are forward-filled.
func RollingStd(values []float64, window, minPeriods int, fallbacks []int) []float64 {
	out := rollingStdOnce(values, window, minPeriods)

	if !anyValid(out) {
		for _, fb := range fallbacks {
			out = rollingStdOnce(values, fb, minPeriodsFor(fb, minPeriods))
			if anyValid(out) {
				break
			}
		}
	}

	if !anyValid(out) {
		overall := overallStd(values)
		for i := range out {
			out[i] = overall
		}
		return out
	}

	return ForwardFill(out)
}

func minPeriodsFor(window, preferred int) int {
	if preferred < window {
		return preferred
	}
	return window
}

func rollingStdOnce(values []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}

	if window < 2 {
		return out
	}
	if minPeriods < 2 {
		minPeriods = 2
	}

	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}

		valid := make([]float64, 0, window)
		for j := start; j <= i; j++ {
			if !math.IsNaN(values[j]) {
				valid = append(valid, values[j])
			}
		}

		if len(valid) >= minPeriods {
			out[i] = sampleStd(valid)
		}
	}

	return out
}

// overallStd is the sample standard deviation of all valid values; NaN when
// fewer than two are available.
func overallStd(values []float64) float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < 2 {
		return math.NaN()
	}
	return sampleStd(valid)
}

func sampleStd(values []float64) float64 {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}

func anyValid(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// ForwardFill replaces NaN gaps with the last preceding valid value.
// Leading NaNs are left as is.
func ForwardFill(values []float64) []float64 {
	out := make([]float64, len(values))
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = last
		} else {
			out[i] = v
			last = v
		}
	}
	return out
}

// DiffusionIndex maps a percentage change into a bounded [0,100] index
// centered at 50 by scaling against its local standard deviation. A missing
// or non-positive standard deviation yields the neutral value exactly.
func DiffusionIndex(pctChange, localStd float64) float64 {
	if math.IsNaN(localStd) || localStd <= 0 || math.IsNaN(pctChange) {
		return 50.0
	}

	scaled := pctChange / localStd
	if scaled > 3 {
		scaled = 3
	} else if scaled < -3 {
		scaled = -3
	}

	return 50 + 10*scaled
}

// RocZScore computes a rolling z-score of the rocPeriod rate of change.
// The first rocPeriod + zscoreWindow - 1 outputs are NaN; a zero-variance
// window yields NaN rather than dividing by zero.
func RocZScore(values []float64, rocPeriod, zscoreWindow int) []float64 {
	roc := PercentChangeValues(values, rocPeriod)

	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}

	if zscoreWindow < 2 {
		return out
	}

	for i := range roc {
		start := i - zscoreWindow + 1
		if start < 0 {
			continue
		}

		window := roc[start : i+1]
		if !allValid(window) {
			continue
		}

		std := sampleStd(window)
		if std == 0 || math.IsNaN(std) {
			continue
		}

		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(len(window))

		out[i] = (roc[i] - mean) / std
	}

	return out
}

func allValid(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// EMASmooth applies an exponential moving average with smoothing factor
// 2/(span+1) and no bias adjustment. Leading NaNs stay NaN; interior NaNs
// carry the previous smoothed value forward.
func EMASmooth(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if span < 1 {
		copy(out, values)
		return out
	}

	alpha := 2.0 / (float64(span) + 1.0)
	prev := math.NaN()

	for i, v := range values {
		if math.IsNaN(prev) {
			out[i] = v
			if !math.IsNaN(v) {
				prev = v
			}
			continue
		}

		if math.IsNaN(v) {
			out[i] = prev
			continue
		}

		prev = alpha*v + (1-alpha)*prev
		out[i] = prev
	}

	return out
}

// ConsecutiveTrend reports whether the last count+1 values are strictly
// monotonic in the given direction. Fewer than count+1 values is never a
// trend.
func ConsecutiveTrend(values []float64, count int, dir Direction) bool {
	if count < 1 || len(values) < count+1 {
		return false
	}

	tail := values[len(values)-count-1:]
	for i := 0; i < len(tail)-1; i++ {
		if math.IsNaN(tail[i]) || math.IsNaN(tail[i+1]) {
			return false
		}
		if dir == Increasing && tail[i] >= tail[i+1] {
			return false
		}
		if dir == Decreasing && tail[i] <= tail[i+1] {
			return false
		}
	}

	return true
}

// CountConsecutive counts how many trailing steps moved strictly in the
// given direction before the streak broke.
func CountConsecutive(values []float64, dir Direction) int {
	count := 0
	for i := len(values) - 1; i > 0; i-- {
		prev, cur := values[i-1], values[i]
		if math.IsNaN(prev) || math.IsNaN(cur) {
			break
		}
		if dir == Decreasing && prev > cur {
			count++
		} else if dir == Increasing && prev < cur {
			count++
		} else {
			break
		}
	}
	return count
}

// CapOutliers clamps every value into [lo, hi]. NaNs pass through.
func CapOutliers(values []float64, lo, hi float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = v
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out
}
