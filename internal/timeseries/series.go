package timeseries

import (
	"math"
	"sort"
	"time"
)

// Point is a single dated observation. Missing values are NaN.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is an ordered sequence of observations, ascending by date.
type Series []Point

// Values returns the raw value slice in date order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Dates returns the date slice in order.
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Last returns the most recent observation. ok is false for an empty series.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Tail returns the last n observations (fewer if the series is shorter).
func (s Series) Tail(n int) Series {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// TailValues returns the values of the last n observations.
func (s Series) TailValues(n int) []float64 {
	return s.Tail(n).Values()
}

// Sort orders the series ascending by date in place.
func (s Series) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}

// WithValues returns a copy of the series carrying the given values.
// values must be the same length as the series.
func (s Series) WithValues(values []float64) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Date: p.Date, Value: values[i]}
	}
	return out
}

// DropNaN returns a copy without NaN observations.
func (s Series) DropNaN() Series {
	out := make(Series, 0, len(s))
	for _, p := range s {
		if !math.IsNaN(p.Value) {
			out = append(out, p)
		}
	}
	return out
}

// ResampleMonthly reduces the series to the last observation of each
// calendar month, dated at that observation's date.
func (s Series) ResampleMonthly() Series {
	if len(s) == 0 {
		return s
	}

	out := make(Series, 0, len(s))
	for i, p := range s {
		if i+1 < len(s) {
			next := s[i+1].Date
			if next.Year() == p.Date.Year() && next.Month() == p.Date.Month() {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// Merged holds several series aligned on a shared date axis. Dates missing
// from a column are filled with NaN.
type Merged struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// MergeByDate outer-joins the given series on their dates. Arrival order of
// the inputs is irrelevant; the result is sorted ascending by date.
func MergeByDate(series map[string]Series) Merged {
	dateSet := make(map[time.Time]struct{})
	for _, s := range series {
		for _, p := range s {
			dateSet[p.Date] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	columns := make(map[string][]float64, len(series))
	for name, s := range series {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		for _, p := range s {
			col[index[p.Date]] = p.Value
		}
		columns[name] = col
	}

	return Merged{Dates: dates, Columns: columns}
}
