package indicator

import (
	"errors"
	"math"
	"time"

	"macropulse/internal/timeseries"
	"macropulse/pkg/logger"
)

// ErrNoComponents is returned when every composite component is unavailable.
var ErrNoComponents = errors.New("indicator: no composite components available")

// Rolling volatility window for component normalization, with degrading
// fallbacks for short histories.
const compositeStdWindow = 120

var compositeStdFallbacks = []int{60, 36}

// CompositeCalculator derives the PMI proxy from weighted FRED components.
type CompositeCalculator struct {
	logger *logger.Logger
}

// NewCompositeCalculator creates a composite calculator.
func NewCompositeCalculator(log *logger.Logger) *CompositeCalculator {
	return &CompositeCalculator{
		logger: log.WithField("module", "composite"),
	}
}

// componentDiffusion converts one component's raw monthly series into a
// diffusion-index series: MoM percent change normalized by local rolling
// volatility, mapped onto the 0-100 PMI scale.
func componentDiffusion(series timeseries.Series) []float64 {
	values := timeseries.ForwardFill(series.Values())
	pct := timeseries.PercentChangeValues(values, 1)
	std := timeseries.RollingStd(pct, compositeStdWindow, 0, compositeStdFallbacks)

	diffusion := make([]float64, len(pct))
	for i := range pct {
		if math.IsNaN(pct[i]) {
			diffusion[i] = math.NaN()
			continue
		}
		diffusion[i] = timeseries.DiffusionIndex(pct[i], std[i])
	}
	return diffusion
}

// Calculate builds the composite PMI series from per-component raw series.
// Components with no data are dropped and the remaining weights renormalized
// so they sum to 1. All components missing is a hard failure.
func (c *CompositeCalculator) Calculate(components []Component, data map[string]timeseries.Series) (*CompositeResult, error) {
	type prepared struct {
		component Component
		dates     []time.Time
		diffusion []float64
	}

	var available []prepared
	var dropped []string
	totalWeight := 0.0

	for _, comp := range components {
		series := data[comp.SeriesID]
		if len(series.DropNaN()) < 2 {
			dropped = append(dropped, comp.Name)
			continue
		}
		monthly := series.ResampleMonthly()
		available = append(available, prepared{
			component: comp,
			dates:     monthly.Dates(),
			diffusion: componentDiffusion(monthly),
		})
		totalWeight += comp.Weight
	}

	if len(available) == 0 || totalWeight <= 0 {
		return nil, ErrNoComponents
	}

	if len(dropped) > 0 {
		c.logger.WithFields(map[string]interface{}{
			"dropped":   dropped,
			"available": len(available),
		}).Warn("Composite components missing, renormalizing weights")
	}

	// Align per-component diffusion series on the union of dates.
	byName := make(map[string]timeseries.Series, len(available))
	for _, p := range available {
		s := make(timeseries.Series, len(p.dates))
		for i, d := range p.dates {
			s[i] = timeseries.Point{Date: d, Value: p.diffusion[i]}
		}
		byName[p.component.Name] = s
	}
	merged := timeseries.MergeByDate(byName)

	weightByName := make(map[string]float64, len(available))
	componentValues := make([]ComponentValue, 0, len(available))
	for _, p := range available {
		weightByName[p.component.Name] = p.component.Weight / totalWeight
	}

	// Weighted sum per date over the components defined at that date. Dates
	// where a component is still NaN reweight across the defined ones.
	composite := make(timeseries.Series, 0, len(merged.Dates))
	for i, date := range merged.Dates {
		sum := 0.0
		weight := 0.0
		for name, column := range merged.Columns {
			v := column[i]
			if math.IsNaN(v) {
				continue
			}
			w := weightByName[name]
			sum += v * w
			weight += w
		}
		if weight == 0 {
			composite = append(composite, timeseries.Point{Date: date, Value: math.NaN()})
			continue
		}
		composite = append(composite, timeseries.Point{Date: date, Value: sum / weight})
	}

	defined := composite.DropNaN()
	if len(defined) == 0 {
		return nil, ErrNoComponents
	}
	latest, _ := defined.Last()

	for _, p := range available {
		last := math.NaN()
		for i := len(p.diffusion) - 1; i >= 0; i-- {
			if !math.IsNaN(p.diffusion[i]) {
				last = p.diffusion[i]
				break
			}
		}
		componentValues = append(componentValues, ComponentValue{
			Name:      p.component.Name,
			SeriesID:  p.component.SeriesID,
			Weight:    weightByName[p.component.Name],
			Diffusion: last,
		})
	}

	status := StatusOK
	if len(dropped) > 0 {
		status = StatusDegraded
	}

	return &CompositeResult{
		Key:         "pmi_proxy",
		DisplayName: "Manufacturing PMI Proxy",
		Status:      status,
		Series:      defined,
		Latest:      latest.Value,
		Below50:     latest.Value < 50,
		Components:  componentValues,
		Dropped:     dropped,
	}, nil
}
