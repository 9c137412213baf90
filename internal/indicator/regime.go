package indicator

import (
	"errors"
	"math"

	"macropulse/internal/timeseries"
	"macropulse/pkg/logger"
)

// ErrInsufficientHistory is returned when a regime input series is too
// short for the rate-of-change z-score windows.
var ErrInsufficientHistory = errors.New("indicator: insufficient history for regime quadrant")

// Z-score parameters for monthly growth/inflation inputs.
const (
	regimeRocPeriod    = 12
	regimeZScoreWindow = 36
	regimeEMASpan      = 3
	regimeTrailMonths  = 12
)

// RegimeCalculator classifies the macro environment into one of four
// growth/inflation quadrants.
type RegimeCalculator struct {
	logger *logger.Logger
}

// NewRegimeCalculator creates a regime calculator.
func NewRegimeCalculator(log *logger.Logger) *RegimeCalculator {
	return &RegimeCalculator{
		logger: log.WithField("module", "regime"),
	}
}

// classifyRegime maps smoothed z-score coordinates to a quadrant label.
// Both axes treat zero as positive, so the origin lands in Reflation.
func classifyRegime(growth, inflation float64) string {
	switch {
	case growth >= 0 && inflation >= 0:
		return "Reflation"
	case growth >= 0:
		return "Goldilocks"
	case inflation >= 0:
		return "Stagflation"
	default:
		return "Deflation"
	}
}

// zscoreAxis turns a raw monthly series into an EMA-smoothed ROC z-score
// aligned with the input dates.
func zscoreAxis(series timeseries.Series) timeseries.Series {
	monthly := series.ResampleMonthly()
	values := timeseries.ForwardFill(monthly.Values())
	z := timeseries.RocZScore(values, regimeRocPeriod, regimeZScoreWindow)
	smoothed := timeseries.EMASmooth(z, regimeEMASpan)
	return monthly.WithValues(smoothed)
}

// Calculate builds the regime quadrant from growth (industrial production)
// and inflation (CPI) series.
func (c *RegimeCalculator) Calculate(growth, inflation timeseries.Series) (*RegimeResult, error) {
	growthZ := zscoreAxis(growth).DropNaN()
	inflationZ := zscoreAxis(inflation).DropNaN()

	if len(growthZ) < 2 || len(inflationZ) < 2 {
		return nil, ErrInsufficientHistory
	}

	merged := timeseries.MergeByDate(map[string]timeseries.Series{
		"growth":    growthZ,
		"inflation": inflationZ,
	})

	var trail []RegimePoint
	for i, date := range merged.Dates {
		g := merged.Columns["growth"][i]
		inf := merged.Columns["inflation"][i]
		if math.IsNaN(g) || math.IsNaN(inf) {
			continue
		}
		trail = append(trail, RegimePoint{Date: date, Growth: g, Inflation: inf})
	}

	if len(trail) < 2 {
		return nil, ErrInsufficientHistory
	}
	if len(trail) > regimeTrailMonths {
		trail = trail[len(trail)-regimeTrailMonths:]
	}

	current := trail[len(trail)-1]
	previous := trail[len(trail)-2]

	// Linear continuation of the last move; a rough forward estimate for
	// the dashboard's projection marker.
	projectedGrowth := current.Growth + (current.Growth - previous.Growth)
	projectedInflation := current.Inflation + (current.Inflation - previous.Inflation)

	regime := classifyRegime(current.Growth, current.Inflation)

	c.logger.WithFields(map[string]interface{}{
		"regime":    regime,
		"growth":    current.Growth,
		"inflation": current.Inflation,
	}).Debug("Classified regime")

	return &RegimeResult{
		Key:                "regime_quadrant",
		DisplayName:        "Growth/Inflation Regime",
		Status:             StatusOK,
		Regime:             regime,
		Growth:             current.Growth,
		Inflation:          current.Inflation,
		ProjectedGrowth:    projectedGrowth,
		ProjectedInflation: projectedInflation,
		Trail:              trail,
	}, nil
}
