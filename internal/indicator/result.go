package indicator

import (
	"time"

	"macropulse/internal/timeseries"
)

// Status reports how complete an indicator computation was.
type Status int

const (
	StatusOK Status = iota
	StatusDegraded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Status as its string form for the API.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON restores Status from its string form. Cached results are
// stored as JSON, so this must round-trip with MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"ok"`:
		*s = StatusOK
	case `"degraded"`:
		*s = StatusDegraded
	default:
		*s = StatusFailed
	}
	return nil
}

// SeriesResult is the computed output of a single-series indicator.
type SeriesResult struct {
	Key              string            `json:"key"`
	DisplayName      string            `json:"display_name"`
	Status           Status            `json:"status"`
	Series           timeseries.Series `json:"series"`
	Derived          timeseries.Series `json:"derived,omitempty"` // YoY / MoM change where the registry calls for it
	CurrentValue     float64           `json:"current_value"`
	Bullish          bool              `json:"bullish"`
	Rising           bool              `json:"rising"`
	ConsecutiveMoves int               `json:"consecutive_moves"`
	NextRelease      *time.Time        `json:"next_release,omitempty"`
	FetchedAt        time.Time         `json:"fetched_at"`
	Cached           bool              `json:"cached"`
}

// ComponentValue is the latest diffusion value of one composite input.
type ComponentValue struct {
	Name      string  `json:"name"`
	SeriesID  string  `json:"series_id"`
	Weight    float64 `json:"weight"` // renormalized weight actually applied
	Diffusion float64 `json:"diffusion"`
}

// CompositeResult is the computed output of the PMI proxy.
type CompositeResult struct {
	Key         string            `json:"key"`
	DisplayName string            `json:"display_name"`
	Status      Status            `json:"status"`
	Series      timeseries.Series `json:"series"`
	Latest      float64           `json:"latest"`
	Below50     bool              `json:"below_50"`
	Components  []ComponentValue  `json:"components"`
	Dropped     []string          `json:"dropped,omitempty"` // component names with no data
	NextRelease *time.Time        `json:"next_release,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Cached      bool              `json:"cached"`
}

// LiquidityResult is the computed output of the USD liquidity indicator.
// Series carries net liquidity in trillions of dollars; PctOfGDP carries
// the same dates as a liquidity/GDP ratio.
type LiquidityResult struct {
	Key              string             `json:"key"`
	DisplayName      string             `json:"display_name"`
	Status           Status             `json:"status"`
	Series           timeseries.Series  `json:"series"`
	PctOfGDP         timeseries.Series  `json:"pct_of_gdp"`
	CurrentValue     float64            `json:"current_value"` // latest liquidity/GDP ratio
	Components       map[string]float64 `json:"components"`    // latest raw inputs, as reported
	Rising           bool               `json:"rising"`        // 3 consecutive monthly increases
	Falling          bool               `json:"falling"`       // 3 consecutive monthly decreases
	Bullish          bool               `json:"bullish"`
	ConsecutiveMoves int                `json:"consecutive_moves"`
	FetchedAt        time.Time          `json:"fetched_at"`
	Cached           bool               `json:"cached"`
}

// RegimeResult is the computed output of the growth/inflation quadrant.
type RegimeResult struct {
	Key                string        `json:"key"`
	DisplayName        string        `json:"display_name"`
	Status             Status        `json:"status"`
	Regime             string        `json:"regime"`
	Growth             float64       `json:"growth"`
	Inflation          float64       `json:"inflation"`
	ProjectedGrowth    float64       `json:"projected_growth"`
	ProjectedInflation float64       `json:"projected_inflation"`
	Trail              []RegimePoint `json:"trail"`
	FetchedAt          time.Time     `json:"fetched_at"`
	Cached             bool          `json:"cached"`
}

// RegimePoint is one month of the regime trail.
type RegimePoint struct {
	Date      time.Time `json:"date"`
	Growth    float64   `json:"growth"`
	Inflation float64   `json:"inflation"`
}

// Result wraps one indicator's output; exactly one of the payload fields
// is set depending on the registry's chart kind.
type Result struct {
	Key       string           `json:"key"`
	Status    Status           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Series    *SeriesResult    `json:"series,omitempty"`
	Composite *CompositeResult `json:"composite,omitempty"`
	Regime    *RegimeResult    `json:"regime,omitempty"`
	Liquidity *LiquidityResult `json:"liquidity,omitempty"`
}

// Summary aggregates all indicators plus the cross-indicator trend flags.
type Summary struct {
	Results map[string]Result `json:"results"`
	Errors  []string          `json:"errors,omitempty"`

	// Trend flags
	ClaimsRising      bool `json:"claims_rising"`
	HoursWeakening    bool `json:"hours_weakening"`
	CPIAccelerating   bool `json:"cpi_accelerating"`
	PCERising         bool `json:"pce_rising"`
	PMIBelow50        bool `json:"pmi_below_50"`
	DangerCombination bool `json:"danger_combination"`
	RiskOnOpportunity bool `json:"risk_on_opportunity"`

	GeneratedAt time.Time `json:"generated_at"`
}
