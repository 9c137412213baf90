package indicator

import (
	"fmt"
	"sort"
	"time"
)

// ChartKind tells the frontend how to draw an indicator.
type ChartKind int

const (
	ChartLine ChartKind = iota
	ChartDualAxis
	ChartBar
	ChartComposite
	ChartQuadrant
	ChartLiquidity
)

func (k ChartKind) String() string {
	switch k {
	case ChartLine:
		return "line"
	case ChartDualAxis:
		return "dual_axis"
	case ChartBar:
		return "bar"
	case ChartComposite:
		return "composite"
	case ChartQuadrant:
		return "quadrant"
	case ChartLiquidity:
		return "liquidity"
	default:
		return "unknown"
	}
}

// ConditionKind selects how an indicator's bullish/bearish status is derived.
type ConditionKind int

const (
	ConditionBelowThreshold ConditionKind = iota
	ConditionAboveThreshold
	ConditionDecreasing
	ConditionComposite
	ConditionRatio
)

func (k ConditionKind) String() string {
	switch k {
	case ConditionBelowThreshold:
		return "below_threshold"
	case ConditionAboveThreshold:
		return "above_threshold"
	case ConditionDecreasing:
		return "decreasing"
	case ConditionComposite:
		return "composite"
	case ConditionRatio:
		return "ratio"
	default:
		return "unknown"
	}
}

// Component is one weighted input of a composite indicator.
type Component struct {
	Name     string
	SeriesID string
	Weight   float64
}

// Config describes a single indicator. The registry below is the single
// source of truth for indicator metadata; adding an indicator means adding
// an entry here and, for composite kinds, a branch in the service.
type Config struct {
	Key         string
	DisplayName string
	FREDSeries  []string
	YahooSeries []string
	ChartKind   ChartKind
	Condition   ConditionKind
	Threshold   float64 // meaningful for threshold conditions only
	Periods     int
	Frequency   string        // "D", "W", "M"
	TTL         time.Duration // per-indicator override; 0 uses the per-source config TTL
	ReleaseID   int           // FRED release ID for the calendar, 0 when unmapped

	// Components carries the weighted series of a composite indicator.
	Components []Component
}

// PMI proxy component weights. Unavailable components are dropped and the
// remaining weights renormalized to sum 1.
var pmiComponents = []Component{
	{Name: "new_orders", SeriesID: "AMTMNO", Weight: 0.30},
	{Name: "production", SeriesID: "IPMAN", Weight: 0.25},
	{Name: "employment", SeriesID: "MANEMP", Weight: 0.20},
	{Name: "supplier_deliveries", SeriesID: "AMDMUS", Weight: 0.15},
	{Name: "inventories", SeriesID: "MNFCTRIMSA", Weight: 0.10},
}

// USD liquidity inputs. Net liquidity is the Fed balance sheet minus the
// overnight reverse repo facility and the Treasury General Account; GDP
// scales it into a ratio. WALCL reports in millions of dollars, the other
// three in billions.
const (
	liquidityFedBalance   = "WALCL"
	liquidityReverseRepo  = "RRPONTTLD"
	liquidityTreasuryAcct = "WTREGEN"
	liquidityGDP          = "GDP"
)

var registry = map[string]Config{
	"initial_claims": {
		Key:         "initial_claims",
		DisplayName: "Initial Jobless Claims",
		FREDSeries:  []string{"ICSA"},
		ChartKind:   ChartLine,
		Condition:   ConditionDecreasing,
		Periods:     52,
		Frequency:   "W",
		ReleaseID:   59,
	},
	"pce": {
		Key:         "pce",
		DisplayName: "Personal Consumption Expenditures",
		FREDSeries:  []string{"PCE"},
		ChartKind:   ChartLine,
		Condition:   ConditionBelowThreshold,
		Threshold:   3.5,
		Periods:     24,
		Frequency:   "M",
		ReleaseID:   149,
	},
	"core_cpi": {
		Key:         "core_cpi",
		DisplayName: "Core Consumer Price Index",
		FREDSeries:  []string{"CPILFESL"},
		ChartKind:   ChartLine,
		Condition:   ConditionDecreasing,
		Periods:     24,
		Frequency:   "M",
		ReleaseID:   53,
	},
	"hours_worked": {
		Key:         "hours_worked",
		DisplayName: "Average Weekly Hours Worked",
		FREDSeries:  []string{"AWHAETP"},
		ChartKind:   ChartLine,
		Condition:   ConditionAboveThreshold,
		Threshold:   34.0,
		Periods:     24,
		Frequency:   "M",
		ReleaseID:   11,
	},
	"yield_curve": {
		Key:         "yield_curve",
		DisplayName: "2-10 Year Treasury Spread",
		FREDSeries:  []string{"T10Y2Y"},
		ChartKind:   ChartLine,
		Condition:   ConditionAboveThreshold,
		Threshold:   0.0,
		Periods:     60,
		Frequency:   "M",
	},
	"credit_spread": {
		Key:         "credit_spread",
		DisplayName: "High Yield Credit Spread",
		FREDSeries:  []string{"BAMLH0A0HYM2"},
		ChartKind:   ChartLine,
		Condition:   ConditionBelowThreshold,
		Threshold:   5.0,
		Periods:     60,
		Frequency:   "M",
	},
	"new_orders": {
		Key:         "new_orders",
		DisplayName: "New Orders Index",
		FREDSeries:  []string{"NEWORDER"},
		ChartKind:   ChartLine,
		Condition:   ConditionAboveThreshold,
		Threshold:   0.0,
		Periods:     24,
		Frequency:   "M",
		ReleaseID:   85,
	},
	"pmi_proxy": {
		Key:         "pmi_proxy",
		DisplayName: "Manufacturing PMI Proxy",
		FREDSeries:  []string{"AMTMNO", "IPMAN", "MANEMP", "AMDMUS", "MNFCTRIMSA"},
		ChartKind:   ChartComposite,
		Condition:   ConditionComposite,
		Threshold:   50.0,
		Periods:     24,
		Frequency:   "M",
		ReleaseID:   13,
		Components:  pmiComponents,
	},
	"pscf_price": {
		Key:         "pscf_price",
		DisplayName: "Copper Price (PSCF)",
		FREDSeries:  []string{"PSCF"},
		ChartKind:   ChartLine,
		Condition:   ConditionDecreasing,
		Periods:     24,
		Frequency:   "M",
	},
	"usd_liquidity": {
		Key:         "usd_liquidity",
		DisplayName: "USD Liquidity Conditions",
		FREDSeries:  []string{liquidityFedBalance, liquidityReverseRepo, liquidityTreasuryAcct, liquidityGDP},
		ChartKind:   ChartLiquidity,
		Condition:   ConditionComposite,
		Periods:     60,
		Frequency:   "M",
	},
	"copper_gold_yield": {
		Key:         "copper_gold_yield",
		DisplayName: "Copper/Gold vs 10Y Treasury",
		FREDSeries:  []string{"DGS10"},
		YahooSeries: []string{"HG=F", "GC=F"},
		ChartKind:   ChartDualAxis,
		Condition:   ConditionRatio,
		Periods:     252,
		Frequency:   "D",
	},
	"regime_quadrant": {
		Key:         "regime_quadrant",
		DisplayName: "Growth/Inflation Regime",
		FREDSeries:  []string{"INDPRO", "CPIAUCSL"},
		ChartKind:   ChartQuadrant,
		Condition:   ConditionComposite,
		Periods:     120,
		Frequency:   "M",
	},
}

// Lookup returns the configuration for an indicator key.
func Lookup(key string) (Config, error) {
	cfg, ok := registry[key]
	if !ok {
		return Config{}, fmt.Errorf("unknown indicator: %s", key)
	}
	return cfg, nil
}

// Keys returns all registered indicator keys in stable order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every indicator configuration in key order.
func All() []Config {
	configs := make([]Config, 0, len(registry))
	for _, k := range Keys() {
		configs = append(configs, registry[k])
	}
	return configs
}
