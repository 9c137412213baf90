package indicator

import (
	"sort"
	"testing"
)

func TestLookup(t *testing.T) {
	cfg, err := Lookup("initial_claims")
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if cfg.FREDSeries[0] != "ICSA" {
		t.Errorf("series = %v", cfg.FREDSeries)
	}
	if cfg.Periods != 52 || cfg.Frequency != "W" {
		t.Errorf("periods=%d frequency=%s, want 52/W", cfg.Periods, cfg.Frequency)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("nope"); err == nil {
		t.Error("expected error for unknown indicator")
	}
}

func TestKeysSortedAndComplete(t *testing.T) {
	keys := Keys()
	if !sort.StringsAreSorted(keys) {
		t.Error("Keys() should be sorted")
	}
	if len(keys) != len(registry) {
		t.Errorf("got %d keys, registry has %d", len(keys), len(registry))
	}

	for _, want := range []string{"initial_claims", "pce", "core_cpi", "hours_worked", "pmi_proxy", "copper_gold_yield", "regime_quadrant", "pscf_price", "usd_liquidity"} {
		found := false
		for _, k := range keys {
			if k == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing indicator %q", want)
		}
	}
}

func TestPMIComponentWeights(t *testing.T) {
	cfg, err := Lookup("pmi_proxy")
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Components) != 5 {
		t.Fatalf("got %d components, want 5", len(cfg.Components))
	}

	sum := 0.0
	for _, comp := range cfg.Components {
		sum += comp.Weight
	}
	if !approx(sum, 1.0) {
		t.Errorf("component weights sum to %f, want 1.0", sum)
	}

	if cfg.Components[0].SeriesID != "AMTMNO" || !approx(cfg.Components[0].Weight, 0.30) {
		t.Errorf("new orders component = %+v", cfg.Components[0])
	}
}

func TestLiquidityConfig(t *testing.T) {
	cfg, err := Lookup("usd_liquidity")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"WALCL", "RRPONTTLD", "WTREGEN", "GDP"}
	if len(cfg.FREDSeries) != len(want) {
		t.Fatalf("series = %v", cfg.FREDSeries)
	}
	for i, id := range want {
		if cfg.FREDSeries[i] != id {
			t.Errorf("series[%d] = %s, want %s", i, cfg.FREDSeries[i], id)
		}
	}
	if cfg.ChartKind != ChartLiquidity || cfg.Periods != 60 {
		t.Errorf("kind=%s periods=%d, want liquidity/60", cfg.ChartKind, cfg.Periods)
	}
}

func TestEveryConfigConsistent(t *testing.T) {
	for _, cfg := range All() {
		if cfg.Key == "" || cfg.DisplayName == "" {
			t.Errorf("config %q missing identity fields", cfg.Key)
		}
		if cfg.Periods <= 0 {
			t.Errorf("config %q has non-positive periods", cfg.Key)
		}
		if cfg.TTL < 0 {
			t.Errorf("config %q has negative TTL", cfg.Key)
		}
		if len(cfg.FREDSeries) == 0 && len(cfg.YahooSeries) == 0 {
			t.Errorf("config %q has no data sources", cfg.Key)
		}
		if cfg.ChartKind == ChartComposite && len(cfg.Components) == 0 {
			t.Errorf("composite config %q has no components", cfg.Key)
		}
	}
}
