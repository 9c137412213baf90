package indicator

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"macropulse/internal/timeseries"
	"macropulse/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(&bytes.Buffer{}, "error")
}

// monthly builds a monthly series of n points from a value function.
func monthly(n int, value func(i int) float64) timeseries.Series {
	base := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(timeseries.Series, n)
	for i := range s {
		s[i] = timeseries.Point{Date: base.AddDate(0, i, 0), Value: value(i)}
	}
	return s
}

func trending(n int) timeseries.Series {
	return monthly(n, func(i int) float64 {
		return 100 + float64(i) + 3*math.Sin(float64(i)/4)
	})
}

func allComponentData(n int) map[string]timeseries.Series {
	data := make(map[string]timeseries.Series, len(pmiComponents))
	for _, comp := range pmiComponents {
		data[comp.SeriesID] = trending(n)
	}
	return data
}

func TestCompositeCalculate(t *testing.T) {
	calc := NewCompositeCalculator(testLogger())

	result, err := calc.Calculate(pmiComponents, allComponentData(140))
	if err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}

	if result.Status != StatusOK {
		t.Errorf("status = %v, want ok", result.Status)
	}
	if len(result.Components) != 5 {
		t.Errorf("got %d components, want 5", len(result.Components))
	}
	if len(result.Dropped) != 0 {
		t.Errorf("unexpected dropped components: %v", result.Dropped)
	}

	// Full weights already sum to 1.
	sum := 0.0
	for _, cv := range result.Components {
		sum += cv.Weight
	}
	if !approx(sum, 1.0) {
		t.Errorf("weights sum to %f, want 1.0", sum)
	}

	// Diffusion output stays on the PMI scale.
	for _, p := range result.Series {
		if p.Value < 0 || p.Value > 100 {
			t.Fatalf("composite value %f outside [0,100]", p.Value)
		}
	}

	if result.Below50 != (result.Latest < 50) {
		t.Error("Below50 flag inconsistent with latest value")
	}
}

func TestCompositeRenormalizesWeights(t *testing.T) {
	calc := NewCompositeCalculator(testLogger())

	data := allComponentData(140)
	delete(data, "MANEMP") // employment, weight 0.20

	result, err := calc.Calculate(pmiComponents, data)
	if err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}

	if result.Status != StatusDegraded {
		t.Errorf("status = %v, want degraded", result.Status)
	}
	if len(result.Dropped) != 1 || result.Dropped[0] != "employment" {
		t.Errorf("dropped = %v, want [employment]", result.Dropped)
	}

	sum := 0.0
	for _, cv := range result.Components {
		if cv.Name == "employment" {
			t.Error("dropped component should not appear in output")
		}
		sum += cv.Weight
	}
	if !approx(sum, 1.0) {
		t.Errorf("renormalized weights sum to %f, want 1.0", sum)
	}

	// new_orders carried 0.30 of the original 0.80 remaining.
	for _, cv := range result.Components {
		if cv.Name == "new_orders" && !approx(cv.Weight, 0.30/0.80) {
			t.Errorf("new_orders weight = %f, want %f", cv.Weight, 0.30/0.80)
		}
	}
}

func TestCompositeNoComponents(t *testing.T) {
	calc := NewCompositeCalculator(testLogger())

	_, err := calc.Calculate(pmiComponents, map[string]timeseries.Series{})
	if !errors.Is(err, ErrNoComponents) {
		t.Errorf("expected ErrNoComponents, got %v", err)
	}
}

func TestCompositeShortHistory(t *testing.T) {
	calc := NewCompositeCalculator(testLogger())

	// 48 months is well under the 120-month volatility window.
	result, err := calc.Calculate(pmiComponents, allComponentData(48))
	if err != nil {
		t.Fatalf("Calculate() failed on short history: %v", err)
	}
	if len(result.Series) == 0 {
		t.Fatal("expected composite values despite short history")
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
