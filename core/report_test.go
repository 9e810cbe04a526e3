package core

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestReport_TsunamiBoundary(t *testing.T) {
	cases := []struct {
		diameter float64
		want     string
	}{
		{0.1, "0"},
		{0.5, "0"},
		{0.51, "5.1"},
		{1.2, "12.0"},
	}
	for _, tc := range cases {
		r := Report(ComputeImpactEffects(asteroid(tc.diameter, 40000), nil, nil))
		if r.TsunamiHeightM != tc.want {
			t.Fatalf("tsunami_height_m for d=%v = %q, want %q", tc.diameter, r.TsunamiHeightM, tc.want)
		}
	}
}

func TestReport_OccurrenceNeverBelowFloor(t *testing.T) {
	r := Report(ComputeImpactEffects(asteroid(0.001, 1000), nil, nil))
	if r.AverageOccurrenceYears != "1,000" {
		t.Fatalf("average_occurrence_years = %q, want 1,000", r.AverageOccurrenceYears)
	}
}

func TestReport_Precision(t *testing.T) {
	fx := ComputeImpactEffects(asteroid(1.234, 72000), nil, &fixedDensity{fallback: 120})
	fx.ImpactAngleDeg = 37.456
	r := Report(fx)

	if r.ImpactAngleDeg != "37.46" {
		t.Fatalf("impact_angle_deg = %q, want 37.46", r.ImpactAngleDeg)
	}
	if r.CraterDiameterKm != "24.68" {
		t.Fatalf("crater_diameter_km = %q, want 24.68", r.CraterDiameterKm)
	}
	if r.CraterDiameterMiles != "15.3" {
		t.Fatalf("crater_diameter_miles = %q, want 15.3", r.CraterDiameterMiles)
	}
	if strings.Contains(r.ShockwaveDecibels, ".") {
		t.Fatalf("shockwave_decibels = %q, want no decimals", r.ShockwaveDecibels)
	}
	if got := r.EarthquakeMagnitude; len(got) < 3 || got[len(got)-2] != '.' {
		t.Fatalf("earthquake_magnitude = %q, want one decimal", got)
	}
	if strings.ContainsAny(r.ExposedPopulation, ".") || !strings.Contains(r.ExposedPopulation, ",") {
		t.Fatalf("exposed_population = %q, want grouped integer", r.ExposedPopulation)
	}
}

func TestReport_JSONKeys(t *testing.T) {
	b, err := json.Marshal(Report(ComputeImpactEffects(asteroid(1, 60000), nil, nil)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"tsunami_height_m"`, `"average_occurrence_years"`, `"crater_diameter_km"`, `"earthquake_magnitude"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("report JSON missing %s: %s", key, b)
		}
	}
}

func TestReport_GroupedConcurrently(t *testing.T) {
	cases := map[int64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		1234567:    "1,234,567",
		-30000:     "-30,000",
		4500000000: "4,500,000,000",
	}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n, want := range cases {
				if got := grouped(n); got != want {
					t.Errorf("grouped(%d) = %q, want %q", n, got, want)
				}
			}
		}()
	}
	wg.Wait()
}
