package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/impact-simulator/model"
)

func TestImpactSite_OnEarthSurface(t *testing.T) {
	target := model.GeoPoint{Lat: 48.85, Lng: 2.35}
	epoch := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)

	site := ImpactSite(target, epoch)

	for name, v := range map[string]model.Vec{"eci": site.ECI, "ecef": site.ECEF} {
		r := FromModel(v).Norm()
		if r < 6350 || r > 6380 {
			t.Fatalf("%s radius = %v km, want close to Earth radius", name, r)
		}
	}
	if site.ECEF.Z <= 0 {
		t.Fatalf("northern target should have positive z, got %+v", site.ECEF)
	}
	lng := radToDeg(math.Atan2(site.ECEF.Y, site.ECEF.X))
	if math.Abs(lng-target.Lng) > 1e-6 {
		t.Fatalf("ECEF longitude = %v, want %v", lng, target.Lng)
	}
}

// The Earth-fixed position of a surface point must not depend on time;
// only the inertial one rotates.
func TestImpactSite_ECEFStableAcrossEpochs(t *testing.T) {
	target := model.GeoPoint{Lat: -33.9, Lng: 151.2}
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(6 * time.Hour)

	a := ImpactSite(target, t1)
	b := ImpactSite(target, t2)

	if d := FromModel(a.ECEF).Add(FromModel(b.ECEF).Scale(-1)).Norm(); d > 1e-6 {
		t.Fatalf("ECEF moved by %v km between epochs", d)
	}
	if d := FromModel(a.ECI).Add(FromModel(b.ECI).Scale(-1)).Norm(); d < 1000 {
		t.Fatalf("ECI should rotate with the Earth, moved only %v km", d)
	}
}
