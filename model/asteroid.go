package model

import "time"

// Default impact angles applied until orbital enrichment succeeds.
const (
	DefaultImpactAngleDeg   = 45.0
	DefaultImpactAzimuthDeg = 0.0
)

// MockIDPrefix marks asteroids produced by the synthetic fallback catalog.
const MockIDPrefix = "mock-"

// Vec is a position or direction in scene/heliocentric coordinates.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GeoPoint is a geographic coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Asteroid describes one near-Earth object as shown in the scene.
// Values are built once per catalog refresh and never mutated afterwards.
type Asteroid struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	DiameterKm        float64 `json:"diameter_km"`
	VelocityKmh       float64 `json:"velocity_kmh"`
	VelocityKms       float64 `json:"velocity_kms,omitempty"` // 0 when the source did not supply it
	AbsoluteMagnitude float64 `json:"absolute_magnitude"`
	Hazardous         bool    `json:"hazardous"`

	MissDistanceKm    float64   `json:"miss_distance_km"`
	CloseApproachDate time.Time `json:"close_approach_date"`

	Position Vec `json:"position"`

	// Orbit is nil unless classical elements were supplied and solved.
	Orbit *OrbitalGeometry `json:"orbit,omitempty"`

	ImpactAngleDeg   float64 `json:"impact_angle_deg"`
	ImpactAzimuthDeg float64 `json:"impact_azimuth_deg"`

	Mock bool `json:"mock,omitempty"`
}

// HasOrbit reports whether orbital geometry was attached during enrichment.
func (a Asteroid) HasOrbit() bool {
	return a.Orbit != nil
}

// WithOrbit returns a copy of a carrying g and the angles derived from it.
func (a Asteroid) WithOrbit(g *OrbitalGeometry) Asteroid {
	if g == nil {
		return a
	}
	a.Orbit = g
	a.ImpactAngleDeg = g.ImpactAngleDeg
	a.ImpactAzimuthDeg = g.ImpactAzimuthDeg
	return a
}
