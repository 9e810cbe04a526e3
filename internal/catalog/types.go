package catalog

import "github.com/signalsfoundry/impact-simulator/model"

// feedResponse mirrors the JSON shape returned by the feed endpoint: a map
// from calendar date to the objects approaching on that date.
type feedResponse struct {
	ElementCount     int                 `json:"element_count"`
	NearEarthObjects map[string][]Record `json:"near_earth_objects"`
}

// Record is one raw near-Earth object as delivered by the catalog.
type Record struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	AbsoluteMagnitude float64            `json:"absolute_magnitude_h"`
	EstimatedDiameter *estimatedDiameter `json:"estimated_diameter"`
	Hazardous         bool               `json:"is_potentially_hazardous_asteroid"`
	CloseApproaches   []CloseApproach    `json:"close_approach_data"`
}

type estimatedDiameter struct {
	Kilometers *diameterRange `json:"kilometers"`
}

type diameterRange struct {
	Min float64 `json:"estimated_diameter_min"`
	Max float64 `json:"estimated_diameter_max"`
}

// CloseApproach is one predicted approach of a Record.
type CloseApproach struct {
	Date             string           `json:"close_approach_date"`
	RelativeVelocity relativeVelocity `json:"relative_velocity"`
	MissDistance     missDistance     `json:"miss_distance"`
	OrbitingBody     string           `json:"orbiting_body"`
}

type relativeVelocity struct {
	KilometersPerSecond model.Decimal `json:"kilometers_per_second"`
	KilometersPerHour   model.Decimal `json:"kilometers_per_hour"`
}

type missDistance struct {
	Kilometers model.Decimal `json:"kilometers"`
}

// lookupResponse mirrors the per-object detail endpoint; only the
// orbital elements are used.
type lookupResponse struct {
	ID          string                 `json:"id"`
	OrbitalData *model.OrbitalElements `json:"orbital_data"`
}

// NewRecord builds a Record for callers and tests that do not decode JSON.
func NewRecord(id, name string, minKm, maxKm float64, approaches ...CloseApproach) Record {
	return Record{
		ID:   id,
		Name: name,
		EstimatedDiameter: &estimatedDiameter{
			Kilometers: &diameterRange{Min: minKm, Max: maxKm},
		},
		CloseApproaches: approaches,
	}
}

// NewCloseApproach builds a CloseApproach from numeric values.
func NewCloseApproach(date string, velocityKms, velocityKmh, missKm float64) CloseApproach {
	return CloseApproach{
		Date: date,
		RelativeVelocity: relativeVelocity{
			KilometersPerSecond: model.DecimalOf(velocityKms),
			KilometersPerHour:   model.DecimalOf(velocityKmh),
		},
		MissDistance: missDistance{Kilometers: model.DecimalOf(missKm)},
		OrbitingBody: "Earth",
	}
}
