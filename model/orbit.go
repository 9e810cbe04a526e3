package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Decimal is a numeric value that the catalog may encode either as a JSON
// string ("0.1234") or as a JSON number.
type Decimal string

// UnmarshalJSON accepts both quoted and bare numbers. JSON null leaves the
// value empty.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(strings.TrimSpace(s))
		return nil
	}
	*d = Decimal(b)
	return nil
}

// Float parses the decimal. ok is false for empty, malformed or non-finite
// values.
func (d Decimal) Float() (v float64, ok bool) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// DecimalOf formats v as a Decimal.
func DecimalOf(v float64) Decimal {
	return Decimal(strconv.FormatFloat(v, 'g', -1, 64))
}

// OrbitalElements are the six classical elements as delivered by the
// catalog's orbital-detail endpoint.
type OrbitalElements struct {
	Eccentricity           Decimal `json:"eccentricity"`
	Inclination            Decimal `json:"inclination"`              // degrees
	AscendingNodeLongitude Decimal `json:"ascending_node_longitude"` // degrees
	PerihelionArgument     Decimal `json:"perihelion_argument"`      // degrees
	MeanAnomaly            Decimal `json:"mean_anomaly"`             // degrees
	SemiMajorAxis          Decimal `json:"semi_major_axis"`          // AU
}

// OrbitalGeometry is the solver output for one set of elements. P points
// toward perihelion and Q lies 90° ahead in the orbit plane.
type OrbitalGeometry struct {
	P Vec `json:"p"`
	Q Vec `json:"q"`

	Eccentricity        float64 `json:"eccentricity"`
	InclinationDeg      float64 `json:"inclination_deg"`
	SemiMajorAxisAU     float64 `json:"semi_major_axis_au"`
	EccentricAnomalyRad float64 `json:"eccentric_anomaly_rad"`
	TrueAnomalyRad      float64 `json:"true_anomaly_rad"`
	ImpactAngleDeg      float64 `json:"impact_angle_deg"`
	ImpactAzimuthDeg    float64 `json:"impact_azimuth_deg"`
}
