package core

import (
	"math"

	"github.com/signalsfoundry/impact-simulator/model"
)

const (
	// KeplerIterations is the fixed Newton–Raphson step count. Callers rely
	// on a bounded cost per solve, so there is no convergence test.
	KeplerIterations = 12

	// Entry angles are clamped to this range, in degrees.
	MinImpactAngleDeg = 5.0
	MaxImpactAngleDeg = 90.0
)

// SolveKepler solves E - e·sin(E) = M for the eccentric anomaly E (radians).
// The initial guess is M for e < 0.8 and π otherwise.
func SolveKepler(meanAnomaly, e float64) float64 {
	E := meanAnomaly
	if e >= 0.8 {
		E = math.Pi
	}
	for i := 0; i < KeplerIterations; i++ {
		f := E - e*math.Sin(E) - meanAnomaly
		fp := 1 - e*math.Cos(E)
		E -= f / fp
	}
	return E
}

// TrueAnomaly converts an eccentric anomaly into a true anomaly using the
// half-angle form, which stays well conditioned as e approaches 1.
func TrueAnomaly(E, e float64) float64 {
	return 2 * math.Atan2(
		math.Sqrt(1+e)*math.Sin(E/2),
		math.Sqrt(1-e)*math.Cos(E/2),
	)
}

// PerifocalBasis returns the unit vectors p (toward perihelion) and q (90°
// ahead in the orbit plane) for inclination i, ascending node Ω and
// argument of perihelion ω, all in radians. It is Rz(Ω)·Rx(i)·Rz(ω)
// applied to x̂ and ŷ.
func PerifocalBasis(i, node, argPeri float64) (p, q Vec3) {
	sinO, cosO := math.Sincos(node)
	sinI, cosI := math.Sincos(i)
	sinW, cosW := math.Sincos(argPeri)

	p = Vec3{
		X: cosO*cosW - sinO*sinW*cosI,
		Y: sinO*cosW + cosO*sinW*cosI,
		Z: sinW * sinI,
	}
	q = Vec3{
		X: -cosO*sinW - sinO*cosW*cosI,
		Y: -sinO*sinW + cosO*cosW*cosI,
		Z: cosW * sinI,
	}
	return p, q
}

// VelocityDirection returns the normalized orbital velocity direction at
// eccentric anomaly E. ok is false when the vector degenerates to zero.
func VelocityDirection(p, q Vec3, E, e float64) (Vec3, bool) {
	v := p.Scale(-math.Sin(E)).Add(q.Scale(math.Sqrt(1-e*e) * math.Cos(E)))
	return v.Unit()
}

// EntryAngleDeg is the angle between the velocity and the local horizontal
// plane, clamped to [MinImpactAngleDeg, MaxImpactAngleDeg]. When speedKms
// is positive the components are scaled to physical speeds first.
func EntryAngleDeg(dir Vec3, speedKms float64) float64 {
	scale := 1.0
	if speedKms > 0 && finite(speedKms) {
		scale = speedKms
	}
	vertical := math.Abs(dir.Z) * scale
	horizontal := math.Hypot(dir.X, dir.Y) * scale

	angle := radToDeg(math.Atan2(vertical, horizontal))
	if !finite(angle) {
		angle = model.DefaultImpactAngleDeg
	}
	return clamp(angle, MinImpactAngleDeg, MaxImpactAngleDeg)
}

// AzimuthDeg returns atan2(vx, vy) in degrees, normalized to [0, 360).
func AzimuthDeg(dir Vec3) float64 {
	az := radToDeg(math.Atan2(dir.X, dir.Y))
	if !finite(az) {
		return model.DefaultImpactAzimuthDeg
	}
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	if az >= 360 {
		az = 0
	}
	return az
}

// parsedElements holds the numeric form of model.OrbitalElements.
type parsedElements struct {
	e, iDeg, nodeDeg, argPeriDeg, meanAnomalyDeg, aAU float64
}

func parseElements(el *model.OrbitalElements) (parsedElements, bool) {
	if el == nil {
		return parsedElements{}, false
	}
	var (
		out parsedElements
		ok  bool
	)
	fields := []struct {
		src model.Decimal
		dst *float64
	}{
		{el.Eccentricity, &out.e},
		{el.Inclination, &out.iDeg},
		{el.AscendingNodeLongitude, &out.nodeDeg},
		{el.PerihelionArgument, &out.argPeriDeg},
		{el.MeanAnomaly, &out.meanAnomalyDeg},
		{el.SemiMajorAxis, &out.aAU},
	}
	for _, f := range fields {
		if *f.dst, ok = f.src.Float(); !ok {
			return parsedElements{}, false
		}
	}
	return out, true
}

// ComputeOrbitalGeometry derives the orbit basis, anomalies and entry
// geometry from classical elements. relVelocityKms is optional (<= 0 means
// unknown). It returns nil when the elements are absent, non-finite,
// outside the elliptic range 0 <= e < 1, or produce a degenerate velocity.
func ComputeOrbitalGeometry(el *model.OrbitalElements, relVelocityKms float64) *model.OrbitalGeometry {
	pe, ok := parseElements(el)
	if !ok {
		return nil
	}
	if pe.e < 0 || pe.e >= 1 {
		return nil
	}

	i := degToRad(pe.iDeg)
	node := degToRad(pe.nodeDeg)
	argPeri := degToRad(pe.argPeriDeg)
	M := degToRad(pe.meanAnomalyDeg)

	E := SolveKepler(M, pe.e)
	nu := TrueAnomaly(E, pe.e)
	if !finite(E) || !finite(nu) {
		return nil
	}

	p, q := PerifocalBasis(i, node, argPeri)
	dir, ok := VelocityDirection(p, q, E, pe.e)
	if !ok {
		return nil
	}

	return &model.OrbitalGeometry{
		P:                   p.Model(),
		Q:                   q.Model(),
		Eccentricity:        pe.e,
		InclinationDeg:      pe.iDeg,
		SemiMajorAxisAU:     pe.aAU,
		EccentricAnomalyRad: E,
		TrueAnomalyRad:      nu,
		ImpactAngleDeg:      EntryAngleDeg(dir, relVelocityKms),
		ImpactAzimuthDeg:    AzimuthDeg(dir),
	}
}

// OrbitPosition returns the heliocentric position (AU) of the body at the
// solved anomaly: r = a(1 - e·cosE) along cosν·p + sinν·q.
func OrbitPosition(g *model.OrbitalGeometry) Vec3 {
	if g == nil {
		return Vec3{}
	}
	r := g.SemiMajorAxisAU * (1 - g.Eccentricity*math.Cos(g.EccentricAnomalyRad))
	sinNu, cosNu := math.Sincos(g.TrueAnomalyRad)
	pos := FromModel(g.P).Scale(r * cosNu).Add(FromModel(g.Q).Scale(r * sinNu))
	if !pos.Finite() {
		return Vec3{}
	}
	return pos
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
