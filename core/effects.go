package core

import (
	"math"

	"github.com/signalsfoundry/impact-simulator/model"
)

// DensityEstimator resolves a population density (people/km²) for a
// coordinate. A nil point means no target was selected.
type DensityEstimator interface {
	Estimate(p *model.GeoPoint) float64
}

// Radius multipliers applied to the impactor diameter (km).
const (
	craterDiameterPerKm   = 20.0
	craterDepthRatio      = 0.3
	fireballRadiusPerKm   = 5.0
	shockwaveRadiusPerKm  = 50.0
	windBlastRadiusPerKm  = 40.0
	earthquakeRadiusPerKm = 100.0
	tsunamiMetresPerKm    = 10.0
	tsunamiMinDiameterKm  = 0.5
)

// Sub-effect ranges as fractions of their parent radius. These are
// calibration constants against reference events.
const (
	thirdDegreeBurnsFrac  = 0.8  // of fireball
	clothesIgnitionFrac   = 0.9  // of fireball
	treeIgnitionFrac      = 0.7  // of fireball
	secondDegreeBurnsFrac = 1.0  // of fireball
	lungDamageFrac        = 0.3  // of shockwave
	eardrumRuptureFrac    = 0.4  // of shockwave
	buildingCollapseFrac  = 0.2  // of shockwave
	homeCollapseFrac      = 0.35 // of wind blast
	treesKnockedDownFrac  = 0.6  // of wind blast
)

// Lethality and injury fractions per blast zone.
const (
	craterLethality       = 1.0
	fireballLethality     = 0.85
	fireballInjuryRate    = 0.6
	shockwaveLethality    = 0.1
	shockwaveInjuryRate   = 0.3
	windLethality         = 0.05
	windInjuryRate        = 0.2
	earthquakeInjuryRate  = 0.01
	recurrenceYearsPerMt  = 15000.0
	minRecurrenceYears    = 1000
	baseEarthquakeMag     = 5.0
	maxEarthquakeMag      = 10.0
	baseShockwaveDecibels = 200.0
	maxShockwaveDecibels  = 250.0
)

// KineticEnergyMt returns the energy proxy used by every other effect:
// 0.5 · d³ · (v/3600)² / 1000, with d in km and v in km/h. Diameter stands
// in for mass through a fixed implicit density.
func KineticEnergyMt(diameterKm, velocityKmh float64) float64 {
	v := velocityKmh / 3600
	return 0.5 * diameterKm * diameterKm * diameterKm * v * v / 1000
}

// EarthquakeMagnitude returns min(5 + log10(max(1, E)), 10).
func EarthquakeMagnitude(energyMt float64) float64 {
	return math.Min(baseEarthquakeMag+math.Log10(math.Max(1, energyMt)), maxEarthquakeMag)
}

// ShockwaveDecibels returns min(200 + 10·log10(max(1, E)), 250).
func ShockwaveDecibels(energyMt float64) float64 {
	return math.Min(baseShockwaveDecibels+math.Log10(math.Max(1, energyMt))*10, maxShockwaveDecibels)
}

// TsunamiHeightM is a threshold effect: diameter × 10 m above 0.5 km, else 0.
func TsunamiHeightM(diameterKm float64) float64 {
	if diameterKm > tsunamiMinDiameterKm {
		return diameterKm * tsunamiMetresPerKm
	}
	return 0
}

// AverageOccurrenceYears returns max(floor(E × 15000), 1000).
func AverageOccurrenceYears(energyMt float64) int64 {
	years := math.Floor(energyMt * recurrenceYearsPerMt)
	if !finite(years) || years < minRecurrenceYears {
		return minRecurrenceYears
	}
	if years > math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(years)
}

// ComputeImpactEffects evaluates the full effect cascade for a. target is
// optional; without one the estimator's context-free default density is
// used. The function never fails and never returns negative counts.
func ComputeImpactEffects(a model.Asteroid, target *model.GeoPoint, density DensityEstimator) model.ImpactEffects {
	d := a.DiameterKm
	E := KineticEnergyMt(d, a.VelocityKmh)

	fx := model.ImpactEffects{
		EnergyMt:         E,
		ImpactAngleDeg:   a.ImpactAngleDeg,
		ImpactAzimuthDeg: a.ImpactAzimuthDeg,

		CraterDiameterKm: d * craterDiameterPerKm,

		FireballRadiusKm:   d * fireballRadiusPerKm,
		ShockwaveRadiusKm:  d * shockwaveRadiusPerKm,
		WindBlastRadiusKm:  d * windBlastRadiusPerKm,
		EarthquakeRadiusKm: d * earthquakeRadiusPerKm,

		EarthquakeMagnitude:    EarthquakeMagnitude(E),
		ShockwaveDecibels:      ShockwaveDecibels(E),
		TsunamiHeightM:         TsunamiHeightM(d),
		AverageOccurrenceYears: AverageOccurrenceYears(E),
	}
	fx.CraterDepthKm = fx.CraterDiameterKm * craterDepthRatio

	fx.ThirdDegreeBurnsKm = fx.FireballRadiusKm * thirdDegreeBurnsFrac
	fx.ClothesIgnitionKm = fx.FireballRadiusKm * clothesIgnitionFrac
	fx.TreeIgnitionKm = fx.FireballRadiusKm * treeIgnitionFrac
	fx.SecondDegreeBurnsKm = fx.FireballRadiusKm * secondDegreeBurnsFrac

	fx.LungDamageKm = fx.ShockwaveRadiusKm * lungDamageFrac
	fx.EardrumRuptureKm = fx.ShockwaveRadiusKm * eardrumRuptureFrac
	fx.BuildingCollapseKm = fx.ShockwaveRadiusKm * buildingCollapseFrac

	fx.HomeCollapseKm = fx.WindBlastRadiusKm * homeCollapseFrac
	fx.TreesKnockedDownKm = fx.WindBlastRadiusKm * treesKnockedDownFrac

	var people float64
	if density != nil {
		people = density.Estimate(target)
	}
	if !finite(people) || people < 0 {
		people = 0
	}
	fx.DensityPerKm2 = people

	craterArea := circleArea(fx.CraterDiameterKm / 2)
	fireballArea := circleArea(fx.FireballRadiusKm)
	shockArea := circleArea(fx.ShockwaveRadiusKm)
	windArea := circleArea(fx.WindBlastRadiusKm)
	quakeArea := circleArea(fx.EarthquakeRadiusKm)

	// Rings outside the crater; the fireball is usually smaller than the
	// crater, in which case its ring is empty.
	inner := math.Max(craterArea, fireballArea)
	fireballRing := ring(fireballArea, craterArea)
	shockRing := ring(shockArea, inner)
	windRing := ring(windArea, inner)
	quakeRing := ring(quakeArea, math.Max(shockArea, windArea))

	fx.CraterVaporized = count(craterArea * people * craterLethality)
	fx.FireballDeaths = count(fireballRing * people * fireballLethality)
	fx.FireballInjuries = count(fireballRing * people * fireballInjuryRate)
	fx.ShockwaveDeaths = count(shockRing * people * shockwaveLethality)
	fx.ShockwaveInjuries = count(shockRing * people * shockwaveInjuryRate)
	fx.WindDeaths = count(windRing * people * windLethality)
	fx.WindInjuries = count(windRing * people * windInjuryRate)
	fx.EarthquakeInjuries = count(quakeRing * people * earthquakeInjuryRate)

	fx.TotalDeaths = fx.CraterVaporized + fx.FireballDeaths + fx.ShockwaveDeaths + fx.WindDeaths
	fx.TotalInjuries = fx.FireballInjuries + fx.ShockwaveInjuries + fx.WindInjuries + fx.EarthquakeInjuries
	fx.ExposedPopulation = count(quakeArea * people)

	return fx
}

func circleArea(r float64) float64 {
	return math.Pi * r * r
}

// ring returns outer - inner clamped at zero.
func ring(outer, inner float64) float64 {
	return math.Max(outer-inner, 0)
}

// count rounds a non-negative estimate to a whole number of people.
func count(v float64) int64 {
	if !finite(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(math.Round(v))
}
