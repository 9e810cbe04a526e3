package core

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/signalsfoundry/impact-simulator/model"
)

const (
	kmToMiles           = 0.621371
	kilotonsPerMegaton  = 1000.0
	hiroshimaKilotons   = 15.0
	reportLanguageTag   = "en"
	noTsunamiHeightText = "0"
)

// reportPrinter groups thousands in every report. Printer calls are safe
// for concurrent use.
var reportPrinter = message.NewPrinter(language.Make(reportLanguageTag))

// Report renders fx at the fixed precision of each field: energies and
// angles at 2 decimals, radii at 2 (miles at 1), magnitude at 1, decibels
// at 0, counts and years as grouped integers.
func Report(fx model.ImpactEffects) model.ImpactReport {
	tsunami := noTsunamiHeightText
	if fx.TsunamiHeightM > 0 {
		tsunami = fixed(fx.TsunamiHeightM, 1)
	}

	return model.ImpactReport{
		EnergyMegatons:       fixed(fx.EnergyMt, 2),
		EnergyKilotons:       fixed(fx.EnergyMt*kilotonsPerMegaton, 1),
		HiroshimaEquivalents: fixed(fx.EnergyMt*kilotonsPerMegaton/hiroshimaKilotons, 1),
		PopulationDensity:    grouped(count(fx.DensityPerKm2)),
		ImpactAngleDeg:       fixed(fx.ImpactAngleDeg, 2),
		ImpactAzimuthDeg:     fixed(fx.ImpactAzimuthDeg, 2),

		CraterDiameterKm:    fixed(fx.CraterDiameterKm, 2),
		CraterDiameterMiles: miles(fx.CraterDiameterKm),
		CraterDepthKm:       fixed(fx.CraterDepthKm, 2),

		FireballRadiusKm:    fixed(fx.FireballRadiusKm, 2),
		FireballRadiusMiles: miles(fx.FireballRadiusKm),
		ThirdDegreeBurnsKm:  fixed(fx.ThirdDegreeBurnsKm, 2),
		ClothesIgnitionKm:   fixed(fx.ClothesIgnitionKm, 2),
		TreeIgnitionKm:      fixed(fx.TreeIgnitionKm, 2),
		SecondDegreeBurnsKm: fixed(fx.SecondDegreeBurnsKm, 2),

		ShockwaveRadiusKm:    fixed(fx.ShockwaveRadiusKm, 2),
		ShockwaveRadiusMiles: miles(fx.ShockwaveRadiusKm),
		ShockwaveDecibels:    fixed(fx.ShockwaveDecibels, 0),
		LungDamageKm:         fixed(fx.LungDamageKm, 2),
		EardrumRuptureKm:     fixed(fx.EardrumRuptureKm, 2),
		BuildingCollapseKm:   fixed(fx.BuildingCollapseKm, 2),

		WindBlastRadiusKm:    fixed(fx.WindBlastRadiusKm, 2),
		WindBlastRadiusMiles: miles(fx.WindBlastRadiusKm),
		HomeCollapseKm:       fixed(fx.HomeCollapseKm, 2),
		TreesKnockedDownKm:   fixed(fx.TreesKnockedDownKm, 2),

		EarthquakeRadiusKm:    fixed(fx.EarthquakeRadiusKm, 2),
		EarthquakeRadiusMiles: miles(fx.EarthquakeRadiusKm),
		EarthquakeMagnitude:   fixed(fx.EarthquakeMagnitude, 1),

		TsunamiHeightM:         tsunami,
		AverageOccurrenceYears: grouped(fx.AverageOccurrenceYears),

		CraterVaporized:    grouped(fx.CraterVaporized),
		FireballDeaths:     grouped(fx.FireballDeaths),
		FireballInjuries:   grouped(fx.FireballInjuries),
		ShockwaveDeaths:    grouped(fx.ShockwaveDeaths),
		ShockwaveInjuries:  grouped(fx.ShockwaveInjuries),
		WindDeaths:         grouped(fx.WindDeaths),
		WindInjuries:       grouped(fx.WindInjuries),
		EarthquakeInjuries: grouped(fx.EarthquakeInjuries),
		TotalDeaths:        grouped(fx.TotalDeaths),
		TotalInjuries:      grouped(fx.TotalInjuries),
		ExposedPopulation:  grouped(fx.ExposedPopulation),
	}
}

func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func miles(km float64) string {
	return fixed(km*kmToMiles, 1)
}

func grouped(n int64) string {
	return reportPrinter.Sprintf("%d", n)
}
