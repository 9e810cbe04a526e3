package catalog

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/impact-simulator/model"
)

// Seeds for the synthetic catalog. Names, sizes and speeds depend only on
// these; angular placement and approach dates also depend on the clock.
const (
	syntheticSeed1 = 0x6e656f
	syntheticSeed2 = 0x77732d66
)

// Synthetic returns n procedurally generated asteroids with IDs "mock-1"
// through "mock-n". Output is deterministic for a given now.
func Synthetic(n int, now time.Time) []model.Asteroid {
	if n <= 0 {
		return []model.Asteroid{}
	}
	rng := rand.New(rand.NewPCG(syntheticSeed1, syntheticSeed2))
	jitter := float64(now.UnixNano()%int64(time.Hour)) / float64(time.Hour) * 2 * math.Pi
	today := now.UTC().Truncate(24 * time.Hour)

	out := make([]model.Asteroid, 0, n)
	for i := 0; i < n; i++ {
		// Log-uniform diameter between 20 m and 2 km.
		diameter := 0.02 * math.Pow(100, rng.Float64())
		kms := 5 + rng.Float64()*35
		missKm := 3e5 + rng.Float64()*(maxMissKm-3e5)
		magnitude := 17 + rng.Float64()*10

		pos := PlaceholderPosition(missKm, rng)
		x, z := rotateY(pos.X, pos.Z, jitter)
		pos.X, pos.Z = x, z

		out = append(out, model.Asteroid{
			ID:                fmt.Sprintf("%s%d", model.MockIDPrefix, i+1),
			Name:              syntheticName(rng, today.Year()),
			DiameterKm:        diameter,
			VelocityKmh:       kms * 3600,
			VelocityKms:       kms,
			AbsoluteMagnitude: magnitude,
			Hazardous:         diameter >= 0.14 && missKm <= 7.48e6,
			MissDistanceKm:    missKm,
			CloseApproachDate: today.AddDate(0, 0, rng.IntN(7)),
			Position:          pos,
			ImpactAngleDeg:    model.DefaultImpactAngleDeg,
			ImpactAzimuthDeg:  model.DefaultImpactAzimuthDeg,
			Mock:              true,
		})
	}
	return out
}

// syntheticName mimics a provisional designation such as "(2024 QK12)".
func syntheticName(rng *rand.Rand, year int) string {
	const letters = "ABCDEFGHJKLMNOPQRSTUVWXY"
	half := letters[rng.IntN(len(letters))]
	order := 'A' + rune(rng.IntN(26))
	return fmt.Sprintf("(%d %c%c%d)", year, half, order, 1+rng.IntN(99))
}

func rotateY(x, z, angle float64) (float64, float64) {
	s, c := math.Sincos(angle)
	return x*c - z*s, x*s + z*c
}
