package population

import "math"

const (
	earthRadiusKm = 6371.0

	continentalBias     = 150.0
	nearCentreKm        = 600.0
	farCentreKm         = 1200.0
	farCentreBiasFactor = 0.4
)

type centre struct {
	name    string
	lat     float64
	lng     float64
	peak    float64 // people/km² at the centre
	sigmaKm float64
}

var centres = []centre{
	{"Tokyo", 35.68, 139.69, 6000, 60},
	{"Delhi", 28.61, 77.21, 11000, 50},
	{"Shanghai", 31.23, 121.47, 3800, 70},
	{"São Paulo", -23.55, -46.63, 7400, 50},
	{"Mexico City", 19.43, -99.13, 6000, 45},
	{"Cairo", 30.04, 31.24, 19000, 30},
	{"Mumbai", 19.08, 72.88, 20000, 30},
	{"Beijing", 39.90, 116.41, 1300, 80},
	{"Dhaka", 23.81, 90.41, 23000, 25},
	{"Osaka", 34.69, 135.50, 6000, 40},
	{"New York", 40.71, -74.01, 10000, 45},
	{"Karachi", 24.86, 67.01, 6000, 40},
	{"Buenos Aires", -34.60, -58.38, 14000, 30},
	{"Istanbul", 41.01, 28.98, 2800, 50},
	{"Lagos", 6.52, 3.38, 13000, 35},
	{"Kinshasa", -4.44, 15.27, 11000, 35},
	{"Manila", 14.60, 120.98, 21000, 25},
	{"London", 51.51, -0.13, 5700, 40},
}

// Analytic estimates density from Gaussian population centres plus a
// latitude-weighted bias near inhabited land. The result lies in
// [0, MaxDensity]; non-finite input yields DefaultDensity.
func Analytic(lat, lng float64) float64 {
	if !finite(lat) || !finite(lng) {
		return DefaultDensity
	}

	var density float64
	nearest := math.Inf(1)
	for _, c := range centres {
		d := haversineKm(lat, lng, c.lat, c.lng)
		if d < nearest {
			nearest = d
		}
		density += c.peak * math.Exp(-(d*d)/(2*c.sigmaKm*c.sigmaKm))
	}

	bias := continentalBias * math.Cos(lat*math.Pi/180)
	switch {
	case nearest <= nearCentreKm:
		density += bias
	case nearest <= farCentreKm:
		density += bias * farCentreBiasFactor
	}

	return clamp(density, 0, MaxDensity)
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
