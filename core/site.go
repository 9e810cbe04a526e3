package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/impact-simulator/model"
)

// ImpactSite places target on the Earth's surface at epoch in the inertial
// (ECI) and Earth-fixed (ECEF) frames. go-satellite works in kilometres and
// radians; target is in degrees.
func ImpactSite(target model.GeoPoint, epoch time.Time) model.ImpactSite {
	epoch = epoch.UTC()
	year, month, day := epoch.Date()
	hour, min, sec := epoch.Clock()

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	obs := satellite.LatLong{
		Latitude:  degToRad(target.Lat),
		Longitude: degToRad(target.Lng),
	}
	eci := satellite.LLAToECI(obs, 0, jd)
	ecef := satellite.ECIToECEF(eci, gmst)

	return model.ImpactSite{
		Target:  target,
		Epoch:   epoch,
		GMSTRad: gmst,
		ECI:     model.Vec{X: eci.X, Y: eci.Y, Z: eci.Z},
		ECEF:    model.Vec{X: ecef.X, Y: ecef.Y, Z: ecef.Z},
	}
}
