package model

import "time"

// ImpactEffects holds the numeric magnitudes of one simulated impact.
// Distances are kilometres unless the field name says otherwise.
type ImpactEffects struct {
	EnergyMt         float64
	DensityPerKm2    float64
	ImpactAngleDeg   float64
	ImpactAzimuthDeg float64

	CraterDiameterKm float64
	CraterDepthKm    float64

	FireballRadiusKm    float64
	ThirdDegreeBurnsKm  float64
	ClothesIgnitionKm   float64
	TreeIgnitionKm      float64
	SecondDegreeBurnsKm float64

	ShockwaveRadiusKm  float64
	ShockwaveDecibels  float64
	LungDamageKm       float64
	EardrumRuptureKm   float64
	BuildingCollapseKm float64

	WindBlastRadiusKm  float64
	HomeCollapseKm     float64
	TreesKnockedDownKm float64

	EarthquakeRadiusKm  float64
	EarthquakeMagnitude float64

	TsunamiHeightM         float64
	AverageOccurrenceYears int64

	CraterVaporized    int64
	FireballDeaths     int64
	FireballInjuries   int64
	ShockwaveDeaths    int64
	ShockwaveInjuries  int64
	WindDeaths         int64
	WindInjuries       int64
	EarthquakeInjuries int64
	TotalDeaths        int64
	TotalInjuries      int64
	ExposedPopulation  int64
}

// ImpactReport is the presentation form of ImpactEffects: every magnitude
// rendered at its fixed precision.
type ImpactReport struct {
	EnergyMegatons       string `json:"energy_megatons"`
	EnergyKilotons       string `json:"energy_kilotons"`
	HiroshimaEquivalents string `json:"hiroshima_equivalents"`
	PopulationDensity    string `json:"population_density"`
	ImpactAngleDeg       string `json:"impact_angle_deg"`
	ImpactAzimuthDeg     string `json:"impact_azimuth_deg"`

	CraterDiameterKm    string `json:"crater_diameter_km"`
	CraterDiameterMiles string `json:"crater_diameter_miles"`
	CraterDepthKm       string `json:"crater_depth_km"`

	FireballRadiusKm    string `json:"fireball_radius_km"`
	FireballRadiusMiles string `json:"fireball_radius_miles"`
	ThirdDegreeBurnsKm  string `json:"third_degree_burns_km"`
	ClothesIgnitionKm   string `json:"clothes_ignition_km"`
	TreeIgnitionKm      string `json:"tree_ignition_km"`
	SecondDegreeBurnsKm string `json:"second_degree_burns_km"`

	ShockwaveRadiusKm    string `json:"shockwave_radius_km"`
	ShockwaveRadiusMiles string `json:"shockwave_radius_miles"`
	ShockwaveDecibels    string `json:"shockwave_decibels"`
	LungDamageKm         string `json:"lung_damage_km"`
	EardrumRuptureKm     string `json:"eardrum_rupture_km"`
	BuildingCollapseKm   string `json:"building_collapse_km"`

	WindBlastRadiusKm    string `json:"wind_blast_radius_km"`
	WindBlastRadiusMiles string `json:"wind_blast_radius_miles"`
	HomeCollapseKm       string `json:"home_collapse_km"`
	TreesKnockedDownKm   string `json:"trees_knocked_down_km"`

	EarthquakeRadiusKm    string `json:"earthquake_radius_km"`
	EarthquakeRadiusMiles string `json:"earthquake_radius_miles"`
	EarthquakeMagnitude   string `json:"earthquake_magnitude"`

	TsunamiHeightM         string `json:"tsunami_height_m"`
	AverageOccurrenceYears string `json:"average_occurrence_years"`

	CraterVaporized    string `json:"crater_vaporized"`
	FireballDeaths     string `json:"fireball_deaths"`
	FireballInjuries   string `json:"fireball_injuries"`
	ShockwaveDeaths    string `json:"shockwave_deaths"`
	ShockwaveInjuries  string `json:"shockwave_injuries"`
	WindDeaths         string `json:"wind_deaths"`
	WindInjuries       string `json:"wind_injuries"`
	EarthquakeInjuries string `json:"earthquake_injuries"`
	TotalDeaths        string `json:"total_deaths"`
	TotalInjuries      string `json:"total_injuries"`
	ExposedPopulation  string `json:"exposed_population"`
}

// ImpactSite places a surface target in Earth-centred frames at a given
// epoch. Vectors are in kilometres.
type ImpactSite struct {
	Target  GeoPoint  `json:"target"`
	Epoch   time.Time `json:"epoch"`
	GMSTRad float64   `json:"gmst_rad"`
	ECI     Vec       `json:"eci_km"`
	ECEF    Vec       `json:"ecef_km"`
}
