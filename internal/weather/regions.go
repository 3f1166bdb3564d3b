package weather

// Region keys.
const (
	RegionUS     = "us"
	RegionEurope = "eu"
)

// Region is a worldview area: a set of sample points plus a regional alert feed.
type Region struct {
	Key     string
	Name    string
	Samples []Coordinate
	Alerts  RegionAlertSource
}

// USSamples spans the contiguous US.
var USSamples = []Coordinate{
	{Lat: 40.71, Lon: -74.01},  // New York
	{Lat: 41.88, Lon: -87.63},  // Chicago
	{Lat: 39.74, Lon: -104.99}, // Denver
	{Lat: 34.05, Lon: -118.24}, // Los Angeles
	{Lat: 47.61, Lon: -122.33}, // Seattle
	{Lat: 25.76, Lon: -80.19},  // Miami
	{Lat: 32.78, Lon: -96.80},  // Dallas
	{Lat: 33.75, Lon: -84.39},  // Atlanta
}

// EuropeSamples spans western and central Europe.
var EuropeSamples = []Coordinate{
	{Lat: 51.51, Lon: -0.13}, // London
	{Lat: 48.86, Lon: 2.35},  // Paris
	{Lat: 52.52, Lon: 13.40}, // Berlin
	{Lat: 40.42, Lon: -3.70}, // Madrid
	{Lat: 41.90, Lon: 12.50}, // Rome
	{Lat: 59.33, Lon: 18.07}, // Stockholm
	{Lat: 52.23, Lon: 21.01}, // Warsaw
	{Lat: 52.37, Lon: 4.90},  // Amsterdam
}

// DefaultRegions returns the US and Europe regions backed by the given alert feeds.
func DefaultRegions(usAlerts, euAlerts RegionAlertSource) []Region {
	return []Region{
		{Key: RegionUS, Name: "US", Samples: USSamples, Alerts: usAlerts},
		{Key: RegionEurope, Name: "Europe", Samples: EuropeSamples, Alerts: euAlerts},
	}
}
