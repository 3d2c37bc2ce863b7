package models

// Data source tags attached to flight responses so the dashboard can tell
// live data from cached or simulated data.
const (
	SourceCache     = "cache"
	SourceLive      = "live"
	SourceSimulated = "simulated"
)

// FlightRecord is the normalized shape of one aircraft position report.
// Identifiers are unique per tick but not durable across ticks.
type FlightRecord struct {
	ID          string  `json:"id"`
	Carrier     string  `json:"carrier"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltitudeFt  float64 `json:"alt_ft"`
	SpeedKt     float64 `json:"vel_kt"`
	Heading     float64 `json:"heading"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
}

// FlightsResponse is the payload served to the dashboard.
type FlightsResponse struct {
	Flights []FlightRecord `json:"flights"`
	Source  string         `json:"source"`
}
