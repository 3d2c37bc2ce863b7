package models

import "time"

// WeatherObservation holds the latest METAR report for an airport.
// Metar is empty when the upstream report is unavailable; the ICAO code is
// echoed back even on failure.
type WeatherObservation struct {
	ICAO      string    `json:"icao"`
	Metar     string    `json:"metar"`
	FetchedAt time.Time `json:"fetchedAt"`
}
