package simulate

import (
	"fmt"
	"math/rand"

	"github.com/ahmeda07-gh/SkyGuard/internal/geofence"
	"github.com/ahmeda07-gh/SkyGuard/internal/models"
)

// DefaultCount is the number of synthetic flights generated when the
// caller does not specify one.
const DefaultCount = 120

// Placeholder airport codes for synthetic routes. Synthetic records exist
// only so the dashboard always has something to render; responses carrying
// them are tagged source=simulated.
const (
	placeholderOrigin      = "KXXX"
	placeholderDestination = "KYYY"
)

// Candidate regions for position sampling. Samples are additionally
// restricted to outerBounds, which excludes the Alaska and Hawaii regions
// entirely; the dashboard only renders the contiguous US.
var regions = []geofence.Box{
	{LatMin: 24.4, LatMax: 49.4, LonMin: -124.8, LonMax: -66.9},  // contiguous US
	{LatMin: 51.0, LatMax: 71.5, LonMin: -169.0, LonMax: -129.0}, // Alaska
	{LatMin: 18.5, LatMax: 22.5, LonMin: -160.5, LonMax: -154.5}, // Hawaii
}

var outerBounds = geofence.Box{LatMin: 25, LatMax: 49, LonMin: -124, LonMax: -67}

var carriers = []string{"AA", "UA", "DL", "WN", "AS", "B6", "NK", "F9", "HA", "G4"}

// Generate produces n plausible randomized aircraft positions for use as
// fallback data when no live feed is available. Identifiers follow the
// SIM### pattern and are unique within one call.
func Generate(n int) []models.FlightRecord {
	if n <= 0 {
		n = DefaultCount
	}
	records := make([]models.FlightRecord, 0, n)
	for i := 0; i < n; i++ {
		lat, lon := samplePosition()
		records = append(records, models.FlightRecord{
			ID:          fmt.Sprintf("SIM%03d", i),
			Carrier:     carriers[rand.Intn(len(carriers))],
			Lat:         lat,
			Lon:         lon,
			AltitudeFt:  26000 + rand.Float64()*12000,
			SpeedKt:     380 + rand.Float64()*100,
			Heading:     rand.Float64() * 360,
			Origin:      placeholderOrigin,
			Destination: placeholderDestination,
		})
	}
	return records
}

// samplePosition rejection-samples a coordinate: pick a region uniformly,
// sample a point inside it, accept only when the point also falls inside
// outerBounds.
func samplePosition() (lat, lon float64) {
	for {
		region := regions[rand.Intn(len(regions))]
		lat = region.LatMin + rand.Float64()*(region.LatMax-region.LatMin)
		lon = region.LonMin + rand.Float64()*(region.LonMax-region.LonMin)
		if outerBounds.Contains(lat, lon) {
			return lat, lon
		}
	}
}
