package contract

import "github.com/caiorlm/logichain/internal/coordgrid"

// distanceMeters is the haversine great-circle distance between two
// contract coordinates, delegating to the grid package's single
// implementation rather than duplicating the formula (spec §4.2/§4.4 both
// reference "the standard great-circle formula").
func distanceMeters(a, b Coordinate) float64 {
	return coordgrid.HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

// interpolationSamples returns intermediate points between pickup and
// delivery, linearly interpolated in degree space at roughly maxStepKM
// spacing, per DESIGN.md's Open Question (d) resolution: no multi-leg
// waypoint list exists in the data model, so the envelope's middle section
// is built from the straight line between the two named endpoints.
func interpolationSamples(pickup, delivery Coordinate, maxStepKM float64) []Coordinate {
	totalKM := distanceMeters(pickup, delivery) / 1000
	if totalKM <= maxStepKM || maxStepKM <= 0 {
		return nil
	}

	steps := int(totalKM/maxStepKM) + 1
	samples := make([]Coordinate, 0, steps-1)
	for i := 1; i < steps; i++ {
		frac := float64(i) / float64(steps)
		samples = append(samples, Coordinate{
			Lat: pickup.Lat + (delivery.Lat-pickup.Lat)*frac,
			Lng: pickup.Lng + (delivery.Lng-pickup.Lng)*frac,
		})
	}
	return samples
}

// withinEnvelope reports whether point falls inside the union of discs of
// radius toleranceRadiusMeters centered on pickup, delivery, and the
// interpolation samples between them (spec §4.4's checkpoint envelope).
func withinEnvelope(point, pickup, delivery Coordinate, toleranceRadiusMeters, maxStepKM float64) bool {
	if distanceMeters(point, pickup) <= toleranceRadiusMeters {
		return true
	}
	if distanceMeters(point, delivery) <= toleranceRadiusMeters {
		return true
	}
	for _, sample := range interpolationSamples(pickup, delivery, maxStepKM) {
		if distanceMeters(point, sample) <= toleranceRadiusMeters {
			return true
		}
	}
	return false
}
